package parser

import (
	"testing"

	"order-agent/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testNames = []string{"Pirão Burger", "Smash Burger", "Coca-Cola", "Batata Frita"}

func newTestParser() *Parser {
	cfg := config.MatchingConfig{
		ProductThreshold: 80,
		AddOnThreshold:   80,
		SuggestionFloor:  40,
		SuggestionLimit:  3,
	}
	return New(cfg, zap.NewNop())
}

func TestParseEmptyUtterance(t *testing.T) {
	p := newTestParser()
	assert.Nil(t, p.Parse("", testNames))
	assert.Nil(t, p.Parse("   \n ", testNames))
}

func TestParseQuantityWordWithExclusion(t *testing.T) {
	p := newTestParser()
	segs := p.Parse("dois pirão burger sem cebola", testNames)
	require.Len(t, segs, 1)
	assert.Equal(t, 2, segs[0].Quantity)
	assert.Equal(t, "Pirão Burger", segs[0].ProductText)
	assert.Equal(t, []string{"sem cebola"}, segs[0].Exclusions)
	assert.Empty(t, segs[0].AddOns)
	assert.False(t, segs[0].Partial)

	drafts := segs[0].Expand()
	require.Len(t, drafts, 2)
	for _, d := range drafts {
		assert.Equal(t, "sem cebola", d.Notes)
		assert.Empty(t, d.AddOns)
	}
}

func TestParseDigitQuantity(t *testing.T) {
	p := newTestParser()
	segs := p.Parse("2x pirão burger", testNames)
	require.Len(t, segs, 1)
	assert.Equal(t, 2, segs[0].Quantity)
	assert.Equal(t, "Pirão Burger", segs[0].ProductText)
}

func TestParsePartialSpecification(t *testing.T) {
	p := newTestParser()
	segs := p.Parse("dois pirão burger com bacon extra em um deles", testNames)
	require.Len(t, segs, 1)
	assert.True(t, segs[0].Partial)
	assert.Equal(t, []string{"bacon extra"}, segs[0].AddOns)

	drafts := segs[0].Expand()
	require.Len(t, drafts, 2)
	assert.Equal(t, []string{"bacon extra"}, drafts[0].AddOns)
	assert.Empty(t, drafts[1].AddOns)
	assert.True(t, drafts[0].Partial)
	assert.False(t, drafts[1].Partial)
}

func TestParseMultipleItemsWithConjunction(t *testing.T) {
	p := newTestParser()
	segs := p.Parse("dois pirão burger sem cebola com bacon extra em um deles e quero tambem mais um smash burger", testNames)
	require.Len(t, segs, 2)

	assert.Equal(t, "Pirão Burger", segs[0].ProductText)
	assert.Equal(t, 2, segs[0].Quantity)
	assert.Equal(t, []string{"sem cebola"}, segs[0].Exclusions)
	assert.Equal(t, []string{"bacon extra"}, segs[0].AddOns)
	assert.True(t, segs[0].Partial)

	assert.Equal(t, "Smash Burger", segs[1].ProductText)
	assert.Equal(t, 1, segs[1].Quantity)
	assert.Empty(t, segs[1].AddOns)
	assert.Empty(t, segs[1].Exclusions)
}

func TestParseCommaSeparatedItems(t *testing.T) {
	p := newTestParser()
	segs := p.Parse("um pirão burger, uma coca-cola", testNames)
	require.Len(t, segs, 2)
	assert.Equal(t, "Pirão Burger", segs[0].ProductText)
	assert.Equal(t, "Coca-Cola", segs[1].ProductText)
}

func TestParseModifierOnlySegmentMergesIntoPrevious(t *testing.T) {
	p := newTestParser()
	segs := p.Parse("um pirão burger, sem cebola", testNames)
	require.Len(t, segs, 1)
	assert.Equal(t, []string{"sem cebola"}, segs[0].Exclusions)

	segs = p.Parse("um pirão burger, com bacon extra", testNames)
	require.Len(t, segs, 1)
	assert.Equal(t, []string{"bacon extra"}, segs[0].AddOns)
}

func TestParseMergedPartialAddOnKeepsEarlierAddOns(t *testing.T) {
	p := newTestParser()
	drafts := p.ParseItems("dois pirão burger com bacon extra, com cheddar em um deles", testNames)
	require.Len(t, drafts, 2)
	assert.ElementsMatch(t, []string{"bacon extra", "cheddar"}, drafts[0].AddOns)
	assert.Equal(t, []string{"bacon extra"}, drafts[1].AddOns, "the all-units add-on must survive a later partial add-on")
	assert.True(t, drafts[0].Partial)
	assert.False(t, drafts[1].Partial)
}

func TestParseAddOnConjunctionStaysInSegment(t *testing.T) {
	p := newTestParser()
	segs := p.Parse("um pirão burger com bacon e cheddar", testNames)
	require.Len(t, segs, 1)
	assert.Equal(t, []string{"bacon", "cheddar"}, segs[0].AddOns)
}

func TestParseDropsUnusableSegment(t *testing.T) {
	p := newTestParser()
	assert.Empty(t, p.Parse("ok", testNames))
}

func TestDroppedSegmentLogsOriginalText(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cfg := config.MatchingConfig{
		ProductThreshold: 80,
		AddOnThreshold:   80,
		SuggestionFloor:  40,
		SuggestionLimit:  3,
	}
	p := New(cfg, zap.New(core))

	assert.Empty(t, p.Parse("1 ok", testNames))
	entries := logs.FilterMessage("dropping segment with no usable product text").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "1 ok", entries[0].ContextMap()["segment"])
}

func TestParseUnknownProductFallsBackToRawText(t *testing.T) {
	p := newTestParser()
	segs := p.Parse("quero um hamburguer alienigena", testNames)
	require.Len(t, segs, 1)
	assert.Equal(t, 0, segs[0].MatchScore)
	assert.NotEmpty(t, segs[0].ProductText)
}

func TestExpandQuantityInvariant(t *testing.T) {
	for _, qty := range []int{1, 2, 5, 15} {
		seg := Segment{Quantity: qty, ProductText: "Pirão Burger", AddOns: []string{"bacon"}, Exclusions: []string{"sem cebola"}, Partial: true}
		drafts := seg.Expand()
		require.Len(t, drafts, qty)
		withAddons := 0
		for _, d := range drafts {
			assert.Equal(t, "sem cebola", d.Notes)
			if len(d.AddOns) > 0 {
				withAddons++
			}
		}
		assert.Equal(t, 1, withAddons, "exactly one unit carries the add-ons when partial")
	}
}

func TestParseAssociativeAcrossUtterances(t *testing.T) {
	p := newTestParser()
	joined := p.ParseItems("um pirão burger e um smash burger", testNames)
	separate := append(
		p.ParseItems("um pirão burger", testNames),
		p.ParseItems("um smash burger", testNames)...,
	)
	require.Equal(t, len(separate), len(joined))
	for i := range joined {
		assert.Equal(t, separate[i].ProductText, joined[i].ProductText)
		assert.Equal(t, separate[i].Notes, joined[i].Notes)
	}
}

func TestParseNumberWordVocabulary(t *testing.T) {
	p := newTestParser()
	cases := map[string]int{
		"um pirão burger":       1,
		"três pirão burger":     3,
		"dez pirão burger":      10,
		"quinze pirão burger":   15,
		"quatorze smash burger": 14,
	}
	for text, want := range cases {
		segs := p.Parse(text, testNames)
		require.Len(t, segs, 1, "input %q", text)
		assert.Equal(t, want, segs[0].Quantity, "input %q", text)
	}
}
