// Package parser turns a free-form Portuguese order utterance into structured
// item segments: quantity, product-name candidate, "com" add-on clauses,
// "sem" exclusion notes and partial-application qualifiers.
package parser

import (
	"regexp"
	"strings"

	"order-agent/config"
	"order-agent/internal/catalog"
	"order-agent/internal/textnorm"

	"go.uber.org/zap"
)

// Segment is one parsed item request. Quantity N expands into N item drafts.
// AddOns apply to every unit; PartialAddOns only to the first.
type Segment struct {
	Quantity      int
	ProductText   string
	MatchScore    int
	AddOns        []string
	PartialAddOns []string
	Exclusions    []string
	Partial       bool
}

// ItemDraft is a single expanded unit, ready for catalog resolution.
type ItemDraft struct {
	ProductText string
	AddOns      []string
	Notes       string
	Partial     bool
}

// numberWords maps Portuguese number words (diacritics already stripped by
// normalization) to quantities.
var numberWords = map[string]int{
	"um": 1, "uma": 1, "dois": 2, "duas": 2, "tres": 3, "quatro": 4,
	"cinco": 5, "seis": 6, "sete": 7, "oito": 8, "nove": 9, "dez": 10,
	"onze": 11, "doze": 12, "treze": 13, "quatorze": 14, "quinze": 15,
}

var (
	// Phrases meaning a modifier applies to only one unit of a
	// multi-quantity request.
	partialDetectRe = regexp.MustCompile(`\b(?:em\s+um\s+deles?|em\s+uma\s+delas?|so\s+um\s+deles?|so\s+uma\s+delas?|apenas\s+uma?|uma?\s+so|no\s+primeiro|no\s+segundo|no\s+terceiro|no\s+quarto|no\s+quinto|(?:primeiro|segundo|terceiro|quarto|quinto)\s+com)\b`)
	// Strip variant without the "<ordinal> com" forms, so the "com" marker
	// survives for add-on extraction.
	partialStripRe = regexp.MustCompile(`\b(?:em\s+um\s+deles?|em\s+uma\s+delas?|so\s+um\s+deles?|so\s+uma\s+delas?|apenas\s+uma?|uma?\s+so|no\s+primeiro|no\s+segundo|no\s+terceiro|no\s+quarto|no\s+quinto)\b`)

	punctSplitRe   = regexp.MustCompile(`[,;]`)
	conjunctionRe  = regexp.MustCompile(`\s+e\s+`)
	continuationRe = regexp.MustCompile(`^(?:\d|\S+\s+\S+)`)
	quantityRe     = regexp.MustCompile(`(\d+)\s*(?:x|vezes)?\b`)
	addonJoinerRe  = regexp.MustCompile(`\s+e\s+`)
)

// Parser splits utterances into segments and matches product-name candidates
// against the catalog.
type Parser struct {
	cfg    config.MatchingConfig
	logger *zap.Logger
}

func New(cfg config.MatchingConfig, logger *zap.Logger) *Parser {
	return &Parser{cfg: cfg, logger: logger}
}

// Parse splits the utterance into ordered segments. productNames is the set
// of currently available catalog names used for candidate matching; an empty
// or whitespace-only utterance yields nil.
func (p *Parser) Parse(text string, productNames []string) []Segment {
	text = textnorm.Normalize(text)
	if text == "" {
		return nil
	}

	var segments []Segment
	for _, raw := range splitSegments(text) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		// A segment that is purely modifiers attaches to the previous
		// product instead of creating a new item.
		if len(segments) > 0 && p.mergeModifierSegment(&segments[len(segments)-1], raw) {
			continue
		}

		partial := partialDetectRe.MatchString(raw)
		stripped := strings.TrimSpace(partialStripRe.ReplaceAllString(raw, " "))

		quantity, rest := extractQuantity(stripped)
		remainder, addons, exclusions := extractModifiers(rest)

		// Nothing usable left after stripping: discard.
		if len([]rune(strings.TrimSpace(remainder))) < 3 {
			p.logger.Debug("dropping segment with no usable product text", zap.String("segment", raw))
			continue
		}

		productText, score := p.matchProduct(remainder, productNames)
		segments = append(segments, Segment{
			Quantity:    quantity,
			ProductText: productText,
			MatchScore:  score,
			AddOns:      addons,
			Exclusions:  exclusions,
			Partial:     partial,
		})
	}
	return segments
}

// ParseItems parses and expands the utterance into per-unit drafts.
func (p *Parser) ParseItems(text string, productNames []string) []ItemDraft {
	var drafts []ItemDraft
	for _, seg := range p.Parse(text, productNames) {
		drafts = append(drafts, seg.Expand()...)
	}
	return drafts
}

// Expand materializes quantity into individual drafts. Exclusion notes apply
// to every unit. AddOns apply to every unit unless the segment itself carried
// a partial-specification qualifier; PartialAddOns always go to the first
// unit only, leaving the add-ons the other units already have intact.
func (s Segment) Expand() []ItemDraft {
	qty := s.Quantity
	if qty < 1 {
		qty = 1
	}
	notes := strings.Join(s.Exclusions, " ; ")
	drafts := make([]ItemDraft, 0, qty)
	for i := 0; i < qty; i++ {
		var addons []string
		if !s.Partial || i == 0 {
			addons = append(addons, s.AddOns...)
		}
		if i == 0 {
			addons = append(addons, s.PartialAddOns...)
		}
		drafts = append(drafts, ItemDraft{
			ProductText: s.ProductText,
			AddOns:      addons,
			Notes:       notes,
			Partial:     i == 0 && (s.Partial || len(s.PartialAddOns) > 0),
		})
	}
	return drafts
}

// mergeModifierSegment folds a "sem ..." or "com ..." only segment into the
// previous segment. Returns false when the segment is not modifier-only.
func (p *Parser) mergeModifierSegment(prev *Segment, raw string) bool {
	switch {
	case strings.HasPrefix(raw, "sem "):
		_, _, exclusions := extractModifiers(raw)
		prev.Exclusions = append(prev.Exclusions, exclusions...)
		return true
	case strings.HasPrefix(raw, "com "):
		partial := partialDetectRe.MatchString(raw)
		raw = strings.TrimSpace(partialStripRe.ReplaceAllString(raw, " "))
		_, addons, exclusions := extractModifiers(raw)
		// A partial qualifier restricts only the add-ons it arrived with;
		// add-ons the segment already granted to every unit keep applying.
		if partial {
			prev.PartialAddOns = append(prev.PartialAddOns, addons...)
		} else {
			prev.AddOns = append(prev.AddOns, addons...)
		}
		prev.Exclusions = append(prev.Exclusions, exclusions...)
		return true
	}
	return false
}

// splitSegments divides the utterance on commas, semicolons and the
// conjunction "e" when it is followed by a digit-led or multi-word
// continuation, so "com bacon e cheddar" stays in one segment while
// "um x e dois y" splits.
func splitSegments(text string) []string {
	var out []string
	for _, part := range punctSplitRe.Split(text, -1) {
		out = append(out, splitConjunction(part)...)
	}
	return out
}

func splitConjunction(part string) []string {
	var out []string
	for {
		locs := conjunctionRe.FindAllStringIndex(part, -1)
		splitAt := -1
		var splitEnd int
		for _, loc := range locs {
			if continuationRe.MatchString(part[loc[1]:]) {
				splitAt, splitEnd = loc[0], loc[1]
				break
			}
		}
		if splitAt < 0 {
			out = append(out, part)
			return out
		}
		out = append(out, part[:splitAt])
		part = part[splitEnd:]
	}
}

// extractQuantity pulls a leading quantity written as digits ("2", "2x") or
// as a number word ("dois"). Defaults to 1.
func extractQuantity(seg string) (int, string) {
	if m := quantityRe.FindStringSubmatchIndex(seg); m != nil {
		qty := 0
		for _, r := range seg[m[2]:m[3]] {
			qty = qty*10 + int(r-'0')
		}
		if qty >= 1 {
			rest := strings.TrimSpace(seg[:m[0]] + " " + seg[m[1]:])
			return qty, rest
		}
	}
	for word, qty := range numberWords {
		if strings.HasPrefix(seg, word+" ") {
			return qty, strings.TrimSpace(seg[len(word):])
		}
	}
	return 1, seg
}

// extractModifiers walks the segment words splitting them into product text,
// "com" add-on spans and "sem" exclusion spans. A span runs until the next
// "com"/"sem" marker or the end of the segment; add-on spans are further
// split on "e".
func extractModifiers(seg string) (remainder string, addons []string, exclusions []string) {
	const (
		stateProduct = iota
		stateAddon
		stateExclusion
	)
	var productWords, span []string
	state := stateProduct

	flush := func() {
		text := strings.TrimSpace(strings.Join(span, " "))
		span = span[:0]
		if text == "" {
			return
		}
		switch state {
		case stateAddon:
			for _, ad := range addonJoinerRe.Split(text, -1) {
				if ad = strings.TrimSpace(ad); ad != "" {
					addons = append(addons, ad)
				}
			}
		case stateExclusion:
			exclusions = append(exclusions, "sem "+text)
		}
	}

	for _, word := range strings.Fields(seg) {
		switch word {
		case "com":
			flush()
			state = stateAddon
		case "sem":
			flush()
			state = stateExclusion
		default:
			if state == stateProduct {
				productWords = append(productWords, word)
			} else {
				span = append(span, word)
			}
		}
	}
	flush()
	return strings.Join(productWords, " "), addons, exclusions
}

// matchProduct fuzzy-matches the remaining text against catalog names, first
// whole, then as contiguous word n-grams (n from min(4, words) down to 1).
// Falls back to the raw text when nothing clears the threshold; the resolver
// rejects it later with suggestions.
func (p *Parser) matchProduct(remainder string, names []string) (string, int) {
	if len(names) == 0 {
		return remainder, 0
	}
	if idx, score := catalog.BestMatch(remainder, names); score >= p.cfg.ProductThreshold {
		return names[idx], score
	}

	words := strings.Fields(textnorm.NormalizeStrict(remainder))
	maxN := len(words)
	if maxN > 4 {
		maxN = 4
	}
	bestScore, bestName := 0, ""
	for n := maxN; n >= 1; n-- {
		for i := 0; i+n <= len(words); i++ {
			candidate := strings.Join(words[i:i+n], " ")
			if idx, score := catalog.BestMatch(candidate, names); score >= p.cfg.ProductThreshold && score > bestScore {
				bestScore, bestName = score, names[idx]
			}
		}
	}
	if bestName != "" {
		return bestName, bestScore
	}
	return remainder, 0
}
