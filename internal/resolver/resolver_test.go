package resolver

import (
	"context"
	"testing"

	"order-agent/config"
	"order-agent/internal/catalog"
	"order-agent/internal/models"
	"order-agent/internal/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCatalog struct {
	products []models.Product
}

func (f *fakeCatalog) AvailableProducts(ctx context.Context) ([]models.Product, error) {
	return f.products, nil
}

func menuFixture() []models.Product {
	return []models.Product{
		{ID: "p1", Name: "Pirão Burger", Price: 25.00, Available: true, AddOns: models.AddOnList{
			{Name: "Bacon Extra", Price: 5.00},
			{Name: "Cheddar", Price: 4.00},
		}},
		{ID: "p2", Name: "Smash Burger", Price: 22.00, Available: true, AddOns: models.AddOnList{
			{Name: "Bacon Extra", Price: 5.00},
			{Name: "Ovo", Price: 2.50},
		}},
		{ID: "p3", Name: "Coca-Cola", Price: 6.00, Available: true},
		{ID: "p4", Name: "Batata Frita", Price: 12.00, Available: true},
	}
}

func newTestResolver() *Resolver {
	cfg := config.MatchingConfig{ProductThreshold: 80, AddOnThreshold: 80, SuggestionFloor: 40, SuggestionLimit: 3}
	logger := zap.NewNop()
	lookup := catalog.NewLookup(&fakeCatalog{products: menuFixture()}, cfg, logger)
	return New(lookup, parser.New(cfg, logger), cfg, logger)
}

func TestResolveEmptyUtterance(t *testing.T) {
	r := newTestResolver()
	out, err := r.Resolve(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Contains(t, out.Message, "Não consegui identificar itens")
	assert.Empty(t, out.Items)
}

func TestResolveQuantityWithExclusion(t *testing.T) {
	r := newTestResolver()
	out, err := r.Resolve(context.Background(), "dois pirão burger sem cebola")
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Len(t, out.Items, 2)
	for _, item := range out.Items {
		assert.Equal(t, "Pirão Burger", item.Product)
		assert.Equal(t, "sem cebola", item.Notes)
		assert.Empty(t, item.AddOns)
		assert.Equal(t, 25.00, item.Subtotal)
	}
}

func TestResolvePartialAddOn(t *testing.T) {
	r := newTestResolver()
	out, err := r.Resolve(context.Background(), "2 smash burger com bacon extra em um deles")
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Len(t, out.Items, 2)

	first, second := out.Items[0], out.Items[1]
	require.Len(t, first.AddOns, 1)
	assert.Equal(t, "Bacon Extra", first.AddOns[0].Name)
	assert.Equal(t, 27.00, first.Subtotal)
	assert.True(t, first.PartialSpec)

	assert.Empty(t, second.AddOns)
	assert.Equal(t, 22.00, second.Subtotal)
}

func TestResolveAddOnPricing(t *testing.T) {
	r := newTestResolver()
	out, err := r.Resolve(context.Background(), "2 pirão burger com cheddar")
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Len(t, out.Items, 2)
	for _, item := range out.Items {
		require.Len(t, item.AddOns, 1)
		assert.Equal(t, "Cheddar", item.AddOns[0].Name)
		assert.Equal(t, 29.00, item.Subtotal)
	}
}

func TestResolveUnknownProduct(t *testing.T) {
	r := newTestResolver()
	out, err := r.Resolve(context.Background(), "um hamburguer alienigena")
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.False(t, out.NeedConfirmation)
	assert.Contains(t, out.Message, "não encontrado")
	assert.Empty(t, out.Items)
}

func TestResolveLowConfidenceAsksConfirmation(t *testing.T) {
	r := newTestResolver()
	out, err := r.Resolve(context.Background(), "um pirao")
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.True(t, out.NeedConfirmation)
	require.Len(t, out.ProductConfirmations, 1)
	c := out.ProductConfirmations[0]
	assert.Equal(t, "Pirão Burger", c.Guess)
	assert.GreaterOrEqual(t, c.Score, 40)
	assert.Less(t, c.Score, 80)
	assert.NotContains(t, c.Alternatives, c.Guess)
	assert.Empty(t, out.Items)
}

func TestResolveConfirmedAcceptsGuess(t *testing.T) {
	r := newTestResolver()
	out, err := r.ResolveConfirmed(context.Background(), "um pirao")
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Pirão Burger", out.Items[0].Product)
}

func TestResolveInvalidAddOn(t *testing.T) {
	r := newTestResolver()
	out, err := r.Resolve(context.Background(), "um smash burger com calabresa")
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.True(t, out.NeedConfirmation)
	require.Len(t, out.AddOnConfirmations, 1)
	c := out.AddOnConfirmations[0]
	assert.Equal(t, "Smash Burger", c.Product)
	assert.Equal(t, "calabresa", c.Original)
	assert.NotEmpty(t, c.Suggestions)
	assert.Empty(t, out.Items)
}

func TestResolveBatchIsAtomic(t *testing.T) {
	r := newTestResolver()
	out, err := r.Resolve(context.Background(), "um pirão burger e um smash burger com calabresa")
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.True(t, out.NeedConfirmation)
	assert.Empty(t, out.Items, "a batch with any unresolved item must commit nothing")
}

func TestResolveMultiItemUtterance(t *testing.T) {
	r := newTestResolver()
	out, err := r.Resolve(context.Background(), "um pirão burger sem cebola, uma coca-cola e uma batata frita")
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Len(t, out.Items, 3)
	assert.Equal(t, "Pirão Burger", out.Items[0].Product)
	assert.Equal(t, "Coca-Cola", out.Items[1].Product)
	assert.Equal(t, "Batata Frita", out.Items[2].Product)
}
