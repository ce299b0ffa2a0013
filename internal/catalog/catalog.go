// Package catalog resolves free-text names against the live product catalog
// using a 0-100 fuzzy similarity ratio.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"order-agent/config"
	"order-agent/internal/models"
	"order-agent/internal/textnorm"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"
)

// Repository is the read-only view of the product catalog. Products are
// administered elsewhere; this service never writes them.
type Repository interface {
	AvailableProducts(ctx context.Context) ([]models.Product, error)
}

// Suggestion is a ranked near-miss offered back to the customer.
type Suggestion struct {
	Name  string `json:"nome"`
	Score int    `json:"score"`
}

// Ratio computes a 0-100 similarity score between two strings after strict
// normalization. 100 means the normalized forms are identical.
func Ratio(a, b string) int {
	na := textnorm.NormalizeStrict(a)
	nb := textnorm.NormalizeStrict(b)
	if na == nb {
		return 100
	}
	if na == "" || nb == "" {
		return 0
	}
	la := len([]rune(na))
	lb := len([]rune(nb))
	longest := la
	if lb > longest {
		longest = lb
	}
	dist := levenshtein.ComputeDistance(na, nb)
	score := 100 - (100*dist+longest/2)/longest
	if score < 0 {
		score = 0
	}
	return score
}

// BestMatch returns the index and score of the best-scoring candidate, or
// (-1, 0) when candidates is empty. Ties keep the first maximum encountered.
func BestMatch(query string, candidates []string) (int, int) {
	bestIdx, bestScore := -1, 0
	for i, c := range candidates {
		if s := Ratio(query, c); s > bestScore {
			bestIdx, bestScore = i, s
		}
	}
	return bestIdx, bestScore
}

// Lookup performs fuzzy catalog queries with configured thresholds.
type Lookup struct {
	repo   Repository
	cfg    config.MatchingConfig
	logger *zap.Logger
}

func NewLookup(repo Repository, cfg config.MatchingConfig, logger *zap.Logger) *Lookup {
	return &Lookup{repo: repo, cfg: cfg, logger: logger}
}

// Products loads the currently available products.
func (l *Lookup) Products(ctx context.Context) ([]models.Product, error) {
	products, err := l.repo.AvailableProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return products, nil
}

// BestProduct scores the query against every product name and returns the
// best candidate with its score, or (nil, score) when nothing clears
// minScore. The score of the rejected best candidate is still returned so
// callers can distinguish "nothing close" from "close but unconfident".
func BestProduct(products []models.Product, name string) (*models.Product, int) {
	bestIdx, bestScore := -1, 0
	for i := range products {
		if s := Ratio(name, products[i].Name); s > bestScore {
			bestIdx, bestScore = i, s
		}
	}
	if bestIdx < 0 {
		return nil, 0
	}
	return &products[bestIdx], bestScore
}

// FindBestProduct loads available products and resolves name, rejecting
// matches below minScore.
func (l *Lookup) FindBestProduct(ctx context.Context, name string, minScore int) (*models.Product, int, error) {
	products, err := l.Products(ctx)
	if err != nil {
		return nil, 0, err
	}
	product, score := BestProduct(products, name)
	if product == nil || score < minScore {
		return nil, score, nil
	}
	return product, score, nil
}

// SimilarProducts ranks products scoring at or above the suggestion floor,
// best first, up to limit entries.
func (l *Lookup) SimilarProducts(products []models.Product, name string, limit int) []Suggestion {
	var ranked []Suggestion
	for i := range products {
		if s := Ratio(name, products[i].Name); s >= l.cfg.SuggestionFloor {
			ranked = append(ranked, Suggestion{Name: products[i].Name, Score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// FindSimilarProducts loads the catalog and returns up to limit suggestions
// for name.
func (l *Lookup) FindSimilarProducts(ctx context.Context, name string, limit int) ([]Suggestion, error) {
	products, err := l.Products(ctx)
	if err != nil {
		return nil, err
	}
	return l.SimilarProducts(products, name, limit), nil
}

// BestAddOn scores name against a single product's add-on set. It returns
// the best candidate name and score, plus up to limit alternatives ranked
// best first regardless of whether the best clears any threshold.
func BestAddOn(name string, addons []models.AddOn, limit int) (string, int, []string) {
	if len(addons) == 0 {
		return "", 0, nil
	}
	type scored struct {
		name  string
		score int
	}
	ranked := make([]scored, 0, len(addons))
	for _, ad := range addons {
		ranked = append(ranked, scored{name: ad.Name, score: Ratio(name, ad.Name)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	suggestions := make([]string, 0, limit)
	for _, r := range ranked {
		if len(suggestions) == limit {
			break
		}
		suggestions = append(suggestions, r.name)
	}
	return ranked[0].name, ranked[0].score, suggestions
}

// AddOnPrice finds the price of an add-on by normalized-name equality.
func AddOnPrice(addons []models.AddOn, name string) float64 {
	target := textnorm.NormalizeStrict(name)
	for _, ad := range addons {
		if textnorm.NormalizeStrict(ad.Name) == target {
			return ad.Price
		}
	}
	return 0
}
