// Package resolver validates parsed item drafts against the catalog and
// prices them. A batch either resolves completely or not at all; nothing is
// committed while any item still needs customer confirmation.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"order-agent/config"
	"order-agent/internal/catalog"
	"order-agent/internal/models"
	"order-agent/internal/parser"
	"order-agent/internal/util"

	"go.uber.org/zap"
)

// ProductConfirmation asks the customer to confirm a low-confidence product
// guess before anything is committed.
type ProductConfirmation struct {
	Original     string   `json:"original"`
	Guess        string   `json:"sugestao"`
	Score        int      `json:"score"`
	Alternatives []string `json:"alternativas"`
}

// AddOnConfirmation reports an add-on the customer asked for that the matched
// product does not offer, with the closest valid options.
type AddOnConfirmation struct {
	Product     string   `json:"produto"`
	Original    string   `json:"original"`
	Suggestions []string `json:"sugestoes"`
}

// Outcome is the result of resolving one utterance. When OK is false, Message
// carries the customer-facing explanation and Items is empty.
type Outcome struct {
	OK                   bool                  `json:"ok"`
	NeedConfirmation     bool                  `json:"precisa_confirmacao"`
	Message              string                `json:"mensagem"`
	Items                []models.OrderItem    `json:"itens,omitempty"`
	ProductConfirmations []ProductConfirmation `json:"confirmacoes_produto,omitempty"`
	AddOnConfirmations   []AddOnConfirmation   `json:"confirmacoes_adicional,omitempty"`
	Suggestions          []catalog.Suggestion  `json:"sugestoes,omitempty"`
}

// Resolver drives parse -> match -> validate -> price for one utterance.
type Resolver struct {
	lookup *catalog.Lookup
	parser *parser.Parser
	cfg    config.MatchingConfig
	logger *zap.Logger
}

func New(lookup *catalog.Lookup, p *parser.Parser, cfg config.MatchingConfig, logger *zap.Logger) *Resolver {
	return &Resolver{lookup: lookup, parser: p, cfg: cfg, logger: logger}
}

// Resolve parses the utterance and resolves every draft against the catalog.
//
// Per product: below the suggestion floor the whole batch is rejected with up
// to SuggestionLimit alternatives; between the floor and the auto-accept
// threshold the guess is queued for confirmation; at or above the threshold
// the item is accepted and its add-ons validated. Any unresolvable add-on
// also holds back the whole batch.
func (r *Resolver) Resolve(ctx context.Context, text string) (*Outcome, error) {
	return r.resolve(ctx, text, r.cfg.ProductThreshold)
}

// ResolveConfirmed re-resolves an utterance the customer has already
// confirmed: product guesses are accepted down at the suggestion floor
// instead of being sent back again. Add-on validation is unchanged.
func (r *Resolver) ResolveConfirmed(ctx context.Context, text string) (*Outcome, error) {
	return r.resolve(ctx, text, r.cfg.SuggestionFloor)
}

func (r *Resolver) resolve(ctx context.Context, text string, acceptThreshold int) (*Outcome, error) {
	start := time.Now()
	defer func() {
		util.ParseLatency.Observe(time.Since(start).Seconds())
	}()

	products, err := r.lookup.Products(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(products))
	for i := range products {
		names[i] = products[i].Name
	}

	drafts := r.parser.ParseItems(text, names)
	if len(drafts) == 0 {
		return &Outcome{
			OK:      false,
			Message: "Não consegui identificar itens no pedido. Pode reescrever?",
		}, nil
	}

	outcome := &Outcome{}
	var items []models.OrderItem
	for _, draft := range drafts {
		product, score := catalog.BestProduct(products, draft.ProductText)

		if product == nil || score < r.cfg.SuggestionFloor {
			suggestions := r.lookup.SimilarProducts(products, draft.ProductText, r.cfg.SuggestionLimit)
			r.logger.Info("product not found",
				zap.String("query", draft.ProductText),
				zap.Int("best_score", score))
			return &Outcome{
				OK:          false,
				Message:     notFoundMessage(draft.ProductText, suggestions),
				Suggestions: suggestions,
			}, nil
		}

		if score < acceptThreshold {
			outcome.ProductConfirmations = append(outcome.ProductConfirmations, ProductConfirmation{
				Original:     draft.ProductText,
				Guess:        product.Name,
				Score:        score,
				Alternatives: r.alternatives(products, draft.ProductText, product.Name),
			})
			continue
		}

		item, addonProblems := r.buildItem(product, draft)
		if len(addonProblems) > 0 {
			outcome.AddOnConfirmations = append(outcome.AddOnConfirmations, addonProblems...)
			continue
		}
		items = append(items, item)
	}

	if len(outcome.ProductConfirmations) > 0 || len(outcome.AddOnConfirmations) > 0 {
		outcome.NeedConfirmation = true
		outcome.Message = confirmationMessage(outcome.ProductConfirmations, outcome.AddOnConfirmations)
		util.ConfirmationsRequestedTotal.WithLabelValues(confirmationKind(outcome)).Inc()
		return outcome, nil
	}

	outcome.OK = true
	outcome.Items = items
	return outcome, nil
}

// buildItem prices one accepted draft. Every requested add-on must resolve
// against the product's own add-on set at or above the add-on threshold.
func (r *Resolver) buildItem(product *models.Product, draft parser.ItemDraft) (models.OrderItem, []AddOnConfirmation) {
	var problems []AddOnConfirmation
	var accepted models.AddOnList
	subtotal := product.Price

	for _, name := range draft.AddOns {
		best, score, suggestions := catalog.BestAddOn(name, product.AddOns, r.cfg.SuggestionLimit)
		if score < r.cfg.AddOnThreshold {
			problems = append(problems, AddOnConfirmation{
				Product:     product.Name,
				Original:    name,
				Suggestions: suggestions,
			})
			continue
		}
		price := catalog.AddOnPrice(product.AddOns, best)
		accepted = append(accepted, models.AddOn{Name: best, Price: price})
		subtotal += price
	}
	if len(problems) > 0 {
		return models.OrderItem{}, problems
	}

	return models.OrderItem{
		ProductID:   product.ID,
		Product:     product.Name,
		UnitPrice:   product.Price,
		AddOns:      accepted,
		Notes:       draft.Notes,
		Subtotal:    models.Round2(subtotal),
		PartialSpec: draft.Partial,
	}, nil
}

// alternatives ranks near-misses for a confirmation prompt, excluding the
// guess itself.
func (r *Resolver) alternatives(products []models.Product, query, guess string) []string {
	ranked := r.lookup.SimilarProducts(products, query, r.cfg.SuggestionLimit+1)
	var out []string
	for _, s := range ranked {
		if s.Name == guess {
			continue
		}
		out = append(out, s.Name)
		if len(out) == r.cfg.SuggestionLimit {
			break
		}
	}
	return out
}

func notFoundMessage(query string, suggestions []catalog.Suggestion) string {
	msg := fmt.Sprintf("Produto '%s' não encontrado no cardápio.", query)
	if len(suggestions) == 0 {
		return msg
	}
	names := make([]string, len(suggestions))
	for i, s := range suggestions {
		names[i] = s.Name
	}
	return msg + " Você quis dizer: " + strings.Join(names, ", ") + "?"
}

func confirmationMessage(products []ProductConfirmation, addons []AddOnConfirmation) string {
	var lines []string
	for _, c := range products {
		lines = append(lines, fmt.Sprintf("Você quis dizer '%s' quando escreveu '%s'?", c.Guess, c.Original))
	}
	for _, c := range addons {
		line := fmt.Sprintf("O adicional '%s' não está disponível para %s.", c.Original, c.Product)
		if len(c.Suggestions) > 0 {
			line += " Opções: " + strings.Join(c.Suggestions, ", ") + "."
		}
		lines = append(lines, line)
	}
	lines = append(lines, "Por favor confirme antes de eu registrar o pedido.")
	return strings.Join(lines, "\n")
}

func confirmationKind(o *Outcome) string {
	if len(o.ProductConfirmations) > 0 {
		return "product"
	}
	return "addon"
}
