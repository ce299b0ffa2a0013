// Package delivery quotes delivery distance and fees using a distance-matrix
// style maps API.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"order-agent/config"
	"order-agent/internal/models"
	"order-agent/internal/util"

	"go.uber.org/zap"
)

// Quote is a resolved delivery estimate for one destination address.
type Quote struct {
	Address    string  `json:"endereco"`
	DistanceKm float64 `json:"distancia_km"`
	ETA        string  `json:"tempo_estimado"`
	Fee        float64 `json:"valor_entrega"`
}

// Quoter resolves destination addresses against the maps API and prices the
// trip with the configured fee table.
type Quoter struct {
	cfg        config.DeliveryConfig
	maps       config.MapsConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewQuoter(cfg config.DeliveryConfig, maps config.MapsConfig, logger *zap.Logger) *Quoter {
	return &Quoter{
		cfg:        cfg,
		maps:       maps,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int64  `json:"value"`
				Text  string `json:"text"`
			} `json:"distance"`
			Duration struct {
				Text string `json:"text"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

var coordsRe = regexp.MustCompile(`^\s*-?\d+(?:\.\d+)?\s*,\s*-?\d+(?:\.\d+)?\s*$`)

// QuoteAddress resolves the driving distance from the restaurant to the
// destination and computes the delivery fee. The destination may be a street
// address or a "lat,lon" coordinate pair; coordinate destinations are routed
// from the restaurant's own coordinates.
func (q *Quoter) QuoteAddress(ctx context.Context, destination string) (*Quote, error) {
	ctx, span := util.StartSpan(ctx, "Quoter.QuoteAddress")
	defer span.End()

	origin := q.cfg.OriginAddress
	if coordsRe.MatchString(destination) {
		origin = fmt.Sprintf("%f,%f", q.cfg.OriginLat, q.cfg.OriginLon)
	}

	params := url.Values{}
	params.Set("origins", origin)
	params.Set("destinations", destination)
	params.Set("key", q.maps.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.maps.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build maps request: %w", err)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		util.DeliveryQuoteFailedTotal.WithLabelValues("request_error").Inc()
		return nil, fmt.Errorf("maps request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		util.DeliveryQuoteFailedTotal.WithLabelValues("http_status").Inc()
		return nil, fmt.Errorf("maps request failed: status %d", resp.StatusCode)
	}

	var matrix matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&matrix); err != nil {
		util.DeliveryQuoteFailedTotal.WithLabelValues("bad_response").Inc()
		return nil, fmt.Errorf("failed to decode maps response: %w", err)
	}

	if matrix.Status != "OK" || len(matrix.Rows) == 0 || len(matrix.Rows[0].Elements) == 0 {
		util.DeliveryQuoteFailedTotal.WithLabelValues("no_route").Inc()
		return nil, fmt.Errorf("no route found for address: %s", destination)
	}
	element := matrix.Rows[0].Elements[0]
	if element.Status != "OK" {
		util.DeliveryQuoteFailedTotal.WithLabelValues("no_route").Inc()
		return nil, fmt.Errorf("no route found for address: %s", destination)
	}

	distanceKm := float64(element.Distance.Value) / 1000.0
	quote := &Quote{
		Address:    destination,
		DistanceKm: models.Round2(distanceKm),
		ETA:        element.Duration.Text,
		Fee:        q.ComputeFee(distanceKm),
	}

	util.DeliveriesQuotedTotal.Inc()
	q.logger.Info("Delivery quoted",
		zap.String("address", destination),
		zap.Float64("distance_km", quote.DistanceKm),
		zap.Float64("fee", quote.Fee))
	return quote, nil
}

// ComputeFee prices a trip: base fee plus a per-km rate, clamped to the
// configured minimum and maximum.
func (q *Quoter) ComputeFee(distanceKm float64) float64 {
	fee := q.cfg.BaseFee + distanceKm*q.cfg.PerKmRate
	if fee < q.cfg.MinFee {
		fee = q.cfg.MinFee
	}
	if fee > q.cfg.MaxFee {
		fee = q.cfg.MaxFee
	}
	return models.Round2(fee)
}
