// Package payment integrates with the Asaas-style charge API and parses its
// payment webhook callbacks.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"order-agent/config"
	"order-agent/internal/models"
	"order-agent/internal/util"

	"go.uber.org/zap"
)

// Charge is a created payment charge.
type Charge struct {
	ID          string `json:"id"`
	InvoiceURL  string `json:"invoiceUrl"`
	PixQrCode   string `json:"pixQrCode"`
	BillingType string `json:"billingType"`
}

// Client talks to the payment provider.
type Client struct {
	cfg        config.PaymentConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg config.PaymentConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// billingTypes maps our payment methods onto the provider's billing types.
var billingTypes = map[models.PaymentMethod]string{
	models.PaymentMethodCard: "CREDIT_CARD",
	models.PaymentMethodPix:  "PIX",
}

type chargeRequest struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	Description       string  `json:"description"`
	ExternalReference string  `json:"externalReference"`
}

// CreateCharge generates a charge for the order's final total, due tomorrow.
// The description carries the order token so the webhook can find the order
// again.
func (c *Client) CreateCharge(ctx context.Context, order *models.Order, method models.PaymentMethod) (*Charge, error) {
	ctx, span := util.StartSpan(ctx, "PaymentClient.CreateCharge")
	defer span.End()

	billingType, ok := billingTypes[method]
	if !ok {
		return nil, fmt.Errorf("unsupported payment method for charge: %s", method)
	}

	payload := chargeRequest{
		Customer:          c.cfg.DefaultCustomerID,
		BillingType:       billingType,
		Value:             order.TotalFinal,
		DueDate:           time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
		Description:       ChargeDescription(order),
		ExternalReference: order.ID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("charge request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read charge response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The provider's error body is surfaced untouched; it names the
		// rejected field.
		return nil, fmt.Errorf("charge rejected (status %d): %s", resp.StatusCode, respBody)
	}

	var charge Charge
	if err := json.Unmarshal(respBody, &charge); err != nil {
		return nil, fmt.Errorf("failed to decode charge response: %w", err)
	}

	c.logger.Info("Charge created",
		zap.String("order_id", order.ID),
		zap.String("charge_id", charge.ID),
		zap.Float64("value", order.TotalFinal))
	return &charge, nil
}

// ChargeDescription renders the charge description the webhook parser reads
// back.
func ChargeDescription(order *models.Order) string {
	return fmt.Sprintf("Pedido #%s - %s - %s - Pirão Burger",
		order.ID, order.CustomerName, order.CustomerPhone)
}
