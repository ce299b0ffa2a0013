package payment

import (
	"context"
	"fmt"
	"regexp"

	"order-agent/internal/models"

	"go.uber.org/zap"
)

// EventPaymentReceived is the webhook event that confirms a payment.
const EventPaymentReceived = "PAYMENT_RECEIVED"

// WebhookEvent is the payment provider's callback payload.
type WebhookEvent struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payment struct {
		ID          string  `json:"id"`
		Value       float64 `json:"value"`
		Description string  `json:"description"`
	} `json:"payment"`
}

// ChargeRef is the order reference recovered from a charge description.
type ChargeRef struct {
	OrderID       string
	CustomerName  string
	CustomerPhone string
}

var descriptionRe = regexp.MustCompile(`Pedido\s+#(\w+)\s*-\s*(.*?)\s*-\s*(.*?)\s*-`)

// ParseChargeDescription recovers the order token, customer name and phone
// from the description written by ChargeDescription.
func ParseChargeDescription(description string) (*ChargeRef, error) {
	m := descriptionRe.FindStringSubmatch(description)
	if m == nil {
		return nil, fmt.Errorf("charge description does not reference an order: %q", description)
	}
	return &ChargeRef{
		OrderID:       m[1],
		CustomerName:  m[2],
		CustomerPhone: m[3],
	}, nil
}

// OrderConfirmer advances an order after its payment is confirmed.
// Satisfied by order.Accumulator.
type OrderConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID string, amount float64) (*models.Order, error)
}

// EventMarker records handled webhook event ids for redelivery idempotency.
type EventMarker interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// WebhookProcessor turns provider callbacks into order confirmations.
type WebhookProcessor struct {
	orders OrderConfirmer
	marker EventMarker
	logger *zap.Logger
}

func NewWebhookProcessor(orders OrderConfirmer, marker EventMarker, logger *zap.Logger) *WebhookProcessor {
	return &WebhookProcessor{orders: orders, marker: marker, logger: logger}
}

// Process handles one webhook delivery. Non-payment events and redeliveries
// are acknowledged without effect.
func (p *WebhookProcessor) Process(ctx context.Context, event *WebhookEvent) error {
	if event.Event != EventPaymentReceived {
		p.logger.Debug("Ignoring webhook event", zap.String("event", event.Event))
		return nil
	}

	processed, err := p.marker.IsEventProcessed(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to check webhook idempotency: %w", err)
	}
	if processed {
		p.logger.Info("Skipping already-processed webhook", zap.String("event_id", event.ID))
		return nil
	}

	ref, err := ParseChargeDescription(event.Payment.Description)
	if err != nil {
		return err
	}

	order, err := p.orders.ConfirmPayment(ctx, ref.OrderID, event.Payment.Value)
	if err != nil {
		return fmt.Errorf("failed to confirm payment for order %s: %w", ref.OrderID, err)
	}

	if err := p.marker.MarkEventProcessed(ctx, event.ID, event.Event); err != nil {
		p.logger.Error("Failed to mark webhook processed", zap.String("event_id", event.ID), zap.Error(err))
	}

	p.logger.Info("Payment confirmed via webhook",
		zap.String("order_id", order.ID),
		zap.String("charge_id", event.Payment.ID),
		zap.Float64("amount", event.Payment.Value))
	return nil
}
