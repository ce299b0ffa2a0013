package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"order-agent/internal/models"
	"order-agent/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes order lifecycle events. Implements
// order.Publisher.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func orderKey(orderID string) string {
	return fmt.Sprintf("order-%s", orderID)
}

// PublishOrderCreated publishes an OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderItemsAdded publishes an OrderItemsAdded event
func (ep *EventPublisher) PublishOrderItemsAdded(ctx context.Context, event *models.OrderItemsAddedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderStatusChanged publishes an OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishPaymentConfirmed publishes a PaymentConfirmed event
func (ep *EventPublisher) PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// EventHandler routes consumed events to registered callbacks
type EventHandler struct {
	logger *zap.Logger

	onOrderStatusChanged func(context.Context, *models.OrderStatusChangedEvent) error
	onPaymentConfirmed   func(context.Context, *models.PaymentConfirmedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.NamedLogger("event-handler")}
}

// OnOrderStatusChanged registers a handler for OrderStatusChanged events
func (eh *EventHandler) OnOrderStatusChanged(handler func(context.Context, *models.OrderStatusChangedEvent) error) {
	eh.onOrderStatusChanged = handler
}

// OnPaymentConfirmed registers a handler for PaymentConfirmed events
func (eh *EventHandler) OnPaymentConfirmed(handler func(context.Context, *models.PaymentConfirmedEvent) error) {
	eh.onPaymentConfirmed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderStatusChanged:
		if eh.onOrderStatusChanged != nil {
			var event models.OrderStatusChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderStatusChanged event: %w", err)
			}
			return eh.onOrderStatusChanged(ctx, &event)
		}

	case models.EventTypePaymentConfirmed:
		if eh.onPaymentConfirmed != nil {
			var event models.PaymentConfirmedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentConfirmed event: %w", err)
			}
			return eh.onPaymentConfirmed(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
