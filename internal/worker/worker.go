// Package worker runs the background consumers: status-change events become
// WhatsApp notifications to the customer.
package worker

import (
	"context"

	"order-agent/internal/broker"
	"order-agent/internal/models"
	"order-agent/internal/notify"
	"order-agent/internal/util"

	"go.uber.org/zap"
)

// EventMarker records handled event ids so redelivered Kafka messages are
// acknowledged without re-sending notifications.
type EventMarker interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// NotificationWorker consumes order lifecycle events and messages customers.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	whatsapp     *notify.WhatsAppClient
	marker       EventMarker
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	consumer *broker.Consumer,
	whatsapp *notify.WhatsAppClient,
	marker EventMarker,
) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		whatsapp: whatsapp,
		marker:   marker,
		logger:   util.NamedLogger("notification-worker"),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderStatusChanged(w.handleStatusChanged)
	eventHandler.OnPaymentConfirmed(w.handlePaymentConfirmed)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	done, err := w.claim(ctx, event.EventID, event.EventType)
	if err != nil || done {
		return err
	}

	text := notify.StatusMessage(event.NewStatus, models.DeliveryType(event.DeliveryType))
	if text == "" {
		return nil
	}

	if err := w.whatsapp.SendTextTyping(ctx, event.CustomerPhone, text); err != nil {
		w.logger.Error("Failed to send status notification",
			zap.String("order_id", event.OrderID),
			zap.String("status", string(event.NewStatus)),
			zap.Error(err))
		return err
	}

	w.logger.Info("Status notification sent",
		zap.String("order_id", event.OrderID),
		zap.String("status", string(event.NewStatus)))
	return nil
}

func (w *NotificationWorker) handlePaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	done, err := w.claim(ctx, event.EventID, event.EventType)
	if err != nil || done {
		return err
	}

	text := notify.PaymentConfirmedMessage(event.OrderID, event.Amount)
	if err := w.whatsapp.SendTextTyping(ctx, event.CustomerPhone, text); err != nil {
		w.logger.Error("Failed to send payment notification",
			zap.String("order_id", event.OrderID),
			zap.Error(err))
		return err
	}
	return nil
}

// claim reports whether the event was already handled, marking it otherwise.
func (w *NotificationWorker) claim(ctx context.Context, eventID, eventType string) (bool, error) {
	processed, err := w.marker.IsEventProcessed(ctx, eventID)
	if err != nil {
		return false, err
	}
	if processed {
		w.logger.Debug("Skipping already-processed event", zap.String("event_id", eventID))
		return true, nil
	}
	return false, w.marker.MarkEventProcessed(ctx, eventID, eventType)
}
