package models

import "time"

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderItemsAdded    = "ORDER_ITEMS_ADDED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypePaymentConfirmed   = "PAYMENT_CONFIRMED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a new order is opened for a customer
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       string  `json:"order_id"`
	CustomerName  string  `json:"customer_name"`
	CustomerPhone string  `json:"customer_phone"`
	Total         float64 `json:"total"`
	ItemCount     int     `json:"item_count"`
}

// OrderItemsAddedEvent published when a later utterance merges items into an
// existing open order
type OrderItemsAddedEvent struct {
	BaseEvent
	OrderID    string  `json:"order_id"`
	ItemsAdded int     `json:"items_added"`
	Total      float64 `json:"total"`
}

// OrderStatusChangedEvent published on every lifecycle transition; the
// notification worker turns these into WhatsApp messages
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID        string      `json:"order_id"`
	CustomerName   string      `json:"customer_name"`
	CustomerPhone  string      `json:"customer_phone"`
	PreviousStatus OrderStatus `json:"previous_status"`
	NewStatus      OrderStatus `json:"new_status"`
	TotalFinal     float64     `json:"total_final"`
	DeliveryType   string      `json:"delivery_type"`
}

// PaymentConfirmedEvent published when the payment provider webhook reports a
// received payment
type PaymentConfirmedEvent struct {
	BaseEvent
	OrderID       string  `json:"order_id"`
	CustomerName  string  `json:"customer_name"`
	CustomerPhone string  `json:"customer_phone"`
	Amount        float64 `json:"amount"`
	ChargeID      string  `json:"charge_id"`
}
