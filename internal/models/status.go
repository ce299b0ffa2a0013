package models

// OrderStatus is the closed set of order lifecycle states. Transitions are
// validated against the table below instead of ad-hoc string comparisons.
type OrderStatus string

const (
	StatusAwaitingDeliveryType  OrderStatus = "awaiting_delivery_type"
	StatusAwaitingPaymentMethod OrderStatus = "awaiting_payment_method"
	StatusAwaitingPayment       OrderStatus = "awaiting_payment"
	StatusSentToKitchen         OrderStatus = "sent_to_kitchen"
	StatusPreparing             OrderStatus = "preparing"
	StatusReady                 OrderStatus = "ready"
	StatusOutForDelivery        OrderStatus = "out_for_delivery"
	StatusCompleted             OrderStatus = "completed"
	StatusCancelled             OrderStatus = "cancelled"
)

var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusAwaitingDeliveryType:  {StatusAwaitingPaymentMethod, StatusCancelled},
	StatusAwaitingPaymentMethod: {StatusAwaitingPayment, StatusSentToKitchen, StatusCancelled},
	StatusAwaitingPayment:       {StatusSentToKitchen, StatusCancelled},
	StatusSentToKitchen:         {StatusPreparing},
	StatusPreparing:             {StatusReady},
	StatusReady:                 {StatusOutForDelivery, StatusCompleted},
	StatusOutForDelivery:        {StatusCompleted},
	StatusCompleted:             {},
	StatusCancelled:             {},
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OpenStatuses are the states in which an order still accepts accumulated
// items from the same customer. Once a charge exists the amount is fixed, so
// awaiting_payment and later states are closed to merging; a new item batch
// then opens a fresh order.
func OpenStatuses() []OrderStatus {
	return []OrderStatus{StatusAwaitingDeliveryType, StatusAwaitingPaymentMethod}
}

// Open reports whether the order may still receive items.
func (s OrderStatus) Open() bool {
	for _, open := range OpenStatuses() {
		if s == open {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return len(statusTransitions[s]) == 0
}

// Label is the human-readable Portuguese label used in customer messages and
// the status history.
func (s OrderStatus) Label() string {
	switch s {
	case StatusAwaitingDeliveryType:
		return "Aguardando definição de entrega"
	case StatusAwaitingPaymentMethod:
		return "Aguardando forma de pagamento"
	case StatusAwaitingPayment:
		return "Aguardando pagamento"
	case StatusSentToKitchen:
		return "Enviado para cozinha"
	case StatusPreparing:
		return "Em preparo"
	case StatusReady:
		return "Pronto"
	case StatusOutForDelivery:
		return "Saiu para entrega"
	case StatusCompleted:
		return "Concluído"
	case StatusCancelled:
		return "Cancelado"
	}
	return string(s)
}
