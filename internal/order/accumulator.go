// Package order implements the order accumulation state machine: one open
// order per customer phone, item batches merged in while the order still
// accepts them, totals and audience summaries recomputed on every change.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-agent/internal/models"
	"order-agent/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned when an order id does not exist.
var ErrNotFound = errors.New("order not found")

// InvalidTransitionError reports a lifecycle step the transition table does
// not allow.
type InvalidTransitionError struct {
	From, To models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// ShortfallError reports a cash payment below the amount due.
type ShortfallError struct {
	Due      float64
	Received float64
}

func (e *ShortfallError) Missing() float64 {
	return models.Round2(e.Due - e.Received)
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("insufficient cash: received %.2f, due %.2f", e.Received, e.Due)
}

// Repository persists orders. Mutating methods must write the changed fields
// and the history entry in a single atomic statement.
type Repository interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// FindOpenByPhone returns the most recent order still open for item
	// accumulation, or nil when the customer has none.
	FindOpenByPhone(ctx context.Context, phone string) (*models.Order, error)
	AppendItems(ctx context.Context, o *models.Order, change models.StatusChange) error
	SetDelivery(ctx context.Context, o *models.Order, change models.StatusChange) error
	SetPayment(ctx context.Context, o *models.Order, change models.StatusChange) error
	UpdateStatus(ctx context.Context, o *models.Order, change models.StatusChange) error
	ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
}

// Publisher fans order lifecycle events out to the notification worker.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderItemsAdded(ctx context.Context, event *models.OrderItemsAddedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
}

// Accumulator is the order state machine service.
type Accumulator struct {
	repo      Repository
	publisher Publisher
	logger    *zap.Logger
}

func NewAccumulator(repo Repository, publisher Publisher, logger *zap.Logger) *Accumulator {
	return &Accumulator{repo: repo, publisher: publisher, logger: logger}
}

// Submit merges a batch of validated items into the customer's open order,
// creating one when none is open. Returns the resulting order and whether it
// was newly created.
func (a *Accumulator) Submit(ctx context.Context, name, phone string, items []models.OrderItem) (*models.Order, bool, error) {
	ctx, span := util.StartSpan(ctx, "Accumulator.Submit")
	defer span.End()

	if len(items) == 0 {
		return nil, false, errors.New("no items to submit")
	}

	existing, err := a.repo.FindOpenByPhone(ctx, phone)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, false, fmt.Errorf("failed to look up open order: %w", err)
	}

	if existing == nil {
		order, err := a.create(ctx, name, phone, items)
		return order, true, err
	}
	order, err := a.merge(ctx, existing, items)
	return order, false, err
}

func (a *Accumulator) create(ctx context.Context, name, phone string, items []models.OrderItem) (*models.Order, error) {
	now := time.Now()
	order := &models.Order{
		ID:            newOrderToken(),
		CustomerName:  name,
		CustomerPhone: phone,
		Status:        models.StatusAwaitingDeliveryType,
		CreatedAt:     now,
		UpdatedAt:     now,
		History: models.HistoryList{{
			Status:      models.StatusAwaitingDeliveryType,
			Timestamp:   now,
			Description: "Pedido criado",
		}},
	}
	appendRenumbered(order, items)
	order.TotalFinal = order.Total
	order.Summaries = buildSummaries(order)

	if err := a.repo.Create(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	util.OrderItemsAccumulatedTotal.Add(float64(len(items)))
	a.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("phone", phone),
		zap.Int("items", len(items)))

	a.publish(ctx, func() error {
		return a.publisher.PublishOrderCreated(ctx, &models.OrderCreatedEvent{
			BaseEvent:     newBaseEvent(models.EventTypeOrderCreated),
			OrderID:       order.ID,
			CustomerName:  order.CustomerName,
			CustomerPhone: order.CustomerPhone,
			Total:         order.Total,
			ItemCount:     len(order.Items),
		})
	})
	return order, nil
}

func (a *Accumulator) merge(ctx context.Context, order *models.Order, items []models.OrderItem) (*models.Order, error) {
	appendRenumbered(order, items)
	order.TotalFinal = models.Round2(order.Total + order.DeliveryFee)
	order.Summaries = buildSummaries(order)
	order.UpdatedAt = time.Now()

	change := models.StatusChange{
		Status:      order.Status,
		Timestamp:   order.UpdatedAt,
		Description: fmt.Sprintf("%d item(ns) adicionados ao pedido", len(items)),
	}
	if err := a.repo.AppendItems(ctx, order, change); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to append items: %w", err)
	}
	order.History = append(order.History, change)

	util.OrderItemsAccumulatedTotal.Add(float64(len(items)))
	a.logger.Info("Items merged into open order",
		zap.String("order_id", order.ID),
		zap.Int("items_added", len(items)),
		zap.Float64("total", order.Total))

	a.publish(ctx, func() error {
		return a.publisher.PublishOrderItemsAdded(ctx, &models.OrderItemsAddedEvent{
			BaseEvent:  newBaseEvent(models.EventTypeOrderItemsAdded),
			OrderID:    order.ID,
			ItemsAdded: len(items),
			Total:      order.Total,
		})
	})
	return order, nil
}

// SetDelivery records a delivery quote and moves the order to
// awaiting_payment_method.
func (a *Accumulator) SetDelivery(ctx context.Context, orderID, address string, distanceKm float64, eta string, fee float64) (*models.Order, error) {
	order, err := a.getForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransition(models.StatusAwaitingPaymentMethod) {
		return nil, &InvalidTransitionError{From: order.Status, To: models.StatusAwaitingPaymentMethod}
	}

	previous := order.Status
	order.DeliveryType = models.DeliveryTypeDelivery
	order.DeliveryAddress = address
	order.DeliveryDistanceKm = distanceKm
	order.DeliveryETA = eta
	order.DeliveryFee = fee
	order.TotalFinal = models.Round2(order.Total + fee)
	order.Status = models.StatusAwaitingPaymentMethod
	order.UpdatedAt = time.Now()

	change := models.StatusChange{
		Status:      order.Status,
		Timestamp:   order.UpdatedAt,
		Description: fmt.Sprintf("Entrega definida: %s (%.1f km, taxa R$ %.2f)", address, distanceKm, fee),
	}
	if err := a.repo.SetDelivery(ctx, order, change); err != nil {
		return nil, fmt.Errorf("failed to set delivery: %w", err)
	}
	order.History = append(order.History, change)

	a.publishStatusChanged(ctx, order, previous)
	return order, nil
}

// SetPickup marks the order for counter pickup, with no fee, and moves it to
// awaiting_payment_method.
func (a *Accumulator) SetPickup(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := a.getForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransition(models.StatusAwaitingPaymentMethod) {
		return nil, &InvalidTransitionError{From: order.Status, To: models.StatusAwaitingPaymentMethod}
	}

	previous := order.Status
	order.DeliveryType = models.DeliveryTypePickup
	order.DeliveryAddress = ""
	order.DeliveryDistanceKm = 0
	order.DeliveryETA = ""
	order.DeliveryFee = 0
	order.TotalFinal = order.Total
	order.Status = models.StatusAwaitingPaymentMethod
	order.UpdatedAt = time.Now()

	change := models.StatusChange{
		Status:      order.Status,
		Timestamp:   order.UpdatedAt,
		Description: "Retirada no balcão",
	}
	if err := a.repo.SetDelivery(ctx, order, change); err != nil {
		return nil, fmt.Errorf("failed to set pickup: %w", err)
	}
	order.History = append(order.History, change)

	a.publishStatusChanged(ctx, order, previous)
	return order, nil
}

// RegisterCharge attaches a generated charge to the order and moves it to
// awaiting_payment, closing it to further item accumulation.
func (a *Accumulator) RegisterCharge(ctx context.Context, orderID string, method models.PaymentMethod, chargeID, paymentLink string) (*models.Order, error) {
	order, err := a.getForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransition(models.StatusAwaitingPayment) {
		return nil, &InvalidTransitionError{From: order.Status, To: models.StatusAwaitingPayment}
	}

	previous := order.Status
	order.PaymentMethod = method
	order.ChargeID = chargeID
	order.PaymentLink = paymentLink
	order.Status = models.StatusAwaitingPayment
	order.UpdatedAt = time.Now()

	change := models.StatusChange{
		Status:      order.Status,
		Timestamp:   order.UpdatedAt,
		Description: fmt.Sprintf("Cobrança gerada (%s)", method),
	}
	if err := a.repo.SetPayment(ctx, order, change); err != nil {
		return nil, fmt.Errorf("failed to register charge: %w", err)
	}
	order.History = append(order.History, change)

	util.ChargesCreatedTotal.WithLabelValues(string(method)).Inc()
	a.publishStatusChanged(ctx, order, previous)
	return order, nil
}

// PayCash records a cash payment. The tendered amount must cover the final
// total; otherwise a ShortfallError is returned and the order is untouched.
func (a *Accumulator) PayCash(ctx context.Context, orderID string, tendered float64) (*models.Order, error) {
	order, err := a.getForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransition(models.StatusSentToKitchen) {
		return nil, &InvalidTransitionError{From: order.Status, To: models.StatusSentToKitchen}
	}
	if tendered < order.TotalFinal {
		util.CashShortfallTotal.Inc()
		return nil, &ShortfallError{Due: order.TotalFinal, Received: tendered}
	}

	previous := order.Status
	order.PaymentMethod = models.PaymentMethodCash
	order.CashReceived = tendered
	order.CashChange = models.Round2(tendered - order.TotalFinal)
	order.Status = models.StatusSentToKitchen
	order.UpdatedAt = time.Now()

	change := models.StatusChange{
		Status:      order.Status,
		Timestamp:   order.UpdatedAt,
		Description: fmt.Sprintf("Pagamento em dinheiro: recebido R$ %.2f, troco R$ %.2f", tendered, order.CashChange),
	}
	if err := a.repo.SetPayment(ctx, order, change); err != nil {
		return nil, fmt.Errorf("failed to record cash payment: %w", err)
	}
	order.History = append(order.History, change)

	util.ChargesCreatedTotal.WithLabelValues(string(models.PaymentMethodCash)).Inc()
	a.publishStatusChanged(ctx, order, previous)
	return order, nil
}

// ConfirmPayment handles the payment-provider callback: the order moves from
// awaiting_payment to sent_to_kitchen.
func (a *Accumulator) ConfirmPayment(ctx context.Context, orderID string, amount float64) (*models.Order, error) {
	order, err := a.getForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransition(models.StatusSentToKitchen) {
		return nil, &InvalidTransitionError{From: order.Status, To: models.StatusSentToKitchen}
	}

	previous := order.Status
	order.Status = models.StatusSentToKitchen
	order.UpdatedAt = time.Now()

	change := models.StatusChange{
		Status:      order.Status,
		Timestamp:   order.UpdatedAt,
		Description: "Pagamento confirmado",
	}
	if err := a.repo.UpdateStatus(ctx, order, change); err != nil {
		return nil, fmt.Errorf("failed to confirm payment: %w", err)
	}
	order.History = append(order.History, change)

	util.PaymentsConfirmedTotal.Inc()
	a.publish(ctx, func() error {
		return a.publisher.PublishPaymentConfirmed(ctx, &models.PaymentConfirmedEvent{
			BaseEvent:     newBaseEvent(models.EventTypePaymentConfirmed),
			OrderID:       order.ID,
			CustomerName:  order.CustomerName,
			CustomerPhone: order.CustomerPhone,
			Amount:        amount,
			ChargeID:      order.ChargeID,
		})
	})
	a.publishStatusChanged(ctx, order, previous)
	return order, nil
}

// MarkConfirmed appends a confirmation entry to the history without changing
// status, so the order keeps accepting items until a delivery type is chosen.
func (a *Accumulator) MarkConfirmed(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := a.getForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}

	order.UpdatedAt = time.Now()
	change := models.StatusChange{
		Status:      order.Status,
		Timestamp:   order.UpdatedAt,
		Description: "Pedido confirmado pelo cliente",
	}
	if err := a.repo.UpdateStatus(ctx, order, change); err != nil {
		return nil, fmt.Errorf("failed to mark order confirmed: %w", err)
	}
	order.History = append(order.History, change)
	return order, nil
}

// AdvanceStatus applies a kitchen-side lifecycle step (preparing, ready, out
// for delivery, completed).
func (a *Accumulator) AdvanceStatus(ctx context.Context, orderID string, next models.OrderStatus) (*models.Order, error) {
	order, err := a.getForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransition(next) {
		return nil, &InvalidTransitionError{From: order.Status, To: next}
	}

	previous := order.Status
	order.Status = next
	order.UpdatedAt = time.Now()

	change := models.StatusChange{
		Status:      next,
		Timestamp:   order.UpdatedAt,
		Description: next.Label(),
	}
	if err := a.repo.UpdateStatus(ctx, order, change); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	order.History = append(order.History, change)

	a.publishStatusChanged(ctx, order, previous)
	return order, nil
}

// Get retrieves an order by id.
func (a *Accumulator) Get(ctx context.Context, orderID string) (*models.Order, error) {
	return a.getForUpdate(ctx, orderID)
}

// ListByStatus lists orders in a given status, newest first.
func (a *Accumulator) ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	return a.repo.ListByStatus(ctx, status)
}

// FindOpen returns the customer's open order, or nil.
func (a *Accumulator) FindOpen(ctx context.Context, phone string) (*models.Order, error) {
	return a.repo.FindOpenByPhone(ctx, phone)
}

func (a *Accumulator) getForUpdate(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := a.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order == nil {
		return nil, ErrNotFound
	}
	return order, nil
}

// Event publish failures are logged, never propagated: the order state is
// already durable.
func (a *Accumulator) publish(ctx context.Context, fn func() error) {
	if a.publisher == nil {
		return
	}
	if err := fn(); err != nil {
		a.logger.Error("Failed to publish event", zap.Error(err))
	}
}

func (a *Accumulator) publishStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) {
	a.publish(ctx, func() error {
		return a.publisher.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
			BaseEvent:      newBaseEvent(models.EventTypeOrderStatusChanged),
			OrderID:        order.ID,
			CustomerName:   order.CustomerName,
			CustomerPhone:  order.CustomerPhone,
			PreviousStatus: previous,
			NewStatus:      order.Status,
			TotalFinal:     order.TotalFinal,
			DeliveryType:   string(order.DeliveryType),
		})
	})
}

// appendRenumbered appends items with contiguous item ids continuing after
// the existing list and recomputes the running total.
func appendRenumbered(order *models.Order, items []models.OrderItem) {
	next := len(order.Items) + 1
	for _, item := range items {
		item.ItemID = next
		next++
		order.Items = append(order.Items, item)
	}
	total := 0.0
	for _, item := range order.Items {
		total += item.Subtotal
	}
	order.Total = models.Round2(total)
}

func newOrderToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
