package order

import (
	"context"
	"errors"
	"testing"

	"order-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	orders map[string]*models.Order
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[string]*models.Order)}
}

func (f *fakeRepo) Create(ctx context.Context, o *models.Order) error {
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	stored, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *stored
	return &cp, nil
}

func (f *fakeRepo) FindOpenByPhone(ctx context.Context, phone string) (*models.Order, error) {
	var latest *models.Order
	for _, o := range f.orders {
		if o.CustomerPhone != phone || !o.Status.Open() {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeRepo) persist(o *models.Order, change models.StatusChange) error {
	stored, ok := f.orders[o.ID]
	if !ok {
		return errors.New("order missing")
	}
	cp := *o
	cp.History = append(append(models.HistoryList{}, stored.History...), change)
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeRepo) AppendItems(ctx context.Context, o *models.Order, c models.StatusChange) error {
	return f.persist(o, c)
}

func (f *fakeRepo) SetDelivery(ctx context.Context, o *models.Order, c models.StatusChange) error {
	return f.persist(o, c)
}

func (f *fakeRepo) SetPayment(ctx context.Context, o *models.Order, c models.StatusChange) error {
	return f.persist(o, c)
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, o *models.Order, c models.StatusChange) error {
	return f.persist(o, c)
}

func (f *fakeRepo) ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakePublisher struct {
	events []string
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	f.events = append(f.events, e.EventType)
	return nil
}

func (f *fakePublisher) PublishOrderItemsAdded(ctx context.Context, e *models.OrderItemsAddedEvent) error {
	f.events = append(f.events, e.EventType)
	return nil
}

func (f *fakePublisher) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	f.events = append(f.events, e.EventType)
	return nil
}

func (f *fakePublisher) PublishPaymentConfirmed(ctx context.Context, e *models.PaymentConfirmedEvent) error {
	f.events = append(f.events, e.EventType)
	return nil
}

func burgerItem(subtotal float64) models.OrderItem {
	return models.OrderItem{ProductID: "p1", Product: "Pirão Burger", UnitPrice: subtotal, Subtotal: subtotal}
}

func newTestAccumulator() (*Accumulator, *fakeRepo, *fakePublisher) {
	repo := newFakeRepo()
	pub := &fakePublisher{}
	return NewAccumulator(repo, pub, zap.NewNop()), repo, pub
}

func TestSubmitCreatesOrder(t *testing.T) {
	acc, _, pub := newTestAccumulator()
	ctx := context.Background()

	order, created, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{
		burgerItem(25.00), burgerItem(25.00),
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, order.ID, 8)
	assert.Equal(t, models.StatusAwaitingDeliveryType, order.Status)
	assert.Equal(t, 50.00, order.Total)
	assert.Equal(t, order.Total, order.TotalFinal)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 1, order.Items[0].ItemID)
	assert.Equal(t, 2, order.Items[1].ItemID)
	require.Len(t, order.History, 1)
	assert.Contains(t, pub.events, models.EventTypeOrderCreated)
	assert.NotEmpty(t, order.Summaries.Kitchen)
}

func TestSubmitMergesIntoOpenOrder(t *testing.T) {
	acc, _, pub := newTestAccumulator()
	ctx := context.Background()

	first, created, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{burgerItem(25.00)})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{
		{ProductID: "p3", Product: "Coca-Cola", UnitPrice: 6.00, Subtotal: 6.00},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 31.00, second.Total)
	require.Len(t, second.Items, 2)
	assert.Equal(t, 1, second.Items[0].ItemID)
	assert.Equal(t, 2, second.Items[1].ItemID)
	assert.Equal(t, models.StatusAwaitingDeliveryType, second.Status)
	assert.Contains(t, pub.events, models.EventTypeOrderItemsAdded)
}

func TestSubmitDoesNotMergeClosedOrder(t *testing.T) {
	acc, _, _ := newTestAccumulator()
	ctx := context.Background()

	first, _, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{burgerItem(25.00)})
	require.NoError(t, err)
	_, err = acc.SetPickup(ctx, first.ID)
	require.NoError(t, err)
	_, err = acc.RegisterCharge(ctx, first.ID, models.PaymentMethodPix, "ch_1", "https://pay/ch_1")
	require.NoError(t, err)

	second, created, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{burgerItem(25.00)})
	require.NoError(t, err)
	assert.True(t, created, "a charged order must not accept new items")
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSubmitDifferentPhonesSeparateOrders(t *testing.T) {
	acc, _, _ := newTestAccumulator()
	ctx := context.Background()

	a, _, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{burgerItem(25.00)})
	require.NoError(t, err)
	b, _, err := acc.Submit(ctx, "João", "5516888880000", []models.OrderItem{burgerItem(25.00)})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSetDelivery(t *testing.T) {
	acc, _, pub := newTestAccumulator()
	ctx := context.Background()

	order, _, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{burgerItem(47.50)})
	require.NoError(t, err)

	updated, err := acc.SetDelivery(ctx, order.ID, "Rua das Flores, 100", 4.2, "15 min", 9.30)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingPaymentMethod, updated.Status)
	assert.Equal(t, models.DeliveryTypeDelivery, updated.DeliveryType)
	assert.Equal(t, 9.30, updated.DeliveryFee)
	assert.Equal(t, 56.80, updated.TotalFinal)
	assert.Contains(t, pub.events, models.EventTypeOrderStatusChanged)
}

func TestSetPickupClearsFee(t *testing.T) {
	acc, _, _ := newTestAccumulator()
	ctx := context.Background()

	order, _, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{burgerItem(25.00)})
	require.NoError(t, err)

	updated, err := acc.SetPickup(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryTypePickup, updated.DeliveryType)
	assert.Zero(t, updated.DeliveryFee)
	assert.Equal(t, updated.Total, updated.TotalFinal)
	assert.Equal(t, models.StatusAwaitingPaymentMethod, updated.Status)
}

func TestRegisterChargeRequiresPaymentMethodStage(t *testing.T) {
	acc, _, _ := newTestAccumulator()
	ctx := context.Background()

	order, _, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{burgerItem(25.00)})
	require.NoError(t, err)

	_, err = acc.RegisterCharge(ctx, order.ID, models.PaymentMethodPix, "ch_1", "https://pay/ch_1")
	var tErr *InvalidTransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, models.StatusAwaitingDeliveryType, tErr.From)
}

func TestPayCashShortfall(t *testing.T) {
	acc, repo, _ := newTestAccumulator()
	ctx := context.Background()

	order, _, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{burgerItem(47.50)})
	require.NoError(t, err)
	_, err = acc.SetPickup(ctx, order.ID)
	require.NoError(t, err)

	_, err = acc.PayCash(ctx, order.ID, 40.00)
	var sErr *ShortfallError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, 7.50, sErr.Missing())

	stored, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingPaymentMethod, stored.Status, "a rejected cash payment must not advance the order")
	assert.Zero(t, stored.CashReceived)
}

func TestPayCashComputesChange(t *testing.T) {
	acc, _, _ := newTestAccumulator()
	ctx := context.Background()

	order, _, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{burgerItem(47.50)})
	require.NoError(t, err)
	_, err = acc.SetPickup(ctx, order.ID)
	require.NoError(t, err)

	paid, err := acc.PayCash(ctx, order.ID, 50.00)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSentToKitchen, paid.Status)
	assert.Equal(t, models.PaymentMethodCash, paid.PaymentMethod)
	assert.Equal(t, 2.50, paid.CashChange)
}

func TestConfirmPayment(t *testing.T) {
	acc, _, pub := newTestAccumulator()
	ctx := context.Background()

	order, _, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{burgerItem(25.00)})
	require.NoError(t, err)
	_, err = acc.SetPickup(ctx, order.ID)
	require.NoError(t, err)
	_, err = acc.RegisterCharge(ctx, order.ID, models.PaymentMethodPix, "ch_1", "https://pay/ch_1")
	require.NoError(t, err)

	confirmed, err := acc.ConfirmPayment(ctx, order.ID, 25.00)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSentToKitchen, confirmed.Status)
	assert.Contains(t, pub.events, models.EventTypePaymentConfirmed)
}

func TestMarkConfirmedKeepsOrderOpen(t *testing.T) {
	acc, _, _ := newTestAccumulator()
	ctx := context.Background()

	order, _, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{burgerItem(25.00)})
	require.NoError(t, err)

	confirmed, err := acc.MarkConfirmed(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingDeliveryType, confirmed.Status)
	require.Len(t, confirmed.History, 2)

	stillOpen, err := acc.FindOpen(ctx, "5516999990000")
	require.NoError(t, err)
	require.NotNil(t, stillOpen)
	assert.Equal(t, order.ID, stillOpen.ID)
}

func TestAdvanceStatusRejectsIllegalJump(t *testing.T) {
	acc, _, _ := newTestAccumulator()
	ctx := context.Background()

	order, _, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{burgerItem(25.00)})
	require.NoError(t, err)

	_, err = acc.AdvanceStatus(ctx, order.ID, models.StatusReady)
	var tErr *InvalidTransitionError
	require.ErrorAs(t, err, &tErr)
}

func TestAdvanceStatusKitchenFlow(t *testing.T) {
	acc, _, _ := newTestAccumulator()
	ctx := context.Background()

	order, _, err := acc.Submit(ctx, "Maria", "5516999990000", []models.OrderItem{burgerItem(25.00)})
	require.NoError(t, err)
	_, err = acc.SetPickup(ctx, order.ID)
	require.NoError(t, err)
	_, err = acc.PayCash(ctx, order.ID, 25.00)
	require.NoError(t, err)

	for _, next := range []models.OrderStatus{models.StatusPreparing, models.StatusReady, models.StatusCompleted} {
		updated, err := acc.AdvanceStatus(ctx, order.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	_, err = acc.AdvanceStatus(ctx, order.ID, models.StatusPreparing)
	assert.Error(t, err)
}

func TestGetUnknownOrder(t *testing.T) {
	acc, _, _ := newTestAccumulator()
	_, err := acc.Get(context.Background(), "nope1234")
	assert.ErrorIs(t, err, ErrNotFound)
}
