package store

import (
	"context"
	"database/sql"
	"fmt"

	"order-agent/internal/models"

	"github.com/lib/pq"
)

// OrderStore implements the order repository over Postgres. Items, history
// and summaries live in JSONB columns; every mutation writes its fields and
// the history entry in one statement so the row never holds a half-applied
// update.
type OrderStore struct {
	*Store
}

func NewOrderStore(s *Store) *OrderStore {
	return &OrderStore{Store: s}
}

// Create inserts a new order
func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (
			id, customer_name, customer_phone, items, total, status,
			delivery_type, delivery_address, delivery_distance_km, delivery_eta,
			delivery_fee, total_final, payment_method, cash_received, cash_change,
			charge_id, payment_link, history, summaries
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		order.ID, order.CustomerName, order.CustomerPhone, order.Items,
		order.Total, order.Status, order.DeliveryType, order.DeliveryAddress,
		order.DeliveryDistanceKm, order.DeliveryETA, order.DeliveryFee,
		order.TotalFinal, order.PaymentMethod, order.CashReceived,
		order.CashChange, order.ChargeID, order.PaymentLink, order.History,
		order.Summaries,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
}

// GetByID retrieves an order, nil when it does not exist
func (s *OrderStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindOpenByPhone retrieves the customer's most recent order still open for
// item accumulation, nil when there is none.
func (s *OrderStore) FindOpenByPhone(ctx context.Context, phone string) (*models.Order, error) {
	open := models.OpenStatuses()
	statuses := make([]string, len(open))
	for i, st := range open {
		statuses[i] = string(st)
	}

	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE customer_phone = $1 AND status = ANY($2) ORDER BY created_at DESC LIMIT 1",
		phone, pq.Array(statuses))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// AppendItems persists a merged item batch: item list, totals, summaries and
// the history entry, atomically.
func (s *OrderStore) AppendItems(ctx context.Context, order *models.Order, change models.StatusChange) error {
	query := `
		UPDATE orders SET
			items = $2, total = $3, total_final = $4, summaries = $5,
			history = history || $6::jsonb, updated_at = NOW()
		WHERE id = $1`

	return s.mustUpdate(ctx, order.ID, query,
		order.ID, order.Items, order.Total, order.TotalFinal, order.Summaries,
		models.HistoryList{change})
}

// SetDelivery persists the delivery/pickup choice and the resulting status.
func (s *OrderStore) SetDelivery(ctx context.Context, order *models.Order, change models.StatusChange) error {
	query := `
		UPDATE orders SET
			status = $2, delivery_type = $3, delivery_address = $4,
			delivery_distance_km = $5, delivery_eta = $6, delivery_fee = $7,
			total_final = $8, history = history || $9::jsonb, updated_at = NOW()
		WHERE id = $1`

	return s.mustUpdate(ctx, order.ID, query,
		order.ID, order.Status, order.DeliveryType, order.DeliveryAddress,
		order.DeliveryDistanceKm, order.DeliveryETA, order.DeliveryFee,
		order.TotalFinal, models.HistoryList{change})
}

// SetPayment persists payment fields (charge or cash) and the resulting
// status.
func (s *OrderStore) SetPayment(ctx context.Context, order *models.Order, change models.StatusChange) error {
	query := `
		UPDATE orders SET
			status = $2, payment_method = $3, charge_id = $4, payment_link = $5,
			cash_received = $6, cash_change = $7,
			history = history || $8::jsonb, updated_at = NOW()
		WHERE id = $1`

	return s.mustUpdate(ctx, order.ID, query,
		order.ID, order.Status, order.PaymentMethod, order.ChargeID,
		order.PaymentLink, order.CashReceived, order.CashChange,
		models.HistoryList{change})
}

// UpdateStatus persists a status change with its history entry.
func (s *OrderStore) UpdateStatus(ctx context.Context, order *models.Order, change models.StatusChange) error {
	query := `
		UPDATE orders SET
			status = $2, history = history || $3::jsonb, updated_at = NOW()
		WHERE id = $1`

	return s.mustUpdate(ctx, order.ID, query,
		order.ID, order.Status, models.HistoryList{change})
}

// ListByStatus retrieves orders in a status, newest first.
func (s *OrderStore) ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE status = $1 ORDER BY created_at DESC", status)
	return orders, err
}

func (s *OrderStore) mustUpdate(ctx context.Context, id, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("order not found: %s", id)
	}
	return nil
}
