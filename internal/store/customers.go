package store

import (
	"context"
	"database/sql"

	"order-agent/internal/models"
)

// GetCustomerByPhone retrieves a customer, nil when unknown
func (s *Store) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer,
		"SELECT * FROM customers WHERE phone = $1", phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpsertCustomer creates the customer on first contact or updates the name
// and identification status on later interactions.
func (s *Store) UpsertCustomer(ctx context.Context, customer *models.Customer) error {
	query := `
		INSERT INTO customers (phone, name, status, first_contact, last_interaction)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (phone) DO UPDATE SET
			name = EXCLUDED.name, status = EXCLUDED.status, last_interaction = NOW()
		RETURNING first_contact, last_interaction`

	return s.db.QueryRowxContext(ctx, query,
		customer.Phone, customer.Name, customer.Status,
	).Scan(&customer.FirstContact, &customer.LastInteraction)
}

// TouchCustomer refreshes last_interaction without changing identity fields
func (s *Store) TouchCustomer(ctx context.Context, phone string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE customers SET last_interaction = NOW() WHERE phone = $1", phone)
	return err
}
