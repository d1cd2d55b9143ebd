package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"course-commerce/internal/models"
)

// CreateOrder inserts an order snapshot
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, amount, currency, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.UserID, order.Amount, order.Currency, order.Status, order.IdempotencyKey)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key, or nil
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// TransitionOrderStatus moves an order between statuses with a
// compare-and-swap so concurrent webhooks cannot double-apply or move
// the order backward. Returns false when the order was not in `from`.
func (s *Store) TransitionOrderStatus(ctx context.Context, orderID int64, from, to string) (bool, error) {
	if !models.CanTransitionOrder(from, to) {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, orderID, from)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// GetOrdersByUserID retrieves orders for a user
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// CreateOrderItem inserts an order item snapshot
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, course_id, session_id, title_en, title_ar, unit_price, currency, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.OrderID, item.CourseID, item.SessionID, item.TitleEn, item.TitleAr,
		item.UnitPrice, item.Currency, item.Quantity)
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// CreatePayment inserts a payment attempt
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (order_id, provider, provider_ref, status, raw_payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, payment, query,
		payment.OrderID, payment.Provider, payment.ProviderRef, payment.Status, payment.RawPayload)
}

// GetLatestPaymentByOrderID retrieves the most recent payment attempt
func (s *Store) GetLatestPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment for order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentsByOrderID retrieves every attempt for an order
func (s *Store) GetPaymentsByOrderID(ctx context.Context, orderID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE order_id = $1 ORDER BY created_at", orderID)
	return payments, err
}

// UpdatePayment records the provider outcome for an attempt. captured
// marks the capture timestamp for completed payments.
func (s *Store) UpdatePayment(ctx context.Context, paymentID int64, status, providerRef string, rawPayload []byte, captured bool) error {
	var err error
	if captured {
		_, err = s.db.ExecContext(ctx, `
			UPDATE payments
			SET status = $1, provider_ref = NULLIF($2, ''), raw_payload = COALESCE($3, raw_payload),
			    captured_at = NOW(), updated_at = NOW()
			WHERE id = $4`,
			status, providerRef, rawPayload, paymentID)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE payments
			SET status = $1, provider_ref = NULLIF($2, ''), raw_payload = COALESCE($3, raw_payload),
			    updated_at = NOW()
			WHERE id = $4`,
			status, providerRef, rawPayload, paymentID)
	}
	return err
}
