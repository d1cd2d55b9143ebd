package store

import (
	"context"
	"database/sql"
	"errors"

	"course-commerce/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetCartByUserID retrieves the cart owned by a user, or nil
func (s *Store) GetCartByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, "SELECT * FROM carts WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetCartByAnonymousID retrieves an anonymous cart, or nil
func (s *Store) GetCartByAnonymousID(ctx context.Context, anonymousID string) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, "SELECT * FROM carts WHERE anonymous_id = $1", anonymousID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// CreateCart inserts a cart for either a user or an anonymous visitor
func (s *Store) CreateCart(ctx context.Context, cart *models.Cart) error {
	query := `
		INSERT INTO carts (user_id, anonymous_id)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, cart, query, cart.UserID, cart.AnonymousID)
}

// GetCartItems lists items in a cart
func (s *Store) GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE cart_id = $1 ORDER BY added_at", cartID)
	return items, err
}

// UpsertCartItem adds a course/session to the cart. Re-adding the same
// pair increments quantity instead of duplicating the row.
func (s *Store) UpsertCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (cart_id, course_id, session_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, course_id, COALESCE(session_id, 0))
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, added_at = NOW()
		RETURNING id, quantity, added_at`

	return s.db.GetContext(ctx, item, query,
		item.CartID, item.CourseID, item.SessionID, item.Quantity)
}

// SetCartItemQuantity overwrites an item's quantity
func (s *Store) SetCartItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1, added_at = NOW() WHERE id = $2",
		quantity, itemID)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCartItem removes a single item
func (s *Store) DeleteCartItem(ctx context.Context, cartID, itemID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND cart_id = $2", itemID, cartID)
	return err
}

// ClearCart removes all items from a cart
func (s *Store) ClearCart(ctx context.Context, cartID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID)
	return err
}

// MergeCarts moves the anonymous cart's items into the user's cart.
// Items that would collide on (cart_id, course_id, session_id) are
// skipped, then the anonymous cart is deleted. Runs in one transaction.
func (s *Store) MergeCarts(ctx context.Context, anonCartID, userCartID int64) error {
	return s.withRetryTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (cart_id, course_id, session_id, quantity, added_at)
			SELECT $1, course_id, session_id, quantity, added_at
			FROM cart_items
			WHERE cart_id = $2
			ON CONFLICT (cart_id, course_id, COALESCE(session_id, 0)) DO NOTHING`,
			userCartID, anonCartID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM cart_items WHERE cart_id = $1", anonCartID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "DELETE FROM carts WHERE id = $1", anonCartID)
		return err
	})
}
