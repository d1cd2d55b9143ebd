package service

import (
	"context"
	"database/sql"
	"fmt"

	"course-commerce/internal/models"
	"course-commerce/internal/store"
	"course-commerce/internal/util"

	"go.uber.org/zap"
)

// CartService handles pre-checkout course selections for both logged-in
// users and anonymous visitors
type CartService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store *store.Store) *CartService {
	return &CartService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// AddItemRequest represents a request to add a course to a cart
type AddItemRequest struct {
	CourseID  int64 `json:"course_id" binding:"required"`
	SessionID int64 `json:"session_id,omitempty"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// CartView is a cart with its items resolved
type CartView struct {
	Cart  *models.Cart      `json:"cart"`
	Items []models.CartItem `json:"items"`
}

// ResolveCart finds or creates the cart for the caller. A positive
// userID wins over the anonymous ID.
func (s *CartService) ResolveCart(ctx context.Context, userID int64, anonymousID string) (*models.Cart, error) {
	if userID > 0 {
		cart, err := s.store.GetCartByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if cart != nil {
			return cart, nil
		}

		cart = &models.Cart{UserID: sql.NullInt64{Int64: userID, Valid: true}}
		if err := s.store.CreateCart(ctx, cart); err != nil {
			// Lost a race with a concurrent request for the same user
			if store.IsUniqueViolation(err) {
				return s.store.GetCartByUserID(ctx, userID)
			}
			return nil, err
		}
		return cart, nil
	}

	if anonymousID == "" {
		return nil, fmt.Errorf("anonymous cart requires an anonymous id")
	}

	cart, err := s.store.GetCartByAnonymousID(ctx, anonymousID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}

	cart = &models.Cart{AnonymousID: sql.NullString{String: anonymousID, Valid: true}}
	if err := s.store.CreateCart(ctx, cart); err != nil {
		if store.IsUniqueViolation(err) {
			return s.store.GetCartByAnonymousID(ctx, anonymousID)
		}
		return nil, err
	}
	return cart, nil
}

// GetCart returns the cart and its items
func (s *CartService) GetCart(ctx context.Context, userID int64, anonymousID string) (*CartView, error) {
	cart, err := s.ResolveCart(ctx, userID, anonymousID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetCartItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	return &CartView{Cart: cart, Items: items}, nil
}

// AddItem adds a course (optionally a specific session) to the cart.
// Re-adding the same pair increments quantity.
func (s *CartService) AddItem(ctx context.Context, userID int64, anonymousID string, req *AddItemRequest) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	course, err := s.store.GetCourseByID(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.Published {
		return nil, ErrCourseUnavailable
	}

	var sessionID sql.NullInt64
	if req.SessionID > 0 {
		sess, err := s.store.GetSessionByID(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		if sess.CourseID != req.CourseID {
			return nil, ErrSessionMismatch
		}
		sessionID = sql.NullInt64{Int64: req.SessionID, Valid: true}
	}

	cart, err := s.ResolveCart(ctx, userID, anonymousID)
	if err != nil {
		return nil, err
	}

	item := &models.CartItem{
		CartID:    cart.ID,
		CourseID:  req.CourseID,
		SessionID: sessionID,
		Quantity:  req.Quantity,
	}

	if err := s.store.UpsertCartItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	return item, nil
}

// UpdateItemQuantity overwrites an item's quantity
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID int64, anonymousID string, itemID int64, quantity int) error {
	cart, err := s.ResolveCart(ctx, userID, anonymousID)
	if err != nil {
		return err
	}

	items, err := s.store.GetCartItems(ctx, cart.ID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.ID == itemID {
			return s.store.SetCartItemQuantity(ctx, itemID, quantity)
		}
	}
	return ErrCartOwnership
}

// RemoveItem deletes an item from the caller's cart
func (s *CartService) RemoveItem(ctx context.Context, userID int64, anonymousID string, itemID int64) error {
	cart, err := s.ResolveCart(ctx, userID, anonymousID)
	if err != nil {
		return err
	}
	return s.store.DeleteCartItem(ctx, cart.ID, itemID)
}

// Merge folds an anonymous cart into the authenticated user's cart.
// Items already present in the user cart are kept as-is; the colliding
// anonymous rows are dropped, and the anonymous cart is deleted.
func (s *CartService) Merge(ctx context.Context, userID int64, anonymousID string) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Merge")
	defer span.End()

	anonCart, err := s.store.GetCartByAnonymousID(ctx, anonymousID)
	if err != nil {
		return nil, err
	}

	userCart, err := s.ResolveCart(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	if anonCart != nil {
		if err := s.store.MergeCarts(ctx, anonCart.ID, userCart.ID); err != nil {
			return nil, fmt.Errorf("failed to merge carts: %w", err)
		}
		s.logger.Info("Merged anonymous cart",
			zap.String("anonymous_id", anonymousID),
			zap.Int64("user_id", userID))
	}

	items, err := s.store.GetCartItems(ctx, userCart.ID)
	if err != nil {
		return nil, err
	}

	return &CartView{Cart: userCart, Items: items}, nil
}
