package service

import (
	"context"
	"fmt"
	"time"

	"course-commerce/internal/broker"
	"course-commerce/internal/models"
	"course-commerce/internal/store"
	"course-commerce/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService snapshots carts into orders and drives checkout
type OrderService struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	seatClient     *SeatClient
	provider       string
	redirectBase   string
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store *store.Store,
	eventPublisher *broker.EventPublisher,
	seatClient *SeatClient,
	provider, redirectBase string,
) *OrderService {
	return &OrderService{
		store:          store,
		eventPublisher: eventPublisher,
		seatClient:     seatClient,
		provider:       provider,
		redirectBase:   redirectBase,
		logger:         util.GetLogger(),
	}
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID  int64           `json:"order_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
}

// CheckoutResponse carries the provider redirect for a pending payment
type CheckoutResponse struct {
	OrderID     int64  `json:"order_id"`
	PaymentID   int64  `json:"payment_id"`
	Provider    string `json:"provider"`
	RedirectURL string `json:"redirect_url"`
}

// CreateOrder snapshots the caller's cart into an immutable order.
// Item titles and prices are copied so later catalog edits never alter
// the order. Session seats are reserved here; the cart is cleared on
// success.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, idempotencyKey string) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}

	existing, err := s.store.GetOrderByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", idempotencyKey),
			zap.Int64("order_id", existing.ID))
		return &CreateOrderResponse{
			OrderID:  existing.ID,
			Amount:   existing.Amount,
			Currency: existing.Currency,
			Status:   existing.Status,
		}, nil
	}

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartEmpty
	}

	items, err := s.store.GetCartItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}

	courses, err := s.loadCourses(ctx, items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	amount, currency := s.calculateTotal(items, courses)

	reserved, err := s.reserveSeats(ctx, items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("seats").Inc()
		return nil, err
	}

	order := &models.Order{
		UserID:         userID,
		Amount:         amount,
		Currency:       currency,
		Status:         models.OrderStatusPending,
		IdempotencyKey: idempotencyKey,
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		s.releaseSeats(ctx, reserved)
		// A concurrent request with the same key won the insert race;
		// hand back its order instead of surfacing the conflict.
		if store.IsUniqueViolation(err) {
			winner, werr := s.store.GetOrderByIdempotencyKey(ctx, idempotencyKey)
			if werr == nil && winner != nil {
				s.logger.Info("Concurrent duplicate order request",
					zap.String("idempotency_key", idempotencyKey),
					zap.Int64("order_id", winner.ID))
				return &CreateOrderResponse{
					OrderID:  winner.ID,
					Amount:   winner.Amount,
					Currency: winner.Currency,
					Status:   winner.Status,
				}, nil
			}
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		course := courses[item.CourseID]
		orderItem := &models.OrderItem{
			OrderID:   order.ID,
			CourseID:  item.CourseID,
			SessionID: item.SessionID,
			TitleEn:   course.TitleEn,
			TitleAr:   course.TitleAr,
			UnitPrice: course.Price,
			Currency:  course.Currency,
			Quantity:  item.Quantity,
		}

		if err := s.store.CreateOrderItem(ctx, orderItem); err != nil {
			s.releaseSeats(ctx, reserved)
			// Fail the partially written order so it cannot be checked
			// out against missing items.
			if _, terr := s.store.TransitionOrderStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusFailed); terr != nil {
				s.logger.Error("Failed to fail partially written order",
					zap.Int64("order_id", order.ID),
					zap.Error(terr))
			}
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}

		eventItems = append(eventItems, models.OrderItemData{
			CourseID:  item.CourseID,
			SessionID: item.SessionID.Int64,
			UnitPrice: course.Price,
			Quantity:  item.Quantity,
		})
	}

	if err := s.store.ClearCart(ctx, cart.ID); err != nil {
		s.logger.Error("Failed to clear cart after order creation",
			zap.Int64("cart_id", cart.ID),
			zap.Error(err))
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("amount", amount.String()))

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:  order.ID,
		UserID:   userID,
		Amount:   amount,
		Currency: currency,
		Items:    eventItems,
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return &CreateOrderResponse{
		OrderID:  order.ID,
		Amount:   amount,
		Currency: currency,
		Status:   order.Status,
	}, nil
}

// Checkout opens a pending payment attempt for an order and hands back
// the provider redirect URL. Retrying checkout on a still-pending order
// creates a new attempt row.
func (s *OrderService) Checkout(ctx context.Context, userID, orderID int64) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Checkout")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, store.ErrNotFound
	}
	if order.Status != models.OrderStatusPending {
		return nil, ErrOrderNotPayable
	}

	payment := &models.Payment{
		OrderID:  order.ID,
		Provider: s.provider,
		Status:   models.PaymentStatusPending,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	return &CheckoutResponse{
		OrderID:     order.ID,
		PaymentID:   payment.ID,
		Provider:    s.provider,
		RedirectURL: fmt.Sprintf("%s/%d?payment=%d", s.redirectBase, order.ID, payment.ID),
	}, nil
}

// GetOrder retrieves an order with its items, scoped to the owner
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if userID > 0 && order.UserID != userID {
		return nil, nil, store.ErrNotFound
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// ListOrders lists a user's orders
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}

// loadCourses resolves the cart's courses and rejects unpublished ones
func (s *OrderService) loadCourses(ctx context.Context, items []models.CartItem) (map[int64]*models.Course, error) {
	courseIDs := make([]int64, len(items))
	for i, item := range items {
		courseIDs[i] = item.CourseID
	}

	courses, err := s.store.GetCoursesByIDs(ctx, courseIDs)
	if err != nil {
		return nil, err
	}

	courseMap := make(map[int64]*models.Course, len(courses))
	for i := range courses {
		courseMap[courses[i].ID] = &courses[i]
	}

	for _, item := range items {
		course, ok := courseMap[item.CourseID]
		if !ok || !course.Published {
			return nil, ErrCourseUnavailable
		}
	}

	return courseMap, nil
}

// calculateTotal sums item price snapshots. The first course's currency
// is used for the order; carts are single-currency by catalog policy.
func (s *OrderService) calculateTotal(items []models.CartItem, courses map[int64]*models.Course) (decimal.Decimal, string) {
	total := decimal.Zero
	currency := "SAR"
	for i, item := range items {
		course := courses[item.CourseID]
		if i == 0 {
			currency = course.Currency
		}
		total = total.Add(course.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total, currency
}

type seatReservation struct {
	sessionID int64
	count     int
}

// reserveSeats reserves seats for every session-bound cart item,
// rolling back earlier reservations if one fails
func (s *OrderService) reserveSeats(ctx context.Context, items []models.CartItem) ([]seatReservation, error) {
	start := time.Now()
	defer func() {
		util.SeatReserveLatency.Observe(time.Since(start).Seconds())
	}()

	var reserved []seatReservation
	for _, item := range items {
		if !item.SessionID.Valid {
			continue
		}

		ok, err := s.seatClient.ReserveSeats(ctx, item.SessionID.Int64, item.Quantity)
		if err != nil {
			util.SeatReservationsFailed.WithLabelValues("error").Inc()
			s.releaseSeats(ctx, reserved)
			return nil, fmt.Errorf("failed to reserve seats for session %d: %w", item.SessionID.Int64, err)
		}
		if !ok {
			util.SeatReservationsFailed.WithLabelValues("insufficient_seats").Inc()
			s.releaseSeats(ctx, reserved)
			return nil, fmt.Errorf("session %d: %w", item.SessionID.Int64, ErrInsufficientSeats)
		}

		reserved = append(reserved, seatReservation{sessionID: item.SessionID.Int64, count: item.Quantity})
	}

	return reserved, nil
}

// releaseSeats rolls back seat reservations (compensation)
func (s *OrderService) releaseSeats(ctx context.Context, reserved []seatReservation) {
	for _, r := range reserved {
		if err := s.seatClient.ReleaseSeats(ctx, r.sessionID, r.count); err != nil {
			s.logger.Error("Failed to compensate seat reservation",
				zap.Int64("session_id", r.sessionID),
				zap.Error(err))
		}
	}
}
