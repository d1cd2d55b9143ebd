package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"course-commerce/internal/broker"
	"course-commerce/internal/models"
	"course-commerce/internal/redisclient"
	"course-commerce/internal/store"
	"course-commerce/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService applies provider webhooks to payments and orders.
// Provider deliveries are at-least-once and unordered, so every apply
// is guarded three ways: HMAC signature over the raw body, an event-ID
// dedupe table, and a per-order lock.
type PaymentService struct {
	store          *store.Store
	redis          *redisclient.Client
	eventPublisher *broker.EventPublisher
	seatClient     *SeatClient
	provider       string
	webhookSecret  string
	logger         *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	store *store.Store,
	redis *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	seatClient *SeatClient,
	provider, webhookSecret string,
) *PaymentService {
	return &PaymentService{
		store:          store,
		redis:          redis,
		eventPublisher: eventPublisher,
		seatClient:     seatClient,
		provider:       provider,
		webhookSecret:  webhookSecret,
		logger:         util.GetLogger(),
	}
}

// WebhookRequest is the provider-delivered payload
type WebhookRequest struct {
	EventID       string          `json:"event_id"`
	OrderID       int64           `json:"order_id" binding:"required"`
	Status        string          `json:"status" binding:"required"`
	TransactionID string          `json:"transaction_id"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// ErrWebhookBusy is returned when another delivery for the same order
// holds the apply lock; the provider should redeliver.
var ErrWebhookBusy = fmt.Errorf("webhook apply in progress")

// VerifySignature checks the hex HMAC-SHA256 of the raw body. With no
// secret configured (dev), verification is skipped.
func (ps *PaymentService) VerifySignature(body []byte, signature string) error {
	if ps.webhookSecret == "" {
		ps.logger.Warn("Webhook secret not configured, skipping signature verification")
		return nil
	}

	mac := hmac.New(sha256.New, []byte(ps.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return ErrInvalidSignature
	}
	return nil
}

// HandleWebhook verifies and applies one provider delivery
func (ps *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	if err := ps.VerifySignature(body, signature); err != nil {
		util.WebhooksRejectedTotal.WithLabelValues("signature").Inc()
		return err
	}

	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		util.WebhooksRejectedTotal.WithLabelValues("malformed").Inc()
		return fmt.Errorf("malformed webhook payload: %w", err)
	}

	// Providers that omit an event ID get a synthetic one so redelivery
	// of the same (order, status, tx) tuple stays idempotent
	eventID := req.EventID
	if eventID == "" {
		eventID = fmt.Sprintf("%s-%d-%s-%s", ps.provider, req.OrderID, req.Status, req.TransactionID)
	}

	processed, err := ps.store.IsEventProcessed(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		ps.logger.Info("Webhook already applied", zap.String("event_id", eventID))
		return nil
	}

	lockKey := fmt.Sprintf("webhook-order-%d", req.OrderID)
	acquired, err := ps.redis.AcquireLock(ctx, lockKey, 30*time.Second)
	if err != nil {
		return fmt.Errorf("failed to acquire webhook lock: %w", err)
	}
	if !acquired {
		return ErrWebhookBusy
	}
	defer func() {
		if err := ps.redis.ReleaseLock(context.Background(), lockKey); err != nil {
			ps.logger.Error("Failed to release webhook lock", zap.Error(err))
		}
	}()

	paymentStatus, ok := mapProviderStatus(req.Status)
	if !ok {
		util.WebhooksRejectedTotal.WithLabelValues("unknown_status").Inc()
		return fmt.Errorf("unknown provider status %q", req.Status)
	}

	util.WebhooksReceivedTotal.WithLabelValues(paymentStatus).Inc()

	order, err := ps.store.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return err
	}

	payment, err := ps.latestOrNewPayment(ctx, order.ID)
	if err != nil {
		return err
	}

	captured := paymentStatus == models.PaymentStatusCompleted
	if err := ps.store.UpdatePayment(ctx, payment.ID, paymentStatus, req.TransactionID, body, captured); err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	switch paymentStatus {
	case models.PaymentStatusCompleted:
		err = ps.applyPaid(ctx, order, payment.ID, req.TransactionID)
	case models.PaymentStatusFailed, models.PaymentStatusCancelled:
		err = ps.applyFailed(ctx, order, req.Status)
	case models.PaymentStatusRefunded:
		err = ps.applyRefunded(ctx, order)
	default:
		// Processing / Pending: attempt recorded, order untouched
	}
	if err != nil {
		return err
	}

	if err := ps.store.MarkEventProcessed(ctx, eventID, "PAYMENT_WEBHOOK"); err != nil {
		ps.logger.Error("Failed to mark webhook processed", zap.Error(err))
	}

	return nil
}

// applyPaid moves the order Pending -> Paid and announces it. The CAS
// makes a second Completed delivery a no-op.
func (ps *PaymentService) applyPaid(ctx context.Context, order *models.Order, paymentID int64, providerRef string) error {
	swapped, err := ps.store.TransitionOrderStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusPaid)
	if err != nil {
		return fmt.Errorf("failed to transition order: %w", err)
	}
	if !swapped {
		ps.logger.Info("Order not pending, skipping paid transition",
			zap.Int64("order_id", order.ID),
			zap.String("status", order.Status))
		return nil
	}

	util.OrdersPaidTotal.Inc()
	ps.logger.Info("Order paid",
		zap.Int64("order_id", order.ID),
		zap.String("provider_ref", providerRef))

	event := &models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPaid,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		UserID:      order.UserID,
		PaymentID:   paymentID,
		ProviderRef: providerRef,
	}
	if err := ps.eventPublisher.PublishOrderPaid(ctx, event); err != nil {
		ps.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}
	return nil
}

// applyFailed moves the order Pending -> Failed and releases reserved
// session seats
func (ps *PaymentService) applyFailed(ctx context.Context, order *models.Order, reason string) error {
	swapped, err := ps.store.TransitionOrderStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to transition order: %w", err)
	}
	if !swapped {
		return nil
	}

	util.OrdersFailedTotal.WithLabelValues("payment_declined").Inc()
	ps.logger.Warn("Order failed, releasing seats",
		zap.Int64("order_id", order.ID),
		zap.String("reason", reason))

	ps.releaseOrderSeats(ctx, order.ID)

	event := &models.OrderFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderFailed,
			Timestamp: time.Now(),
		},
		OrderID: order.ID,
		UserID:  order.UserID,
		Reason:  reason,
	}
	if err := ps.eventPublisher.PublishOrderFailed(ctx, event); err != nil {
		ps.logger.Error("Failed to publish OrderFailed event", zap.Error(err))
	}
	return nil
}

// applyRefunded moves the order Paid -> Refunded; the enrollment worker
// cancels enrollments and revokes links when it sees the event
func (ps *PaymentService) applyRefunded(ctx context.Context, order *models.Order) error {
	swapped, err := ps.store.TransitionOrderStatus(ctx, order.ID, models.OrderStatusPaid, models.OrderStatusRefunded)
	if err != nil {
		return fmt.Errorf("failed to transition order: %w", err)
	}
	if !swapped {
		ps.logger.Info("Order not paid, skipping refund transition",
			zap.Int64("order_id", order.ID))
		return nil
	}

	util.OrdersRefundedTotal.Inc()
	ps.logger.Info("Order refunded", zap.Int64("order_id", order.ID))

	event := &models.OrderRefundedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderRefunded,
			Timestamp: time.Now(),
		},
		OrderID: order.ID,
		UserID:  order.UserID,
	}
	if err := ps.eventPublisher.PublishOrderRefunded(ctx, event); err != nil {
		ps.logger.Error("Failed to publish OrderRefunded event", zap.Error(err))
	}
	return nil
}

// Refund is the admin-initiated refund path; it shares the webhook's
// transition logic and records a Refunded payment attempt.
func (ps *PaymentService) Refund(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.Refund")
	defer span.End()

	order, err := ps.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPaid {
		return ErrOrderNotPayable
	}

	payment, err := ps.latestOrNewPayment(ctx, order.ID)
	if err != nil {
		return err
	}
	if err := ps.store.UpdatePayment(ctx, payment.ID, models.PaymentStatusRefunded, "", nil, false); err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	return ps.applyRefunded(ctx, order)
}

// GetPayments lists every attempt for an order
func (ps *PaymentService) GetPayments(ctx context.Context, orderID int64) ([]models.Payment, error) {
	return ps.store.GetPaymentsByOrderID(ctx, orderID)
}

// latestOrNewPayment returns the most recent attempt, creating one for
// provider-initiated notifications that precede checkout
func (ps *PaymentService) latestOrNewPayment(ctx context.Context, orderID int64) (*models.Payment, error) {
	payment, err := ps.store.GetLatestPaymentByOrderID(ctx, orderID)
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	payment = &models.Payment{
		OrderID:  orderID,
		Provider: ps.provider,
		Status:   models.PaymentStatusPending,
	}
	if err := ps.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return payment, nil
}

// releaseOrderSeats returns reserved seats for every session item
func (ps *PaymentService) releaseOrderSeats(ctx context.Context, orderID int64) {
	items, err := ps.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		ps.logger.Error("Failed to load order items for seat release", zap.Error(err))
		return
	}
	for _, item := range items {
		if !item.SessionID.Valid {
			continue
		}
		if err := ps.seatClient.ReleaseSeats(ctx, item.SessionID.Int64, item.Quantity); err != nil {
			ps.logger.Error("Failed to release seats",
				zap.Int64("session_id", item.SessionID.Int64),
				zap.Error(err))
		}
	}
}

// mapProviderStatus normalizes provider status strings onto payment
// statuses
func mapProviderStatus(status string) (string, bool) {
	switch strings.ToUpper(status) {
	case "PAID", "COMPLETED", "CAPTURED", "SUCCESS":
		return models.PaymentStatusCompleted, true
	case "FAILED", "DECLINED":
		return models.PaymentStatusFailed, true
	case "CANCELLED", "VOIDED":
		return models.PaymentStatusCancelled, true
	case "REFUNDED":
		return models.PaymentStatusRefunded, true
	case "PROCESSING":
		return models.PaymentStatusProcessing, true
	case "PENDING", "INITIATED":
		return models.PaymentStatusPending, true
	default:
		return "", false
	}
}
