package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"course-commerce/internal/broker"
	"course-commerce/internal/models"
	"course-commerce/internal/store"
	"course-commerce/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EnrollmentService grants course access once orders are paid and takes
// it back on refund. It runs off the order-events topic.
type EnrollmentService struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	seatClient     *SeatClient
	linkService    *LinkService
	logger         *zap.Logger
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(
	store *store.Store,
	eventPublisher *broker.EventPublisher,
	seatClient *SeatClient,
	linkService *LinkService,
) *EnrollmentService {
	return &EnrollmentService{
		store:          store,
		eventPublisher: eventPublisher,
		seatClient:     seatClient,
		linkService:    linkService,
		logger:         util.GetLogger(),
	}
}

// HandleOrderPaid creates one enrollment per order item. The unique
// index on (user, course, session) absorbs event redeliveries and a
// user who already owns a course; seats are committed and secure links
// issued only for freshly created enrollments.
func (es *EnrollmentService) HandleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	ctx, span := util.StartSpan(ctx, "EnrollmentService.HandleOrderPaid")
	defer span.End()

	processed, err := es.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		es.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	items, err := es.store.GetOrderItemsByOrderID(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}

	for _, item := range items {
		enrollment := &models.Enrollment{
			UserID:    event.UserID,
			CourseID:  item.CourseID,
			SessionID: item.SessionID,
			OrderID:   nullInt64(event.OrderID),
			Status:    models.EnrollmentStatusPaid,
		}

		created, err := es.store.CreateEnrollment(ctx, enrollment)
		if err != nil {
			return fmt.Errorf("failed to create enrollment: %w", err)
		}
		if !created {
			es.logger.Info("Enrollment already exists",
				zap.Int64("user_id", event.UserID),
				zap.Int64("course_id", item.CourseID))

			// The order reserved seats the existing enrollment will
			// never consume; hand them back.
			if item.SessionID.Valid {
				if err := es.seatClient.ReleaseSeats(ctx, item.SessionID.Int64, item.Quantity); err != nil {
					es.logger.Error("Failed to release unused reservation",
						zap.Int64("session_id", item.SessionID.Int64),
						zap.Error(err))
				}
			}
			continue
		}

		util.EnrollmentsCreatedTotal.Inc()

		if item.SessionID.Valid {
			if err := es.seatClient.CommitSeats(ctx, item.SessionID.Int64, item.Quantity); err != nil {
				es.logger.Error("Failed to commit seats",
					zap.Int64("session_id", item.SessionID.Int64),
					zap.Error(err))
			}
		}

		if err := es.linkService.IssueLinks(ctx, enrollment); err != nil {
			es.logger.Error("Failed to issue secure links",
				zap.Int64("enrollment_id", enrollment.ID),
				zap.Error(err))
		}

		createdEvent := &models.EnrollmentCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeEnrollmentCreated,
				Timestamp: time.Now(),
			},
			EnrollmentID: enrollment.ID,
			OrderID:      event.OrderID,
			UserID:       event.UserID,
			CourseID:     item.CourseID,
			SessionID:    item.SessionID.Int64,
		}
		if err := es.eventPublisher.PublishEnrollmentCreated(ctx, createdEvent); err != nil {
			es.logger.Error("Failed to publish EnrollmentCreated event", zap.Error(err))
		}
	}

	if err := es.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		es.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	es.logger.Info("Enrollments created for order", zap.Int64("order_id", event.OrderID))
	return nil
}

// HandleOrderRefunded cancels the order's enrollments, returns their
// committed seats to the pool, and revokes their download links
func (es *EnrollmentService) HandleOrderRefunded(ctx context.Context, event *models.OrderRefundedEvent) error {
	ctx, span := util.StartSpan(ctx, "EnrollmentService.HandleOrderRefunded")
	defer span.End()

	processed, err := es.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		return nil
	}

	enrollments, err := es.store.GetEnrollmentsByOrderID(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("failed to get enrollments: %w", err)
	}

	items, err := es.store.GetOrderItemsByOrderID(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}
	quantities := sessionQuantities(items)

	for _, e := range enrollments {
		if e.Status == models.EnrollmentStatusCancelled {
			continue
		}
		if err := es.store.UpdateEnrollmentStatus(ctx, e.ID, models.EnrollmentStatusCancelled); err != nil {
			return fmt.Errorf("failed to cancel enrollment %d: %w", e.ID, err)
		}
		util.EnrollmentsCancelledTotal.Inc()

		// Seats were committed at enrollment; return them to available
		// rather than unwinding a reservation that no longer exists.
		if e.SessionID.Valid {
			qty := quantities[e.SessionID.Int64]
			if qty == 0 {
				qty = 1
			}
			if err := es.seatClient.ReturnSeats(ctx, e.SessionID.Int64, qty); err != nil {
				es.logger.Error("Failed to return seats on refund",
					zap.Int64("session_id", e.SessionID.Int64),
					zap.Error(err))
			}
		}
	}

	if err := es.store.RevokeLinksByOrderID(ctx, event.OrderID); err != nil {
		return fmt.Errorf("failed to revoke links: %w", err)
	}

	if err := es.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		es.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	es.logger.Info("Enrollments cancelled for refunded order", zap.Int64("order_id", event.OrderID))
	return nil
}

// ListEnrollments lists a user's enrollments with their links
func (es *EnrollmentService) ListEnrollments(ctx context.Context, userID int64) ([]EnrollmentView, error) {
	enrollments, err := es.store.GetEnrollmentsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]EnrollmentView, 0, len(enrollments))
	for _, e := range enrollments {
		links, err := es.store.GetSecureLinksByEnrollmentID(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, EnrollmentView{Enrollment: e, Links: links})
	}
	return views, nil
}

// MarkCompleted advances an enrollment to Completed (course finished)
func (es *EnrollmentService) MarkCompleted(ctx context.Context, userID, enrollmentID int64) error {
	e, err := es.store.GetEnrollmentByID(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if e.UserID != userID {
		return store.ErrNotFound
	}
	if e.Status == models.EnrollmentStatusCancelled {
		return ErrEnrollmentInactive
	}
	return es.store.UpdateEnrollmentStatus(ctx, enrollmentID, models.EnrollmentStatusCompleted)
}

// EnrollmentView is an enrollment with its issued links
type EnrollmentView struct {
	Enrollment models.Enrollment   `json:"enrollment"`
	Links      []models.SecureLink `json:"links"`
}

// sessionQuantities maps each session in an order to the seat count its
// items committed
func sessionQuantities(items []models.OrderItem) map[int64]int {
	m := make(map[int64]int, len(items))
	for _, item := range items {
		if item.SessionID.Valid {
			m[item.SessionID.Int64] += item.Quantity
		}
	}
	return m
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v > 0}
}
