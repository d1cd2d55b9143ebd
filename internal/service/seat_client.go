package service

import (
	"context"
	"errors"
	"time"

	"course-commerce/internal/models"
	"course-commerce/internal/redisclient"
	"course-commerce/internal/store"
	"course-commerce/internal/util"

	"go.uber.org/zap"
)

// SeatClient handles session seat accounting. Redis serves the fast
// path; Postgres holds the durable counts and is the fallback.
type SeatClient struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewSeatClient creates a new seat client
func NewSeatClient(store *store.Store, redis *redisclient.Client) *SeatClient {
	return &SeatClient{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// ReserveSeats reserves seats for a session (fast path via Redis)
func (sc *SeatClient) ReserveSeats(ctx context.Context, sessionID int64, count int) (bool, error) {
	ctx, span := util.StartSpan(ctx, "SeatClient.ReserveSeats")
	defer span.End()

	success, err := sc.redis.ReserveSeats(ctx, sessionID, count)
	if err != nil {
		sc.logger.Warn("Redis seat reservation failed, falling back to DB",
			zap.Int64("session_id", sessionID),
			zap.Error(err))

		return sc.reserveSeatsDB(ctx, sessionID, count)
	}

	if !success {
		return false, nil
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := sc.store.ReserveSeatsTx(ctx, sessionID, count); err != nil {
			sc.logger.Error("Failed to sync seat reservation to DB",
				zap.Int64("session_id", sessionID),
				zap.Error(err))
		}
	}()

	return true, nil
}

// reserveSeatsDB reserves seats with a row-locked transaction (fallback)
func (sc *SeatClient) reserveSeatsDB(ctx context.Context, sessionID int64, count int) (bool, error) {
	err := sc.store.ReserveSeatsTx(ctx, sessionID, count)
	if errors.Is(err, store.ErrInsufficientSeats) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseSeats returns reserved seats (compensation)
func (sc *SeatClient) ReleaseSeats(ctx context.Context, sessionID int64, count int) error {
	ctx, span := util.StartSpan(ctx, "SeatClient.ReleaseSeats")
	defer span.End()

	if err := sc.redis.ReleaseSeats(ctx, sessionID, count); err != nil {
		sc.logger.Error("Failed to release seats in Redis",
			zap.Int64("session_id", sessionID),
			zap.Error(err))
	}

	return sc.store.ReleaseSeats(ctx, sessionID, count)
}

// ReturnSeats puts committed seats back in the pool after a refund.
// Distinct from ReleaseSeats: the reservation was consumed at
// enrollment, so decrementing reserved here would corrupt other orders'
// in-flight reservations.
func (sc *SeatClient) ReturnSeats(ctx context.Context, sessionID int64, count int) error {
	ctx, span := util.StartSpan(ctx, "SeatClient.ReturnSeats")
	defer span.End()

	if err := sc.redis.ReturnSeats(ctx, sessionID, count); err != nil {
		sc.logger.Error("Failed to return seats in Redis",
			zap.Int64("session_id", sessionID),
			zap.Error(err))
	}

	return sc.store.ReturnSeats(ctx, sessionID, count)
}

// CommitSeats finalizes reserved seats after enrollment
func (sc *SeatClient) CommitSeats(ctx context.Context, sessionID int64, count int) error {
	ctx, span := util.StartSpan(ctx, "SeatClient.CommitSeats")
	defer span.End()

	if err := sc.redis.CommitSeats(ctx, sessionID, count); err != nil {
		sc.logger.Error("Failed to commit seats in Redis",
			zap.Int64("session_id", sessionID),
			zap.Error(err))
	}

	return sc.store.CommitSeats(ctx, sessionID, count)
}

// SyncSeatsToRedis loads session seat counts from Postgres into Redis
func (sc *SeatClient) SyncSeatsToRedis(ctx context.Context) error {
	sc.logger.Info("Starting seat sync to Redis")

	sessions, err := sc.store.GetSessions(ctx)
	if err != nil {
		return err
	}

	for _, sess := range sessions {
		if err := sc.redis.InitSeats(ctx, sess.ID, sess.Available, sess.Reserved); err != nil {
			sc.logger.Error("Failed to init Redis seats",
				zap.Int64("session_id", sess.ID),
				zap.Error(err))
		}
	}

	sc.logger.Info("Seat sync completed", zap.Int("count", len(sessions)))
	return nil
}

// GetSession retrieves a session with its durable seat counts
func (sc *SeatClient) GetSession(ctx context.Context, sessionID int64) (*models.Session, error) {
	return sc.store.GetSessionByID(ctx, sessionID)
}
