package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Aaditya473/Alpha-Fitness/internal/broker"
	"github.com/Aaditya473/Alpha-Fitness/internal/models"
	"github.com/Aaditya473/Alpha-Fitness/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPendingTTL = 30 * time.Minute

	expiryLockKey   = "booking-expiry"
	expiryBatchSize = 100
	// caps a single sweep so a huge backlog cannot hold the lock forever
	expiryMaxBatches = 50
)

// ExpiryService cancels bookings whose checkout was never completed
type ExpiryService struct {
	store  ExpiryStore
	locker Locker
	events EventPublisher
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewExpiryService creates the expiry sweeper. locker may be nil when a
// single instance runs the sweep. A non-positive ttl falls back to
// DefaultPendingTTL.
func NewExpiryService(store ExpiryStore, locker Locker, events EventPublisher, ttl time.Duration) *ExpiryService {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &ExpiryService{
		store:  store,
		locker: locker,
		events: events,
		ttl:    ttl,
		now:    time.Now,
		logger: util.ComponentLogger("expiry"),
	}
}

// ExpirePending cancels PENDING bookings older than the TTL and returns how
// many were cancelled. It does nothing if another instance holds the sweep lock.
func (s *ExpiryService) ExpirePending(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "ExpiryService.ExpirePending")
	defer span.End()

	if s.locker != nil {
		token := uuid.New().String()
		acquired, err := s.locker.AcquireLock(ctx, expiryLockKey, token, s.lockTTL())
		if err != nil {
			util.RecordError(span, err)
			return 0, fmt.Errorf("failed to acquire expiry lock: %w", err)
		}
		if !acquired {
			s.logger.Debug("Expiry sweep already running elsewhere")
			return 0, nil
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), expiryLockKey, token); err != nil {
				s.logger.Warn("Failed to release expiry lock", zap.Error(err))
			}
		}()
	}

	cutoff := s.now().Add(-s.ttl)
	total := 0
	for batch := 0; batch < expiryMaxBatches; batch++ {
		expired, err := s.store.ExpirePendingBookings(ctx, cutoff, expiryBatchSize)
		if err != nil {
			util.RecordError(span, err)
			return total, fmt.Errorf("failed to expire bookings: %w", err)
		}

		for _, e := range expired {
			s.publishExpired(ctx, e)
		}
		total += len(expired)

		if len(expired) < expiryBatchSize {
			break
		}
	}

	if total > 0 {
		util.BookingsExpiredTotal.Add(float64(total))
		s.logger.Info("Expired pending bookings",
			zap.Int("count", total),
			zap.Time("cutoff", cutoff))
	}
	return total, nil
}

func (s *ExpiryService) publishExpired(ctx context.Context, e models.ExpiredBooking) {
	event := &models.BookingExpiredEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeBookingExpired),
		BookingID: e.BookingID,
		UserID:    e.UserID,
		OrderID:   e.OrderID,
	}
	if err := s.events.PublishBookingExpired(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingExpired event",
			zap.Int64("booking_id", e.BookingID),
			zap.Error(err))
	}
}

func (s *ExpiryService) lockTTL() time.Duration {
	if s.ttl < time.Minute {
		return time.Minute
	}
	return s.ttl
}
