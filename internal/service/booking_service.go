package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Aaditya473/Alpha-Fitness/internal/apperror"
	"github.com/Aaditya473/Alpha-Fitness/internal/broker"
	"github.com/Aaditya473/Alpha-Fitness/internal/gateway"
	"github.com/Aaditya473/Alpha-Fitness/internal/models"
	"github.com/Aaditya473/Alpha-Fitness/internal/store"
	"github.com/Aaditya473/Alpha-Fitness/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultQuantity = 1
	MaxQuantity     = 10

	compensationTimeout = 5 * time.Second
)

// BookingOptions tunes booking creation
type BookingOptions struct {
	Currency     string
	MaxAttempts  int
	RetryBackoff time.Duration
}

// BookingService handles booking creation and listing
type BookingService struct {
	catalog CatalogReader
	store   BookingStore
	gateway gateway.Client
	events  EventPublisher
	opts    BookingOptions
	logger  *zap.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(
	catalog CatalogReader,
	store BookingStore,
	gw gateway.Client,
	events EventPublisher,
	opts BookingOptions,
) *BookingService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	return &BookingService{
		catalog: catalog,
		store:   store,
		gateway: gw,
		events:  events,
		opts:    opts,
		logger:  util.ComponentLogger("booking"),
	}
}

// CreateBookingRequest represents a request to book a catalog service
type CreateBookingRequest struct {
	ServiceID int64 `json:"serviceId" binding:"required,min=1"`
	Quantity  int   `json:"quantity,omitempty" binding:"omitempty,min=1,max=10"`
}

// CreateBooking records a PENDING booking with a price snapshot, opens a
// gateway order for it and stores the payment row. If the order or the
// payment row cannot be created the booking is moved to FAILED before the
// error is returned.
func (s *BookingService) CreateBooking(ctx context.Context, userID int64, req CreateBookingRequest) (*models.BookingQuote, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CreateBooking")
	defer span.End()

	if userID <= 0 {
		return nil, apperror.Unauthenticated("authentication required")
	}
	if req.ServiceID <= 0 {
		return nil, apperror.Validation("serviceId is required")
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = DefaultQuantity
	}
	if quantity < 1 || quantity > MaxQuantity {
		return nil, apperror.Validation(fmt.Sprintf("quantity must be between 1 and %d", MaxQuantity))
	}

	svc, err := s.catalog.GetActiveService(ctx, req.ServiceID)
	if errors.Is(err, store.ErrNotFound) {
		util.BookingsFailedTotal.WithLabelValues("service_not_found").Inc()
		return nil, apperror.NotFound("service")
	}
	if err != nil {
		util.RecordError(span, err)
		return nil, apperror.Internal("failed to load service", err)
	}

	amount := svc.Price.Mul(decimal.NewFromInt(int64(quantity)))
	minorAmount := toMinorUnits(amount)

	booking := &models.Booking{
		UserID:    userID,
		ServiceID: svc.ID,
		Quantity:  quantity,
		Amount:    amount,
		Status:    models.BookingStatusPending,
	}
	if err := s.store.CreateBooking(ctx, booking); err != nil {
		util.BookingsFailedTotal.WithLabelValues("db_error").Inc()
		util.RecordError(span, err)
		return nil, apperror.Internal("failed to create booking", err)
	}

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("user_id", userID),
		zap.Int64("service_id", svc.ID),
		zap.String("amount", amount.String()))

	order, err := s.createOrderWithRetry(ctx, gateway.OrderRequest{
		Amount:   minorAmount,
		Currency: s.opts.Currency,
		Receipt:  receiptFor(booking.ID),
		Notes: map[string]string{
			"booking_id": strconv.FormatInt(booking.ID, 10),
			"user_id":    strconv.FormatInt(userID, 10),
		},
	})
	if err != nil {
		util.BookingsFailedTotal.WithLabelValues("gateway_unavailable").Inc()
		util.RecordError(span, err)
		s.compensate(ctx, booking, "gateway_unavailable")
		return nil, apperror.GatewayUnavailable(err)
	}

	payment := &models.Payment{
		BookingID: booking.ID,
		Gateway:   models.GatewayRazorpay,
		OrderID:   order.ID,
		Amount:    minorAmount,
		Currency:  s.opts.Currency,
		Status:    models.PaymentStatusCreated,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		util.BookingsFailedTotal.WithLabelValues("payment_insert_failed").Inc()
		util.RecordError(span, err)
		s.compensate(ctx, booking, "payment_insert_failed")
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperror.Wrap(err, apperror.KindConflict, "gateway order already recorded")
		}
		return nil, apperror.Internal("failed to record payment", err)
	}

	util.BookingsCreatedTotal.Inc()
	s.logger.Info("Gateway order attached",
		zap.Int64("booking_id", booking.ID),
		zap.String("order_id", order.ID),
		zap.Int64("amount_minor", minorAmount))

	event := &models.BookingCreatedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeBookingCreated),
		BookingID: booking.ID,
		UserID:    userID,
		ServiceID: svc.ID,
		OrderID:   order.ID,
		Amount:    minorAmount,
		Currency:  s.opts.Currency,
	}
	if err := s.events.PublishBookingCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingCreated event", zap.Error(err))
	}

	return &models.BookingQuote{
		BookingID:        booking.ID,
		OrderID:          order.ID,
		Amount:           minorAmount,
		Currency:         s.opts.Currency,
		GatewayPublicKey: s.gateway.PublicKey(),
	}, nil
}

// ListBookings returns the user's bookings, newest first
func (s *BookingService) ListBookings(ctx context.Context, userID int64) ([]models.BookingSummary, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.ListBookings")
	defer span.End()

	if userID <= 0 {
		return nil, apperror.Unauthenticated("authentication required")
	}

	bookings, err := s.store.ListBookingsByUser(ctx, userID)
	if err != nil {
		util.RecordError(span, err)
		return nil, apperror.Internal("failed to list bookings", err)
	}
	return bookings, nil
}

// createOrderWithRetry calls the gateway up to MaxAttempts times with a
// linearly growing pause between attempts
func (s *BookingService) createOrderWithRetry(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	start := time.Now()
	defer func() {
		util.GatewayOrderLatency.Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		order, err := s.gateway.CreateOrder(ctx, req)
		if err == nil {
			util.GatewayOrderAttemptsTotal.WithLabelValues("success").Inc()
			return order, nil
		}

		lastErr = err
		util.GatewayOrderAttemptsTotal.WithLabelValues("failure").Inc()
		s.logger.Warn("Gateway order creation failed",
			zap.String("receipt", req.Receipt),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.opts.MaxAttempts),
			zap.Error(err))

		if attempt == s.opts.MaxAttempts {
			break
		}
		if err := sleepCtx(ctx, s.opts.RetryBackoff*time.Duration(attempt)); err != nil {
			return nil, fmt.Errorf("gateway retry aborted: %w (last error: %v)", err, lastErr)
		}
	}

	return nil, fmt.Errorf("gateway order failed after %d attempts: %w", s.opts.MaxAttempts, lastErr)
}

// compensate moves a booking whose checkout could not be prepared to FAILED.
// It runs even if the request context is already cancelled.
func (s *BookingService) compensate(ctx context.Context, booking *models.Booking, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	changed, err := s.store.FailBooking(ctx, booking.ID, models.BookingStatusFailed)
	if err != nil {
		// the expiry sweep will cancel it later
		s.logger.Error("Failed to compensate booking",
			zap.Int64("booking_id", booking.ID),
			zap.String("reason", reason),
			zap.Error(err))
		return
	}
	if !changed {
		s.logger.Warn("Booking left PENDING before compensation",
			zap.Int64("booking_id", booking.ID))
		return
	}

	booking.Status = models.BookingStatusFailed
	s.logger.Warn("Booking marked failed",
		zap.Int64("booking_id", booking.ID),
		zap.String("reason", reason))

	event := &models.BookingFailedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeBookingFailed),
		BookingID: booking.ID,
		UserID:    booking.UserID,
		Reason:    reason,
	}
	if err := s.events.PublishBookingFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingFailed event", zap.Error(err))
	}
}

func receiptFor(bookingID int64) string {
	return fmt.Sprintf("bk_%d", bookingID)
}

// toMinorUnits converts a major-unit amount to the gateway's integer minor units
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
