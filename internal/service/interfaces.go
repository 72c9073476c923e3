package service

import (
	"context"
	"time"

	"github.com/Aaditya473/Alpha-Fitness/internal/models"
)

// CatalogReader resolves active catalog services. Missing or inactive
// services are reported as store.ErrNotFound.
type CatalogReader interface {
	GetActiveService(ctx context.Context, id int64) (*models.Service, error)
}

// BookingStore persists bookings and their payment rows.
type BookingStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FailBooking(ctx context.Context, bookingID int64, status string) (bool, error)
	ListBookingsByUser(ctx context.Context, userID int64) ([]models.BookingSummary, error)
}

// PaymentStore applies gateway confirmations. ConfirmPayment must serialize
// concurrent calls for the same order.
type PaymentStore interface {
	ConfirmPayment(ctx context.Context, orderID, gatewayPaymentID string) (*models.Confirmation, error)
}

type ExpiryStore interface {
	ExpirePendingBookings(ctx context.Context, cutoff time.Time, limit int) ([]models.ExpiredBooking, error)
}

type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error
	PublishBookingPaid(ctx context.Context, event *models.BookingPaidEvent) error
	PublishBookingFailed(ctx context.Context, event *models.BookingFailedEvent) error
	PublishBookingExpired(ctx context.Context, event *models.BookingExpiredEvent) error
	PublishBookingLateCapture(ctx context.Context, event *models.BookingLateCaptureEvent) error
}

// EventDeduper remembers webhook event ids that were already reconciled.
type EventDeduper interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) error
}

type Locker interface {
	AcquireLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}
