package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Service is a catalog entry. Price is in major currency units.
type Service struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Active      bool            `db:"active" json:"active"`
}

// Booking is a user's purchase of a catalog service. Amount is the price
// snapshot taken at creation and is never updated.
type Booking struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	ServiceID int64           `db:"service_id" json:"service_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Payment tracks the gateway order opened for a booking. Amount is in minor
// currency units, as sent to the gateway.
type Payment struct {
	ID        int64     `db:"id" json:"id"`
	BookingID int64     `db:"booking_id" json:"booking_id"`
	Gateway   string    `db:"gateway" json:"gateway"`
	OrderID   string    `db:"order_id" json:"order_id"`
	PaymentID *string   `db:"payment_id" json:"payment_id,omitempty"`
	Amount    int64     `db:"amount" json:"amount"`
	Currency  string    `db:"currency" json:"currency"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BookingSummary is the read model returned by GET /bookings/mine.
type BookingSummary struct {
	ID          int64           `db:"id" json:"id"`
	ServiceName string          `db:"service" json:"service"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// BookingQuote carries what the client needs to open the gateway checkout.
// Amount is in minor currency units.
type BookingQuote struct {
	BookingID        int64  `json:"bookingId"`
	OrderID          string `json:"orderId"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	GatewayPublicKey string `json:"gatewayPublicKey"`
}

// Confirmation describes what a reconciliation attempt did to a payment and
// its booking.
type Confirmation struct {
	PaymentID     int64
	BookingID     int64
	UserID        int64
	Amount        int64
	Applied       bool
	BookingPaid   bool
	BookingStatus string
}

// ExpiredBooking is a booking moved out of PENDING by the expiry sweep.
type ExpiredBooking struct {
	BookingID int64  `db:"booking_id"`
	UserID    int64  `db:"user_id"`
	OrderID   string `db:"order_id"`
}

// Booking statuses
const (
	BookingStatusPending   = "PENDING"
	BookingStatusPaid      = "PAID"
	BookingStatusFailed    = "FAILED"
	BookingStatusCancelled = "CANCELLED"
)

// Payment statuses
const (
	PaymentStatusCreated = "CREATED"
	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusFailed  = "FAILED"
)

const GatewayRazorpay = "razorpay"
