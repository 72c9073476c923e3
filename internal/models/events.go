package models

import "time"

// Event types
const (
	EventTypeBookingCreated     = "BOOKING_CREATED"
	EventTypeBookingPaid        = "BOOKING_PAID"
	EventTypeBookingFailed      = "BOOKING_FAILED"
	EventTypeBookingExpired     = "BOOKING_EXPIRED"
	EventTypeBookingLateCapture = "BOOKING_LATE_CAPTURE"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingCreatedEvent published once the booking and its payment row exist
type BookingCreatedEvent struct {
	BaseEvent
	BookingID int64  `json:"booking_id"`
	UserID    int64  `json:"user_id"`
	ServiceID int64  `json:"service_id"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// BookingPaidEvent published when a captured payment is reconciled
type BookingPaidEvent struct {
	BaseEvent
	BookingID int64  `json:"booking_id"`
	UserID    int64  `json:"user_id"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

// BookingFailedEvent published when creation is compensated
type BookingFailedEvent struct {
	BaseEvent
	BookingID int64  `json:"booking_id"`
	UserID    int64  `json:"user_id"`
	Reason    string `json:"reason"`
}

// BookingExpiredEvent published by the expiry sweep
type BookingExpiredEvent struct {
	BaseEvent
	BookingID int64  `json:"booking_id"`
	UserID    int64  `json:"user_id"`
	OrderID   string `json:"order_id"`
}

// BookingLateCaptureEvent published when money is captured for a booking
// that is no longer pending. Needs manual follow-up.
type BookingLateCaptureEvent struct {
	BaseEvent
	BookingID     int64  `json:"booking_id"`
	UserID        int64  `json:"user_id"`
	OrderID       string `json:"order_id"`
	PaymentID     string `json:"payment_id"`
	BookingStatus string `json:"booking_status"`
}
