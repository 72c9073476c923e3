package store

import (
	"context"
	"fmt"

	"github.com/Aaditya473/Alpha-Fitness/internal/models"
)

// CreateBooking inserts a booking and fills in its ID and timestamps
func (s *Store) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (user_id, service_id, quantity, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		booking.UserID, booking.ServiceID, booking.Quantity, booking.Amount, booking.Status).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
}

// FailBooking moves a PENDING booking to a terminal status. It reports false
// when the booking was no longer pending.
func (s *Store) FailBooking(ctx context.Context, bookingID int64, status string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		status, bookingID, models.BookingStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListBookingsByUser returns a user's bookings joined with service names,
// newest first
func (s *Store) ListBookingsByUser(ctx context.Context, userID int64) ([]models.BookingSummary, error) {
	bookings := []models.BookingSummary{}
	err := s.db.SelectContext(ctx, &bookings, `
		SELECT b.id, s.name AS service, b.quantity, b.amount, b.status, b.created_at
		FROM bookings b
		JOIN services s ON s.id = b.service_id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC, b.id DESC`, userID)
	return bookings, err
}

// CreatePayment inserts the payment row for a booking
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (booking_id, gateway, order_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		payment.BookingID, payment.Gateway, payment.OrderID, payment.Amount, payment.Currency, payment.Status).
		Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("payment for order %s: %w", payment.OrderID, ErrDuplicate)
	}
	return err
}
