package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Aaditya473/Alpha-Fitness/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type lockedPayment struct {
	ID            int64  `db:"id"`
	BookingID     int64  `db:"booking_id"`
	Amount        int64  `db:"amount"`
	Status        string `db:"status"`
	UserID        int64  `db:"user_id"`
	BookingStatus string `db:"booking_status"`
}

// ConfirmPayment marks the payment for orderID as SUCCESS and its booking as
// PAID. The payment and booking rows are locked for the duration, so
// concurrent confirmations of the same order serialize and only the first one
// reports Applied. A booking that already left PENDING keeps its status.
func (s *Store) ConfirmPayment(ctx context.Context, orderID, gatewayPaymentID string) (*models.Confirmation, error) {
	var conf models.Confirmation

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var row lockedPayment
		err := tx.GetContext(ctx, &row, `
			SELECT p.id, p.booking_id, p.amount, p.status, b.user_id, b.status AS booking_status
			FROM payments p
			JOIN bookings b ON b.id = p.booking_id
			WHERE p.order_id = $1
			FOR UPDATE OF p, b`, orderID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock payment: %w", err)
		}

		conf = models.Confirmation{
			PaymentID:     row.ID,
			BookingID:     row.BookingID,
			UserID:        row.UserID,
			Amount:        row.Amount,
			BookingStatus: row.BookingStatus,
		}

		if row.Status == models.PaymentStatusSuccess {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE payments SET payment_id = $1, status = $2, updated_at = NOW()
			WHERE id = $3 AND status <> $2`,
			gatewayPaymentID, models.PaymentStatusSuccess, row.ID); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		conf.Applied = true

		res, err := tx.ExecContext(ctx, `
			UPDATE bookings SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3`,
			models.BookingStatusPaid, row.BookingID, models.BookingStatusPending)
		if err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 1 {
			conf.BookingPaid = true
			conf.BookingStatus = models.BookingStatusPaid
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &conf, nil
}

// ExpirePendingBookings cancels up to limit bookings that are still PENDING
// and were created before cutoff, failing their CREATED payments in the same
// transaction. Locks are taken without waiting, booking first then payment:
// a booking whose booking or payment row is held by a concurrent
// confirmation is left for a later sweep.
func (s *Store) ExpirePendingBookings(ctx context.Context, cutoff time.Time, limit int) ([]models.ExpiredBooking, error) {
	expired := []models.ExpiredBooking{}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var candidates []models.ExpiredBooking
		err := tx.SelectContext(ctx, &candidates, `
			SELECT b.id AS booking_id, b.user_id, COALESCE(p.order_id, '') AS order_id
			FROM bookings b
			LEFT JOIN payments p ON p.booking_id = b.id
			WHERE b.status = $1 AND b.created_at < $2
			ORDER BY b.id
			LIMIT $3
			FOR UPDATE OF b SKIP LOCKED`,
			models.BookingStatusPending, cutoff, limit)
		if err != nil {
			return fmt.Errorf("failed to select expired bookings: %w", err)
		}
		if len(candidates) == 0 {
			return nil
		}

		ids := make([]int64, len(candidates))
		for i, c := range candidates {
			ids[i] = c.BookingID
		}

		var lockedIDs []int64
		if err := tx.SelectContext(ctx, &lockedIDs, `
			SELECT booking_id FROM payments
			WHERE booking_id = ANY($1)
			FOR UPDATE SKIP LOCKED`,
			pq.Array(ids)); err != nil {
			return fmt.Errorf("failed to lock payments: %w", err)
		}
		paymentLocked := make(map[int64]bool, len(lockedIDs))
		for _, id := range lockedIDs {
			paymentLocked[id] = true
		}

		ids = ids[:0]
		for _, c := range candidates {
			if c.OrderID != "" && !paymentLocked[c.BookingID] {
				continue
			}
			expired = append(expired, c)
			ids = append(ids, c.BookingID)
		}
		if len(ids) == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE bookings SET status = $1, updated_at = NOW()
			WHERE id = ANY($2) AND status = $3`,
			models.BookingStatusCancelled, pq.Array(ids), models.BookingStatusPending); err != nil {
			return fmt.Errorf("failed to cancel bookings: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE payments SET status = $1, updated_at = NOW()
			WHERE booking_id = ANY($2) AND status = $3`,
			models.PaymentStatusFailed, pq.Array(ids), models.PaymentStatusCreated); err != nil {
			return fmt.Errorf("failed to fail payments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}
