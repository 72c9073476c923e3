package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Aaditya473/Alpha-Fitness/internal/apperror"
	"github.com/Aaditya473/Alpha-Fitness/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookFixture struct {
	store      *memStore
	gateway    *fakeGateway
	publisher  *recordingPublisher
	deduper    *memDeduper
	bookings   *BookingService
	reconciler *WebhookReconciler
}

func newWebhookFixture() *webhookFixture {
	f := &webhookFixture{
		store:     newMemStore(yogaClass()),
		gateway:   newFakeGateway(),
		publisher: &recordingPublisher{},
		deduper:   newMemDeduper(),
	}
	f.bookings = newTestBookingService(f.store, f.gateway, f.publisher)
	f.reconciler = NewWebhookReconciler(f.gateway, f.store, f.deduper, f.publisher, time.Hour)
	return f
}

func (f *webhookFixture) book(t *testing.T, userID int64) *models.BookingQuote {
	t.Helper()
	quote, err := f.bookings.CreateBooking(context.Background(), userID, CreateBookingRequest{ServiceID: 7})
	require.NoError(t, err)
	return quote
}

func TestBookAndPayEndToEnd(t *testing.T) {
	f := newWebhookFixture()
	ctx := context.Background()

	quote := f.book(t, 11)
	booking := f.store.booking(quote.BookingID)
	assert.True(t, booking.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, models.PaymentStatusCreated, f.store.payment(quote.OrderID).Status)

	body := capturedEvent(quote.OrderID, "pay_1", quote.Amount)
	outcome, err := f.reconciler.Handle(ctx, signedDelivery(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	assert.Equal(t, models.BookingStatusPaid, f.store.booking(quote.BookingID).Status)
	payment := f.store.payment(quote.OrderID)
	assert.Equal(t, models.PaymentStatusSuccess, payment.Status)
	require.NotNil(t, payment.PaymentID)
	assert.Equal(t, "pay_1", *payment.PaymentID)

	outcome, err = f.reconciler.Handle(ctx, signedDelivery(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	assert.Equal(t, models.BookingStatusPaid, f.store.booking(quote.BookingID).Status)
	assert.Equal(t, payment, f.store.payment(quote.OrderID))
	assert.Len(t, f.publisher.paid, 1)
	assert.Equal(t, "pay_1", f.publisher.paid[0].PaymentID)
}

func TestConcurrentDuplicateDeliveriesApplyOnce(t *testing.T) {
	f := newWebhookFixture()
	quote := f.book(t, 11)
	body := capturedEvent(quote.OrderID, "pay_1", quote.Amount)

	const deliveries = 20
	outcomes := make(chan Outcome, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := f.reconciler.Handle(context.Background(), signedDelivery(body))
			assert.NoError(t, err)
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	applied := 0
	for o := range outcomes {
		if o == OutcomeApplied {
			applied++
		} else {
			assert.Equal(t, OutcomeDuplicate, o)
		}
	}
	assert.Equal(t, 1, applied)
	assert.Len(t, f.publisher.paid, 1)
	assert.Equal(t, models.BookingStatusPaid, f.store.booking(quote.BookingID).Status)
}

func TestInvalidSignatureChangesNothing(t *testing.T) {
	f := newWebhookFixture()
	quote := f.book(t, 11)
	body := capturedEvent(quote.OrderID, "pay_1", quote.Amount)

	before := f.store.payment(quote.OrderID)
	for _, sig := range []string{"", "deadbeef", signBody([]byte("other body"))} {
		_, err := f.reconciler.Handle(context.Background(), WebhookDelivery{Body: body, Signature: sig})
		assert.True(t, apperror.Is(err, apperror.KindSignatureInvalid))
	}

	assert.Equal(t, before, f.store.payment(quote.OrderID))
	assert.Equal(t, models.BookingStatusPending, f.store.booking(quote.BookingID).Status)
	assert.Zero(t, f.store.confirmCalls)
}

func TestNonCaptureEventsAreAcknowledged(t *testing.T) {
	f := newWebhookFixture()
	quote := f.book(t, 11)

	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_9","order_id":"` + quote.OrderID + `"}}}}`)
	outcome, err := f.reconciler.Handle(context.Background(), signedDelivery(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Equal(t, models.BookingStatusPending, f.store.booking(quote.BookingID).Status)
	assert.Zero(t, f.store.confirmCalls)
}

func TestUnknownOrderIsAcknowledged(t *testing.T) {
	f := newWebhookFixture()

	outcome, err := f.reconciler.Handle(context.Background(), signedDelivery(capturedEvent("order_foreign", "pay_x", 100)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknownOrder, outcome)
}

func TestMalformedVerifiedBody(t *testing.T) {
	f := newWebhookFixture()

	for _, body := range []string{
		`not json`,
		`{"payload":{}}`,
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1"}}}}`,
	} {
		_, err := f.reconciler.Handle(context.Background(), signedDelivery([]byte(body)))
		assert.True(t, apperror.Is(err, apperror.KindValidation), body)
	}
}

func TestStoreFailureAsksForRedelivery(t *testing.T) {
	f := newWebhookFixture()
	quote := f.book(t, 11)
	f.store.confirmErr = errors.New("deadlock detected")

	_, err := f.reconciler.Handle(context.Background(), WebhookDelivery{
		Body:      capturedEvent(quote.OrderID, "pay_1", quote.Amount),
		Signature: signBody(capturedEvent(quote.OrderID, "pay_1", quote.Amount)),
		EventID:   "evt_1",
	})
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	assert.False(t, f.deduper.seen["evt_1"])
}

func TestEventIDDedupeSkipsStore(t *testing.T) {
	f := newWebhookFixture()
	quote := f.book(t, 11)
	d := signedDelivery(capturedEvent(quote.OrderID, "pay_1", quote.Amount))
	d.EventID = "evt_1"

	outcome, err := f.reconciler.Handle(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.True(t, f.deduper.seen["evt_1"])

	outcome, err = f.reconciler.Handle(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, 1, f.store.confirmCalls)
}

func TestDedupeCacheErrorFallsBackToStore(t *testing.T) {
	f := newWebhookFixture()
	quote := f.book(t, 11)
	f.deduper.err = errors.New("redis: connection refused")
	d := signedDelivery(capturedEvent(quote.OrderID, "pay_1", quote.Amount))
	d.EventID = "evt_1"

	outcome, err := f.reconciler.Handle(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	outcome, err = f.reconciler.Handle(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, 2, f.store.confirmCalls)
}

func TestLateCaptureKeepsBookingClosed(t *testing.T) {
	f := newWebhookFixture()
	quote := f.book(t, 11)

	changed, err := f.store.FailBooking(context.Background(), quote.BookingID, models.BookingStatusCancelled)
	require.NoError(t, err)
	require.True(t, changed)

	outcome, err := f.reconciler.Handle(context.Background(), signedDelivery(capturedEvent(quote.OrderID, "pay_late", quote.Amount)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeLateCapture, outcome)

	assert.Equal(t, models.BookingStatusCancelled, f.store.booking(quote.BookingID).Status)
	assert.Equal(t, models.PaymentStatusSuccess, f.store.payment(quote.OrderID).Status)
	require.Len(t, f.publisher.lateCaptures, 1)
	assert.Equal(t, models.BookingStatusCancelled, f.publisher.lateCaptures[0].BookingStatus)
	assert.Empty(t, f.publisher.paid)
}
