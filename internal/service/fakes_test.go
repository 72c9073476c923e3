package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Aaditya473/Alpha-Fitness/internal/gateway"
	"github.com/Aaditya473/Alpha-Fitness/internal/models"
	"github.com/Aaditya473/Alpha-Fitness/internal/store"
)

const testWebhookSecret = "whsec_test"

// memStore is an in-memory stand-in for the Postgres store. Every method
// holds the mutex, which plays the role of the row locks.
type memStore struct {
	mu       sync.Mutex
	services map[int64]*models.Service
	bookings map[int64]*models.Booking
	payments map[string]*models.Payment

	nextBookingID int64
	nextPaymentID int64
	base          time.Time

	createPaymentErr error
	confirmErr       error
	confirmCalls     int
}

func newMemStore(services ...*models.Service) *memStore {
	s := &memStore{
		services: map[int64]*models.Service{},
		bookings: map[int64]*models.Booking{},
		payments: map[string]*models.Payment{},
		base:     time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	for _, svc := range services {
		s.services[svc.ID] = svc
	}
	return s
}

func (s *memStore) GetActiveService(ctx context.Context, id int64) (*models.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok || !svc.Active {
		return nil, store.ErrNotFound
	}
	cp := *svc
	return &cp, nil
}

func (s *memStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBookingID++
	booking.ID = s.nextBookingID
	booking.CreatedAt = s.base.Add(time.Duration(booking.ID) * time.Minute)
	booking.UpdatedAt = booking.CreatedAt
	cp := *booking
	s.bookings[booking.ID] = &cp
	return nil
}

func (s *memStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createPaymentErr != nil {
		return s.createPaymentErr
	}
	if _, exists := s.payments[payment.OrderID]; exists {
		return store.ErrDuplicate
	}
	s.nextPaymentID++
	payment.ID = s.nextPaymentID
	cp := *payment
	s.payments[payment.OrderID] = &cp
	return nil
}

func (s *memStore) FailBooking(ctx context.Context, bookingID int64, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.Status != models.BookingStatusPending {
		return false, nil
	}
	b.Status = status
	return true, nil
}

func (s *memStore) ListBookingsByUser(ctx context.Context, userID int64) ([]models.BookingSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.BookingSummary{}
	for _, b := range s.bookings {
		if b.UserID != userID {
			continue
		}
		out = append(out, models.BookingSummary{
			ID:          b.ID,
			ServiceName: s.services[b.ServiceID].Name,
			Quantity:    b.Quantity,
			Amount:      b.Amount,
			Status:      b.Status,
			CreatedAt:   b.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memStore) ConfirmPayment(ctx context.Context, orderID, gatewayPaymentID string) (*models.Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmCalls++
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	p, ok := s.payments[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	b := s.bookings[p.BookingID]
	conf := &models.Confirmation{
		PaymentID:     p.ID,
		BookingID:     b.ID,
		UserID:        b.UserID,
		Amount:        p.Amount,
		BookingStatus: b.Status,
	}
	if p.Status == models.PaymentStatusSuccess {
		return conf, nil
	}
	id := gatewayPaymentID
	p.PaymentID = &id
	p.Status = models.PaymentStatusSuccess
	conf.Applied = true
	if b.Status == models.BookingStatusPending {
		b.Status = models.BookingStatusPaid
		conf.BookingPaid = true
		conf.BookingStatus = b.Status
	}
	return conf, nil
}

func (s *memStore) ExpirePendingBookings(ctx context.Context, cutoff time.Time, limit int) ([]models.ExpiredBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []int64{}
	for id, b := range s.bookings {
		if b.Status == models.BookingStatusPending && b.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	expired := []models.ExpiredBooking{}
	for _, id := range ids {
		b := s.bookings[id]
		b.Status = models.BookingStatusCancelled
		e := models.ExpiredBooking{BookingID: id, UserID: b.UserID}
		if p := s.paymentFor(id); p != nil {
			e.OrderID = p.OrderID
			if p.Status == models.PaymentStatusCreated {
				p.Status = models.PaymentStatusFailed
			}
		}
		expired = append(expired, e)
	}
	return expired, nil
}

func (s *memStore) paymentFor(bookingID int64) *models.Payment {
	for _, p := range s.payments {
		if p.BookingID == bookingID {
			return p
		}
	}
	return nil
}

func (s *memStore) booking(id int64) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.bookings[id]
}

func (s *memStore) payment(orderID string) models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.payments[orderID]
}

func (s *memStore) counts() (bookings, payments int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings), len(s.payments)
}

// fakeGateway issues sequential order ids and verifies signatures with the
// real Razorpay scheme.
type fakeGateway struct {
	*gateway.Razorpay

	mu       sync.Mutex
	calls    int
	failures int
	err      error
	orderID  string
	requests []gateway.OrderRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{Razorpay: gateway.NewRazorpay("rzp_test_key", "key_secret", testWebhookSecret)}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.requests = append(g.requests, req)
	if g.err != nil && (g.failures < 0 || g.calls <= g.failures) {
		return nil, g.err
	}
	id := g.orderID
	if id == "" {
		id = fmt.Sprintf("order_%d", g.calls)
	}
	return &gateway.Order{ID: id, Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingPublisher struct {
	mu           sync.Mutex
	created      []*models.BookingCreatedEvent
	paid         []*models.BookingPaidEvent
	failed       []*models.BookingFailedEvent
	expired      []*models.BookingExpiredEvent
	lateCaptures []*models.BookingLateCaptureEvent
}

func (p *recordingPublisher) PublishBookingCreated(ctx context.Context, e *models.BookingCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return nil
}

func (p *recordingPublisher) PublishBookingPaid(ctx context.Context, e *models.BookingPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, e)
	return nil
}

func (p *recordingPublisher) PublishBookingFailed(ctx context.Context, e *models.BookingFailedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, e)
	return nil
}

func (p *recordingPublisher) PublishBookingExpired(ctx context.Context, e *models.BookingExpiredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired = append(p.expired, e)
	return nil
}

func (p *recordingPublisher) PublishBookingLateCapture(ctx context.Context, e *models.BookingLateCaptureEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lateCaptures = append(p.lateCaptures, e)
	return nil
}

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newMemDeduper() *memDeduper {
	return &memDeduper{seen: map[string]bool{}}
}

func (d *memDeduper) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.seen[eventID], nil
}

func (d *memDeduper) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.seen[eventID] = true
	return nil
}

type memLocker struct {
	mu       sync.Mutex
	holder   string
	released int
}

func (l *memLocker) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" {
		return false, nil
	}
	l.holder = token
	return true, nil
}

func (l *memLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != token {
		return errors.New("lock not held")
	}
	l.holder = ""
	l.released++
	return nil
}

func capturedEvent(orderID, paymentID string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{"event":"payment.captured","created_at":1760000000,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":%d,"currency":"INR","status":"captured"}}}}`,
		paymentID, orderID, amount))
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func signedDelivery(body []byte) WebhookDelivery {
	return WebhookDelivery{Body: body, Signature: signBody(body)}
}
