package service

import (
	"context"
	"errors"
	"time"

	"github.com/Aaditya473/Alpha-Fitness/internal/apperror"
	"github.com/Aaditya473/Alpha-Fitness/internal/broker"
	"github.com/Aaditya473/Alpha-Fitness/internal/gateway"
	"github.com/Aaditya473/Alpha-Fitness/internal/models"
	"github.com/Aaditya473/Alpha-Fitness/internal/store"
	"github.com/Aaditya473/Alpha-Fitness/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Outcome is what a webhook delivery did. Every outcome is acknowledged to
// the gateway.
type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeLateCapture  Outcome = "late_capture"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeUnknownOrder Outcome = "unknown_order"
	OutcomeIgnored      Outcome = "ignored"
)

// WebhookDelivery is one inbound gateway callback. EventID is optional.
type WebhookDelivery struct {
	Body      []byte
	Signature string
	EventID   string
}

// WebhookReconciler applies captured-payment callbacks to payments and bookings
type WebhookReconciler struct {
	gateway   gateway.Client
	payments  PaymentStore
	dedupe    EventDeduper
	events    EventPublisher
	dedupeTTL time.Duration
	logger    *zap.Logger
}

// NewWebhookReconciler creates a reconciler. dedupe may be nil.
func NewWebhookReconciler(
	gw gateway.Client,
	payments PaymentStore,
	dedupe EventDeduper,
	events EventPublisher,
	dedupeTTL time.Duration,
) *WebhookReconciler {
	return &WebhookReconciler{
		gateway:   gw,
		payments:  payments,
		dedupe:    dedupe,
		events:    events,
		dedupeTTL: dedupeTTL,
		logger:    util.ComponentLogger("webhook"),
	}
}

// Handle verifies and reconciles a delivery. A nil error means the delivery
// must be acknowledged with 200. SignatureInvalid and Validation errors are
// returned before any state is touched; Internal errors ask the gateway to
// redeliver.
func (r *WebhookReconciler) Handle(ctx context.Context, d WebhookDelivery) (Outcome, error) {
	ctx, span := util.StartSpan(ctx, "WebhookReconciler.Handle")
	defer span.End()

	if err := r.gateway.VerifyWebhookSignature(d.Body, d.Signature); err != nil {
		util.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		r.logger.Warn("Rejected webhook with invalid signature", zap.Error(err))
		return "", apperror.SignatureInvalid()
	}

	evt, err := gateway.ParseWebhookEvent(d.Body)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		r.logger.Warn("Malformed webhook body", zap.Error(err))
		return "", apperror.Wrap(err, apperror.KindValidation, "malformed webhook event")
	}
	span.SetAttributes(attribute.String("webhook.event", evt.Event))

	if !evt.Captured() {
		util.WebhookEventsTotal.WithLabelValues(evt.Event, string(OutcomeIgnored)).Inc()
		r.logger.Debug("Ignoring webhook event", zap.String("event", evt.Event))
		return OutcomeIgnored, nil
	}

	if r.seen(ctx, d.EventID) {
		util.WebhookEventsTotal.WithLabelValues(evt.Event, string(OutcomeDuplicate)).Inc()
		return OutcomeDuplicate, nil
	}

	entity := evt.Payload.Payment.Entity
	span.SetAttributes(attribute.String("gateway.order_id", entity.OrderID))

	conf, err := r.payments.ConfirmPayment(ctx, entity.OrderID, entity.ID)
	if errors.Is(err, store.ErrNotFound) {
		util.WebhookEventsTotal.WithLabelValues(evt.Event, string(OutcomeUnknownOrder)).Inc()
		r.logger.Warn("Captured payment for unknown order",
			zap.String("order_id", entity.OrderID),
			zap.String("payment_id", entity.ID))
		return OutcomeUnknownOrder, nil
	}
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues(evt.Event, "error").Inc()
		util.RecordError(span, err)
		r.logger.Error("Failed to reconcile payment",
			zap.String("order_id", entity.OrderID),
			zap.Error(err))
		return "", apperror.Internal("failed to reconcile payment", err)
	}

	outcome := r.publish(ctx, conf, entity)
	r.markSeen(ctx, d.EventID)
	util.WebhookEventsTotal.WithLabelValues(evt.Event, string(outcome)).Inc()
	return outcome, nil
}

func (r *WebhookReconciler) publish(ctx context.Context, conf *models.Confirmation, entity gateway.PaymentEntity) Outcome {
	if !conf.Applied {
		r.logger.Info("Payment already confirmed",
			zap.String("order_id", entity.OrderID),
			zap.Int64("booking_id", conf.BookingID))
		return OutcomeDuplicate
	}

	if entity.Amount != 0 && entity.Amount != conf.Amount {
		r.logger.Warn("Captured amount differs from order amount",
			zap.String("order_id", entity.OrderID),
			zap.Int64("expected", conf.Amount),
			zap.Int64("captured", entity.Amount))
	}

	if !conf.BookingPaid {
		r.logger.Warn("Payment captured for booking that is no longer pending",
			zap.String("order_id", entity.OrderID),
			zap.Int64("booking_id", conf.BookingID),
			zap.String("booking_status", conf.BookingStatus))
		event := &models.BookingLateCaptureEvent{
			BaseEvent:     broker.NewBaseEvent(models.EventTypeBookingLateCapture),
			BookingID:     conf.BookingID,
			UserID:        conf.UserID,
			OrderID:       entity.OrderID,
			PaymentID:     entity.ID,
			BookingStatus: conf.BookingStatus,
		}
		if err := r.events.PublishBookingLateCapture(ctx, event); err != nil {
			r.logger.Error("Failed to publish BookingLateCapture event", zap.Error(err))
		}
		return OutcomeLateCapture
	}

	util.BookingsPaidTotal.Inc()
	r.logger.Info("Booking paid",
		zap.Int64("booking_id", conf.BookingID),
		zap.String("order_id", entity.OrderID),
		zap.String("payment_id", entity.ID))

	event := &models.BookingPaidEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeBookingPaid),
		BookingID: conf.BookingID,
		UserID:    conf.UserID,
		OrderID:   entity.OrderID,
		PaymentID: entity.ID,
		Amount:    conf.Amount,
	}
	if err := r.events.PublishBookingPaid(ctx, event); err != nil {
		r.logger.Error("Failed to publish BookingPaid event", zap.Error(err))
	}
	return OutcomeApplied
}

// seen checks the dedupe cache. Cache errors fall through to the store,
// which is idempotent on its own.
func (r *WebhookReconciler) seen(ctx context.Context, eventID string) bool {
	if r.dedupe == nil || eventID == "" {
		return false
	}
	ok, err := r.dedupe.IsEventProcessed(ctx, eventID)
	if err != nil {
		r.logger.Warn("Webhook dedupe lookup failed", zap.String("event_id", eventID), zap.Error(err))
		return false
	}
	return ok
}

func (r *WebhookReconciler) markSeen(ctx context.Context, eventID string) {
	if r.dedupe == nil || eventID == "" {
		return
	}
	if err := r.dedupe.MarkEventProcessed(ctx, eventID, r.dedupeTTL); err != nil {
		r.logger.Warn("Failed to record webhook event", zap.String("event_id", eventID), zap.Error(err))
	}
}
