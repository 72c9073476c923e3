package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/Aaditya473/Alpha-Fitness/internal/models"

	"github.com/google/uuid"
)

// EventWriter is the transport the publisher writes to
type EventWriter interface {
	PublishEvent(ctx context.Context, key, eventType string, event interface{}) error
}

// EventPublisher handles publishing booking domain events
type EventPublisher struct {
	writer EventWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(writer EventWriter) *EventPublisher {
	return &EventPublisher{writer: writer}
}

// NewBaseEvent stamps a fresh event id and timestamp
func NewBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func bookingKey(bookingID int64) string {
	return fmt.Sprintf("booking-%d", bookingID)
}

// PublishBookingCreated publishes BookingCreated event
func (ep *EventPublisher) PublishBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error {
	return ep.writer.PublishEvent(ctx, bookingKey(event.BookingID), event.EventType, event)
}

// PublishBookingPaid publishes BookingPaid event
func (ep *EventPublisher) PublishBookingPaid(ctx context.Context, event *models.BookingPaidEvent) error {
	return ep.writer.PublishEvent(ctx, bookingKey(event.BookingID), event.EventType, event)
}

// PublishBookingFailed publishes BookingFailed event
func (ep *EventPublisher) PublishBookingFailed(ctx context.Context, event *models.BookingFailedEvent) error {
	return ep.writer.PublishEvent(ctx, bookingKey(event.BookingID), event.EventType, event)
}

// PublishBookingExpired publishes BookingExpired event
func (ep *EventPublisher) PublishBookingExpired(ctx context.Context, event *models.BookingExpiredEvent) error {
	return ep.writer.PublishEvent(ctx, bookingKey(event.BookingID), event.EventType, event)
}

// PublishBookingLateCapture publishes BookingLateCapture event
func (ep *EventPublisher) PublishBookingLateCapture(ctx context.Context, event *models.BookingLateCaptureEvent) error {
	return ep.writer.PublishEvent(ctx, bookingKey(event.BookingID), event.EventType, event)
}
