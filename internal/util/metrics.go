package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created with a gateway order",
	})

	BookingsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_failed_total",
		Help: "Total number of booking attempts that failed",
	}, []string{"reason"})

	BookingsPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_paid_total",
		Help: "Total number of bookings moved to PAID",
	})

	BookingsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_expired_total",
		Help: "Total number of pending bookings cancelled by the expiry sweep",
	})

	GatewayOrderAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_order_attempts_total",
		Help: "Total number of gateway order creation attempts",
	}, []string{"outcome"})

	GatewayOrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_order_latency_seconds",
		Help:    "Latency of gateway order creation, including retries",
		Buckets: prometheus.DefBuckets,
	})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total number of gateway webhook deliveries by event and outcome",
	}, []string{"event", "outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
