package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Aaditya473/Alpha-Fitness/internal/apperror"
	"github.com/Aaditya473/Alpha-Fitness/internal/models"
	"github.com/Aaditya473/Alpha-Fitness/internal/service"
	"github.com/Aaditya473/Alpha-Fitness/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	signatureHeader = "X-Razorpay-Signature"
	eventIDHeader   = "X-Razorpay-Event-Id"

	maxWebhookBody = 1 << 20
)

type BookingService interface {
	CreateBooking(ctx context.Context, userID int64, req service.CreateBookingRequest) (*models.BookingQuote, error)
	ListBookings(ctx context.Context, userID int64) ([]models.BookingSummary, error)
}

type WebhookReconciler interface {
	Handle(ctx context.Context, d service.WebhookDelivery) (service.Outcome, error)
}

type Catalog interface {
	ListActiveServices(ctx context.Context) ([]models.Service, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	bookings   BookingService
	reconciler WebhookReconciler
	catalog    Catalog
	db         Pinger
	auth       *Authenticator
	limiter    *WebhookLimiter
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	bookings BookingService,
	reconciler WebhookReconciler,
	catalog Catalog,
	db Pinger,
	auth *Authenticator,
	limiter *WebhookLimiter,
) *Handler {
	return &Handler{
		bookings:   bookings,
		reconciler: reconciler,
		catalog:    catalog,
		db:         db,
		auth:       auth,
		limiter:    limiter,
		logger:     util.ComponentLogger("api"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/services", h.listServices)

	bookings := router.Group("/bookings", h.auth.Middleware())
	{
		bookings.POST("", h.createBooking)
		bookings.GET("/mine", h.listMyBookings)
	}

	router.POST("/payments/webhook", h.limiter.Middleware(), h.paymentWebhook)
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listServices(c *gin.Context) {
	services, err := h.catalog.ListActiveServices(c.Request.Context())
	if err != nil {
		h.respondError(c, apperror.Internal("failed to list services", err))
		return
	}
	c.JSON(http.StatusOK, services)
}

// createBooking handles POST /bookings
func (h *Handler) createBooking(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperror.Wrap(err, apperror.KindValidation, "invalid request body"))
		return
	}

	quote, err := h.bookings.CreateBooking(c.Request.Context(), userIDFrom(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, quote)
}

func (h *Handler) listMyBookings(c *gin.Context) {
	bookings, err := h.bookings.ListBookings(c.Request.Context(), userIDFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// paymentWebhook handles gateway callbacks. The raw body is read before any
// decoding since the signature covers the exact bytes.
func (h *Handler) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.respondError(c, apperror.Wrap(err, apperror.KindValidation, "unreadable body"))
		return
	}

	outcome, err := h.reconciler.Handle(c.Request.Context(), service.WebhookDelivery{
		Body:      body,
		Signature: c.GetHeader(signatureHeader),
		EventID:   c.GetHeader(eventIDHeader),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Debug("Webhook acknowledged", zap.String("outcome", string(outcome)))
	c.Status(http.StatusOK)
}

// respondError renders err as {"error": {"code", "message"}}
func (h *Handler) respondError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    kind,
			"message": apperror.PublicMessage(err),
		},
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
