package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aaditya473/Alpha-Fitness/config"
	"github.com/Aaditya473/Alpha-Fitness/internal/api"
	"github.com/Aaditya473/Alpha-Fitness/internal/broker"
	"github.com/Aaditya473/Alpha-Fitness/internal/gateway"
	"github.com/Aaditya473/Alpha-Fitness/internal/redisclient"
	"github.com/Aaditya473/Alpha-Fitness/internal/service"
	"github.com/Aaditya473/Alpha-Fitness/internal/store"
	"github.com/Aaditya473/Alpha-Fitness/internal/util"
	"github.com/Aaditya473/Alpha-Fitness/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "booking-service"

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, serviceName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting booking service")

	tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}
	migrateCancel()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicBooking)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicBooking))

	eventPublisher := broker.NewEventPublisher(producer)

	razorpay := gateway.NewRazorpay(cfg.Gateway.KeyID, cfg.Gateway.KeySecret, cfg.Gateway.WebhookSecret)

	bookingService := service.NewBookingService(db, db, razorpay, eventPublisher, service.BookingOptions{
		Currency:     cfg.Business.Currency,
		MaxAttempts:  cfg.Business.GatewayMaxAttempts,
		RetryBackoff: cfg.Business.GatewayRetryBackoff,
	})
	reconciler := service.NewWebhookReconciler(razorpay, db, redisClient, eventPublisher, cfg.Business.WebhookDedupeTTL)
	expiryService := service.NewExpiryService(db, redisClient, eventPublisher, cfg.Business.PendingBookingTTL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	expiryWorker := worker.NewExpiryWorker(expiryService, cfg.Business.ExpirySweepInterval)
	go func() {
		if err := expiryWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Expiry worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(
		bookingService,
		reconciler,
		db,
		db,
		api.NewAuthenticator(cfg.Auth.JWTSecret),
		api.NewWebhookLimiter(cfg.Business.WebhookRatePerSecond),
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	_ = expiryWorker.Stop()
	workerCancel()

	logger.Info("Server exited")
}
