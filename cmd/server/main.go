package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/wekeepgrowing/order-payments/internal/adapter/handler/http"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/database"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/dedup"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/events"
	grpcServer "github.com/wekeepgrowing/order-payments/internal/infrastructure/grpc"
	httpServer "github.com/wekeepgrowing/order-payments/internal/infrastructure/http"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/metrics"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/provider"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/scheduler"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/settings"
	"github.com/wekeepgrowing/order-payments/internal/usecase"
	"github.com/wekeepgrowing/order-payments/pkg/logger"
	"github.com/wekeepgrowing/order-payments/pkg/messaging"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger = zapLogger.With(
		zap.String("service", cfg.Service.Name),
		zap.String("environment", cfg.Service.Environment),
	)

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	if cfg.Database.ManageOrderTables {
		if err := database.MigrateOrderTables(db); err != nil {
			zapLogger.Fatal("Failed to migrate order tables", zap.Error(err))
		}
	}

	repos := database.NewRepositories(db, zapLogger)

	runtimeSettings, err := settings.Load(cfg.Settings, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to load runtime settings", zap.Error(err))
	}

	// Redis carries payment events and webhook dedup keys. Without it events
	// are only logged and dedup is per process.
	var (
		publisher usecase.EventPublisher = events.NewLogPublisher(zapLogger)
		seen      usecase.WebhookDedup   = dedup.NewMemoryStore(cfg.Redis.DedupTTL)
	)
	if cfg.Redis.Enabled {
		redisClient, err := messaging.NewRedisClient(messaging.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		publisher = events.NewRedisPublisher(redisClient, cfg.Redis.EventsChannel, zapLogger)
		seen = dedup.NewRedisStore(redisClient, cfg.Redis.DedupTTL)
	}

	registry, err := provider.NewFactory(&cfg.Payments, runtimeSettings, zapLogger).NewRegistry()
	if err != nil {
		zapLogger.Fatal("Failed to build payment gateways", zap.Error(err))
	}

	recorder := metrics.New("payments")
	transitions := usecase.NewTransitioner(repos.Payment, repos.Order, publisher, recorder, zapLogger)
	paymentService := usecase.NewPaymentService(
		repos.Payment, repos.Order, repos.CustomerMapping,
		registry, runtimeSettings, transitions, cfg.Payments, recorder, zapLogger,
	)
	webhookService := usecase.NewWebhookService(repos.Payment, registry, transitions, seen, repos.WebhookEvent, recorder, zapLogger)
	cardService := usecase.NewCardService(registry, repos.CustomerMapping, zapLogger)

	health := grpcServer.NewGatewayHealth(registry, zapLogger)
	health.Refresh(context.Background())

	jobs := scheduler.New(cfg.Payments, paymentService, health, zapLogger)
	if err := jobs.Start(); err != nil {
		zapLogger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Initialize servers
	grpcSrv := grpcServer.NewServer(cfg, health, zapLogger)
	httpSrv := httpServer.NewServer(cfg, httpServer.Handlers{
		Payment: handlers.NewPaymentHandler(paymentService, zapLogger),
		Webhook: handlers.NewWebhookHandler(webhookService, zapLogger),
		Card:    handlers.NewCardHandler(cardService, zapLogger),
		Admin:   handlers.NewAdminHandler(paymentService, runtimeSettings, zapLogger),
		Metrics: recorder.Handler(),
	}, zapLogger)

	// Start servers
	go func() {
		if err := grpcSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Running jobs finish before the database closes
	select {
	case <-jobs.Stop().Done():
	case <-ctx.Done():
		zapLogger.Warn("Scheduler jobs still running at shutdown")
	}

	if err := grpcSrv.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}

	if err := httpSrv.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	zapLogger.Info("Servers shut down successfully")
}
