package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/application/outbox"
	returnsapp "github.com/marketplace/returns/internal/application/returns"
	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/infrastructure/auth"
	"github.com/marketplace/returns/internal/infrastructure/cache"
	"github.com/marketplace/returns/internal/infrastructure/config"
	"github.com/marketplace/returns/internal/infrastructure/courier"
	"github.com/marketplace/returns/internal/infrastructure/event"
	"github.com/marketplace/returns/internal/infrastructure/logger"
	"github.com/marketplace/returns/internal/infrastructure/notification"
	"github.com/marketplace/returns/internal/infrastructure/persistence"
	"github.com/marketplace/returns/internal/infrastructure/telemetry"
	"github.com/marketplace/returns/internal/interfaces/http/handler"
	"github.com/marketplace/returns/internal/interfaces/http/middleware"
	"github.com/marketplace/returns/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

//	@title			Returns Service API
//	@version		1.0
//	@description	Return and refund lifecycle of marketplace order items

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting returns service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.ConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfigFrom(cfg.Telemetry, cfg.Log.Level), log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.Bridge(log)
	// no-op meter when metrics are disabled
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
	returnMetrics, err := telemetry.NewReturnMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create return metrics", zap.Error(err))
	}

	// Database
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterOtelGorm(db.DB, telemetry.DBTracingConfigFrom(cfg.Telemetry, cfg.Database.DBName), log); err != nil {
		log.Warn("Database tracing disabled", zap.Error(err))
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DBMetricsConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Warn("Database metrics disabled", zap.Error(err))
	}
	defer dbMetrics.Stop()
	log.Info("Database connected successfully")

	// Events
	serializer := event.NewEventSerializer()
	event.RegisterReturnEvents(serializer)
	outboxPublisher := event.NewOutboxPublisher(serializer, cfg.Event.MaxRetries)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	eventBus := event.NewInMemoryEventBus(log)

	// Repositories and readers
	returnRepo := persistence.NewGormReturnOrderRepository(db.DB)
	returnRepo.SetOutboxEventSaver(outboxPublisher)
	trackingRepo := persistence.NewGormTrackingRepository(db.DB)
	orderItems := persistence.NewGormOrderItemReader(db.DB)
	customers := persistence.NewGormCustomerReader(db.DB)

	// External integrations
	courierAdapter, err := courier.NewAdapter(cfg.Courier, log)
	if err != nil {
		log.Fatal("Failed to create courier adapter", zap.Error(err))
	}
	notifier, err := notification.NewNotifier(cfg.Notification, log)
	if err != nil {
		log.Fatal("Failed to create notifier", zap.Error(err))
	}

	// Application services
	statsCache := cache.NewStatisticsCache(cfg.Returns.StatisticsCacheTTL)

	machine := returnsapp.NewReturnStateMachine(returnRepo, orderItems, customers, courierAdapter, log)
	machine.SetRefundPolicy(returns.RefundPolicy{
		DeductShippingForCustomerReasons: cfg.Returns.DeductShippingForCustomerReasons,
	})
	machine.SetPickupDefaults(pickupDefaults(cfg.Courier))
	machine.SetStatisticsCache(statsCache)
	machine.SetMetrics(returnMetrics)

	queries := returnsapp.NewReturnQueryService(returnRepo, trackingRepo, log)
	queries.SetStatisticsCache(statsCache)

	notifications := returnsapp.NewReturnNotificationHandler(customers, notifier, log)
	notifications.SetMetrics(returnMetrics)

	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		_ = idempotencyStore.Close()
	}()
	idempotencyCfg := shared.DefaultIdempotencyConfig()
	if cfg.Event.IdempotencyTTL > 0 {
		idempotencyCfg.TTL = cfg.Event.IdempotencyTTL
	}
	notificationHandler := event.NewIdempotentHandler(notifications, idempotencyStore, log,
		event.WithIdempotencyConfig(idempotencyCfg),
		event.WithDeliveryRecorder(returnMetrics))
	eventBus.Subscribe(notificationHandler, notificationHandler.EventTypes()...)

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	var outboxProcessor *event.OutboxProcessor
	if cfg.Event.ProcessorEnabled {
		outboxProcessor = event.NewOutboxProcessor(outboxRepo, eventBus, serializer,
			event.OutboxProcessorConfigFrom(cfg.Event), log)
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	}

	// HTTP
	var tokens middleware.TokenVerifier
	if cfg.Auth.Enabled {
		tokens = auth.NewTokenService(cfg.Auth)
	}
	engine := router.NewEngine(router.Options{
		Config: cfg,
		Logger: log,
		Meter:  meter,
		Tokens: tokens,
	}, router.Handlers{
		Returns: handler.NewReturnHandler(machine, queries),
		Courier: handler.NewCourierWebhookHandler(machine, courierAdapter.Name(), cfg.Courier.WebhookSecret),
		Health:  handler.NewHealthHandler(cfg.App.Name, version, db),
		Outbox:  handler.NewOutboxHandler(outbox.NewDeliveryService(outboxRepo, log)),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           engine,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if outboxProcessor != nil {
		if err := outboxProcessor.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// pickupDefaults overlays configured package defaults on the built-in ones
func pickupDefaults(cfg config.CourierConfig) returnsapp.PickupDefaults {
	d := returnsapp.DefaultPickupDefaults()
	if cfg.DefaultWeightGrams > 0 {
		d.WeightGrams = cfg.DefaultWeightGrams
	}
	if cfg.DefaultLengthCm > 0 {
		d.Dimensions.LengthCm = cfg.DefaultLengthCm
	}
	if cfg.DefaultWidthCm > 0 {
		d.Dimensions.WidthCm = cfg.DefaultWidthCm
	}
	if cfg.DefaultHeightCm > 0 {
		d.Dimensions.HeightCm = cfg.DefaultHeightCm
	}
	if cfg.Timeout > 0 {
		d.CourierTimeout = cfg.Timeout
	}
	return d
}
