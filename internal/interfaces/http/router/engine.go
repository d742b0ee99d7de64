package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/tracking"
	"github.com/marketplace/returns/internal/infrastructure/config"
	"github.com/marketplace/returns/internal/infrastructure/logger"
	"github.com/marketplace/returns/internal/interfaces/http/handler"
	"github.com/marketplace/returns/internal/interfaces/http/middleware"
)

// Handlers are the HTTP handlers mounted by NewEngine
type Handlers struct {
	Returns *handler.ReturnHandler
	Courier *handler.CourierWebhookHandler
	Health  *handler.HealthHandler
	Outbox  *handler.OutboxHandler
}

// Options configure NewEngine
type Options struct {
	Config *config.Config
	Logger *zap.Logger
	// Meter records HTTP server metrics; nil disables them
	Meter metric.Meter
	// Tokens verifies bearer tokens; nil accepts identity headers only
	Tokens middleware.TokenVerifier
}

// NewEngine builds the gin engine with the global middleware stack and every route
func NewEngine(opts Options, h Handlers) *gin.Engine {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Stack order:
	// 1. RequestID, Recovery, Logger
	// 2. Tracing, span error status, HTTP metrics
	// 3. Security headers, CORS, body limit, request timeout
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(opts.Meter))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(corsConfig(cfg.HTTP)))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))

	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
	}

	r := NewRouter(engine, WithAPIVersion("v1"))
	if h.Health != nil {
		r.Register(NewDomainGroup("system", "").GET("/ping", h.Health.Ping))
	}
	if h.Courier != nil {
		r.Register(WebhookRoutes(h.Courier, webhookLimits(cfg.HTTP)...))
	}
	auth := middleware.ActorAuth(middleware.ActorAuthConfig{
		Tokens:      opts.Tokens,
		AllowHeader: cfg.Auth.AllowHeader,
		Logger:      log,
	})
	if h.Outbox != nil {
		r.Register(OutboxRoutes(h.Outbox, auth, middleware.ActorAttributes(),
			middleware.RequireActorTypes(tracking.ActorAdmin, tracking.ActorSystem)))
	}
	if h.Returns != nil {
		chain := []gin.HandlerFunc{auth, middleware.ActorAttributes()}
		if cfg.HTTP.RateLimitEnabled {
			limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
			chain = append(chain, middleware.RateLimitByKey(limiter, middleware.VendorKey))
			log.Info("Rate limiting enabled",
				zap.Int("requests", cfg.HTTP.RateLimitRequests),
				zap.Duration("window", cfg.HTTP.RateLimitWindow),
			)
		}
		r.Register(ReturnRoutes(h.Returns, chain...))
	}
	r.Setup()
	log.Debug("API routes registered",
		zap.String("base_path", r.BasePath()),
		zap.Strings("routes", r.Routes()),
	)

	return engine
}

// ReturnRoutes mounts the vendor return endpoints behind the given middleware
func ReturnRoutes(h *handler.ReturnHandler, mw ...gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("returns", "/returns").Use(mw...)
	g.POST("", h.Create).
		GET("", h.List).
		GET("/statistics", h.Statistics).
		GET("/:id", h.GetByID).
		GET("/:id/timeline", h.Timeline).
		POST("/:id/submit", h.Submit).
		POST("/:id/approve", h.Approve).
		POST("/:id/reject", h.Reject).
		POST("/:id/schedule-pickup", h.SchedulePickup).
		POST("/:id/pickup-status", h.UpdatePickupProgress).
		POST("/:id/mark-received", h.MarkReceived).
		POST("/:id/start-inspection", h.StartInspection).
		POST("/:id/complete-inspection", h.CompleteInspection).
		POST("/:id/initiate-refund", h.InitiateRefund).
		POST("/:id/complete-refund",
			middleware.RequireActorTypes(tracking.ActorAdmin, tracking.ActorSystem), h.CompleteRefund).
		POST("/:id/close", h.Close)
	return g
}

// WebhookRoutes mounts the courier webhook. It authenticates by signature, not by actor.
func WebhookRoutes(h *handler.CourierWebhookHandler, mw ...gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("webhooks", "/webhooks").Use(mw...).
		POST("/courier", h.HandleScan)
}

// OutboxRoutes mounts the operator endpoints for undeliverable notifications
func OutboxRoutes(h *handler.OutboxHandler, mw ...gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("outbox", "/admin/outbox").Use(mw...).
		GET("/stats", h.Stats).
		GET("/dead-letters", h.ListDeadLetters).
		POST("/dead-letters/retry", h.RetryAll).
		GET("/:id", h.GetEntry).
		POST("/:id/retry", h.Retry)
}

func webhookLimits(cfg config.HTTPConfig) []gin.HandlerFunc {
	if !cfg.RateLimitEnabled || cfg.WebhookRateLimit <= 0 {
		return nil
	}
	return []gin.HandlerFunc{
		middleware.RateLimit(middleware.NewRateLimiter(cfg.WebhookRateLimit, cfg.RateLimitWindow)),
	}
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	c.AllowOrigins = cfg.CORSAllowOrigins
	c.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	if len(cfg.CORSAllowMethods) > 0 {
		c.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		c.AllowHeaders = cfg.CORSAllowHeaders
	}
	return c
}
