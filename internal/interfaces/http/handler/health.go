package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/infrastructure/logger"
	"github.com/marketplace/returns/internal/infrastructure/persistence"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping() error
}

type poolReporter interface {
	PoolStats() persistence.PoolStats
}

// HealthHandler serves liveness and build information
type HealthHandler struct {
	BaseHandler
	name      string
	version   string
	db        Pinger
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(name, version string, db Pinger) *HealthHandler {
	return &HealthHandler{
		name:      name,
		version:   version,
		db:        db,
		startTime: time.Now(),
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string                 `json:"status"`
	Database  string                 `json:"database"`
	Pool      *persistence.PoolStats `json:"pool,omitempty"`
	Name      string                 `json:"name"`
	Version   string                 `json:"version"`
	GoVersion string                 `json:"go_version"`
	Uptime    string                 `json:"uptime"`
	Time      string                 `json:"time"`
}

// Health answers 200 when the database responds and 503 otherwise.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Database:  "ok",
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Time:      time.Now().UTC().Format(time.RFC3339),
	}

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			logger.L(c.Request.Context()).Warn("Health check failed", zap.Error(err))
			resp.Status = "unhealthy"
			resp.Database = "error"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		if pr, ok := h.db.(poolReporter); ok {
			stats := pr.PoolStats()
			resp.Pool = &stats
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Ping is a dependency-free liveness probe.
// GET /api/v1/ping
func (h *HealthHandler) Ping(c *gin.Context) {
	h.Success(c, gin.H{
		"message":   "pong",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
