package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/marketplace/returns/internal/infrastructure/config"
)

// DBMetricsConfig holds configuration for database metrics collection.
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration // default 200ms
}

// DBMetricsConfigFrom enables database metrics whenever metric export is on
func DBMetricsConfigFrom(cfg config.TelemetryConfig) DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            cfg.Enabled && cfg.MetricsEnabled,
		SlowQueryThreshold: 200 * time.Millisecond,
	}
}

var dbDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// DBMetrics records connection pool gauges and per-statement query metrics.
type DBMetrics struct {
	poolConnections    metric.Int64ObservableGauge
	poolConnectionsMax metric.Int64ObservableGauge
	poolWaitCount      metric.Int64ObservableCounter

	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter

	slowThreshold time.Duration
	registration  metric.Registration
	stopOnce      sync.Once
	logger        *zap.Logger
}

// NewDBMetrics registers the database instruments on meter. Pool gauges are
// observed from sqlDB on every collection, so no polling goroutine runs.
func NewDBMetrics(meter metric.Meter, sqlDB *sql.DB, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}

	m := &DBMetrics{slowThreshold: cfg.SlowQueryThreshold, logger: logger}
	var err error

	m.poolConnections, err = meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Number of connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	m.poolConnectionsMax, err = meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum number of open connections allowed"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	m.poolWaitCount, err = meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Total number of connections waited for"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return nil, err
	}

	if m.queryTotal, err = NewCounter(meter, "db_query_total",
		"Total number of database queries by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency in seconds",
		Unit:        "s",
		Buckets:     dbDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.slowQueryTotal, err = NewCounter(meter, "db_slow_query_total",
		"Total number of queries slower than the threshold by table", "{query}"); err != nil {
		return nil, err
	}

	if sqlDB != nil {
		m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			stats := sqlDB.Stats()
			o.ObserveInt64(m.poolConnectionsMax, int64(stats.MaxOpenConnections))
			o.ObserveInt64(m.poolConnections, int64(stats.Idle), metric.WithAttributes(attribute.String("state", "idle")))
			o.ObserveInt64(m.poolConnections, int64(stats.InUse), metric.WithAttributes(attribute.String("state", "in_use")))
			o.ObserveInt64(m.poolConnections, int64(stats.OpenConnections), metric.WithAttributes(attribute.String("state", "open")))
			o.ObserveInt64(m.poolWaitCount, stats.WaitCount)
			return nil
		}, m.poolConnections, m.poolConnectionsMax, m.poolWaitCount)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordQuery counts one statement and flags it as slow past the threshold
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}
	m.queryTotal.Inc(ctx, attribute.String("db.operation", operation))
	m.queryDuration.RecordDuration(ctx, duration, attribute.String("db.operation", operation))

	if duration > m.slowThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, attribute.String("db.table", table))
	}
}

// Stop unregisters the pool callback. Safe to call more than once.
func (m *DBMetrics) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		if m.registration == nil {
			return
		}
		if err := m.registration.Unregister(); err != nil {
			m.logger.Warn("Failed to unregister pool metrics", zap.Error(err))
		}
	})
}

type dbMetricsContextKey struct{}

// DBMetricsPlugin is a gorm plugin feeding DBMetrics from statement callbacks
type DBMetricsPlugin struct {
	metrics *DBMetrics
}

// NewDBMetricsPlugin wraps metrics as a gorm plugin
func NewDBMetricsPlugin(metrics *DBMetrics) *DBMetricsPlugin {
	return &DBMetricsPlugin{metrics: metrics}
}

// Name implements gorm.Plugin
func (p *DBMetricsPlugin) Name() string {
	return "returns:db_metrics"
}

// Initialize implements gorm.Plugin
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	before := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, dbMetricsContextKey{}, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) { p.record(db, operation) }
	}
	raw := func(db *gorm.DB) { p.record(db, detectOperationType(db.Statement.SQL.String())) }

	cb := db.Callback()
	for _, err := range []error{
		cb.Create().Before("gorm:create").Register("db_metrics:before_create", before),
		cb.Query().Before("gorm:query").Register("db_metrics:before_query", before),
		cb.Update().Before("gorm:update").Register("db_metrics:before_update", before),
		cb.Delete().Before("gorm:delete").Register("db_metrics:before_delete", before),
		cb.Row().Before("gorm:row").Register("db_metrics:before_row", before),
		cb.Raw().Before("gorm:raw").Register("db_metrics:before_raw", before),
		cb.Create().After("gorm:create").Register("db_metrics:after_create", after("INSERT")),
		cb.Query().After("gorm:query").Register("db_metrics:after_query", after("SELECT")),
		cb.Update().After("gorm:update").Register("db_metrics:after_update", after("UPDATE")),
		cb.Delete().After("gorm:delete").Register("db_metrics:after_delete", after("DELETE")),
		cb.Row().After("gorm:row").Register("db_metrics:after_row", raw),
		cb.Raw().After("gorm:raw").Register("db_metrics:after_raw", raw),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *DBMetricsPlugin) record(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(dbMetricsContextKey{}).(time.Time)
	if !ok {
		return
	}
	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, time.Since(start))
}

func detectOperationType(query string) string {
	query = strings.ToUpper(strings.TrimSpace(query))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(query, op) {
			return op
		}
	}
	return "OTHER"
}

// RegisterDBMetrics installs pool gauges and the query plugin on db. It
// returns nil when metrics are disabled; Stop on a nil *DBMetrics is a no-op.
func RegisterDBMetrics(db *gorm.DB, mp *MeterProvider, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled || mp == nil || !mp.IsEnabled() {
		logger.Debug("Database metrics disabled, skipping registration")
		return nil, nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	metrics, err := NewDBMetrics(mp.Meter("db.client"), sqlDB, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Use(NewDBMetricsPlugin(metrics)); err != nil {
		metrics.Stop()
		return nil, err
	}

	logger.Info("Database metrics registered",
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return metrics, nil
}
