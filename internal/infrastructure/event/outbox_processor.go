package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/infrastructure/config"
)

// OutboxProcessorConfig tunes the delivery and purge loops
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig polls every 5s and keeps sent entries for a week
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxProcessorConfigFrom maps the event section of the service config,
// keeping defaults for unset values
func OutboxProcessorConfigFrom(cfg config.EventConfig) OutboxProcessorConfig {
	out := DefaultOutboxProcessorConfig()
	if cfg.BatchSize > 0 {
		out.BatchSize = cfg.BatchSize
	}
	if cfg.PollInterval > 0 {
		out.PollInterval = cfg.PollInterval
	}
	out.CleanupEnabled = cfg.CleanupEnabled
	if cfg.CleanupRetention > 0 {
		out.CleanupRetention = cfg.CleanupRetention
	}
	return out
}

// BatchStats summarizes one delivery pass
type BatchStats struct {
	Sent   int
	Failed int
	Dead   int
}

func (s BatchStats) empty() bool {
	return s.Sent == 0 && s.Failed == 0 && s.Dead == 0
}

// OutboxProcessor hands committed outbox entries to the event bus. Delivery
// is at least once; subscribers deduplicate by event id.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	eventBus   shared.EventBus
	serializer *EventSerializer
	config     OutboxProcessorConfig
	logger     *zap.Logger
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	eventBus shared.EventBus,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		repo:       repo,
		eventBus:   eventBus,
		serializer: serializer,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Start launches the delivery loop and, when enabled, the purge loop
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	p.runEvery(ctx, p.config.PollInterval, func(ctx context.Context) {
		p.ProcessBatch(ctx)
	})
	if p.config.CleanupEnabled {
		p.runEvery(ctx, p.config.CleanupInterval, p.cleanup)
	}

	p.logger.Info("Outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Bool("cleanup", p.config.CleanupEnabled),
	)
	return nil
}

// Stop cancels the loops and waits for the in-flight pass, bounded by ctx
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) runEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// ProcessBatch delivers the oldest pending entries, then the failed ones whose
// backoff has elapsed
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) BatchStats {
	var stats BatchStats

	pending, err := p.repo.FindPending(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.Error("Failed to load pending outbox entries", zap.Error(err))
		return stats
	}
	p.deliverAll(ctx, pending, &stats)

	due, err := p.repo.FindRetryable(ctx, p.now(), p.config.BatchSize)
	if err != nil {
		p.logger.Error("Failed to load retryable outbox entries", zap.Error(err))
		return stats
	}
	p.deliverAll(ctx, due, &stats)

	if !stats.empty() {
		p.logger.Debug("Outbox batch processed",
			zap.Int("sent", stats.Sent),
			zap.Int("failed", stats.Failed),
			zap.Int("dead", stats.Dead),
		)
	}
	return stats
}

// deliverAll claims entries first; entries another processor claimed are skipped
func (p *OutboxProcessor) deliverAll(ctx context.Context, entries []*shared.OutboxEntry, stats *BatchStats) {
	if len(entries) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("Failed to claim outbox entries", zap.Error(err))
		return
	}
	for _, entry := range claimed {
		p.deliver(ctx, entry, stats)
	}
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry, stats *BatchStats) {
	fields := []zap.Field{
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("aggregate_id", entry.AggregateID.String()),
	}

	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = p.eventBus.Publish(ctx, event)
	}
	if err != nil {
		entry.MarkFailed(err.Error())
		if entry.IsDead() {
			stats.Dead++
			p.logger.Warn("Outbox entry moved to dead letter",
				append(fields,
					zap.String("vendor_id", entry.VendorID.String()),
					zap.Int("retry_count", entry.RetryCount),
					zap.Error(err),
				)...)
		} else {
			stats.Failed++
			p.logger.Error("Outbox delivery failed",
				append(fields, zap.Int("retry_count", entry.RetryCount), zap.Error(err))...)
		}
	} else {
		entry.MarkSent()
		stats.Sent++
	}

	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("Failed to record outbox delivery outcome",
			append(fields, zap.String("status", string(entry.Status)), zap.Error(err))...)
	}
}

// cleanup purges sent entries older than the retention window
func (p *OutboxProcessor) cleanup(ctx context.Context) {
	cutoff := p.now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("Failed to purge sent outbox entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("Purged sent outbox entries",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
