// Package outbox exposes operator actions over undeliverable return notifications
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// DeliveryService lists and requeues outbox entries whose notification
// delivery exhausted its retries
type DeliveryService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

// NewDeliveryService creates a new DeliveryService
func NewDeliveryService(repo shared.OutboxRepository, logger *zap.Logger) *DeliveryService {
	return &DeliveryService{repo: repo, logger: logger}
}

// EntryResponse is one outbox entry without its payload
type EntryResponse struct {
	ID            uuid.UUID  `json:"id"`
	VendorID      uuid.UUID  `json:"vendor_id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DeadLetterFilter pages the dead letter listing
type DeadLetterFilter struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Paging returns the effective page and page size
func (f DeadLetterFilter) Paging() (page, pageSize int) {
	page, pageSize = f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// StatsResponse counts outbox entries per delivery status
type StatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// RetryAllResponse reports how many dead letters were requeued
type RetryAllResponse struct {
	Requeued int64 `json:"requeued"`
}

// ListDeadLetters returns a page of dead letter entries, most recently failed first
func (s *DeliveryService) ListDeadLetters(ctx context.Context, filter DeadLetterFilter) ([]EntryResponse, int64, error) {
	page, pageSize := filter.Paging()
	entries, total, err := s.repo.FindDead(ctx, page, pageSize)
	if err != nil {
		s.logger.Error("Failed to find dead letter entries", zap.Error(err))
		return nil, 0, shared.NewPersistenceError("list dead letter entries", err)
	}

	out := make([]EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = toEntryResponse(e)
	}
	return out, total, nil
}

// GetEntry returns a single outbox entry
func (s *DeliveryService) GetEntry(ctx context.Context, id uuid.UUID) (*EntryResponse, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toEntryResponse(entry)
	return &resp, nil
}

// Retry requeues one dead letter entry for the outbox processor
func (s *DeliveryService) Retry(ctx context.Context, id uuid.UUID) (*EntryResponse, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.ResetForRetry(); err != nil {
		return nil, shared.NewInvalidTransitionError("Only dead letter entries can be retried")
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		s.logger.Error("Failed to requeue outbox entry", zap.Error(err), zap.String("id", id.String()))
		return nil, shared.NewPersistenceError("requeue outbox entry", err)
	}

	s.logger.Info("Dead letter entry requeued",
		zap.String("id", id.String()),
		zap.String("event_type", entry.EventType),
	)
	resp := toEntryResponse(entry)
	return &resp, nil
}

// RetryAll requeues every dead letter entry. Entries that fail to update are
// logged and skipped.
func (s *DeliveryService) RetryAll(ctx context.Context) (*RetryAllResponse, error) {
	var requeued int64
	for {
		// requeued entries leave the dead set, so the first page is always the next batch
		entries, _, err := s.repo.FindDead(ctx, 1, maxPageSize)
		if err != nil {
			s.logger.Error("Failed to find dead letter entries", zap.Error(err))
			return nil, shared.NewPersistenceError("list dead letter entries", err)
		}

		progressed := false
		for _, entry := range entries {
			if err := entry.ResetForRetry(); err != nil {
				continue
			}
			if err := s.repo.Update(ctx, entry); err != nil {
				s.logger.Error("Failed to requeue outbox entry", zap.Error(err), zap.String("id", entry.ID.String()))
				continue
			}
			requeued++
			progressed = true
		}
		if len(entries) < maxPageSize || !progressed {
			break
		}
	}

	s.logger.Info("Dead letter entries requeued", zap.Int64("count", requeued))
	return &RetryAllResponse{Requeued: requeued}, nil
}

// Stats counts entries per delivery status
func (s *DeliveryService) Stats(ctx context.Context) (*StatsResponse, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("Failed to count outbox entries", zap.Error(err))
		return nil, shared.NewPersistenceError("count outbox entries", err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	return &StatsResponse{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
		Total:      total,
	}, nil
}

func (s *DeliveryService) find(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return nil, err
		}
		s.logger.Error("Failed to find outbox entry", zap.Error(err), zap.String("id", id.String()))
		return nil, shared.NewPersistenceError("find outbox entry", err)
	}
	if entry == nil {
		return nil, shared.NewNotFoundError("Outbox entry")
	}
	return entry, nil
}

func toEntryResponse(e *shared.OutboxEntry) EntryResponse {
	return EntryResponse{
		ID:            e.ID,
		VendorID:      e.VendorID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
