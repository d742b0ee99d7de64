package returns

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/tracking"
)

// ReturnQueryService serves the read side of return orders
type ReturnQueryService struct {
	repo       returns.ReturnOrderRepository
	trackings  tracking.Repository
	statsCache StatisticsCache
	logger     *zap.Logger
}

// NewReturnQueryService creates a new ReturnQueryService
func NewReturnQueryService(repo returns.ReturnOrderRepository, trackings tracking.Repository, logger *zap.Logger) *ReturnQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReturnQueryService{
		repo:      repo,
		trackings: trackings,
		logger:    logger,
	}
}

// SetStatisticsCache sets the per-vendor statistics cache
func (s *ReturnQueryService) SetStatisticsCache(c StatisticsCache) {
	s.statsCache = c
}

// GetByID retrieves a vendor's return order
func (s *ReturnQueryService) GetByID(ctx context.Context, vendorID, returnID uuid.UUID) (*ReturnOrderResponse, error) {
	order, err := s.repo.FindByIDForVendor(ctx, vendorID, returnID)
	if err != nil {
		return nil, err
	}
	resp := ToReturnOrderResponse(order)
	return &resp, nil
}

// List retrieves a page of the vendor's returns and the total match count
func (s *ReturnQueryService) List(ctx context.Context, vendorID uuid.UUID, filter ReturnListFilter) ([]ReturnListItemResponse, int64, error) {
	domainFilter, err := filter.toDomain()
	if err != nil {
		return nil, 0, err
	}

	orders, err := s.repo.FindAllForVendor(ctx, vendorID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountForVendor(ctx, vendorID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToReturnListItemResponses(orders), total, nil
}

// Timeline returns the tracking history of a vendor's return
func (s *ReturnQueryService) Timeline(ctx context.Context, vendorID, returnID uuid.UUID) (*TimelineResponse, error) {
	order, err := s.repo.FindByIDForVendor(ctx, vendorID, returnID)
	if err != nil {
		return nil, err
	}
	entries, err := s.trackings.List(ctx, tracking.SubjectReturnOrder, order.ID)
	if err != nil {
		return nil, err
	}
	return toTimelineResponse(order, entries), nil
}

// Statistics returns the vendor's return dashboard
func (s *ReturnQueryService) Statistics(ctx context.Context, vendorID uuid.UUID) (*StatisticsResponse, error) {
	var generation uint64
	if s.statsCache != nil {
		if stats, ok := s.statsCache.Get(vendorID); ok {
			return toStatisticsResponse(stats), nil
		}
		generation = s.statsCache.Generation(vendorID)
	}

	stats, err := s.repo.Statistics(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if s.statsCache != nil && !s.statsCache.Set(vendorID, generation, stats) {
		s.logger.Debug("return statistics not cached, vendor invalidated meanwhile",
			zap.String("vendor_id", vendorID.String()))
	}
	s.logger.Debug("return statistics computed",
		zap.String("vendor_id", vendorID.String()),
		zap.Int64("total", stats.Total),
	)
	return toStatisticsResponse(stats), nil
}
