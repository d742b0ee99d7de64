package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/domain/tracking"
	"github.com/marketplace/returns/internal/infrastructure/persistence/models"
)

// GormTrackingRepository implements tracking.Repository using GORM
type GormTrackingRepository struct {
	db *gorm.DB
}

// NewGormTrackingRepository creates a new GORM-based tracking repository
func NewGormTrackingRepository(db *gorm.DB) *GormTrackingRepository {
	return &GormTrackingRepository{db: db}
}

// Append inserts an entry in its own transaction
func (r *GormTrackingRepository) Append(ctx context.Context, entry *tracking.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendTrackingEntry(tx, entry)
	})
}

// appendTrackingEntry writes one journal row using the caller's transaction.
// The row gets the next sequence number of its subject, and its ScannedAt is
// raised to the previous entry's when the clock went backwards.
func appendTrackingEntry(tx *gorm.DB, entry *tracking.Entry) error {
	var last []models.TrackingHistoryModel
	if err := tx.
		Where("subject_type = ? AND subject_id = ?", entry.SubjectType, entry.SubjectID).
		Order("seq DESC").
		Limit(1).
		Find(&last).Error; err != nil {
		return shared.NewPersistenceError("read tracking history", err)
	}

	row := models.TrackingHistoryModelFromDomain(entry)
	row.Seq = 1
	if len(last) > 0 {
		row.Seq = last[0].Seq + 1
		if row.ScannedAt.Before(last[0].ScannedAt) {
			row.ScannedAt = last[0].ScannedAt
			entry.ScannedAt = last[0].ScannedAt
		}
	}

	if err := tx.Create(row).Error; err != nil {
		return shared.NewPersistenceError("append tracking entry", err)
	}
	return nil
}

// List returns a subject's entries in append order
func (r *GormTrackingRepository) List(ctx context.Context, subjectType tracking.SubjectType, subjectID uuid.UUID) ([]tracking.Entry, error) {
	var rows []models.TrackingHistoryModel
	if err := r.db.WithContext(ctx).
		Where("subject_type = ? AND subject_id = ?", subjectType, subjectID).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, shared.NewPersistenceError("list tracking history", err)
	}

	entries := make([]tracking.Entry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

// Count returns the number of entries recorded for a subject
func (r *GormTrackingRepository) Count(ctx context.Context, subjectType tracking.SubjectType, subjectID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&models.TrackingHistoryModel{}).
		Where("subject_type = ? AND subject_id = ?", subjectType, subjectID).
		Count(&n).Error; err != nil {
		return 0, shared.NewPersistenceError("count tracking history", err)
	}
	return n, nil
}

var _ tracking.Repository = (*GormTrackingRepository)(nil)
