package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/marketplace/returns/internal/domain/tracking"
)

// TrackingHistoryModel is one insert-only journal row
type TrackingHistoryModel struct {
	ID            uuid.UUID            `gorm:"type:uuid;primaryKey"`
	SubjectType   tracking.SubjectType `gorm:"type:varchar(20);not null;uniqueIndex:idx_tracking_subject_seq,priority:1"`
	SubjectID     uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_tracking_subject_seq,priority:2"`
	Status        string               `gorm:"type:varchar(30);not null"`
	Description   string               `gorm:"type:text"`
	Location      string               `gorm:"type:varchar(255)"`
	UpdatedByType tracking.ActorType   `gorm:"type:varchar(20);not null"`
	UpdatedByID   string               `gorm:"type:varchar(64);not null"`
	ScannedAt     time.Time            `gorm:"not null"`
	// Seq orders entries of one subject; it follows append order
	Seq int64 `gorm:"not null;uniqueIndex:idx_tracking_subject_seq,priority:3"`
}

// TableName returns the table name for GORM
func (TrackingHistoryModel) TableName() string {
	return "tracking_history"
}

// ToDomain converts the row to a domain entry
func (m *TrackingHistoryModel) ToDomain() tracking.Entry {
	return tracking.Entry{
		ID:            m.ID,
		SubjectType:   m.SubjectType,
		SubjectID:     m.SubjectID,
		Status:        m.Status,
		Description:   m.Description,
		Location:      m.Location,
		UpdatedByType: m.UpdatedByType,
		UpdatedByID:   m.UpdatedByID,
		ScannedAt:     m.ScannedAt,
	}
}

// TrackingHistoryModelFromDomain creates a row from a domain entry
func TrackingHistoryModelFromDomain(e *tracking.Entry) *TrackingHistoryModel {
	return &TrackingHistoryModel{
		ID:            e.ID,
		SubjectType:   e.SubjectType,
		SubjectID:     e.SubjectID,
		Status:        e.Status,
		Description:   e.Description,
		Location:      e.Location,
		UpdatedByType: e.UpdatedByType,
		UpdatedByID:   e.UpdatedByID,
		ScannedAt:     e.ScannedAt,
	}
}
