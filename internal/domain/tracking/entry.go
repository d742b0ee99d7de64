// Package tracking holds the append-only tracking history journal shared by
// return orders and forward shipments. It knows nothing about the lifecycle of
// the subject it records; the subject's own status column stays authoritative.
package tracking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marketplace/returns/internal/domain/shared"
)

// SubjectType names the kind of record a journal belongs to
type SubjectType string

const (
	SubjectReturnOrder SubjectType = "return_order"
	SubjectShipment    SubjectType = "shipment"
)

// ActorType attributes an entry to whoever caused the status change
type ActorType string

const (
	ActorVendor         ActorType = "vendor"
	ActorAdmin          ActorType = "admin"
	ActorSystem         ActorType = "system"
	ActorCourierWebhook ActorType = "courier_webhook"
)

// IsValid reports whether the actor type is known
func (t ActorType) IsValid() bool {
	switch t {
	case ActorVendor, ActorAdmin, ActorSystem, ActorCourierWebhook:
		return true
	}
	return false
}

// Actor identifies who performed an operation
type Actor struct {
	Type ActorType
	ID   string
}

// SystemActor is used for transitions driven by background jobs
func SystemActor(component string) Actor {
	return Actor{Type: ActorSystem, ID: component}
}

// Validate checks the actor attribution
func (a Actor) Validate() error {
	if !a.Type.IsValid() {
		return shared.NewValidationError("INVALID_ACTOR", "Unknown actor type: "+string(a.Type))
	}
	if strings.TrimSpace(a.ID) == "" {
		return shared.NewValidationError("INVALID_ACTOR", "Actor id is required")
	}
	return nil
}

// Entry is one immutable line of a tracking journal
type Entry struct {
	ID            uuid.UUID
	SubjectType   SubjectType
	SubjectID     uuid.UUID
	Status        string
	Description   string
	Location      string
	UpdatedByType ActorType
	UpdatedByID   string
	ScannedAt     time.Time
}

// NewEntry builds a journal entry stamped at the given time
func NewEntry(subjectType SubjectType, subjectID uuid.UUID, status, description, location string, actor Actor, at time.Time) (*Entry, error) {
	if subjectID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_TRACKING_ENTRY", "Tracking subject id is required")
	}
	if strings.TrimSpace(status) == "" {
		return nil, shared.NewValidationError("INVALID_TRACKING_ENTRY", "Tracking status is required")
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	return &Entry{
		ID:            uuid.New(),
		SubjectType:   subjectType,
		SubjectID:     subjectID,
		Status:        status,
		Description:   strings.TrimSpace(description),
		Location:      strings.TrimSpace(location),
		UpdatedByType: actor.Type,
		UpdatedByID:   actor.ID,
		ScannedAt:     at,
	}, nil
}

// HasLocation reports whether the entry carries a location
func (e *Entry) HasLocation() bool {
	return e.Location != ""
}

// Repository persists tracking journals. Entries are never updated or deleted.
type Repository interface {
	// Append inserts an entry. ScannedAt is raised to the subject's latest
	// ScannedAt when the clock went backwards, so list order equals append order.
	Append(ctx context.Context, entry *Entry) error

	// List returns all entries of a subject in chronological order
	List(ctx context.Context, subjectType SubjectType, subjectID uuid.UUID) ([]Entry, error)

	// Count returns the number of entries recorded for a subject
	Count(ctx context.Context, subjectType SubjectType, subjectID uuid.UUID) (int64, error)
}
