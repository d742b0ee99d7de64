package shared

import (
	"time"

	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot collects domain events raised while mutating an aggregate.
// Events are flushed to the outbox by the repository in the same transaction as the write.
type BaseAggregateRoot struct {
	BaseEntity
	domainEvents []DomainEvent
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// VendorAggregateRoot is an aggregate owned by exactly one marketplace vendor.
// Every read and write of such an aggregate is scoped by VendorID.
type VendorAggregateRoot struct {
	BaseAggregateRoot
	VendorID uuid.UUID
}

// NewVendorAggregateRoot creates a new vendor-scoped aggregate root
func NewVendorAggregateRoot(vendorID uuid.UUID, now time.Time) VendorAggregateRoot {
	return VendorAggregateRoot{
		BaseAggregateRoot: BaseAggregateRoot{BaseEntity: NewBaseEntity(now)},
		VendorID:          vendorID,
	}
}
