package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/marketplace/returns/internal/domain/shared"
)

// BaseModel provides common persistence fields and maps to shared.BaseEntity
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// VendorModel adds the owning vendor to BaseModel
type VendorModel struct {
	BaseModel
	VendorID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// FromDomainVendorAggregateRoot populates VendorModel from a vendor-scoped aggregate
func (m *VendorModel) FromDomainVendorAggregateRoot(a shared.VendorAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.VendorID = a.VendorID
}

// ToDomainVendorAggregateRoot rebuilds the aggregate root part of a vendor-scoped aggregate
func (m *VendorModel) ToDomainVendorAggregateRoot() shared.VendorAggregateRoot {
	return shared.VendorAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{BaseEntity: m.BaseModel.ToDomain()},
		VendorID:          m.VendorID,
	}
}
