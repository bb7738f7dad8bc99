package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agricoop/internal/tenancy"
	"gorm.io/gorm"
)

// ErrOwnerReassigned is returned when code tries to move an entity to another
// organization outside the administrative merge path.
var ErrOwnerReassigned = errors.New("tenant-scoped entity cannot change organization")

// Base model with UUID primary key and timestamps, used by registry records.
type Base struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// TenantScoped is embedded by every entity owned by exactly one organization.
// Rows are hard-deleted so a freed business key can be reused.
type TenantScoped struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newTenantScoped(owner tenancy.Owner) TenantScoped {
	return TenantScoped{ID: uuid.New(), OrganizationID: owner.ID()}
}

func (s *TenantScoped) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Owner returns the owning organization id (uuid.Nil when unset).
func (s *TenantScoped) Owner() uuid.UUID { return s.OrganizationID }

// PrimaryKey returns the row id.
func (s *TenantScoped) PrimaryKey() uuid.UUID { return s.ID }

// StampOwner sets the owner once. Stamping the same owner again is a no-op.
func (s *TenantScoped) StampOwner(orgID uuid.UUID) error {
	if orgID == uuid.Nil {
		return tenancy.ErrOrphanWrite
	}
	if s.OrganizationID != uuid.Nil && s.OrganizationID != orgID {
		return ErrOwnerReassigned
	}
	s.OrganizationID = orgID
	return nil
}

// TenantOwned is satisfied by pointers to structs embedding TenantScoped.
type TenantOwned interface {
	Owner() uuid.UUID
	PrimaryKey() uuid.UUID
	StampOwner(orgID uuid.UUID) error
	TableName() string
}
