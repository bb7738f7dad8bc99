package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is one committed write, recorded by the audit collaborator.
type AuditLog struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	Action         string    `gorm:"not null;index" json:"action"` // created, updated, deleted, reassigned
	Entity         string    `gorm:"not null" json:"entity"`
	EntityID       uuid.UUID `gorm:"type:uuid" json:"entity_id"`
	Actor          string    `json:"actor,omitempty"`
	OccurredAt     time.Time `gorm:"index" json:"occurred_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
