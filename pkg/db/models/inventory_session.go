package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bibo40140/caisse-backend/pkg/enums"
)

// InventorySession coordinates a multi-device counting round for a tenant.
// Status only moves forward: open -> finalizing -> closed.
type InventorySession struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name      string              `gorm:"column:name;not null"`
	Status    enums.SessionStatus `gorm:"column:status;not null;default:'open'"`
	StartedBy *string             `gorm:"column:started_by"`
	Notes     *string             `gorm:"column:notes"`
	StartedAt time.Time           `gorm:"column:started_at;autoCreateTime"`
	EndedAt   *time.Time          `gorm:"column:ended_at"`
}

func (InventorySession) TableName() string { return "inventory_sessions" }
