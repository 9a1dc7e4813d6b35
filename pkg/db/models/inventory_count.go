package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryCount holds one device's accumulated count for a product within a
// session. The (session, product, device) key means concurrent terminals
// never contend on the same row.
type InventoryCount struct {
	SessionID uuid.UUID `gorm:"column:session_id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	DeviceID  string    `gorm:"column:device_id;primaryKey"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index"`
	Qty       int       `gorm:"column:qty;not null;default:0"`
	CountedBy *string   `gorm:"column:counted_by"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryCount) TableName() string { return "inventory_counts" }
