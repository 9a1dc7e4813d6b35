package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventorySnapshot is the per-product baseline counts are compared against.
// Rows are written at session start, or backfilled at finalize for products
// that appeared after the session opened.
type InventorySnapshot struct {
	SessionID  uuid.UUID       `gorm:"column:session_id;type:uuid;primaryKey"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;primaryKey"`
	TenantID   uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	StockStart int             `gorm:"column:stock_start;not null"`
	UnitCost   decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,2);not null"`
}

func (InventorySnapshot) TableName() string { return "inventory_snapshot" }
