package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryAdjust is the write-once audit record produced at finalize for
// every product that was counted or carried a nonzero baseline.
type InventoryAdjust struct {
	SessionID    uuid.UUID       `gorm:"column:session_id;type:uuid;primaryKey"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;primaryKey"`
	TenantID     uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	StockStart   int             `gorm:"column:stock_start;not null"`
	CountedTotal int             `gorm:"column:counted_total;not null"`
	Delta        int             `gorm:"column:delta;not null"`
	UnitCost     decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,2);not null"`
	DeltaValue   decimal.Decimal `gorm:"column:delta_value;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (InventoryAdjust) TableName() string { return "inventory_adjust" }
