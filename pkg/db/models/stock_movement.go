package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bibo40140/caisse-backend/pkg/enums"
)

// StockMovement is one append-only signed quantity delta for a product.
// Summing all movements for a product yields its authoritative stock; the
// cached products.stock column is only ever written in the same transaction
// as the movement that explains it.
type StockMovement struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID            `gorm:"column:tenant_id;type:uuid;not null;index"`
	ProductID uuid.UUID            `gorm:"column:product_id;type:uuid;not null;index"`
	Delta     int                  `gorm:"column:delta;not null"`
	Reason    enums.MovementReason `gorm:"column:reason;not null"`
	SourceID  *string              `gorm:"column:source_id"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (StockMovement) TableName() string { return "stock_movements" }
