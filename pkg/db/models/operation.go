package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bibo40140/caisse-backend/pkg/enums"
)

// Operation is a durable record of a local mutation awaiting server delivery.
// The id doubles as the idempotency key; rows are never deleted.
type Operation struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null;index"`
	DeviceID   string           `gorm:"column:device_id;not null;index:idx_ops_queue_device_pending"`
	OpType     enums.OpType     `gorm:"column:op_type;not null"`
	EntityType enums.EntityType `gorm:"column:entity_type;not null"`
	EntityID   string           `gorm:"column:entity_id"`
	Payload    json.RawMessage  `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	SentAt     *time.Time       `gorm:"column:sent_at"`
	Ack        bool             `gorm:"column:ack;not null;default:false;index:idx_ops_queue_device_pending"`
	RetryCount int              `gorm:"column:retry_count;not null;default:0"`
	LastError  *string          `gorm:"column:last_error"`
}

func (Operation) TableName() string { return "ops_queue" }
