package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bibo40140/caisse-backend/pkg/enums"
)

// AppliedOp is the server-side dedupe record for delivered operations.
// Its primary key is the client-generated operation id, which makes
// at-least-once delivery idempotent: a second insert conflicts and the
// effects are skipped.
type AppliedOp struct {
	ID        uuid.UUID    `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID    `gorm:"column:tenant_id;type:uuid;not null;index"`
	DeviceID  string       `gorm:"column:device_id;not null"`
	OpType    enums.OpType `gorm:"column:op_type;not null"`
	AppliedAt time.Time    `gorm:"column:applied_at;autoCreateTime"`
}

func (AppliedOp) TableName() string { return "applied_ops" }
