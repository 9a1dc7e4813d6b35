package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WireOp is one queued operation as carried over the sync wire.
type WireOp struct {
	ID          uuid.UUID       `json:"id"`
	OpType      string          `json:"op_type"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	PayloadJSON json.RawMessage `json:"payload_json"`
}

// PushOpsRequest is the batch a device delivers to POST /sync/push_ops.
type PushOpsRequest struct {
	DeviceID string   `json:"deviceId" validate:"required"`
	Ops      []WireOp `json:"ops" validate:"required,min=1,dive"`
}

// OpAck is the server's per-operation delivery verdict.
type OpAck struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// PushOpsResponse acknowledges a pushed batch keyed by operation id.
type PushOpsResponse struct {
	Acks []OpAck `json:"acks"`
}

// ProductRef is one catalog row as exchanged by pull_refs and bootstrap.
type ProductRef struct {
	ID        uuid.UUID       `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int             `json:"stock"`
	Deleted   bool            `json:"deleted"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PullRefsResponse carries reference-table deltas since the requested
// watermark.
type PullRefsResponse struct {
	Products []ProductRef `json:"products"`
	ServerAt time.Time    `json:"server_at"`
}

// BootstrapNeededResponse answers the cold-start negotiation.
type BootstrapNeededResponse struct {
	Needed bool `json:"needed"`
}

// BootstrapRequest uploads a terminal's full reference set to seed an empty
// tenant.
type BootstrapRequest struct {
	Products []ProductRef `json:"products" validate:"required,min=1,dive"`
}

// BootstrapResponse reports how many products were seeded.
type BootstrapResponse struct {
	Seeded int `json:"seeded"`
}
