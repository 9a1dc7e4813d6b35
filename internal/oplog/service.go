package oplog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bibo40140/caisse-backend/internal/oplog/payloads"
	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
	"github.com/bibo40140/caisse-backend/pkg/logger"
)

// EnqueueInput captures one local mutation to record for later delivery.
type EnqueueInput struct {
	TenantID   uuid.UUID
	DeviceID   string
	EntityType enums.EntityType
	EntityID   string
	Payload    payloads.Payload
}

// Service appends operations to the durable queue.
type Service interface {
	Enqueue(ctx context.Context, tx *gorm.DB, input EnqueueInput) (*models.Operation, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires an op-log service with the provided repository.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("oplog repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// kindOf maps each payload type to its wire op type.
func kindOf(p payloads.Payload) (enums.OpType, error) {
	switch p.(type) {
	case payloads.ProductCreate:
		return enums.OpTypeProductCreate, nil
	case payloads.ProductUpdate:
		return enums.OpTypeProductUpdate, nil
	case payloads.SaleRecord:
		return enums.OpTypeSaleRecord, nil
	case payloads.StockReceive:
		return enums.OpTypeStockReceive, nil
	case payloads.StockCorrect:
		return enums.OpTypeStockCorrect, nil
	default:
		return "", fmt.Errorf("unsupported payload type %T", p)
	}
}

func (s *service) Enqueue(ctx context.Context, tx *gorm.DB, input EnqueueInput) (*models.Operation, error) {
	if input.TenantID == uuid.Nil {
		return nil, fmt.Errorf("tenant id is required")
	}
	if input.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if !input.EntityType.IsValid() {
		return nil, fmt.Errorf("invalid entity type %q", input.EntityType)
	}
	if input.Payload == nil {
		return nil, fmt.Errorf("payload is required")
	}
	if err := input.Payload.Validate(); err != nil {
		return nil, err
	}

	opType, err := kindOf(input.Payload)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(input.Payload)
	if err != nil {
		return nil, err
	}

	op := &models.Operation{
		ID:         uuid.New(),
		TenantID:   input.TenantID,
		DeviceID:   input.DeviceID,
		OpType:     opType,
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Payload:    json.RawMessage(raw),
	}

	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	if err := repo.Insert(ctx, op); err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{
			"op_id":     op.ID.String(),
			"op_type":   op.OpType,
			"entity_id": op.EntityID,
		}
		logCtx := s.logg.WithFields(ctx, fields)
		s.logg.Info(logCtx, "operation queued")
	}
	return op, nil
}
