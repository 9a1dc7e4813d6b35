package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bibo40140/caisse-backend/internal/catalog"
	"github.com/bibo40140/caisse-backend/internal/ledger"
	"github.com/bibo40140/caisse-backend/internal/oplog"
	"github.com/bibo40140/caisse-backend/internal/oplog/payloads"
	dbpkg "github.com/bibo40140/caisse-backend/pkg/db"
	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
	"github.com/bibo40140/caisse-backend/pkg/logger"
)

// AckStatus is the per-operation outcome reported back to the pushing device.
type AckStatus string

const (
	AckApplied   AckStatus = "applied"
	AckDuplicate AckStatus = "duplicate"
	AckRejected  AckStatus = "rejected"
)

// Ack is one operation's delivery result. Applied and duplicate both count
/// as server-accepted: the device may mark the op acked either way.
type Ack struct {
	ID     uuid.UUID
	Status AckStatus
	Error  string
}

// Accepted reports whether the device should stop resending this op.
func (a Ack) Accepted() bool {
	return a.Status == AckApplied || a.Status == AckDuplicate
}

// Service applies device-pushed operations to the server-side tenant state.
type Service interface {
	ApplyOps(ctx context.Context, tenantID uuid.UUID, deviceID string, ops []models.Operation) ([]Ack, error)
	PullRefs(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]models.Product, error)
	BootstrapNeeded(ctx context.Context, tenantID uuid.UUID) (bool, error)
	Bootstrap(ctx context.Context, tenantID uuid.UUID, products []models.Product) (int, error)
}

type service struct {
	db      *gorm.DB
	catalog catalog.Repository
	ledger  ledger.Service
	logg    *logger.Logger
}

// NewService wires the server-side ingest service.
func NewService(db *gorm.DB, cat catalog.Repository, led ledger.Service, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if led == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{db: db, catalog: cat, ledger: led, logg: logg}, nil
}

// ApplyOps applies a batch in arrival order, one transaction per op. The
// applied_ops insert shares that transaction, so an op's effects and its
// dedupe record commit or roll back together.
func (s *service) ApplyOps(ctx context.Context, tenantID uuid.UUID, deviceID string, ops []models.Operation) ([]Ack, error) {
	if tenantID == uuid.Nil {
		return nil, fmt.Errorf("tenant id is required")
	}
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}

	acks := make([]Ack, 0, len(ops))
	for _, op := range ops {
		acks = append(acks, s.applyOne(ctx, tenantID, deviceID, op))
	}
	return acks, nil
}

func (s *service) applyOne(ctx context.Context, tenantID uuid.UUID, deviceID string, op models.Operation) Ack {
	if op.ID == uuid.Nil {
		return Ack{ID: op.ID, Status: AckRejected, Error: "missing op id"}
	}

	payload, err := oplog.Decode(op)
	if err != nil {
		return Ack{ID: op.ID, Status: AckRejected, Error: err.Error()}
	}

	var duplicate bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := models.AppliedOp{
			ID:       op.ID,
			TenantID: tenantID,
			DeviceID: deviceID,
			OpType:   op.OpType,
		}
		if err := tx.Create(&record).Error; err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				duplicate = true
				return nil
			}
			return err
		}
		return s.dispatch(ctx, tx, tenantID, payload)
	})
	if err != nil {
		if s.logg != nil {
			fields := map[string]any{"op_id": op.ID.String(), "op_type": op.OpType}
			logCtx := s.logg.WithFields(ctx, fields)
			s.logg.Error(logCtx, "applying operation failed", err)
		}
		return Ack{ID: op.ID, Status: AckRejected, Error: err.Error()}
	}
	if duplicate {
		return Ack{ID: op.ID, Status: AckDuplicate}
	}
	return Ack{ID: op.ID, Status: AckApplied}
}

func (s *service) dispatch(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, payload payloads.Payload) error {
	switch p := payload.(type) {
	case payloads.ProductCreate:
		return s.applyProductCreate(ctx, tx, tenantID, p)
	case payloads.ProductUpdate:
		return s.applyProductUpdate(ctx, tx, tenantID, p)
	case payloads.SaleRecord:
		return s.applySaleRecord(ctx, tx, tenantID, p)
	case payloads.StockReceive:
		ref := p.ReceptionID.String()
		_, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
			TenantID:  tenantID,
			ProductID: p.ProductID,
			Delta:     p.Qty,
			Reason:    enums.MovementReasonReception,
			SourceID:  &ref,
		})
		return err
	case payloads.StockCorrect:
		_, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
			TenantID:  tenantID,
			ProductID: p.ProductID,
			Delta:     p.Delta,
			Reason:    enums.MovementReasonCorrection,
		})
		return err
	default:
		return fmt.Errorf("unsupported payload type %T", payload)
	}
}

func (s *service) applyProductCreate(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, p payloads.ProductCreate) error {
	product := &models.Product{
		ID:        p.ProductID,
		TenantID:  tenantID,
		SKU:       p.SKU,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Stock:     p.Stock,
	}
	if err := s.catalog.WithTx(tx).UpsertBySKU(ctx, product); err != nil {
		return err
	}
	// The upsert may have kept an existing row's id.
	existing, err := s.catalog.WithTx(tx).GetBySKU(ctx, tenantID, p.SKU)
	if err != nil {
		return err
	}
	return s.ledger.EnsureInit(ctx, tx, tenantID, existing.ID, p.Stock)
}

func (s *service) applyProductUpdate(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, p payloads.ProductUpdate) error {
	product, err := s.catalog.WithTx(tx).GetByID(ctx, tenantID, p.ProductID)
	if err != nil {
		return err
	}
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.UnitPrice != nil {
		product.UnitPrice = *p.UnitPrice
	}
	if p.Deleted != nil {
		product.Deleted = *p.Deleted
	}
	return s.catalog.WithTx(tx).Update(ctx, product)
}

func (s *service) applySaleRecord(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, p payloads.SaleRecord) error {
	ref := p.SaleID.String()
	for _, line := range p.Lines {
		if _, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
			TenantID:  tenantID,
			ProductID: line.ProductID,
			Delta:     -line.Qty,
			Reason:    enums.MovementReasonSale,
			SourceID:  &ref,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) PullRefs(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]models.Product, error) {
	if tenantID == uuid.Nil {
		return nil, fmt.Errorf("tenant id is required")
	}
	return s.catalog.ChangedSince(ctx, tenantID, since)
}

func (s *service) BootstrapNeeded(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	if tenantID == uuid.Nil {
		return false, fmt.Errorf("tenant id is required")
	}
	n, err := s.catalog.CountByTenant(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Bootstrap seeds an empty tenant from a terminal's full reference set.
// Every product lands with exactly one init movement so the ledger-sum
// invariant holds from the first row.
func (s *service) Bootstrap(ctx context.Context, tenantID uuid.UUID, products []models.Product) (int, error) {
	if tenantID == uuid.Nil {
		return 0, fmt.Errorf("tenant id is required")
	}

	needed, err := s.BootstrapNeeded(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if !needed {
		return 0, fmt.Errorf("tenant already has catalog data")
	}

	seeded := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range products {
			product := products[i]
			product.TenantID = tenantID
			if product.ID == uuid.Nil {
				product.ID = uuid.New()
			}
			if err := s.catalog.WithTx(tx).UpsertBySKU(ctx, &product); err != nil {
				return err
			}
			existing, err := s.catalog.WithTx(tx).GetBySKU(ctx, tenantID, product.SKU)
			if err != nil {
				return err
			}
			if err := s.ledger.EnsureInit(ctx, tx, tenantID, existing.ID, product.Stock); err != nil {
				return err
			}
			seeded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if s.logg != nil {
		fields := map[string]any{"tenant_id": tenantID.String(), "products": seeded}
		logCtx := s.logg.WithFields(ctx, fields)
		s.logg.Info(logCtx, "tenant bootstrapped from terminal upload")
	}
	return seeded, nil
}
