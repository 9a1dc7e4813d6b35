package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bibo40140/caisse-backend/internal/catalog"
	"github.com/bibo40140/caisse-backend/internal/ledger"
	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
	apperrors "github.com/bibo40140/caisse-backend/pkg/errors"
	"github.com/bibo40140/caisse-backend/pkg/logger"
)

// ErrSessionLocked is returned when finalize races another finalize or hits
// an already-closed session. Callers must re-query status, not retry.
var ErrSessionLocked = apperrors.New(apperrors.CodeConflict, "session_locked")

// Service drives the inventory counting state machine.
type Service interface {
	Start(ctx context.Context, input StartInput) (*models.InventorySession, bool, error)
	CountAdd(ctx context.Context, input CountAddInput) error
	Summary(ctx context.Context, tenantID, sessionID uuid.UUID) (*SummaryResult, error)
	Finalize(ctx context.Context, input FinalizeInput) (*Recap, error)
	List(ctx context.Context, tenantID uuid.UUID, status *enums.SessionStatus) ([]models.InventorySession, error)
}

// StartInput opens (or reuses) a counting session for a tenant.
type StartInput struct {
	TenantID uuid.UUID
	Name     string
	User     *string
	Notes    *string
}

// CountAddInput accumulates a scanned quantity onto a device's count row.
// Qty is an increment, never an absolute value.
type CountAddInput struct {
	TenantID  uuid.UUID
	SessionID uuid.UUID
	ProductID uuid.UUID
	DeviceID  string
	Qty       int
	User      *string
}

// FinalizeInput closes a session and applies counted stock.
type FinalizeInput struct {
	TenantID  uuid.UUID
	SessionID uuid.UUID
	User      *string
}

// SummaryLine is one product's position within a session.
type SummaryLine struct {
	ProductID    uuid.UUID
	SKU          string
	Name         string
	StockStart   int
	CountedTotal int
	Delta        int
	DeviceCounts map[string]int
}

// SummaryResult is the live view of a session's counting progress.
type SummaryResult struct {
	Session models.InventorySession
	Lines   []SummaryLine
}

// Recap reports the adjustments applied by finalize.
type Recap struct {
	Session     models.InventorySession
	Adjustments []models.InventoryAdjust
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	ledger  ledger.Service
	db      *gorm.DB
	logg    *logger.Logger
}

// NewService wires the inventory session service.
func NewService(repo Repository, cat catalog.Repository, led ledger.Service, db *gorm.DB, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if led == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if db == nil {
		return nil, fmt.Errorf("database handle required")
	}
	return &service{repo: repo, catalog: cat, ledger: led, db: db, logg: logg}, nil
}

func (s *service) Start(ctx context.Context, input StartInput) (*models.InventorySession, bool, error) {
	if input.TenantID == uuid.Nil {
		return nil, false, apperrors.New(apperrors.CodeValidation, "tenant id is required")
	}

	existing, err := s.repo.FindOpenSession(ctx, input.TenantID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	name := input.Name
	if name == "" {
		name = "Inventaire " + time.Now().Format("2006-01-02")
	}

	session := &models.InventorySession{
		ID:        uuid.New(),
		TenantID:  input.TenantID,
		Name:      name,
		Status:    enums.SessionStatusOpen,
		StartedBy: input.User,
		Notes:     input.Notes,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateSession(ctx, session); err != nil {
			return err
		}
		products, err := s.catalog.WithTx(tx).ListActive(ctx, input.TenantID)
		if err != nil {
			return err
		}
		for _, product := range products {
			snapshot := &models.InventorySnapshot{
				SessionID:  session.ID,
				ProductID:  product.ID,
				TenantID:   input.TenantID,
				StockStart: product.Stock,
				UnitCost:   product.UnitPrice,
			}
			if err := repo.CreateSnapshot(ctx, snapshot); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithField(ctx, "session_id", session.ID.String())
		s.logg.Info(logCtx, "inventory session started")
	}
	return session, false, nil
}

func (s *service) CountAdd(ctx context.Context, input CountAddInput) error {
	if input.TenantID == uuid.Nil || input.SessionID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "tenant id and session id are required")
	}
	if input.ProductID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "produit_id is required")
	}
	if input.DeviceID == "" {
		return apperrors.New(apperrors.CodeValidation, "device_id is required")
	}
	if input.Qty <= 0 {
		return apperrors.New(apperrors.CodeValidation, "qty must be a positive increment")
	}

	session, err := s.repo.GetSession(ctx, input.TenantID, input.SessionID)
	if err == gorm.ErrRecordNotFound {
		return apperrors.New(apperrors.CodeNotFound, "session not found")
	}
	if err != nil {
		return err
	}
	if session.Status != enums.SessionStatusOpen {
		return apperrors.New(apperrors.CodeStateConflict, "session is not open")
	}

	if _, err := s.catalog.GetByID(ctx, input.TenantID, input.ProductID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.New(apperrors.CodeNotFound, "product not found")
		}
		return err
	}

	count := &models.InventoryCount{
		SessionID: input.SessionID,
		ProductID: input.ProductID,
		DeviceID:  input.DeviceID,
		TenantID:  input.TenantID,
		Qty:       input.Qty,
		CountedBy: input.User,
	}
	return s.repo.AddCount(ctx, count)
}

func (s *service) Summary(ctx context.Context, tenantID, sessionID uuid.UUID) (*SummaryResult, error) {
	session, err := s.repo.GetSession(ctx, tenantID, sessionID)
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.New(apperrors.CodeNotFound, "session not found")
	}
	if err != nil {
		return nil, err
	}

	products, err := s.catalog.ListActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.repo.ListSnapshots(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.ListCounts(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	baseline := make(map[uuid.UUID]int, len(snapshots))
	for _, snapshot := range snapshots {
		baseline[snapshot.ProductID] = snapshot.StockStart
	}
	perProduct := make(map[uuid.UUID]map[string]int)
	for _, count := range counts {
		devices := perProduct[count.ProductID]
		if devices == nil {
			devices = make(map[string]int)
			perProduct[count.ProductID] = devices
		}
		devices[count.DeviceID] += count.Qty
	}

	lines := make([]SummaryLine, 0, len(products))
	for _, product := range products {
		stockStart, hasSnapshot := baseline[product.ID]
		if !hasSnapshot {
			// Products created after start fall back to their live stock.
			stockStart = product.Stock
		}
		devices := perProduct[product.ID]
		total := 0
		for _, qty := range devices {
			total += qty
		}
		lines = append(lines, SummaryLine{
			ProductID:    product.ID,
			SKU:          product.SKU,
			Name:         product.Name,
			StockStart:   stockStart,
			CountedTotal: total,
			Delta:        total - stockStart,
			DeviceCounts: devices,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].SKU < lines[j].SKU })

	return &SummaryResult{Session: *session, Lines: lines}, nil
}

func (s *service) Finalize(ctx context.Context, input FinalizeInput) (*Recap, error) {
	if input.TenantID == uuid.Nil || input.SessionID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "tenant id and session id are required")
	}

	if _, err := s.repo.GetSession(ctx, input.TenantID, input.SessionID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "session not found")
		}
		return nil, err
	}

	claimed, err := s.repo.ClaimFinalize(ctx, input.TenantID, input.SessionID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrSessionLocked
	}

	var adjustments []models.InventoryAdjust
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		products, err := s.catalog.WithTx(tx).ListActive(ctx, input.TenantID)
		if err != nil {
			return err
		}
		snapshots, err := repo.ListSnapshots(ctx, input.SessionID)
		if err != nil {
			return err
		}
		snapshotByProduct := make(map[uuid.UUID]models.InventorySnapshot, len(snapshots))
		for _, snapshot := range snapshots {
			snapshotByProduct[snapshot.ProductID] = snapshot
		}

		// Lazy path: products that appeared after start get their baseline
		// from live stock at this instant.
		for _, product := range products {
			if _, ok := snapshotByProduct[product.ID]; ok {
				continue
			}
			snapshot := models.InventorySnapshot{
				SessionID:  input.SessionID,
				ProductID:  product.ID,
				TenantID:   input.TenantID,
				StockStart: product.Stock,
				UnitCost:   product.UnitPrice,
			}
			if err := repo.CreateSnapshot(ctx, &snapshot); err != nil {
				return err
			}
			snapshotByProduct[product.ID] = snapshot
		}

		counts, err := repo.ListCounts(ctx, input.SessionID)
		if err != nil {
			return err
		}
		countedTotals := make(map[uuid.UUID]int)
		for _, count := range counts {
			countedTotals[count.ProductID] += count.Qty
		}

		sessionRef := input.SessionID.String()
		for productID, snapshot := range snapshotByProduct {
			total, counted := countedTotals[productID]
			if !counted && snapshot.StockStart == 0 {
				continue
			}
			if counted {
				// Counted stock is authoritative: overwrite the cache and
				// let the ledger record the implied difference.
				if _, err := s.ledger.Replace(ctx, tx, ledger.ReplaceInput{
					TenantID:  input.TenantID,
					ProductID: productID,
					NewStock:  total,
					Reason:    enums.MovementReasonInventory,
					SourceID:  &sessionRef,
				}); err != nil {
					return err
				}
			}
			delta := total - snapshot.StockStart
			adjust := models.InventoryAdjust{
				SessionID:    input.SessionID,
				ProductID:    productID,
				TenantID:     input.TenantID,
				StockStart:   snapshot.StockStart,
				CountedTotal: total,
				Delta:        delta,
				UnitCost:     snapshot.UnitCost,
				DeltaValue:   snapshot.UnitCost.Mul(decimal.NewFromInt(int64(delta))),
			}
			if err := repo.UpsertAdjust(ctx, &adjust); err != nil {
				return err
			}
			adjustments = append(adjustments, adjust)
		}

		return repo.CloseSession(ctx, input.TenantID, input.SessionID, time.Now())
	})
	if err != nil {
		return nil, err
	}

	session, err := s.repo.GetSession(ctx, input.TenantID, input.SessionID)
	if err != nil {
		return nil, err
	}
	sort.Slice(adjustments, func(i, j int) bool {
		return adjustments[i].ProductID.String() < adjustments[j].ProductID.String()
	})

	if s.logg != nil {
		fields := map[string]any{
			"session_id":  session.ID.String(),
			"adjustments": len(adjustments),
		}
		logCtx := s.logg.WithFields(ctx, fields)
		s.logg.Info(logCtx, "inventory session finalized")
	}
	return &Recap{Session: *session, Adjustments: adjustments}, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, status *enums.SessionStatus) ([]models.InventorySession, error) {
	if tenantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "tenant id is required")
	}
	return s.repo.ListSessions(ctx, tenantID, status)
}
