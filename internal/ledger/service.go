package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
	"github.com/bibo40140/caisse-backend/pkg/logger"
)

// Service defines operations that record and reconcile stock movements.
// Every mutation writes the movement and the products.stock cache in the
// same transaction.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.StockMovement, error)
	Replace(ctx context.Context, tx *gorm.DB, input ReplaceInput) (*models.StockMovement, error)
	EnsureInit(ctx context.Context, tx *gorm.DB, tenantID, productID uuid.UUID, startingStock int) error
	StockOf(ctx context.Context, tenantID, productID uuid.UUID) (int, error)
	Reconcile(ctx context.Context) (ReconcileReport, error)
}

// AppendInput captures one signed stock delta and its cause.
type AppendInput struct {
	TenantID  uuid.UUID
	ProductID uuid.UUID
	Delta     int
	Reason    enums.MovementReason
	SourceID  *string
}

// ReplaceInput overwrites a product's stock to an absolute value, recording
// the implied delta as a movement. Used by inventory finalize.
type ReplaceInput struct {
	TenantID  uuid.UUID
	ProductID uuid.UUID
	NewStock  int
	Reason    enums.MovementReason
	SourceID  *string
}

// ReconcileReport summarizes a reconciliation pass.
type ReconcileReport struct {
	InitBackfilled int
	CacheRepaired  int
}

type service struct {
	repo Repository
	db   *gorm.DB
	logg *logger.Logger
}

// NewService wires a stock ledger service.
func NewService(repo Repository, db *gorm.DB, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("database handle required")
	}
	return &service{repo: repo, db: db, logg: logg}, nil
}

func (s *service) Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.StockMovement, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.TenantID == uuid.Nil {
		return nil, fmt.Errorf("tenant id is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, fmt.Errorf("product id is required")
	}
	if input.Delta == 0 {
		return nil, fmt.Errorf("delta must not be zero")
	}
	if !input.Reason.IsValid() {
		return nil, fmt.Errorf("invalid movement reason %q", input.Reason)
	}

	movement := &models.StockMovement{
		ID:        uuid.New(),
		TenantID:  input.TenantID,
		ProductID: input.ProductID,
		Delta:     input.Delta,
		Reason:    input.Reason,
		SourceID:  input.SourceID,
	}
	if err := s.repo.WithTx(tx).Create(ctx, movement); err != nil {
		return nil, err
	}

	res := tx.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ? AND id = ?", input.TenantID, input.ProductID).
		Update("stock", gorm.Expr("stock + ?", input.Delta))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("product %s not found for tenant", input.ProductID)
	}
	return movement, nil
}

func (s *service) Replace(ctx context.Context, tx *gorm.DB, input ReplaceInput) (*models.StockMovement, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.TenantID == uuid.Nil {
		return nil, fmt.Errorf("tenant id is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, fmt.Errorf("product id is required")
	}
	if !input.Reason.IsValid() {
		return nil, fmt.Errorf("invalid movement reason %q", input.Reason)
	}

	var product models.Product
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", input.TenantID, input.ProductID).
		Take(&product).Error; err != nil {
		return nil, err
	}

	delta := input.NewStock - product.Stock

	var movement *models.StockMovement
	if delta != 0 {
		movement = &models.StockMovement{
			ID:        uuid.New(),
			TenantID:  input.TenantID,
			ProductID: input.ProductID,
			Delta:     delta,
			Reason:    input.Reason,
			SourceID:  input.SourceID,
		}
		if err := s.repo.WithTx(tx).Create(ctx, movement); err != nil {
			return nil, err
		}
	}

	if err := tx.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ? AND id = ?", input.TenantID, input.ProductID).
		Update("stock", input.NewStock).Error; err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *service) EnsureInit(ctx context.Context, tx *gorm.DB, tenantID, productID uuid.UUID, startingStock int) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	has, err := s.repo.WithTx(tx).HasInit(ctx, tenantID, productID)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	movement := &models.StockMovement{
		ID:        uuid.New(),
		TenantID:  tenantID,
		ProductID: productID,
		Delta:     startingStock,
		Reason:    enums.MovementReasonInit,
	}
	return s.repo.WithTx(tx).Create(ctx, movement)
}

func (s *service) StockOf(ctx context.Context, tenantID, productID uuid.UUID) (int, error) {
	if tenantID == uuid.Nil || productID == uuid.Nil {
		return 0, fmt.Errorf("tenant id and product id are required")
	}
	return s.repo.SumDeltas(ctx, tenantID, productID)
}

// Reconcile backfills missing init movements and recomputes stock caches
// from the ledger. A product missing its init gets one whose delta brings
// the ledger sum up to the cached stock; afterwards every touched cache is
// overwritten with the authoritative sum.
func (s *service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	missing, err := s.repo.ProductsMissingInit(ctx)
	if err != nil {
		return report, err
	}

	for _, product := range missing {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			sum, err := s.repo.WithTx(tx).SumDeltas(ctx, product.TenantID, product.ID)
			if err != nil {
				return err
			}
			movement := &models.StockMovement{
				ID:        uuid.New(),
				TenantID:  product.TenantID,
				ProductID: product.ID,
				Delta:     product.Stock - sum,
				Reason:    enums.MovementReasonInit,
			}
			return s.repo.WithTx(tx).Create(ctx, movement)
		})
		if err != nil {
			return report, err
		}
		report.InitBackfilled++
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).Find(&products).Error; err != nil {
		return report, err
	}
	for _, product := range products {
		sum, err := s.repo.SumDeltas(ctx, product.TenantID, product.ID)
		if err != nil {
			return report, err
		}
		if sum == product.Stock {
			continue
		}
		if err := s.db.WithContext(ctx).Model(&models.Product{}).
			Where("tenant_id = ? AND id = ?", product.TenantID, product.ID).
			Update("stock", sum).Error; err != nil {
			return report, err
		}
		report.CacheRepaired++
		if s.logg != nil {
			fields := map[string]any{
				"product_id": product.ID.String(),
				"cached":     product.Stock,
				"ledger_sum": sum,
			}
			logCtx := s.logg.WithFields(ctx, fields)
			s.logg.Warn(logCtx, "stock cache diverged from ledger, repaired")
		}
	}
	return report, nil
}
