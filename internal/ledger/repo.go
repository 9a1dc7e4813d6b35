package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
)

// Repository manages persistence for the append-only stock ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, movement *models.StockMovement) error
	ListByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]models.StockMovement, error)
	SumDeltas(ctx context.Context, tenantID, productID uuid.UUID) (int, error)
	HasInit(ctx context.Context, tenantID, productID uuid.UUID) (bool, error)
	ProductsMissingInit(ctx context.Context) ([]models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]models.StockMovement, error) {
	var rows []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) SumDeltas(ctx context.Context, tenantID, productID uuid.UUID) (int, error) {
	var sum int
	err := r.db.WithContext(ctx).Model(&models.StockMovement{}).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *repository) HasInit(ctx context.Context, tenantID, productID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.StockMovement{}).
		Where("tenant_id = ? AND product_id = ? AND reason = ?", tenantID, productID, enums.MovementReasonInit).
		Count(&n).Error
	return n > 0, err
}

func (r *repository) ProductsMissingInit(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where(`NOT EXISTS (
			SELECT 1 FROM stock_movements m
			WHERE m.tenant_id = products.tenant_id
			  AND m.product_id = products.id
			  AND m.reason = ?
		)`, enums.MovementReasonInit).
		Find(&rows).Error
	return rows, err
}
