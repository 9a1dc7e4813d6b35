package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bibo40140/caisse-backend/pkg/db/models"
)

// Repository manages tenant-scoped catalog persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error)
	GetBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*models.Product, error)
	UpsertBySKU(ctx context.Context, product *models.Product) error
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error)
	ChangedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]models.Product, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repository) Update(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("tenant_id = ? AND id = ?", product.TenantID, product.ID).
		Updates(map[string]any{
			"name":       product.Name,
			"unit_price": product.UnitPrice,
			"deleted":    product.Deleted,
		}).Error
}

func (r *repository) GetByID(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		Take(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) GetBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND sku = ?", tenantID, sku).
		Take(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// UpsertBySKU inserts or updates by the (tenant_id, sku) natural key. Used
// by pull/bootstrap upserts, which never delete rows.
func (r *repository) UpsertBySKU(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "sku"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "unit_price", "stock", "deleted", "updated_at",
		}),
	}).Create(product).Error
}

func (r *repository) ListActive(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND deleted = ?", tenantID, false).
		Order("sku ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ChangedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]models.Product, error) {
	var rows []models.Product
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if !since.IsZero() {
		q = q.Where("updated_at > ?", since)
	}
	err := q.Order("updated_at ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ?", tenantID).
		Count(&n).Error
	return n, err
}
