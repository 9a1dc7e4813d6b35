package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
)

// Repository manages persistence for inventory sessions and their rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateSession(ctx context.Context, session *models.InventorySession) error
	GetSession(ctx context.Context, tenantID, sessionID uuid.UUID) (*models.InventorySession, error)
	FindOpenSession(ctx context.Context, tenantID uuid.UUID) (*models.InventorySession, error)
	ListSessions(ctx context.Context, tenantID uuid.UUID, status *enums.SessionStatus) ([]models.InventorySession, error)
	ClaimFinalize(ctx context.Context, tenantID, sessionID uuid.UUID) (bool, error)
	CloseSession(ctx context.Context, tenantID, sessionID uuid.UUID, endedAt time.Time) error
	ListStuckFinalizing(ctx context.Context, cutoff time.Time) ([]models.InventorySession, error)

	CreateSnapshot(ctx context.Context, snapshot *models.InventorySnapshot) error
	ListSnapshots(ctx context.Context, sessionID uuid.UUID) ([]models.InventorySnapshot, error)

	AddCount(ctx context.Context, count *models.InventoryCount) error
	ListCounts(ctx context.Context, sessionID uuid.UUID) ([]models.InventoryCount, error)

	UpsertAdjust(ctx context.Context, adjust *models.InventoryAdjust) error
	ListAdjusts(ctx context.Context, sessionID uuid.UUID) ([]models.InventoryAdjust, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSession(ctx context.Context, session *models.InventorySession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) GetSession(ctx context.Context, tenantID, sessionID uuid.UUID) (*models.InventorySession, error) {
	var session models.InventorySession
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, sessionID).
		Take(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindOpenSession(ctx context.Context, tenantID uuid.UUID) (*models.InventorySession, error) {
	var session models.InventorySession
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, enums.SessionStatusOpen).
		Order("started_at ASC").
		Take(&session).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) ListSessions(ctx context.Context, tenantID uuid.UUID, status *enums.SessionStatus) ([]models.InventorySession, error) {
	var rows []models.InventorySession
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	err := q.Order("started_at DESC").Find(&rows).Error
	return rows, err
}

// ClaimFinalize flips open -> finalizing with a guarded update. The false
// return means another caller already claimed (or closed) the session.
func (r *repository) ClaimFinalize(ctx context.Context, tenantID, sessionID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.InventorySession{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, sessionID, enums.SessionStatusOpen).
		Update("status", enums.SessionStatusFinalizing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CloseSession(ctx context.Context, tenantID, sessionID uuid.UUID, endedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.InventorySession{}).
		Where("tenant_id = ? AND id = ?", tenantID, sessionID).
		Updates(map[string]any{
			"status":   enums.SessionStatusClosed,
			"ended_at": endedAt,
		}).Error
}

// ListStuckFinalizing returns sessions parked in finalizing since before
// the cutoff, across all tenants. Used by the maintenance worker.
func (r *repository) ListStuckFinalizing(ctx context.Context, cutoff time.Time) ([]models.InventorySession, error) {
	var rows []models.InventorySession
	err := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", enums.SessionStatusFinalizing, cutoff).
		Order("started_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) CreateSnapshot(ctx context.Context, snapshot *models.InventorySnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *repository) ListSnapshots(ctx context.Context, sessionID uuid.UUID) ([]models.InventorySnapshot, error) {
	var rows []models.InventorySnapshot
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Find(&rows).Error
	return rows, err
}

// AddCount accumulates a device's count for a product. The increment lands
// atomically on the existing (session, product, device) row when present.
func (r *repository) AddCount(ctx context.Context, count *models.InventoryCount) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "session_id"}, {Name: "product_id"}, {Name: "device_id"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"qty":        gorm.Expr("inventory_counts.qty + excluded.qty"),
			"counted_by": count.CountedBy,
			"updated_at": time.Now(),
		}),
	}).Create(count).Error
}

func (r *repository) ListCounts(ctx context.Context, sessionID uuid.UUID) ([]models.InventoryCount, error) {
	var rows []models.InventoryCount
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("product_id ASC").
		Order("device_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) UpsertAdjust(ctx context.Context, adjust *models.InventoryAdjust) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stock_start", "counted_total", "delta", "unit_cost", "delta_value",
		}),
	}).Create(adjust).Error
}

func (r *repository) ListAdjusts(ctx context.Context, sessionID uuid.UUID) ([]models.InventoryAdjust, error) {
	var rows []models.InventoryAdjust
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("product_id ASC").
		Find(&rows).Error
	return rows, err
}
