package oplog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bibo40140/caisse-backend/pkg/db/models"
)

// Repository manages persistence for the append-only operation queue.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, op *models.Operation) error
	TakePending(ctx context.Context, deviceID string, limit int) ([]models.Operation, error)
	MarkAcked(ctx context.Context, ids []uuid.UUID) error
	MarkFailed(ctx context.Context, ids []uuid.UUID, cause error) error
	CountPending(ctx context.Context, deviceID string) (int64, error)
	OldestPendingAge(ctx context.Context, now time.Time) (time.Duration, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an op-queue repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, op *models.Operation) error {
	return r.db.WithContext(ctx).Create(op).Error
}

func (r *repository) TakePending(ctx context.Context, deviceID string, limit int) ([]models.Operation, error) {
	var rows []models.Operation
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND ack = ?", deviceID, false).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) MarkAcked(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Operation{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"ack":     true,
			"sent_at": time.Now(),
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, ids []uuid.UUID, cause error) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Operation{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"last_error":  cause.Error(),
			"retry_count": gorm.Expr("retry_count + 1"),
		}).Error
}

func (r *repository) CountPending(ctx context.Context, deviceID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Operation{}).
		Where("device_id = ? AND ack = ?", deviceID, false).
		Count(&n).Error
	return n, err
}

func (r *repository) OldestPendingAge(ctx context.Context, now time.Time) (time.Duration, error) {
	var oldest models.Operation
	err := r.db.WithContext(ctx).
		Where("ack = ?", false).
		Order("created_at ASC").
		Limit(1).
		Take(&oldest).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return now.Sub(oldest.CreatedAt), nil
}
