package oplog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
)

func setupOplogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:oplog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Operation{}))
	return db
}

func queuedOp(tenantID uuid.UUID, deviceID string, createdAt time.Time) models.Operation {
	return models.Operation{
		ID:         uuid.New(),
		TenantID:   tenantID,
		DeviceID:   deviceID,
		OpType:     enums.OpTypeStockCorrect,
		EntityType: enums.EntityTypeProduct,
		EntityID:   uuid.NewString(),
		Payload:    json.RawMessage(`{"produit_id":"` + uuid.NewString() + `","delta":1}`),
		CreatedAt:  createdAt,
	}
}

func TestRepository_TakePendingOldestFirst(t *testing.T) {
	db := setupOplogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	deviceID := "caisse-" + uuid.NewString()
	base := time.Now().Add(-time.Hour)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		op := queuedOp(tenantID, deviceID, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Insert(ctx, &op))
		ids = append(ids, op.ID)
	}

	rows, err := repo.TakePending(ctx, deviceID, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ids[0], rows[0].ID)
	assert.Equal(t, ids[1], rows[1].ID)
	assert.Equal(t, ids[2], rows[2].ID)
}

func TestRepository_MarkAckedExcludesFromPending(t *testing.T) {
	db := setupOplogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	deviceID := "caisse-" + uuid.NewString()

	first := queuedOp(tenantID, deviceID, time.Now().Add(-2*time.Minute))
	second := queuedOp(tenantID, deviceID, time.Now().Add(-time.Minute))
	require.NoError(t, repo.Insert(ctx, &first))
	require.NoError(t, repo.Insert(ctx, &second))

	require.NoError(t, repo.MarkAcked(ctx, []uuid.UUID{first.ID}))

	rows, err := repo.TakePending(ctx, deviceID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, second.ID, rows[0].ID)

	var acked models.Operation
	require.NoError(t, db.Where("id = ?", first.ID).Take(&acked).Error)
	assert.True(t, acked.Ack)
	assert.NotNil(t, acked.SentAt)
}

func TestRepository_MarkFailedBumpsRetryCount(t *testing.T) {
	db := setupOplogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	deviceID := "caisse-" + uuid.NewString()
	op := queuedOp(uuid.New(), deviceID, time.Now())
	require.NoError(t, repo.Insert(ctx, &op))

	cause := errors.New("connection refused")
	require.NoError(t, repo.MarkFailed(ctx, []uuid.UUID{op.ID}, cause))
	require.NoError(t, repo.MarkFailed(ctx, []uuid.UUID{op.ID}, cause))

	var failed models.Operation
	require.NoError(t, db.Where("id = ?", op.ID).Take(&failed).Error)
	assert.Equal(t, 2, failed.RetryCount)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "connection refused", *failed.LastError)
	assert.False(t, failed.Ack)

	rows, err := repo.TakePending(ctx, deviceID, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRepository_CountPendingScopedByDevice(t *testing.T) {
	db := setupOplogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	deviceA := "caisse-" + uuid.NewString()
	deviceB := "caisse-" + uuid.NewString()

	opA := queuedOp(tenantID, deviceA, time.Now())
	opB1 := queuedOp(tenantID, deviceB, time.Now())
	opB2 := queuedOp(tenantID, deviceB, time.Now())
	require.NoError(t, repo.Insert(ctx, &opA))
	require.NoError(t, repo.Insert(ctx, &opB1))
	require.NoError(t, repo.Insert(ctx, &opB2))

	n, err := repo.CountPending(ctx, deviceB)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
