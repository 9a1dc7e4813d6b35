package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bibo40140/caisse-backend/internal/catalog"
	"github.com/bibo40140/caisse-backend/internal/ledger"
	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
	apperrors "github.com/bibo40140/caisse-backend/pkg/errors"
)

type inventoryFixture struct {
	db      *gorm.DB
	svc     Service
	repo    Repository
	catalog catalog.Repository
	ledger  ledger.Service
}

func setupInventory(t *testing.T) *inventoryFixture {
	t.Helper()

	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.StockMovement{},
		&models.InventorySession{},
		&models.InventorySnapshot{},
		&models.InventoryCount{},
		&models.InventoryAdjust{},
	))

	catRepo := catalog.NewRepository(db)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db), db, nil)
	require.NoError(t, err)

	repo := NewRepository(db)
	svc, err := NewService(repo, catRepo, ledgerSvc, db, nil)
	require.NoError(t, err)

	return &inventoryFixture{db: db, svc: svc, repo: repo, catalog: catRepo, ledger: ledgerSvc}
}

func (f *inventoryFixture) seedProduct(t *testing.T, tenantID uuid.UUID, sku string, stock int) models.Product {
	t.Helper()

	product := models.Product{
		ID:        uuid.New(),
		TenantID:  tenantID,
		SKU:       sku,
		Name:      "Produit " + sku,
		UnitPrice: decimal.RequireFromString("1.50"),
		Stock:     stock,
	}
	require.NoError(t, f.db.Create(&product).Error)
	return product
}

func TestService_StartReusesOpenSession(t *testing.T) {
	f := setupInventory(t)
	ctx := context.Background()
	tenantID := uuid.New()
	f.seedProduct(t, tenantID, "CAFE", 10)

	first, reused, err := f.svc.Start(ctx, StartInput{TenantID: tenantID, Name: "Inventaire mars"})
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, enums.SessionStatusOpen, first.Status)

	second, reused, err := f.svc.Start(ctx, StartInput{TenantID: tenantID, Name: "doublon"})
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Inventaire mars", second.Name)
}

func TestService_StartSnapshotsCurrentStock(t *testing.T) {
	f := setupInventory(t)
	ctx := context.Background()
	tenantID := uuid.New()
	product := f.seedProduct(t, tenantID, "CAFE", 10)

	session, _, err := f.svc.Start(ctx, StartInput{TenantID: tenantID})
	require.NoError(t, err)

	snapshots, err := f.repo.ListSnapshots(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, product.ID, snapshots[0].ProductID)
	assert.Equal(t, 10, snapshots[0].StockStart)
}

func TestService_CountAddAccumulatesPerDevice(t *testing.T) {
	f := setupInventory(t)
	ctx := context.Background()
	tenantID := uuid.New()
	product := f.seedProduct(t, tenantID, "CAFE", 10)

	session, _, err := f.svc.Start(ctx, StartInput{TenantID: tenantID})
	require.NoError(t, err)

	add := func(device string, qty int) {
		require.NoError(t, f.svc.CountAdd(ctx, CountAddInput{
			TenantID:  tenantID,
			SessionID: session.ID,
			ProductID: product.ID,
			DeviceID:  device,
			Qty:       qty,
		}))
	}

	// Repeated scans from the same device accumulate; other devices keep
	// their own row.
	add("caisse-1", 3)
	add("caisse-1", 2)
	add("caisse-2", 4)

	summary, err := f.svc.Summary(ctx, tenantID, session.ID)
	require.NoError(t, err)
	require.Len(t, summary.Lines, 1)
	line := summary.Lines[0]
	assert.Equal(t, 9, line.CountedTotal)
	assert.Equal(t, -1, line.Delta)
	assert.Equal(t, map[string]int{"caisse-1": 5, "caisse-2": 4}, line.DeviceCounts)
}

func TestService_CountAddValidation(t *testing.T) {
	f := setupInventory(t)
	ctx := context.Background()
	tenantID := uuid.New()
	product := f.seedProduct(t, tenantID, "CAFE", 10)

	session, _, err := f.svc.Start(ctx, StartInput{TenantID: tenantID})
	require.NoError(t, err)

	err = f.svc.CountAdd(ctx, CountAddInput{
		TenantID:  tenantID,
		SessionID: session.ID,
		ProductID: product.ID,
		DeviceID:  "caisse-1",
		Qty:       0,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())

	err = f.svc.CountAdd(ctx, CountAddInput{
		TenantID:  tenantID,
		SessionID: session.ID,
		ProductID: uuid.New(),
		DeviceID:  "caisse-1",
		Qty:       1,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.As(err).Code())
}

func TestService_CountAddRejectsForeignTenantSession(t *testing.T) {
	f := setupInventory(t)
	ctx := context.Background()
	tenantID := uuid.New()
	product := f.seedProduct(t, tenantID, "CAFE", 10)

	session, _, err := f.svc.Start(ctx, StartInput{TenantID: tenantID})
	require.NoError(t, err)

	err = f.svc.CountAdd(ctx, CountAddInput{
		TenantID:  uuid.New(),
		SessionID: session.ID,
		ProductID: product.ID,
		DeviceID:  "caisse-1",
		Qty:       1,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.As(err).Code())
}

func TestService_SummaryFallsBackToLiveStock(t *testing.T) {
	f := setupInventory(t)
	ctx := context.Background()
	tenantID := uuid.New()
	f.seedProduct(t, tenantID, "CAFE", 10)

	session, _, err := f.svc.Start(ctx, StartInput{TenantID: tenantID})
	require.NoError(t, err)

	// Created after start: no snapshot row yet, baseline comes from live stock.
	f.seedProduct(t, tenantID, "THE", 7)

	summary, err := f.svc.Summary(ctx, tenantID, session.ID)
	require.NoError(t, err)
	require.Len(t, summary.Lines, 2)

	byLine := map[string]SummaryLine{}
	for _, line := range summary.Lines {
		byLine[line.SKU] = line
	}
	assert.Equal(t, 10, byLine["CAFE"].StockStart)
	assert.Equal(t, 7, byLine["THE"].StockStart)
	assert.Equal(t, 0, byLine["THE"].CountedTotal)
	assert.Equal(t, -7, byLine["THE"].Delta)
}

func TestService_FinalizeAppliesCountedStock(t *testing.T) {
	f := setupInventory(t)
	ctx := context.Background()
	tenantID := uuid.New()
	product := f.seedProduct(t, tenantID, "CAFE", 10)

	session, _, err := f.svc.Start(ctx, StartInput{TenantID: tenantID})
	require.NoError(t, err)

	require.NoError(t, f.svc.CountAdd(ctx, CountAddInput{
		TenantID: tenantID, SessionID: session.ID, ProductID: product.ID,
		DeviceID: "caisse-1", Qty: 8,
	}))

	recap, err := f.svc.Finalize(ctx, FinalizeInput{TenantID: tenantID, SessionID: session.ID})
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStatusClosed, recap.Session.Status)
	require.NotNil(t, recap.Session.EndedAt)
	require.Len(t, recap.Adjustments, 1)
	assert.Equal(t, 10, recap.Adjustments[0].StockStart)
	assert.Equal(t, 8, recap.Adjustments[0].CountedTotal)
	assert.Equal(t, -2, recap.Adjustments[0].Delta)

	var updated models.Product
	require.NoError(t, f.db.Where("id = ?", product.ID).Take(&updated).Error)
	assert.Equal(t, 8, updated.Stock)

	var movements []models.StockMovement
	require.NoError(t, f.db.Where("product_id = ?", product.ID).Find(&movements).Error)
	require.Len(t, movements, 1)
	assert.Equal(t, enums.MovementReasonInventory, movements[0].Reason)
	assert.Equal(t, -2, movements[0].Delta)
	require.NotNil(t, movements[0].SourceID)
	assert.Equal(t, session.ID.String(), *movements[0].SourceID)
}

func TestService_FinalizeLeavesUncountedUntouched(t *testing.T) {
	f := setupInventory(t)
	ctx := context.Background()
	tenantID := uuid.New()
	counted := f.seedProduct(t, tenantID, "CAFE", 10)
	ignored := f.seedProduct(t, tenantID, "THE", 5)

	session, _, err := f.svc.Start(ctx, StartInput{TenantID: tenantID})
	require.NoError(t, err)

	require.NoError(t, f.svc.CountAdd(ctx, CountAddInput{
		TenantID: tenantID, SessionID: session.ID, ProductID: counted.ID,
		DeviceID: "caisse-1", Qty: 10,
	}))

	recap, err := f.svc.Finalize(ctx, FinalizeInput{TenantID: tenantID, SessionID: session.ID})
	require.NoError(t, err)

	var untouched models.Product
	require.NoError(t, f.db.Where("id = ?", ignored.ID).Take(&untouched).Error)
	assert.Equal(t, 5, untouched.Stock)

	var movements []models.StockMovement
	require.NoError(t, f.db.Where("product_id = ?", ignored.ID).Find(&movements).Error)
	assert.Empty(t, movements)

	// The uncounted product still shows up in the audit trail because it
	// carried nonzero baseline stock.
	byProduct := map[uuid.UUID]models.InventoryAdjust{}
	for _, adjust := range recap.Adjustments {
		byProduct[adjust.ProductID] = adjust
	}
	require.Contains(t, byProduct, ignored.ID)
	assert.Equal(t, 0, byProduct[ignored.ID].CountedTotal)
	assert.Equal(t, -5, byProduct[ignored.ID].Delta)
}

func TestService_FinalizeBackfillsMissingSnapshot(t *testing.T) {
	f := setupInventory(t)
	ctx := context.Background()
	tenantID := uuid.New()
	f.seedProduct(t, tenantID, "CAFE", 10)

	session, _, err := f.svc.Start(ctx, StartInput{TenantID: tenantID})
	require.NoError(t, err)

	// Appears mid-session: snapshot is taken lazily at finalize.
	late := f.seedProduct(t, tenantID, "THE", 6)
	require.NoError(t, f.svc.CountAdd(ctx, CountAddInput{
		TenantID: tenantID, SessionID: session.ID, ProductID: late.ID,
		DeviceID: "caisse-1", Qty: 4,
	}))

	recap, err := f.svc.Finalize(ctx, FinalizeInput{TenantID: tenantID, SessionID: session.ID})
	require.NoError(t, err)

	snapshots, err := f.repo.ListSnapshots(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)

	byProduct := map[uuid.UUID]models.InventoryAdjust{}
	for _, adjust := range recap.Adjustments {
		byProduct[adjust.ProductID] = adjust
	}
	require.Contains(t, byProduct, late.ID)
	assert.Equal(t, 6, byProduct[late.ID].StockStart)
	assert.Equal(t, 4, byProduct[late.ID].CountedTotal)
	assert.Equal(t, -2, byProduct[late.ID].Delta)

	var updated models.Product
	require.NoError(t, f.db.Where("id = ?", late.ID).Take(&updated).Error)
	assert.Equal(t, 4, updated.Stock)
}

func TestService_FinalizeIsAtMostOnce(t *testing.T) {
	f := setupInventory(t)
	ctx := context.Background()
	tenantID := uuid.New()
	f.seedProduct(t, tenantID, "CAFE", 10)

	session, _, err := f.svc.Start(ctx, StartInput{TenantID: tenantID})
	require.NoError(t, err)

	_, err = f.svc.Finalize(ctx, FinalizeInput{TenantID: tenantID, SessionID: session.ID})
	require.NoError(t, err)

	_, err = f.svc.Finalize(ctx, FinalizeInput{TenantID: tenantID, SessionID: session.ID})
	require.ErrorIs(t, err, ErrSessionLocked)
	assert.Equal(t, apperrors.CodeConflict, apperrors.As(err).Code())

	// Counting against a closed session is rejected too.
	err = f.svc.CountAdd(ctx, CountAddInput{
		TenantID: tenantID, SessionID: session.ID,
		ProductID: uuid.New(), DeviceID: "caisse-1", Qty: 1,
	})
	require.Error(t, err)
}

func TestService_ListFiltersByStatus(t *testing.T) {
	f := setupInventory(t)
	ctx := context.Background()
	tenantID := uuid.New()
	f.seedProduct(t, tenantID, "CAFE", 1)

	session, _, err := f.svc.Start(ctx, StartInput{TenantID: tenantID})
	require.NoError(t, err)
	_, err = f.svc.Finalize(ctx, FinalizeInput{TenantID: tenantID, SessionID: session.ID})
	require.NoError(t, err)

	second, reused, err := f.svc.Start(ctx, StartInput{TenantID: tenantID})
	require.NoError(t, err)
	require.False(t, reused)

	open := enums.SessionStatusOpen
	rows, err := f.svc.List(ctx, tenantID, &open)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, second.ID, rows[0].ID)

	closed := enums.SessionStatusClosed
	rows, err = f.svc.List(ctx, tenantID, &closed)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, session.ID, rows[0].ID)

	rows, err = f.svc.List(ctx, tenantID, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
