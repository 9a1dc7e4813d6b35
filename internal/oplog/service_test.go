package oplog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bibo40140/caisse-backend/internal/oplog/payloads"
	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
)

type fakeRepository struct {
	insertFn func(ctx context.Context, op *models.Operation) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Insert(ctx context.Context, op *models.Operation) error {
	if f.insertFn != nil {
		return f.insertFn(ctx, op)
	}
	return nil
}

func (f *fakeRepository) TakePending(ctx context.Context, deviceID string, limit int) ([]models.Operation, error) {
	return nil, nil
}

func (f *fakeRepository) MarkAcked(ctx context.Context, ids []uuid.UUID) error { return nil }

func (f *fakeRepository) MarkFailed(ctx context.Context, ids []uuid.UUID, cause error) error {
	return nil
}

func (f *fakeRepository) CountPending(ctx context.Context, deviceID string) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) OldestPendingAge(ctx context.Context, now time.Time) (time.Duration, error) {
	return 0, nil
}

func TestService_Enqueue(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo, nil)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	var inserted *models.Operation
	repo.insertFn = func(ctx context.Context, op *models.Operation) error {
		inserted = op
		return nil
	}

	productID := uuid.New()
	got, err := svc.Enqueue(context.Background(), nil, EnqueueInput{
		TenantID:   uuid.New(),
		DeviceID:   "caisse-01",
		EntityType: enums.EntityTypeProduct,
		EntityID:   productID.String(),
		Payload: payloads.ProductCreate{
			ProductID: productID,
			SKU:       "CAFE-250",
			Name:      "Café moulu 250g",
			UnitPrice: decimal.RequireFromString("4.90"),
			Stock:     12,
		},
	})
	if err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if inserted == nil {
		t.Fatal("expected operation to be inserted")
	}
	if got != inserted {
		t.Fatalf("service should return inserted operation")
	}
	if inserted.ID == uuid.Nil {
		t.Fatal("expected generated op id")
	}
	if inserted.OpType != enums.OpTypeProductCreate {
		t.Fatalf("wrong op type: %s", inserted.OpType)
	}
	if inserted.Ack {
		t.Fatal("new op must start unacked")
	}

	var decoded payloads.ProductCreate
	if err := json.Unmarshal(inserted.Payload, &decoded); err != nil {
		t.Fatalf("payload round-trip: %v", err)
	}
	if decoded.ProductID != productID || decoded.SKU != "CAFE-250" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestService_EnqueueValidation(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo, nil)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	valid := payloads.StockCorrect{ProductID: uuid.New(), Delta: -3}

	tests := []struct {
		name  string
		input EnqueueInput
	}{
		{
			name: "missing tenant",
			input: EnqueueInput{
				DeviceID:   "caisse-01",
				EntityType: enums.EntityTypeProduct,
				Payload:    valid,
			},
		},
		{
			name: "missing device",
			input: EnqueueInput{
				TenantID:   uuid.New(),
				EntityType: enums.EntityTypeProduct,
				Payload:    valid,
			},
		},
		{
			name: "invalid entity type",
			input: EnqueueInput{
				TenantID:   uuid.New(),
				DeviceID:   "caisse-01",
				EntityType: enums.EntityType("not_real"),
				Payload:    valid,
			},
		},
		{
			name: "missing payload",
			input: EnqueueInput{
				TenantID:   uuid.New(),
				DeviceID:   "caisse-01",
				EntityType: enums.EntityTypeProduct,
			},
		},
		{
			name: "invalid payload",
			input: EnqueueInput{
				TenantID:   uuid.New(),
				DeviceID:   "caisse-01",
				EntityType: enums.EntityTypeProduct,
				Payload:    payloads.StockCorrect{ProductID: uuid.New(), Delta: 0},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Enqueue(context.Background(), nil, tc.input); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestService_EnqueueRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo, nil)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	expectedErr := errors.New("disk full")
	repo.insertFn = func(ctx context.Context, op *models.Operation) error {
		return expectedErr
	}

	if _, err := svc.Enqueue(context.Background(), nil, EnqueueInput{
		TenantID:   uuid.New(),
		DeviceID:   "caisse-01",
		EntityType: enums.EntityTypeProduct,
		Payload:    payloads.StockCorrect{ProductID: uuid.New(), Delta: 2},
	}); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	productID := uuid.New()

	op := models.Operation{
		OpType:  enums.OpTypeStockReceive,
		Payload: json.RawMessage(`{"reception_id":"` + uuid.NewString() + `","produit_id":"` + productID.String() + `","qty":6}`),
	}
	decoded, err := Decode(op)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	receive, ok := decoded.(payloads.StockReceive)
	if !ok {
		t.Fatalf("expected StockReceive, got %T", decoded)
	}
	if receive.ProductID != productID || receive.Qty != 6 {
		t.Fatalf("unexpected payload: %+v", receive)
	}
}

func TestDecode_RejectsUnknownKind(t *testing.T) {
	op := models.Operation{
		OpType:  enums.OpType("product_upsert"),
		Payload: json.RawMessage(`{}`),
	}
	if _, err := Decode(op); err == nil {
		t.Fatal("expected unknown op type to be rejected")
	}
}

func TestDecode_RejectsInvalidPayload(t *testing.T) {
	op := models.Operation{
		OpType:  enums.OpTypeSaleRecord,
		Payload: json.RawMessage(`{"sale_id":"` + uuid.NewString() + `","lines":[]}`),
	}
	if _, err := Decode(op); err == nil {
		t.Fatal("expected empty sale to be rejected")
	}
}
