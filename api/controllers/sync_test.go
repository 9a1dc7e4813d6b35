package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	ingestsvc "github.com/bibo40140/caisse-backend/internal/ingest"
	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
	"github.com/bibo40140/caisse-backend/pkg/types"
)

type stubIngestService struct {
	acks      []ingestsvc.Ack
	products  []models.Product
	needed    bool
	seeded    int
	err       error
	gotOps    []models.Operation
	gotSince  time.Time
	gotDevice string
}

func (s *stubIngestService) ApplyOps(_ context.Context, _ uuid.UUID, deviceID string, ops []models.Operation) ([]ingestsvc.Ack, error) {
	s.gotDevice = deviceID
	s.gotOps = ops
	return s.acks, s.err
}

func (s *stubIngestService) PullRefs(_ context.Context, _ uuid.UUID, since time.Time) ([]models.Product, error) {
	s.gotSince = since
	return s.products, s.err
}

func (s *stubIngestService) BootstrapNeeded(context.Context, uuid.UUID) (bool, error) {
	return s.needed, s.err
}

func (s *stubIngestService) Bootstrap(context.Context, uuid.UUID, []models.Product) (int, error) {
	return s.seeded, s.err
}

func TestSyncPushOpsMapsWireOps(t *testing.T) {
	opID := uuid.New()
	svc := &stubIngestService{acks: []ingestsvc.Ack{{ID: opID, Status: ingestsvc.AckApplied}}}
	handler := SyncPushOps(svc, nil)

	body := []byte(`{
		"deviceId": "caisse-1",
		"ops": [{
			"id": "` + opID.String() + `",
			"op_type": "product_create",
			"entity_type": "product",
			"entity_id": "sku-1",
			"payload_json": {"produit_id":"` + uuid.NewString() + `","sku":"CAFE","name":"Cafe","unit_price":"1.50","stock":5}
		}]
	}`)
	req := tenantRequest(http.MethodPost, "/sync/push_ops", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.gotDevice != "caisse-1" {
		t.Fatalf("device not mapped: %q", svc.gotDevice)
	}
	if len(svc.gotOps) != 1 {
		t.Fatalf("expected one op, got %d", len(svc.gotOps))
	}
	op := svc.gotOps[0]
	if op.ID != opID || op.OpType != enums.OpTypeProductCreate || op.DeviceID != "caisse-1" {
		t.Fatalf("op not mapped: %+v", op)
	}
	if len(op.Payload) == 0 {
		t.Fatal("payload not carried through")
	}

	var envelope struct {
		Data types.PushOpsResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Acks) != 1 || envelope.Data.Acks[0].Status != "applied" {
		t.Fatalf("acks not mapped: %+v", envelope.Data.Acks)
	}
}

func TestSyncPushOpsRequiresOps(t *testing.T) {
	handler := SyncPushOps(&stubIngestService{}, nil)

	req := tenantRequest(http.MethodPost, "/sync/push_ops", []byte(`{"deviceId":"caisse-1","ops":[]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestSyncPullRefsSinceWatermark(t *testing.T) {
	svc := &stubIngestService{products: []models.Product{{
		ID:        uuid.New(),
		SKU:       "CAFE",
		Name:      "Cafe",
		UpdatedAt: time.Now(),
	}}}
	handler := SyncPullRefs(svc, nil)

	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req := tenantRequest(http.MethodGet, "/sync/pull_refs?since="+since.Format(time.RFC3339), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !svc.gotSince.Equal(since) {
		t.Fatalf("expected since %v got %v", since, svc.gotSince)
	}

	var envelope struct {
		Data types.PullRefsResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Products) != 1 || envelope.Data.Products[0].SKU != "CAFE" {
		t.Fatalf("products not mapped: %+v", envelope.Data.Products)
	}
	if envelope.Data.ServerAt.IsZero() {
		t.Fatal("expected server_at watermark")
	}
}

func TestSyncPullRefsRejectsBadSince(t *testing.T) {
	handler := SyncPullRefs(&stubIngestService{}, nil)

	req := tenantRequest(http.MethodGet, "/sync/pull_refs?since=yesterday", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestSyncBootstrapNeeded(t *testing.T) {
	handler := SyncBootstrapNeeded(&stubIngestService{needed: true}, nil)

	req := tenantRequest(http.MethodGet, "/sync/bootstrap_needed", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var envelope struct {
		Data types.BootstrapNeededResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Needed {
		t.Fatal("expected needed=true")
	}
}

func TestSyncBootstrapSeeds(t *testing.T) {
	handler := SyncBootstrap(&stubIngestService{seeded: 2}, nil)

	body := []byte(`{"products":[
		{"id":"` + uuid.NewString() + `","sku":"CAFE","name":"Cafe","unit_price":"1.50","stock":5},
		{"id":"` + uuid.NewString() + `","sku":"THE","name":"The vert","unit_price":"2.00","stock":3}
	]}`)
	req := tenantRequest(http.MethodPost, "/sync/bootstrap", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data types.BootstrapResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Seeded != 2 {
		t.Fatalf("expected 2 seeded, got %d", envelope.Data.Seeded)
	}
}
