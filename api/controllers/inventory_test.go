package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bibo40140/caisse-backend/api/middleware"
	inventorysvc "github.com/bibo40140/caisse-backend/internal/inventory"
	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
)

type stubInventoryService struct {
	session   *models.InventorySession
	reused    bool
	summary   *inventorysvc.SummaryResult
	recap     *inventorysvc.Recap
	sessions  []models.InventorySession
	err       error
	countAdds []inventorysvc.CountAddInput
	statusArg *enums.SessionStatus
}

func (s *stubInventoryService) Start(context.Context, inventorysvc.StartInput) (*models.InventorySession, bool, error) {
	return s.session, s.reused, s.err
}

func (s *stubInventoryService) CountAdd(_ context.Context, input inventorysvc.CountAddInput) error {
	s.countAdds = append(s.countAdds, input)
	return s.err
}

func (s *stubInventoryService) Summary(context.Context, uuid.UUID, uuid.UUID) (*inventorysvc.SummaryResult, error) {
	return s.summary, s.err
}

func (s *stubInventoryService) Finalize(context.Context, inventorysvc.FinalizeInput) (*inventorysvc.Recap, error) {
	return s.recap, s.err
}

func (s *stubInventoryService) List(_ context.Context, _ uuid.UUID, status *enums.SessionStatus) ([]models.InventorySession, error) {
	s.statusArg = status
	return s.sessions, s.err
}

func tenantRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	}
	return req.WithContext(middleware.WithTenantID(req.Context(), uuid.New()))
}

func withSessionParam(req *http.Request, sessionID uuid.UUID) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("sessionId", sessionID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestInventoryStartReportsReused(t *testing.T) {
	session := &models.InventorySession{ID: uuid.New(), Name: "Inventaire mars", Status: enums.SessionStatusOpen}
	svc := &stubInventoryService{session: session, reused: true}
	handler := InventoryStart(svc, nil)

	req := tenantRequest(http.MethodPost, "/inventory/start", []byte(`{"name":"Inventaire mars"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var envelope struct {
		Data startSessionResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Reused {
		t.Fatal("expected reused flag")
	}
	if envelope.Data.Session.ID != session.ID {
		t.Fatalf("expected session id %s got %s", session.ID, envelope.Data.Session.ID)
	}
}

func TestInventoryStartCreatedWhenNew(t *testing.T) {
	svc := &stubInventoryService{session: &models.InventorySession{ID: uuid.New(), Status: enums.SessionStatusOpen}}
	handler := InventoryStart(svc, nil)

	req := tenantRequest(http.MethodPost, "/inventory/start", []byte(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
}

func TestInventoryStartMissingTenant(t *testing.T) {
	handler := InventoryStart(&stubInventoryService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/inventory/start", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestInventoryCountAddWireNames(t *testing.T) {
	svc := &stubInventoryService{}
	handler := InventoryCountAdd(svc, nil)

	sessionID := uuid.New()
	productID := uuid.New()
	body := []byte(`{"produit_id":"` + productID.String() + `","qty":3,"device_id":"caisse-1"}`)
	req := withSessionParam(tenantRequest(http.MethodPost, "/inventory/"+sessionID.String()+"/count-add", body), sessionID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.countAdds) != 1 {
		t.Fatalf("expected one count-add call, got %d", len(svc.countAdds))
	}
	input := svc.countAdds[0]
	if input.ProductID != productID || input.SessionID != sessionID {
		t.Fatalf("input ids not mapped: %+v", input)
	}
	if input.DeviceID != "caisse-1" || input.Qty != 3 {
		t.Fatalf("input fields not mapped: %+v", input)
	}

	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data["ok"] {
		t.Fatal("expected ok response")
	}
}

func TestInventoryCountAddRejectsZeroQty(t *testing.T) {
	handler := InventoryCountAdd(&stubInventoryService{}, nil)

	sessionID := uuid.New()
	body := []byte(`{"produit_id":"` + uuid.NewString() + `","qty":0,"device_id":"caisse-1"}`)
	req := withSessionParam(tenantRequest(http.MethodPost, "/inventory/"+sessionID.String()+"/count-add", body), sessionID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestInventoryFinalizeSessionLocked(t *testing.T) {
	svc := &stubInventoryService{err: inventorysvc.ErrSessionLocked}
	handler := InventoryFinalize(svc, nil)

	sessionID := uuid.New()
	req := withSessionParam(tenantRequest(http.MethodPost, "/inventory/"+sessionID.String()+"/finalize", []byte(`{}`)), sessionID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Message != "session_locked" {
		t.Fatalf("expected session_locked message, got %q", envelope.Error.Message)
	}
}

func TestInventorySummaryMapsWireNames(t *testing.T) {
	sessionID := uuid.New()
	productID := uuid.New()
	svc := &stubInventoryService{summary: &inventorysvc.SummaryResult{
		Session: models.InventorySession{ID: sessionID, Status: enums.SessionStatusOpen},
		Lines: []inventorysvc.SummaryLine{{
			ProductID:    productID,
			SKU:          "CAFE",
			StockStart:   10,
			CountedTotal: 7,
			Delta:        -3,
			DeviceCounts: map[string]int{"caisse-1": 4, "caisse-2": 3},
		}},
	}}
	handler := InventorySummary(svc, nil)

	req := withSessionParam(tenantRequest(http.MethodGet, "/inventory/"+sessionID.String()+"/summary", nil), sessionID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var envelope struct {
		Data struct {
			Lines []map[string]json.RawMessage `json:"lines"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Lines) != 1 {
		t.Fatalf("expected one line, got %d", len(envelope.Data.Lines))
	}
	line := envelope.Data.Lines[0]
	for _, key := range []string{"produit_id", "stock_start", "counted_total", "delta", "device_counts"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("missing wire field %q in %v", key, line)
		}
	}
}

func TestInventorySessionsStatusFilter(t *testing.T) {
	svc := &stubInventoryService{}
	handler := InventorySessions(svc, nil)

	req := tenantRequest(http.MethodGet, "/inventory/sessions?status=open", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.statusArg == nil || *svc.statusArg != enums.SessionStatusOpen {
		t.Fatalf("expected open filter, got %v", svc.statusArg)
	}

	svc.statusArg = nil
	req = tenantRequest(http.MethodGet, "/inventory/sessions?status=all", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.statusArg != nil {
		t.Fatalf("expected nil filter for all, got %v", *svc.statusArg)
	}

	req = tenantRequest(http.MethodGet, "/inventory/sessions?status=bogus", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
