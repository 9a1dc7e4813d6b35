package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibo40140/caisse-backend/api/middleware"
	"github.com/bibo40140/caisse-backend/api/responses"
	"github.com/bibo40140/caisse-backend/api/validators"
	inventorysvc "github.com/bibo40140/caisse-backend/internal/inventory"
	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
	pkgerrors "github.com/bibo40140/caisse-backend/pkg/errors"
	"github.com/bibo40140/caisse-backend/pkg/logger"
)

// InventoryStart opens a counting session, or hands back the tenant's
// already-open one.
func InventoryStart(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		var payload startSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, reused, err := svc.Start(r.Context(), inventorysvc.StartInput{
			TenantID: tenantID,
			Name:     payload.Name,
			User:     payload.User,
			Notes:    payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if reused {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, startSessionResponse{
			Session: newSessionResponse(*session),
			Reused:  reused,
		})
	}
}

// InventoryCountAdd accumulates a scanned quantity onto the calling device's
// count row. Qty is always an increment.
func InventoryCountAdd(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		sessionID, err := sessionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload countAddRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deviceID := payload.DeviceID
		if deviceID == "" {
			deviceID = middleware.DeviceIDFromContext(r.Context())
		}

		if err := svc.CountAdd(r.Context(), inventorysvc.CountAddInput{
			TenantID:  tenantID,
			SessionID: sessionID,
			ProductID: payload.ProductID,
			DeviceID:  deviceID,
			Qty:       payload.Qty,
			User:      payload.User,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"ok": true})
	}
}

// InventorySummary returns the live per-product view of a session.
func InventorySummary(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		sessionID, err := sessionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Summary(r.Context(), tenantID, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]summaryLineResponse, len(result.Lines))
		for i, line := range result.Lines {
			lines[i] = summaryLineResponse{
				ProductID:    line.ProductID,
				SKU:          line.SKU,
				Name:         line.Name,
				StockStart:   line.StockStart,
				CountedTotal: line.CountedTotal,
				Delta:        line.Delta,
				DeviceCounts: line.DeviceCounts,
			}
		}

		responses.WriteSuccess(w, summaryResponse{
			Session: newSessionResponse(result.Session),
			Lines:   lines,
		})
	}
}

// InventoryFinalize closes a session and applies counted stock. Exactly one
// caller wins; everyone else gets a conflict.
func InventoryFinalize(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		sessionID, err := sessionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload finalizeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recap, err := svc.Finalize(r.Context(), inventorysvc.FinalizeInput{
			TenantID:  tenantID,
			SessionID: sessionID,
			User:      payload.User,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adjustments := make([]adjustmentResponse, len(recap.Adjustments))
		for i, adj := range recap.Adjustments {
			adjustments[i] = newAdjustmentResponse(adj)
		}

		responses.WriteSuccess(w, finalizeResponse{
			Recap: recapResponse{
				Session:     newSessionResponse(recap.Session),
				Adjustments: adjustments,
			},
		})
	}
}

// InventorySessions lists the tenant's sessions, optionally filtered by
// status.
func InventorySessions(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		var statusFilter *enums.SessionStatus
		switch raw := r.URL.Query().Get("status"); raw {
		case "", "all":
		default:
			status, err := enums.ParseSessionStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			statusFilter = &status
		}

		sessions, err := svc.List(r.Context(), tenantID, statusFilter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]sessionResponse, len(sessions))
		for i, session := range sessions {
			out[i] = newSessionResponse(session)
		}
		responses.WriteSuccess(w, sessionListResponse{Sessions: out})
	}
}

func sessionIDParam(r *http.Request) (uuid.UUID, error) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session id")
	}
	return sessionID, nil
}

type startSessionRequest struct {
	Name  string  `json:"name"`
	User  *string `json:"user"`
	Notes *string `json:"notes"`
}

type countAddRequest struct {
	ProductID uuid.UUID `json:"produit_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
	DeviceID  string    `json:"device_id"`
	User      *string   `json:"user"`
}

type finalizeRequest struct {
	User *string `json:"user"`
}

type sessionResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	StartedBy *string    `json:"started_by,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func newSessionResponse(session models.InventorySession) sessionResponse {
	return sessionResponse{
		ID:        session.ID,
		Name:      session.Name,
		Status:    string(session.Status),
		StartedBy: session.StartedBy,
		Notes:     session.Notes,
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
	}
}

type startSessionResponse struct {
	Session sessionResponse `json:"session"`
	Reused  bool            `json:"reused"`
}

type summaryLineResponse struct {
	ProductID    uuid.UUID      `json:"produit_id"`
	SKU          string         `json:"sku"`
	Name         string         `json:"name"`
	StockStart   int            `json:"stock_start"`
	CountedTotal int            `json:"counted_total"`
	Delta        int            `json:"delta"`
	DeviceCounts map[string]int `json:"device_counts"`
}

type summaryResponse struct {
	Session sessionResponse       `json:"session"`
	Lines   []summaryLineResponse `json:"lines"`
}

type adjustmentResponse struct {
	ProductID    uuid.UUID       `json:"produit_id"`
	StockStart   int             `json:"stock_start"`
	CountedTotal int             `json:"counted_total"`
	Delta        int             `json:"delta"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	DeltaValue   decimal.Decimal `json:"delta_value"`
}

func newAdjustmentResponse(adj models.InventoryAdjust) adjustmentResponse {
	return adjustmentResponse{
		ProductID:    adj.ProductID,
		StockStart:   adj.StockStart,
		CountedTotal: adj.CountedTotal,
		Delta:        adj.Delta,
		UnitCost:     adj.UnitCost,
		DeltaValue:   adj.DeltaValue,
	}
}

type recapResponse struct {
	Session     sessionResponse      `json:"session"`
	Adjustments []adjustmentResponse `json:"adjustments"`
}

type finalizeResponse struct {
	Recap recapResponse `json:"recap"`
}

type sessionListResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}
