package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bibo40140/caisse-backend/api/middleware"
	"github.com/bibo40140/caisse-backend/api/responses"
	"github.com/bibo40140/caisse-backend/api/validators"
	ingestsvc "github.com/bibo40140/caisse-backend/internal/ingest"
	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/enums"
	pkgerrors "github.com/bibo40140/caisse-backend/pkg/errors"
	"github.com/bibo40140/caisse-backend/pkg/logger"
	"github.com/bibo40140/caisse-backend/pkg/types"
)

// SyncPushOps ingests a device's queued operations and acknowledges each one
// by id. Redelivered operations ack as duplicates without reapplying.
func SyncPushOps(svc ingestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ingest service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		var payload types.PushOpsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ops := make([]models.Operation, len(payload.Ops))
		for i, wireOp := range payload.Ops {
			// Unknown op or entity kinds are rejected per-op downstream so one
			// bad operation never sinks the batch.
			ops[i] = models.Operation{
				ID:         wireOp.ID,
				TenantID:   tenantID,
				DeviceID:   payload.DeviceID,
				OpType:     enums.OpType(wireOp.OpType),
				EntityType: enums.EntityType(wireOp.EntityType),
				EntityID:   wireOp.EntityID,
				Payload:    wireOp.PayloadJSON,
			}
		}

		acks, err := svc.ApplyOps(r.Context(), tenantID, payload.DeviceID, ops)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]types.OpAck, len(acks))
		for i, ack := range acks {
			out[i] = types.OpAck{ID: ack.ID, Status: string(ack.Status), Error: ack.Error}
		}
		responses.WriteSuccess(w, types.PushOpsResponse{Acks: out})
	}
}

// SyncPullRefs returns reference-table rows changed since the requested
// watermark, deletions included as tombstones.
func SyncPullRefs(svc ingestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ingest service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		since, err := validators.ParseSinceQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		serverAt := time.Now().UTC()
		products, err := svc.PullRefs(r.Context(), tenantID, since)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refs := make([]types.ProductRef, len(products))
		for i, product := range products {
			refs[i] = newProductRef(product)
		}
		responses.WriteSuccess(w, types.PullRefsResponse{Products: refs, ServerAt: serverAt})
	}
}

// SyncBootstrapNeeded answers the cold-start negotiation: true while the
// tenant has no catalog on the server.
func SyncBootstrapNeeded(svc ingestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ingest service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		needed, err := svc.BootstrapNeeded(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, types.BootstrapNeededResponse{Needed: needed})
	}
}

// SyncBootstrap seeds an empty tenant with a terminal's full reference set.
func SyncBootstrap(svc ingestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ingest service unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
			return
		}

		var payload types.BootstrapRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products := make([]models.Product, len(payload.Products))
		for i, ref := range payload.Products {
			products[i] = models.Product{
				ID:        ref.ID,
				TenantID:  tenantID,
				SKU:       ref.SKU,
				Name:      ref.Name,
				UnitPrice: ref.UnitPrice,
				Stock:     ref.Stock,
				Deleted:   ref.Deleted,
			}
		}

		seeded, err := svc.Bootstrap(r.Context(), tenantID, products)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, types.BootstrapResponse{Seeded: seeded})
	}
}

func newProductRef(product models.Product) types.ProductRef {
	return types.ProductRef{
		ID:        product.ID,
		SKU:       product.SKU,
		Name:      product.Name,
		UnitPrice: product.UnitPrice,
		Stock:     product.Stock,
		Deleted:   product.Deleted,
		UpdatedAt: product.UpdatedAt,
	}
}
