package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bibo40140/caisse-backend/api/controllers"
	"github.com/bibo40140/caisse-backend/api/middleware"
	ingestsvc "github.com/bibo40140/caisse-backend/internal/ingest"
	inventorysvc "github.com/bibo40140/caisse-backend/internal/inventory"
	"github.com/bibo40140/caisse-backend/pkg/config"
	"github.com/bibo40140/caisse-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	inventoryService inventorysvc.Service,
	ingestService ingestsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/start", controllers.InventoryStart(inventoryService, logg))
			r.Get("/sessions", controllers.InventorySessions(inventoryService, logg))
			r.Route("/{sessionId}", func(r chi.Router) {
				r.Post("/count-add", controllers.InventoryCountAdd(inventoryService, logg))
				r.Get("/summary", controllers.InventorySummary(inventoryService, logg))
				r.Post("/finalize", controllers.InventoryFinalize(inventoryService, logg))
			})
		})

		r.Route("/sync", func(r chi.Router) {
			r.Post("/push_ops", controllers.SyncPushOps(ingestService, logg))
			r.Get("/pull_refs", controllers.SyncPullRefs(ingestService, logg))
			r.Get("/bootstrap_needed", controllers.SyncBootstrapNeeded(ingestService, logg))
			r.Post("/bootstrap", controllers.SyncBootstrap(ingestService, logg))
		})
	})

	return r
}
