package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bibo40140/caisse-backend/internal/catalog"
	"github.com/bibo40140/caisse-backend/internal/oplog"
	"github.com/bibo40140/caisse-backend/internal/syncer"
	"github.com/bibo40140/caisse-backend/pkg/config"
	"github.com/bibo40140/caisse-backend/pkg/db"
	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/logger"
	"github.com/bibo40140/caisse-backend/pkg/metrics"
)

// The agent runs next to the till: it owns the local SQLite store's sync
// tables and drains the ops queue against the central server.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "agent"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "agent",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	localClient, err := db.OpenLocal(ctx, cfg.Local, logg)
	requireResource(ctx, logg, "local database", err)
	defer func() {
		if err := localClient.Close(); err != nil {
			logg.Error(ctx, "error closing local database", err)
		}
	}()

	err = localClient.DB().AutoMigrate(&models.Operation{}, &models.Product{})
	requireResource(ctx, logg, "local schema", err)

	serverClient, err := syncer.NewHTTPClient(cfg.Sync)
	requireResource(ctx, logg, "server client", err)

	syncService, err := syncer.NewService(syncer.ServiceParams{
		Config:  cfg,
		Logger:  logg,
		Oplog:   oplog.NewRepository(localClient.DB()),
		Catalog: catalog.NewRepository(localClient.DB()),
		Client:  serverClient,
		Metrics: metrics.NewSyncMetrics(prometheus.DefaultRegisterer),
	})
	requireResource(ctx, logg, "sync service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":       cfg.App.Env,
		"device_id": cfg.Local.DeviceID,
	})
	logg.Info(runCtx, "sync agent ready")

	if err := syncService.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "sync agent failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "sync agent shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
