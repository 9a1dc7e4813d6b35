package cron

import (
	"context"
	"fmt"

	"github.com/bibo40140/caisse-backend/internal/ledger"
	"github.com/bibo40140/caisse-backend/pkg/logger"
)

type reconciler interface {
	Reconcile(ctx context.Context) (ledger.ReconcileReport, error)
}

// LedgerReconcileJobParams configure the ledger reconciliation job.
type LedgerReconcileJobParams struct {
	Logger *logger.Logger
	Ledger reconciler
}

// NewLedgerReconcileJob builds the job that backfills missing init
// movements and repairs diverged stock caches.
func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &ledgerReconcileJob{logg: params.Logger, ledger: params.Ledger}, nil
}

type ledgerReconcileJob struct {
	logg   *logger.Logger
	ledger reconciler
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	report, err := j.ledger.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("ledger reconcile: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"init_backfilled": report.InitBackfilled,
		"cache_repaired":  report.CacheRepaired,
	})
	j.logg.Info(logCtx, "ledger reconciliation complete")
	return nil
}
