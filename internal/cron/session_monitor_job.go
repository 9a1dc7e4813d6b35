package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/logger"
)

const defaultStuckThreshold = time.Hour

type stuckSessionLister interface {
	ListStuckFinalizing(ctx context.Context, cutoff time.Time) ([]models.InventorySession, error)
}

// SessionMonitorJobParams configure the stuck-session watchdog.
type SessionMonitorJobParams struct {
	Logger    *logger.Logger
	Sessions  stuckSessionLister
	Threshold time.Duration
}

// NewSessionMonitorJob builds the job that flags sessions parked in
// finalizing, which happens when a finalize transaction died mid-flight.
func NewSessionMonitorJob(params SessionMonitorJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session lister required")
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = defaultStuckThreshold
	}
	return &sessionMonitorJob{
		logg:      params.Logger,
		sessions:  params.Sessions,
		threshold: threshold,
		now:       time.Now,
	}, nil
}

type sessionMonitorJob struct {
	logg      *logger.Logger
	sessions  stuckSessionLister
	threshold time.Duration
	now       func() time.Time
}

func (j *sessionMonitorJob) Name() string { return "session-monitor" }

func (j *sessionMonitorJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.threshold)
	stuck, err := j.sessions.ListStuckFinalizing(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("listing stuck sessions: %w", err)
	}
	for _, session := range stuck {
		fields := map[string]any{
			"session_id": session.ID.String(),
			"tenant_id":  session.TenantID.String(),
			"started_at": session.StartedAt,
		}
		j.logg.Warn(j.logg.WithFields(ctx, fields), "session stuck in finalizing")
	}
	logCtx := j.logg.WithField(ctx, "stuck_sessions", len(stuck))
	j.logg.Info(logCtx, "session monitor sweep complete")
	return nil
}
