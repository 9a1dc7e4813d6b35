package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bibo40140/caisse-backend/internal/catalog"
	"github.com/bibo40140/caisse-backend/internal/oplog"
	"github.com/bibo40140/caisse-backend/pkg/config"
	"github.com/bibo40140/caisse-backend/pkg/db/models"
	"github.com/bibo40140/caisse-backend/pkg/logger"
	"github.com/bibo40140/caisse-backend/pkg/metrics"
	"github.com/bibo40140/caisse-backend/pkg/types"
)

// ErrSyncInFlight reports that a push/pull cycle is already running for
// this device.
var ErrSyncInFlight = errors.New("sync cycle already in flight")

// Status is a point-in-time view of the coordinator for UI and health
// endpoints.
type Status struct {
	DeviceID     string
	PendingOps   int64
	InFlight     bool
	LastSyncAt   time.Time
	LastError    string
	NextDelay    time.Duration
	LastPulledAt time.Time
}

// ServiceParams wires the sync coordinator's collaborators.
type ServiceParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	Oplog   oplog.Repository
	Catalog catalog.Repository
	Client  ServerClient
	Metrics *metrics.SyncMetrics
}

// Service owns the terminal's push/pull cycle against the central server.
// One cycle at a time per device; triggering never blocks the caller.
type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	oplog    oplog.Repository
	catalog  catalog.Repository
	client   ServerClient
	metrics  *metrics.SyncMetrics
	tenantID uuid.UUID
	deviceID string
	batch    int

	backoff  *Backoff
	inFlight atomic.Bool
	trigger  chan struct{}

	mu         sync.Mutex
	lastSyncAt time.Time
	lastError  string
	lastPullAt time.Time
}

// NewService builds the sync coordinator for the local device.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Oplog == nil {
		return nil, errors.New("oplog repository is required")
	}
	if params.Catalog == nil {
		return nil, errors.New("catalog repository is required")
	}
	if params.Client == nil {
		return nil, errors.New("server client is required")
	}
	if params.Config.Local.DeviceID == "" {
		return nil, errors.New("device id is required")
	}
	tenantID, err := uuid.Parse(params.Config.Local.TenantID)
	if err != nil {
		return nil, fmt.Errorf("parsing tenant id: %w", err)
	}

	batch := params.Config.Sync.BatchSize
	if batch <= 0 {
		batch = 50
	}

	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		oplog:    params.Oplog,
		catalog:  params.Catalog,
		client:   params.Client,
		metrics:  params.Metrics,
		tenantID: tenantID,
		deviceID: params.Config.Local.DeviceID,
		batch:    batch,
		backoff:  NewBackoff(params.Config.Sync.BackoffFloor, params.Config.Sync.BackoffCap),
		trigger:  make(chan struct{}, 1),
	}, nil
}

// Run drives the periodic cycle until the context is canceled. One single-
// shot timer per iteration; a trigger wakes the loop early.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Bootstrap(ctx); err != nil {
		s.logError(ctx, "bootstrap negotiation failed", err)
	}

	for {
		var delay time.Duration
		if err := s.SyncCycle(ctx); err != nil && !errors.Is(err, ErrSyncInFlight) {
			s.mu.Lock()
			delay = s.backoff.Fail()
			s.mu.Unlock()
			s.logError(ctx, "sync cycle failed", err)
		} else {
			s.mu.Lock()
			s.backoff.Reset()
			delay = s.backoff.Current()
			s.mu.Unlock()
		}
		if s.metrics != nil {
			s.metrics.SetBackoff(s.deviceID, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case <-s.trigger:
			timer.Stop()
		}
	}
}

// TriggerSync requests a cycle without waiting for it. Safe to call from
// request handlers; failures surface in Status and logs only.
func (s *Service) TriggerSync() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// SyncCycle pushes pending ops then pulls reference deltas. Returns
// ErrSyncInFlight when a cycle is already running.
func (s *Service) SyncCycle(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrSyncInFlight
	}
	defer s.inFlight.Store(false)

	if err := s.pushOps(ctx); err != nil {
		s.recordOutcome(err)
		if s.metrics != nil {
			s.metrics.IncPushFailure(s.deviceID)
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.IncPushSuccess(s.deviceID)
	}

	if err := s.pullRefs(ctx); err != nil {
		s.recordOutcome(err)
		return err
	}

	s.recordOutcome(nil)
	if s.metrics != nil {
		if pending, err := s.oplog.CountPending(ctx, s.deviceID); err == nil {
			s.metrics.SetPendingOps(s.deviceID, pending)
		}
	}
	return nil
}

func (s *Service) pushOps(ctx context.Context) error {
	ops, err := s.oplog.TakePending(ctx, s.deviceID, s.batch)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	wire := make([]types.WireOp, 0, len(ops))
	ids := make([]uuid.UUID, 0, len(ops))
	for _, op := range ops {
		wire = append(wire, types.WireOp{
			ID:          op.ID,
			OpType:      string(op.OpType),
			EntityType:  string(op.EntityType),
			EntityID:    op.EntityID,
			PayloadJSON: op.Payload,
		})
		ids = append(ids, op.ID)
	}

	resp, err := s.client.PushOps(ctx, types.PushOpsRequest{
		DeviceID: s.deviceID,
		Ops:      wire,
	})
	if err != nil {
		// Ops stay un-acked for the next cycle; only the bookkeeping moves.
		if markErr := s.oplog.MarkFailed(ctx, ids, err); markErr != nil {
			s.logError(ctx, "recording push failure", markErr)
		}
		return err
	}

	var accepted, rejected []uuid.UUID
	rejectedReason := map[uuid.UUID]string{}
	for _, ack := range resp.Acks {
		switch ack.Status {
		case "applied", "duplicate":
			accepted = append(accepted, ack.ID)
		default:
			rejected = append(rejected, ack.ID)
			rejectedReason[ack.ID] = ack.Error
		}
	}

	if err := s.oplog.MarkAcked(ctx, accepted); err != nil {
		return err
	}
	if len(rejected) > 0 {
		if err := s.oplog.MarkFailed(ctx, rejected, fmt.Errorf("rejected by server")); err != nil {
			return err
		}
		if s.logg != nil {
			for _, id := range rejected {
				fields := map[string]any{"op_id": id.String(), "reason": rejectedReason[id]}
				s.logg.Warn(s.logg.WithFields(ctx, fields), "operation rejected by server")
			}
		}
	}
	if s.metrics != nil {
		s.metrics.AddOpsAcked(s.deviceID, len(accepted))
		s.metrics.AddOpsRejected(s.deviceID, len(rejected))
	}
	return nil
}

// pullRefs upserts catalog deltas by natural key. Pulls never delete rows.
func (s *Service) pullRefs(ctx context.Context) error {
	s.mu.Lock()
	since := s.lastPullAt
	s.mu.Unlock()

	resp, err := s.client.PullRefs(ctx, since)
	if err != nil {
		return err
	}

	for _, ref := range resp.Products {
		product := models.Product{
			ID:        ref.ID,
			TenantID:  s.tenantID,
			SKU:       ref.SKU,
			Name:      ref.Name,
			UnitPrice: ref.UnitPrice,
			Stock:     ref.Stock,
			Deleted:   ref.Deleted,
		}
		if product.ID == uuid.Nil {
			product.ID = uuid.New()
		}
		if err := s.catalog.UpsertBySKU(ctx, &product); err != nil {
			return err
		}
	}

	watermark := resp.ServerAt
	if watermark.IsZero() {
		watermark = time.Now()
	}
	s.mu.Lock()
	s.lastPullAt = watermark
	s.mu.Unlock()
	return nil
}

// Bootstrap runs the cold-start negotiation: if the server reports an empty
// tenant, upload the local reference set once instead of replaying the op
// log.
func (s *Service) Bootstrap(ctx context.Context) error {
	needed, err := s.client.BootstrapNeeded(ctx)
	if err != nil {
		return err
	}
	if !needed {
		return nil
	}

	products, err := s.catalog.ListActive(ctx, s.tenantID)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return nil
	}

	refs := make([]types.ProductRef, 0, len(products))
	for _, product := range products {
		refs = append(refs, types.ProductRef{
			ID:        product.ID,
			SKU:       product.SKU,
			Name:      product.Name,
			UnitPrice: product.UnitPrice,
			Stock:     product.Stock,
			Deleted:   product.Deleted,
			UpdatedAt: product.UpdatedAt,
		})
	}

	resp, err := s.client.Bootstrap(ctx, types.BootstrapRequest{Products: refs})
	if err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithField(ctx, "seeded", resp.Seeded)
		s.logg.Info(logCtx, "server seeded from local reference set")
	}
	return nil
}

// Status reports the coordinator's current state.
func (s *Service) Status(ctx context.Context) Status {
	pending, err := s.oplog.CountPending(ctx, s.deviceID)
	if err != nil {
		pending = -1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		DeviceID:     s.deviceID,
		PendingOps:   pending,
		InFlight:     s.inFlight.Load(),
		LastSyncAt:   s.lastSyncAt,
		LastError:    s.lastError,
		NextDelay:    s.backoff.Current(),
		LastPulledAt: s.lastPullAt,
	}
}

func (s *Service) recordOutcome(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = err.Error()
		return
	}
	s.lastSyncAt = time.Now()
	s.lastError = ""
}

func (s *Service) logError(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(ctx, msg, err)
}
