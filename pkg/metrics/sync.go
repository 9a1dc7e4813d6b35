package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics instruments the terminal sync coordinator.
type SyncMetrics struct {
	pushSuccess *prometheus.CounterVec
	pushFailure *prometheus.CounterVec
	opsAcked    *prometheus.CounterVec
	opsRejected *prometheus.CounterVec
	backoff     *prometheus.GaugeVec
	pendingOps  *prometheus.GaugeVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	pushSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_push_success",
		Help: "Successful push cycles.",
	}, []string{"device"})
	pushFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_push_failure",
		Help: "Failed push cycles.",
	}, []string{"device"})
	opsAcked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_ops_acked",
		Help: "Operations acknowledged by the server.",
	}, []string{"device"})
	opsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_ops_rejected",
		Help: "Operations rejected by the server.",
	}, []string{"device"})
	backoff := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sync_backoff_seconds",
		Help: "Current retry delay of the sync loop.",
	}, []string{"device"})
	pendingOps := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sync_pending_ops",
		Help: "Operations waiting for server acknowledgement.",
	}, []string{"device"})
	reg.MustRegister(pushSuccess, pushFailure, opsAcked, opsRejected, backoff, pendingOps)
	return &SyncMetrics{
		pushSuccess: pushSuccess,
		pushFailure: pushFailure,
		opsAcked:    opsAcked,
		opsRejected: opsRejected,
		backoff:     backoff,
		pendingOps:  pendingOps,
	}
}

// IncPushSuccess increments the successful push cycle counter.
func (s *SyncMetrics) IncPushSuccess(device string) {
	if s == nil || s.pushSuccess == nil {
		return
	}
	s.pushSuccess.WithLabelValues(normalizeLabel(device)).Inc()
}

// IncPushFailure increments the failed push cycle counter.
func (s *SyncMetrics) IncPushFailure(device string) {
	if s == nil || s.pushFailure == nil {
		return
	}
	s.pushFailure.WithLabelValues(normalizeLabel(device)).Inc()
}

// AddOpsAcked counts operations acknowledged in a push cycle.
func (s *SyncMetrics) AddOpsAcked(device string, n int) {
	if s == nil || s.opsAcked == nil || n <= 0 {
		return
	}
	s.opsAcked.WithLabelValues(normalizeLabel(device)).Add(float64(n))
}

// AddOpsRejected counts operations the server refused in a push cycle.
func (s *SyncMetrics) AddOpsRejected(device string, n int) {
	if s == nil || s.opsRejected == nil || n <= 0 {
		return
	}
	s.opsRejected.WithLabelValues(normalizeLabel(device)).Add(float64(n))
}

// SetBackoff exposes the current retry delay.
func (s *SyncMetrics) SetBackoff(device string, d time.Duration) {
	if s == nil || s.backoff == nil {
		return
	}
	s.backoff.WithLabelValues(normalizeLabel(device)).Set(d.Seconds())
}

// SetPendingOps exposes the unacknowledged queue depth.
func (s *SyncMetrics) SetPendingOps(device string, n int64) {
	if s == nil || s.pendingOps == nil {
		return
	}
	s.pendingOps.WithLabelValues(normalizeLabel(device)).Set(float64(n))
}
