package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics tracks payment callback reconciliation outcomes.
type ReconcileMetrics struct {
	callbacks *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	stkPushes *prometheus.CounterVec
}

// Callback result labels.
const (
	ResultSucceeded  = "succeeded"
	ResultFailed     = "failed"
	ResultDuplicate  = "duplicate"
	ResultUnknown    = "unknown"
	ResultMismatch   = "amount_mismatch"
	ResultUnverified = "unverified"
)

// NewReconcileMetrics registers the reconciliation metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Payment gateway callbacks by reconciliation result.",
	}, []string{"result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_reconcile_seconds",
		Help:    "Duration of callback reconciliation in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	stkPushes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stk_push_requests_total",
		Help: "STK push initiation attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(callbacks, duration, stkPushes)
	return &ReconcileMetrics{
		callbacks: callbacks,
		duration:  duration,
		stkPushes: stkPushes,
	}
}

// IncCallback increments the callback counter for the given result label.
func (r *ReconcileMetrics) IncCallback(result string) {
	if r == nil || r.callbacks == nil {
		return
	}
	r.callbacks.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveReconcile records how long a reconciliation took.
func (r *ReconcileMetrics) ObserveReconcile(result string, duration time.Duration) {
	if r == nil || r.duration == nil {
		return
	}
	r.duration.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}

// IncSTKPush increments the initiation counter for the given outcome.
func (r *ReconcileMetrics) IncSTKPush(outcome string) {
	if r == nil || r.stkPushes == nil {
		return
	}
	r.stkPushes.WithLabelValues(normalizeLabel(outcome)).Inc()
}
