// Package prom exports balancer events as Prometheus metrics.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/unkn0wn-root/balancer"
)

// Hooks counts balancer events. Register it once per registry.
type Hooks struct {
	backendFailures *prometheus.CounterVec
	locksAcquired   prometheus.Counter
	locksReleased   prometheus.Counter
	lockWait        prometheus.Histogram
	writesRejected  prometheus.Counter
	expiryFailures  *prometheus.CounterVec
	selfHeals       *prometheus.CounterVec
}

var _ balancer.Hooks = (*Hooks)(nil)

// New builds the metrics under namespace (e.g. "app") and registers them on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(namespace string, reg prometheus.Registerer) (*Hooks, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	const sub = "balancer"
	h := &Hooks{
		backendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "backend_failures_total",
			Help: "Commands that could not be executed on a backend.",
		}, []string{"backend", "cmd"}),
		locksAcquired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "locks_acquired_total",
			Help: "Fill locks stored by this instance.",
		}),
		locksReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "locks_released_total",
			Help: "Fill locks removed by this instance.",
		}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: sub,
			Name:    "lock_wait_seconds",
			Help:    "Time reads spent waiting on another instance's fill lock.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}),
		writesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "writes_rejected_total",
			Help: "Overwrites refused because another instance holds the fill lock.",
		}),
		expiryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "expiry_failures_total",
			Help: "Keys whose expiry could not be set during a multi-set.",
		}, []string{"backend"}),
		selfHeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "self_heals_total",
			Help: "Cached values deleted on read.",
		}, []string{"reason"}),
	}

	for _, c := range []prometheus.Collector{
		h.backendFailures, h.locksAcquired, h.locksReleased, h.lockWait,
		h.writesRejected, h.expiryFailures, h.selfHeals,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) BackendFailed(backend, command string, _ error) {
	h.backendFailures.WithLabelValues(backend, command).Inc()
}

func (h *Hooks) LockAcquired(string, time.Duration) { h.locksAcquired.Inc() }
func (h *Hooks) LockReleased(string)                { h.locksReleased.Inc() }

func (h *Hooks) LockWaited(_ string, waited time.Duration) {
	h.lockWait.Observe(waited.Seconds())
}

func (h *Hooks) WriteRejected(string) { h.writesRejected.Inc() }

func (h *Hooks) ExpiryFailed(backend string, keys []string) {
	h.expiryFailures.WithLabelValues(backend).Add(float64(len(keys)))
}

func (h *Hooks) SelfHeal(_ string, reason string) {
	h.selfHeals.WithLabelValues(reason).Inc()
}
