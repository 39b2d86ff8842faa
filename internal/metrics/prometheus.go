// Package metrics exposes a small Prometheus registry for the reconciler:
// cycle timing, chain actions, apply outcomes, and lock contention.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all metrics published by a pvefw-core process.
type Registry struct {
	// CycleDuration observes the wall-clock time of a full
	// parse+compile+reconcile+apply cycle.
	CycleDuration prometheus.Histogram

	// CyclesTotal counts completed cycles by outcome (ok,
	// discovery_error, apply_error, verify_error).
	CyclesTotal *prometheus.CounterVec

	// ChainActionsTotal counts per-cycle chain actions taken by the
	// reconciler (create, update, exists, delete).
	ChainActionsTotal *prometheus.CounterVec

	// ParseWarningsTotal counts recoverable per-line parse warnings,
	// labeled by rule file kind (vm, host, group, ipset).
	ParseWarningsTotal *prometheus.CounterVec

	// ApplyErrorsTotal counts failed iptables-restore invocations.
	ApplyErrorsTotal prometheus.Counter

	// LockWaitDuration observes time spent blocked acquiring the
	// single-instance advisory lock.
	LockWaitDuration prometheus.Histogram

	// RulesetChains reports the number of managed chains discovered in
	// the kernel at the start of the most recent cycle.
	RulesetChains prometheus.Gauge
}

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pvefw_cycle_duration_seconds",
		Help:    "Duration of a full parse/compile/reconcile/apply cycle",
		Buckets: prometheus.DefBuckets,
	})

	r.CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pvefw_cycles_total",
		Help: "Total reconciliation cycles by outcome",
	}, []string{"outcome"})

	r.ChainActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pvefw_chain_actions_total",
		Help: "Chain actions taken by the reconciler",
	}, []string{"action"})

	r.ParseWarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pvefw_parse_warnings_total",
		Help: "Recoverable per-line parse warnings",
	}, []string{"file_kind"})

	r.ApplyErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pvefw_apply_errors_total",
		Help: "Failed iptables-restore applications",
	})

	r.LockWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pvefw_lock_wait_seconds",
		Help:    "Time spent waiting for the single-instance advisory lock",
		Buckets: prometheus.DefBuckets,
	})

	r.RulesetChains = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pvefw_ruleset_chains",
		Help: "Number of managed chains discovered at the start of the cycle",
	})

	return r
}
