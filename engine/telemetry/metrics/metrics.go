// Package metrics exposes the AEGIS pipeline's Prometheus collectors,
// grounded on the teacher's engine/telemetry/metrics.PrometheusProvider:
// a registry-backed provider that registers every named collector up front
// in New and tolerates double-registration (returning the existing
// collector rather than erroring), so several Metrics bundles built over
// one registry share the same collectors.
package metrics

import (
	"net/http"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the scheduler, cycle, health tracker,
// dispatch and replicator packages emit to.
type Metrics struct {
	reg *prom.Registry
	mu  sync.Mutex

	CyclesTotal       *prom.CounterVec
	CycleSkippedTotal prom.Counter
	CycleDuration     *prom.HistogramVec
	CameraFailures    *prom.CounterVec
	CameraAutoDisable *prom.CounterVec
	RoutesComputed    *prom.CounterVec
	RadioInvocations  *prom.CounterVec
	ReplicationRuns   *prom.CounterVec
	ReplicationDur    prom.Histogram

	handler http.Handler
}

// New constructs a Metrics bundle registered against reg.
// Passing a nil registry creates a private one (safe for tests that want
// isolation from the process-wide default registry).
func New(reg *prom.Registry) *Metrics {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	m := &Metrics{reg: reg}

	m.CyclesTotal = m.counterVec(prom.CounterOpts{
		Name: "aegis_cycles_total", Help: "Scheduler cycles started, by outcome.",
	}, []string{"outcome"})
	m.CycleSkippedTotal = m.counter(prom.CounterOpts{
		Name: "aegis_cycle_skipped_total", Help: "Ticks skipped because the cycle mutex was already held.",
	})
	m.CycleDuration = m.histogramVec(prom.HistogramOpts{
		Name: "aegis_cycle_stage_duration_seconds", Help: "Per-floor cycle stage duration.", Buckets: prom.DefBuckets,
	}, []string{"floor_id", "stage"})
	m.CameraFailures = m.counterVec(prom.CounterOpts{
		Name: "aegis_camera_failures_total", Help: "Consecutive camera capture/fuse failures observed.",
	}, []string{"camera_id"})
	m.CameraAutoDisable = m.counterVec(prom.CounterOpts{
		Name: "aegis_camera_auto_disabled_total", Help: "Cameras auto-disabled after crossing the failure threshold.",
	}, []string{"camera_id"})
	m.RoutesComputed = m.counterVec(prom.CounterOpts{
		Name: "aegis_routes_computed_total", Help: "Routes computed, by hazard level.",
	}, []string{"floor_id", "hazard_level"})
	m.RadioInvocations = m.counterVec(prom.CounterOpts{
		Name: "aegis_radio_invocations_total", Help: "Radio fallback invocations, by outcome.",
	}, []string{"floor_id", "outcome"})
	m.ReplicationRuns = m.counterVec(prom.CounterOpts{
		Name: "aegis_replication_runs_total", Help: "Cloud replication runs, by outcome.",
	}, []string{"outcome"})
	m.ReplicationDur = m.histogram(prom.HistogramOpts{
		Name: "aegis_replication_duration_seconds", Help: "Cloud replication run duration.", Buckets: prom.DefBuckets,
	})

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m
}

// Handler returns the HTTP handler serving /metrics.
func (m *Metrics) Handler() http.Handler { return m.handler }

func (m *Metrics) counter(opts prom.CounterOpts) prom.Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := prom.NewCounter(opts)
	if err := m.reg.Register(c); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prom.Counter)
		}
	}
	return c
}

func (m *Metrics) counterVec(opts prom.CounterOpts, labels []string) *prom.CounterVec {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := prom.NewCounterVec(opts, labels)
	if err := m.reg.Register(v); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prom.CounterVec)
		}
	}
	return v
}

func (m *Metrics) histogram(opts prom.HistogramOpts) prom.Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := prom.NewHistogram(opts)
	if err := m.reg.Register(h); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prom.Histogram)
		}
	}
	return h
}

func (m *Metrics) histogramVec(opts prom.HistogramOpts, labels []string) *prom.HistogramVec {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := prom.NewHistogramVec(opts, labels)
	if err := m.reg.Register(v); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prom.HistogramVec)
		}
	}
	return v
}
