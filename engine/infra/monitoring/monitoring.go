// Package monitoring exposes Prometheus counters/histograms for the
// dispatch, scheduler and runtime-reaper concerns SPEC_FULL.md calls out,
// following the teacher's engine/infra/monitoring package (Service wrapping
// a registry, ExporterHandler serving /metrics) but backed directly by
// prometheus/client_golang rather than an OpenTelemetry meter — this
// module never wires an OTel SDK, so there's no meter provider to sit
// behind.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service bundles every instrument the server, dispatcher and scheduler
// record against, plus the /metrics HTTP handler.
type Service struct {
	registry *prometheus.Registry

	dispatchTotal     *prometheus.CounterVec
	dispatchLatency   *prometheus.HistogramVec
	schedulerMisfires *prometheus.CounterVec
	runtimeReaps      *prometheus.CounterVec
}

// New builds a Service with its own registry, isolated from the default
// global one so tests can construct throwaway instances freely.
func New() *Service {
	registry := prometheus.NewRegistry()
	s := &Service{
		registry: registry,
		dispatchTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: "hookflow",
			Subsystem: "dispatch",
			Name:      "executions_total",
			Help:      "Executions dispatched, labeled by trigger kind and terminal status.",
		}, []string{"trigger_type", "status"}),
		dispatchLatency: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hookflow",
			Subsystem: "dispatch",
			Name:      "latency_seconds",
			Help:      "Time from RECEIVED to a terminal execution status.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"trigger_type"}),
		schedulerMisfires: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: "hookflow",
			Subsystem: "scheduler",
			Name:      "misfires_total",
			Help:      "Cron jobs skipped for firing past their misfire grace period.",
		}, []string{}),
		runtimeReaps: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: "hookflow",
			Subsystem: "runtime",
			Name:      "reaped_total",
			Help:      "Runtime-managed containers/functions/pods reaped after completion.",
		}, []string{"backend"}),
	}
	return s
}

// RecordDispatch records one terminal execution outcome.
func (s *Service) RecordDispatch(triggerType, status string, elapsed time.Duration) {
	if s == nil {
		return
	}
	s.dispatchTotal.WithLabelValues(triggerType, status).Inc()
	s.dispatchLatency.WithLabelValues(triggerType).Observe(elapsed.Seconds())
}

// RecordMisfire records one skipped cron firing.
func (s *Service) RecordMisfire() {
	if s == nil {
		return
	}
	s.schedulerMisfires.WithLabelValues().Inc()
}

// RecordReap records one backend reclaiming a completed runtime instance.
func (s *Service) RecordReap(backend string) {
	if s == nil {
		return
	}
	s.runtimeReaps.WithLabelValues(backend).Inc()
}

// Handler serves the registry's current state in the Prometheus exposition
// format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
