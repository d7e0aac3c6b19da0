package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	workspaceOpsTotal *prometheus.CounterVec

	syncRunsTotal    prometheus.Counter
	syncRunDuration  prometheus.Histogram
	modelsCreated    *prometheus.CounterVec
	modelsDisposed   *prometheus.CounterVec
	registeredModels prometheus.Gauge

	snippetsSavedTotal  prometheus.Counter
	snippetsLoadedTotal *prometheus.CounterVec
	snippetsPurgedTotal prometheus.Counter

	mirrorEventsTotal *prometheus.CounterVec

	activeSessions     prometheus.Gauge
	gatewayRequests    *prometheus.CounterVec
	gatewayReqDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			workspaceOpsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "workspace_operations_total",
					Help: "Total workspace store operations by operation and status.",
				},
				[]string{"op", "status"},
			),
			syncRunsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "editor_sync_runs_total",
					Help: "Total editor sync reconciliation runs.",
				},
			),
			syncRunDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "editor_sync_run_duration_seconds",
					Help:    "Editor sync reconciliation duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			modelsCreated: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "editor_models_created_total",
					Help: "Total document models created by language.",
				},
				[]string{"language"},
			),
			modelsDisposed: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "editor_models_disposed_total",
					Help: "Total document models disposed by language.",
				},
				[]string{"language"},
			),
			registeredModels: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "editor_models_live",
					Help: "Workspace-backed document models after the last sync run.",
				},
			),
			snippetsSavedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "snippets_saved_total",
					Help: "Total shared snippets saved.",
				},
			),
			snippetsLoadedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "snippets_loaded_total",
					Help: "Total snippet lookups by source (cache, db, miss).",
				},
				[]string{"source"},
			),
			snippetsPurgedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "snippets_purged_total",
					Help: "Total expired snippets purged.",
				},
			),
			mirrorEventsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mirror_events_total",
					Help: "Total directory mirror events applied by operation.",
				},
				[]string{"op"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "gateway_active_sessions",
					Help: "Current connected playground sessions.",
				},
			),
			gatewayRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gateway_requests_total",
					Help: "Total gateway requests by method and status.",
				},
				[]string{"method", "status"},
			),
			gatewayReqDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "gateway_request_duration_seconds",
					Help:    "Gateway request duration in seconds by method.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method"},
			),
		}

		prometheus.MustRegister(
			m.workspaceOpsTotal,
			m.syncRunsTotal,
			m.syncRunDuration,
			m.modelsCreated,
			m.modelsDisposed,
			m.registeredModels,
			m.snippetsSavedTotal,
			m.snippetsLoadedTotal,
			m.snippetsPurgedTotal,
			m.mirrorEventsTotal,
			m.activeSessions,
			m.gatewayRequests,
			m.gatewayReqDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordWorkspaceOp(op string, success bool) {
	m := getMetrics()
	m.workspaceOpsTotal.WithLabelValues(op, statusLabel(success)).Inc()
}

func RecordSyncRun(duration time.Duration, liveModels int) {
	m := getMetrics()
	m.syncRunsTotal.Inc()
	m.syncRunDuration.Observe(duration.Seconds())
	m.registeredModels.Set(float64(liveModels))
}

func RecordModelCreated(language string) {
	m := getMetrics()
	m.modelsCreated.WithLabelValues(language).Inc()
}

func RecordModelDisposed(language string) {
	m := getMetrics()
	m.modelsDisposed.WithLabelValues(language).Inc()
}

func RecordSnippetSaved() {
	getMetrics().snippetsSavedTotal.Inc()
}

func RecordSnippetLoaded(source string) {
	getMetrics().snippetsLoadedTotal.WithLabelValues(source).Inc()
}

func RecordSnippetsPurged(count int) {
	getMetrics().snippetsPurgedTotal.Add(float64(count))
}

func RecordMirrorEvent(op string) {
	getMetrics().mirrorEventsTotal.WithLabelValues(op).Inc()
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordGatewayRequest(method string, duration time.Duration, success bool) {
	m := getMetrics()
	m.gatewayRequests.WithLabelValues(method, statusLabel(success)).Inc()
	m.gatewayReqDuration.WithLabelValues(method).Observe(duration.Seconds())
}
