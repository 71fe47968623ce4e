package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for bloomd's filter
// manager.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	opsTotal      *prometheus.CounterVec
	vacuumCycles  prometheus.Counter
	versionsFreed prometheus.Counter

	opLatency    *prometheus.HistogramVec
	vacuumLength prometheus.Histogram

	activeFilters     prometheus.Gauge
	hotFilters        prometheus.Gauge
	versionChainDepth *prometheus.GaugeVec
}

var defaultBuckets = []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 500}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem under the
// given namespace.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ops_total",
				Help:      "Total filter manager operations by kind and outcome",
			},
			[]string{"op", "outcome"},
		),

		vacuumCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vacuum_cycles_total",
			Help:      "Total vacuum worker cycles run",
		}),

		versionsFreed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "versions_retired_total",
			Help:      "Total MVCC versions reclaimed by the vacuum worker",
		}),

		opLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "op_duration_ms",
				Help:      "Filter manager operation latency in milliseconds",
				Buckets:   buckets,
			},
			[]string{"op"},
		),

		vacuumLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vacuum_cycle_duration_ms",
			Help:      "Vacuum cycle latency in milliseconds",
			Buckets:   buckets,
		}),

		activeFilters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_filters",
			Help:      "Number of filters currently known to the manager",
		}),

		hotFilters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hot_filters",
			Help:      "Number of active filters whose hot flag is raised, as sampled by the vacuum worker",
		}),

		versionChainDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "version_chain_depth",
				Help:      "Length of the retired-version chain awaiting reclamation behind the labelled version",
			},
			[]string{"filter"},
		),
	}

	registry.MustRegister(
		pm.opsTotal,
		pm.vacuumCycles,
		pm.versionsFreed,
		pm.opLatency,
		pm.vacuumLength,
		pm.activeFilters,
		pm.hotFilters,
		pm.versionChainDepth,
	)

	promMetrics = pm
}

// RecordOp records one filter manager operation's outcome and latency.
func RecordOp(op, outcome string, durationMs float64) {
	if promMetrics == nil {
		return
	}
	promMetrics.opsTotal.WithLabelValues(op, outcome).Inc()
	promMetrics.opLatency.WithLabelValues(op).Observe(durationMs)
}

// RecordVacuumCycle records one vacuum cycle's duration and the number
// of versions it retired.
func RecordVacuumCycle(durationMs float64, versionsRetired int) {
	if promMetrics == nil {
		return
	}
	promMetrics.vacuumCycles.Inc()
	promMetrics.versionsFreed.Add(float64(versionsRetired))
	promMetrics.vacuumLength.Observe(durationMs)
}

// SetActiveFilters reports the current number of filters known to the
// manager.
func SetActiveFilters(n int) {
	if promMetrics == nil {
		return
	}
	promMetrics.activeFilters.Set(float64(n))
}

// SetHotFilters reports the current number of hot filters.
func SetHotFilters(n int) {
	if promMetrics == nil {
		return
	}
	promMetrics.hotFilters.Set(float64(n))
}

// SetVersionChainDepth reports the retired-version chain length behind
// the version identified by the given label value (the vacuum worker
// reports the manager-wide chain under "latest").
func SetVersionChainDepth(filter string, depth int) {
	if promMetrics == nil {
		return
	}
	promMetrics.versionChainDepth.WithLabelValues(filter).Set(float64(depth))
}

// PrometheusHandler serves the registry in the standard exposition
// format.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "prometheus metrics not initialized", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the underlying registry, mainly for tests.
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
