// Package metrics defines Prometheus metrics for the neon server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neon_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neon_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neon_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	TaxonomyBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neon_taxonomy_builds_total",
			Help: "Taxonomy tree builds by widget",
		},
		[]string{"widget"},
	)

	TaxonomyBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "neon_taxonomy_build_duration_seconds",
			Help:    "Time spent aggregating records into a taxonomy tree",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	TaxonomyToggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neon_taxonomy_toggles_total",
			Help: "Checkbox toggles applied by new state",
		},
		[]string{"checked"},
	)

	TaxonomyNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "neon_taxonomy_nodes",
			Help: "Nodes in the most recently built taxonomy tree",
		},
	)

	FiltersExchanged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "neon_filters_exchanged_total",
			Help: "Filter designs set or deleted through exchanges",
		},
	)

	RecordsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "neon_records_ingested_total",
			Help: "Records loaded into datastore tables",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "neon_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)

	WidgetReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neon_widget_reloads_total",
			Help: "Widget configuration reloads by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		TaxonomyBuilds, TaxonomyBuildDuration, TaxonomyToggles, TaxonomyNodes,
		FiltersExchanged, RecordsIngested,
		WSConnections, WidgetReloads,
	)
}
