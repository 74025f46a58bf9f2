// Package telemetry provides logging setup and Prometheus metrics for PlatformHub.
//
// Metrics are registered against the default registry and served by the
// side-channel HTTP server started in cmd/server on
// PLATFORMHUB_TELEMETRY_METRICS_PROMETHEUS_PORT (default 9090). They are not
// exposed through the Gin router.
//
// HTTP metrics use c.FullPath() (route template such as /requests/:id) rather
// than the raw URL to keep label cardinality bounded.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
//
// Example PromQL:
//   - error rate: sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m]))
//   - p99 per route: histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Workflow metrics.
//
// RequestsCreatedTotal counts submitted resource requests by resource type.
// ReviewsTotal counts committed review decisions ("approved" or "rejected").
// A rising rate(platformhub_reviews_total{decision="rejected"}[1d]) usually
// means the catalog defaults need another look.
var (
	RequestsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platformhub_requests_created_total",
			Help: "Total number of resource requests submitted, by resource type.",
		},
		[]string{"resource_type"},
	)

	ReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platformhub_reviews_total",
			Help: "Total number of review decisions committed, by decision.",
		},
		[]string{"decision"},
	)

	ManifestRenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "platformhub_manifest_render_duration_seconds",
			Help:    "Time spent rendering and validating a manifest, by resource type.",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"resource_type"},
	)
)

// AuditShipFailuresTotal counts audit entries a shipper failed to deliver.
// The database copy is authoritative, so failures here never fail a request.
var AuditShipFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "platformhub_audit_ship_failures_total",
		Help: "Total number of audit entries that could not be shipped, by shipper.",
	},
	[]string{"shipper"},
)

// ManifestArchiveFailuresTotal counts approved manifests that could not be
// written to the configured storage backend.
var ManifestArchiveFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "platformhub_manifest_archive_failures_total",
		Help: "Total number of approved manifests that failed to archive.",
	},
)

// DBOpenConnections tracks open connections in the pool. It is sampled by
// StartDBStatsCollector rather than per request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every interval until ctx is
// cancelled or the database stops answering pings.
func StartDBStatsCollector(ctx context.Context, db *sqlx.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
