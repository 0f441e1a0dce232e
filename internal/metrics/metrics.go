package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the collection and render runs.
type Metrics struct {
	registry *prometheus.Registry

	SnapshotsWritten prometheus.Counter
	RepoFetches      *prometheus.CounterVec
	CollectDuration  prometheus.Histogram
	LastCollectUnix  prometheus.Gauge
	ChartsRendered   prometheus.Counter
	RenderFailures   prometheus.Counter
	RenderDuration   prometheus.Histogram
}

// New creates the collectors and registers them on registry. A nil
// registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		SnapshotsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "release_stats_snapshots_written_total",
			Help: "Total number of snapshot rows appended to the store",
		}),
		RepoFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "release_stats_repo_fetches_total",
				Help: "Repository collections by outcome",
			},
			[]string{"repo", "status"},
		),
		CollectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "release_stats_collect_duration_seconds",
			Help:    "Duration of a full collection run",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		LastCollectUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "release_stats_last_collect_timestamp_seconds",
			Help: "Capture timestamp of the last collection run",
		}),
		ChartsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "release_stats_charts_rendered_total",
			Help: "Total number of chart files written",
		}),
		RenderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "release_stats_render_failures_total",
			Help: "Total number of chart or overview writes that failed",
		}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "release_stats_render_duration_seconds",
			Help:    "Duration of a full render run",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.SnapshotsWritten,
		m.RepoFetches,
		m.CollectDuration,
		m.LastCollectUnix,
		m.ChartsRendered,
		m.RenderFailures,
		m.RenderDuration,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
