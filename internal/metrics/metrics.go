// Package metrics holds the Prometheus collectors for benchmark runs.
// Collectors live on a private registry so tests and concurrent runs do
// not collide on the default one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "octree"

// Bench is the set of collectors a benchmark run updates.
type Bench struct {
	Registry *prometheus.Registry

	filesProcessed *prometheus.CounterVec
	pointsTotal    prometheus.Counter
	bitsPerPoint   prometheus.Histogram
	estimateTime   *prometheus.HistogramVec
	inFlight       prometheus.Gauge
}

// NewBench creates the collectors and registers them on a fresh registry.
func NewBench() *Bench {
	b := &Bench{
		Registry: prometheus.NewRegistry(),
		filesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Files processed, by outcome.",
		}, []string{"status"}),
		pointsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_processed_total",
			Help:      "Leaf points of successfully estimated files.",
		}),
		bitsPerPoint: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bits_per_point",
			Help:      "Estimated bits per point per file.",
			Buckets:   prometheus.LinearBuckets(0, 0.5, 33),
		}),
		estimateTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent per file in each stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files_in_flight",
			Help:      "Files currently being processed.",
		}),
	}
	b.Registry.MustRegister(b.filesProcessed, b.pointsTotal, b.bitsPerPoint, b.estimateTime, b.inFlight)
	return b
}

// FileDone records the outcome of one file. points and bpp are only
// observed for successful files.
func (b *Bench) FileDone(status string, points int, bpp float64) {
	if b == nil {
		return
	}
	b.filesProcessed.WithLabelValues(status).Inc()
	if status == "ok" {
		b.pointsTotal.Add(float64(points))
		b.bitsPerPoint.Observe(bpp)
	}
}

// ObserveStage records the duration of one stage ("read", "quantize",
// "pyramid", "estimate", "record").
func (b *Bench) ObserveStage(stage string, d time.Duration) {
	if b == nil {
		return
	}
	b.estimateTime.WithLabelValues(stage).Observe(d.Seconds())
}

// Begin marks a file as in flight and returns the func that ends it.
func (b *Bench) Begin() func() {
	if b == nil {
		return func() {}
	}
	b.inFlight.Inc()
	return b.inFlight.Dec
}

// Handler serves the registry in the Prometheus exposition format.
func (b *Bench) Handler() http.Handler {
	return promhttp.HandlerFor(b.Registry, promhttp.HandlerOpts{Registry: b.Registry})
}
