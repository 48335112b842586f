package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LdDl/sort-go/mot"
)

const namespace = "sort"

// Metrics holds collectors of the tracking pipeline registered in own registry
type Metrics struct {
	registry *prometheus.Registry

	FramesProcessed     prometheus.Counter
	FramesRejected      prometheus.Counter
	DetectionsTotal     prometheus.Counter
	DetectionsDropped   *prometheus.CounterVec
	TracksCreated       prometheus.Counter
	TracksDeleted       prometheus.Counter
	ActiveTracks        prometheus.Gauge
	ConfirmedTracks     prometheus.Gauge
	FrameDuration       prometheus.Histogram
	CheckpointsSaved    prometheus.Counter
	PublishErrors       prometheus.Counter
	lastCreated         int64
	lastDeleted         int64
	lastInvalid         int64
	lastFiltered        int64
	lastRejectedFrames  int64
	lastDetectionsTotal int64
}

// New creates collectors in a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		FramesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Total number of frames passed through the tracker",
		}),
		FramesRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Total number of out-of-order frames",
		}),
		DetectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total number of detections received",
		}),
		DetectionsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_dropped_total",
			Help:      "Detections dropped before association",
		}, []string{"reason"}),
		TracksCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_created_total",
			Help:      "Total number of tracks created",
		}),
		TracksDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_deleted_total",
			Help:      "Total number of tracks deleted",
		}),
		ActiveTracks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tracks",
			Help:      "Number of tracks alive after the last frame",
		}),
		ConfirmedTracks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "confirmed_tracks",
			Help:      "Number of confirmed tracks after the last frame",
		}),
		FrameDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Duration of a single tracker update",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		CheckpointsSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_saved_total",
			Help:      "Total number of tracker checkpoints persisted",
		}),
		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of failed result deliveries",
		}),
	}
}

// Registry returns registry with every collector of the pipeline
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves collectors in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Baseline remembers counters of a tracker restored from checkpoint, so only new activity is exported
func (m *Metrics) Baseline(stats mot.TrackerStats) {
	m.lastDetectionsTotal = stats.Detections
	m.lastInvalid = stats.InvalidDetections
	m.lastFiltered = stats.FilteredDetections
	m.lastCreated = stats.TracksCreated
	m.lastDeleted = stats.TracksDeleted
	m.lastRejectedFrames = stats.RejectedFrames
	m.ActiveTracks.Set(float64(stats.ActiveTracks))
	m.ConfirmedTracks.Set(float64(stats.ConfirmedTracks))
}

// ObserveFrame records duration of one update and moves counters by the difference with previous tracker stats.
// It must be called from a single goroutine.
func (m *Metrics) ObserveFrame(stats mot.TrackerStats, elapsed time.Duration) {
	m.FramesProcessed.Inc()
	m.FrameDuration.Observe(elapsed.Seconds())
	m.sync(stats)
}

// ObserveRejected records out-of-order frame
func (m *Metrics) ObserveRejected(stats mot.TrackerStats) {
	m.sync(stats)
}

func (m *Metrics) sync(stats mot.TrackerStats) {
	m.DetectionsTotal.Add(float64(delta(&m.lastDetectionsTotal, stats.Detections)))
	m.DetectionsDropped.WithLabelValues("invalid").Add(float64(delta(&m.lastInvalid, stats.InvalidDetections)))
	m.DetectionsDropped.WithLabelValues("low_confidence").Add(float64(delta(&m.lastFiltered, stats.FilteredDetections)))
	m.TracksCreated.Add(float64(delta(&m.lastCreated, stats.TracksCreated)))
	m.TracksDeleted.Add(float64(delta(&m.lastDeleted, stats.TracksDeleted)))
	m.FramesRejected.Add(float64(delta(&m.lastRejectedFrames, stats.RejectedFrames)))
	m.ActiveTracks.Set(float64(stats.ActiveTracks))
	m.ConfirmedTracks.Set(float64(stats.ConfirmedTracks))
}

func delta(last *int64, current int64) int64 {
	d := current - *last
	*last = current
	if d < 0 {
		return 0
	}
	return d
}
