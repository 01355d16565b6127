// Package metrics records batch-run statistics on a private Prometheus registry. The
// registry is exported as a node_exporter textfile at the end of a run; there is no
// scrape endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shotmotion"

// Recorder is safe for concurrent use by the shot workers.
type Recorder struct {
	registry *prometheus.Registry

	shotsTotal       *prometheus.CounterVec
	shotDuration     *prometheus.HistogramVec
	coherenceScore   *prometheus.HistogramVec
	overallScore     prometheus.Histogram
	artifactsTotal   *prometheus.CounterVec
	movementFailures *prometheus.CounterVec
	framesTotal      prometheus.Counter
}

// NewRecorder registers every collector on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		shotsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shots_total",
				Help:      "Shots processed, by outcome",
			},
			[]string{"status"},
		),
		shotDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "shot_stage_duration_seconds",
				Help:      "Time spent per shot stage",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"stage"},
		),
		coherenceScore: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "coherence_score",
				Help:      "Per-metric coherence scores",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"metric"},
		),
		overallScore: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "coherence_overall_score",
				Help:      "Overall coherence score per shot",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
		artifactsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_total",
				Help:      "Detected artifacts, by type",
			},
			[]string{"type"},
		),
		movementFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "movement_failures_total",
				Help:      "Camera movements that failed, by movement type",
			},
			[]string{"movement"},
		),
		framesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_transformed_total",
				Help:      "Frames produced by camera movements",
			},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) RecordShot(ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	r.shotsTotal.WithLabelValues(status).Inc()
}

func (r *Recorder) RecordStage(stage string, d time.Duration) {
	r.shotDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) RecordScore(metric string, score float64) {
	r.coherenceScore.WithLabelValues(metric).Observe(score)
}

func (r *Recorder) RecordOverall(score float64) {
	r.overallScore.Observe(score)
}

func (r *Recorder) RecordArtifact(kind string) {
	r.artifactsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordMovementFailure(movement string) {
	r.movementFailures.WithLabelValues(movement).Inc()
}

func (r *Recorder) RecordFrames(n int) {
	r.framesTotal.Add(float64(n))
}

// WriteTextfile writes every metric in the text exposition format, atomically replacing path.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
