// Package metrics is the observability collaborator for the scoring pipeline.
// Scoring code reports fallbacks and upstream failures through an Observer
// instead of logging inline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Observer receives events at the pipeline's extension points.
type Observer interface {
	// FallbackUsed is called when a stage substitutes a documented default.
	FallbackUsed(stage, reason string)
	// ExternalCallFailed is called when an upstream read fails.
	ExternalCallFailed(source string, err error)
	// ScoreComputed is called once per completed scoring request.
	ScoreComputed(kind string, score float64, elapsed time.Duration)
}

// Nop discards every event.
type Nop struct{}

// FallbackUsed implements Observer.
func (Nop) FallbackUsed(string, string) {}

// ExternalCallFailed implements Observer.
func (Nop) ExternalCallFailed(string, error) {}

// ScoreComputed implements Observer.
func (Nop) ScoreComputed(string, float64, time.Duration) {}

// Recorder logs events via zap and counts them in Prometheus.
type Recorder struct {
	log       *zap.Logger
	fallbacks *prometheus.CounterVec
	failures  *prometheus.CounterVec
	scores    *prometheus.HistogramVec
	durations *prometheus.HistogramVec
}

// NewRecorder registers the pipeline collectors on reg. A nil reg uses the
// default Prometheus registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		log: zap.L().With(zap.String("component", "ejv")),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoequity_fallbacks_total",
				Help: "Total number of documented defaults substituted, by stage",
			},
			[]string{"stage"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoequity_external_failures_total",
				Help: "Total number of failed upstream reads, by source",
			},
			[]string{"source"},
		),
		scores: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geoequity_score",
				Help:    "Distribution of composite EJV scores",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"kind"},
		),
		durations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "geoequity_score_duration_seconds",
				Help: "Duration of scoring requests in seconds",
			},
			[]string{"kind"},
		),
	}
}

// FallbackUsed implements Observer.
func (r *Recorder) FallbackUsed(stage, reason string) {
	r.fallbacks.WithLabelValues(stage).Inc()
	r.log.Debug("fallback used",
		zap.String("stage", stage),
		zap.String("reason", reason),
	)
}

// ExternalCallFailed implements Observer.
func (r *Recorder) ExternalCallFailed(source string, err error) {
	r.failures.WithLabelValues(source).Inc()
	r.log.Warn("external call failed",
		zap.String("source", source),
		zap.Error(err),
	)
}

// ScoreComputed implements Observer.
func (r *Recorder) ScoreComputed(kind string, score float64, elapsed time.Duration) {
	r.scores.WithLabelValues(kind).Observe(score)
	r.durations.WithLabelValues(kind).Observe(elapsed.Seconds())
	r.log.Info("score computed",
		zap.String("kind", kind),
		zap.Float64("score", score),
		zap.Duration("elapsed", elapsed),
	)
}
