// Package metrics exposes cycle, signal and detector-failure counters to
// Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fno-signals/internal/analysis"
)

// Recorder implements detect.Recorder using Prometheus.
type Recorder struct {
	signals  *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	priority *prometheus.CounterVec
	score    *prometheus.HistogramVec
}

// New creates a recorder whose vectors are registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fno_signals_emitted_total",
				Help: "Signals recorded into analysis buckets",
			},
			[]string{"type", "sentiment"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fno_detector_failures_total",
				Help: "Detector runs that failed and were isolated",
			},
			[]string{"set", "detector"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fno_cycle_duration_seconds",
				Help:    "Duration of one instrument cycle in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"mode"},
		),
		priority: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fno_priority_total",
				Help: "Scored cycles by resulting priority",
			},
			[]string{"priority"},
		),
		score: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fno_cycle_total_score",
				Help:    "Total score of scored cycles",
				Buckets: []float64{1, 3, 6, 10, 15, 25},
			},
			[]string{"mode"},
		),
	}
}

// ObserveCycle records the duration and outcome of one cycle.
func (r *Recorder) ObserveCycle(mode analysis.Mode, d time.Duration, res *analysis.ScoreResult) {
	r.duration.WithLabelValues(string(mode)).Observe(d.Seconds())
	if res == nil {
		return
	}
	r.priority.WithLabelValues(res.Priority.String()).Inc()
	r.score.WithLabelValues(string(mode)).Observe(res.TotalScore)
}

// DetectorFailed counts an isolated detector failure.
func (r *Recorder) DetectorFailed(set, detector string) {
	r.failures.WithLabelValues(set, detector).Inc()
}

// SignalRecorded counts n signals of one type and sentiment.
func (r *Recorder) SignalRecorded(analysisType string, sentiment analysis.Sentiment, n int) {
	r.signals.WithLabelValues(analysisType, string(sentiment)).Add(float64(n))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
