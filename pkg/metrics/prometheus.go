package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	observations *prometheus.CounterVec
	sourceErrors *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	validatedGMP *prometheus.GaugeVec
	confidence   *prometheus.GaugeVec
	spikesTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		observations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greypulse_observations_fetched_total",
				Help: "Total GMP observations fetched per source",
			},
			[]string{"source"},
		),
		sourceErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greypulse_source_errors_total",
				Help: "Total fetch failures per source",
			},
			[]string{"source"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greypulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		validatedGMP: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "greypulse_validated_gmp",
				Help: "Last validated GMP value per IPO",
			},
			[]string{"ipo"},
		),
		confidence: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "greypulse_gmp_confidence",
				Help: "Confidence score of the last validated GMP per IPO",
			},
			[]string{"ipo"},
		),
		spikesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greypulse_spikes_total",
				Help: "Total detected GMP spikes by direction",
			},
			[]string{"direction"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "greypulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records observations fetched from a source.
func (r *Recorder) RecordFetch(source string, count int) {
	r.observations.WithLabelValues(source).Add(float64(count))
}

// RecordSourceError records a fetch failure for a source.
func (r *Recorder) RecordSourceError(source string) {
	r.sourceErrors.WithLabelValues(source).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordValidated records the outcome of a validation run for an IPO.
func (r *Recorder) RecordValidated(ipoKey string, value, confidence float64) {
	r.validatedGMP.WithLabelValues(ipoKey).Set(value)
	r.confidence.WithLabelValues(ipoKey).Set(confidence)
}

// RecordSpike records a detected spike.
func (r *Recorder) RecordSpike(direction string) {
	r.spikesTotal.WithLabelValues(direction).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
