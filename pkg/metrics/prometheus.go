package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fincast"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainingDuration *prometheus.HistogramVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	lastPrediction   *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
}

// New creates a recorder whose collectors are registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		trainingDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "training_duration_seconds",
				Help:      "Duration of model training runs",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"family", "timeframe"},
		),
		cacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_cache_hits_total",
				Help:      "Model cache hits by layer",
			},
			[]string{"layer"},
		),
		cacheMisses: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_cache_misses_total",
				Help:      "Model cache misses by layer",
			},
			[]string{"layer"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrediction: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_predicted_price",
				Help:      "Final predicted price of the latest forecast",
			},
			[]string{"symbol", "timeframe"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTraining records the wall time of one fit.
func (r *Recorder) RecordTraining(family, timeframe string, seconds float64) {
	r.trainingDuration.WithLabelValues(family, timeframe).Observe(seconds)
}

func (r *Recorder) RecordCacheHit(layer string) {
	r.cacheHits.WithLabelValues(layer).Inc()
}

func (r *Recorder) RecordCacheMiss(layer string) {
	r.cacheMisses.WithLabelValues(layer).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrediction stores the final predicted price for a symbol and timeframe.
func (r *Recorder) RecordLastPrediction(symbol, timeframe string, price float64) {
	r.lastPrediction.WithLabelValues(symbol, timeframe).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordTraining(string, string, float64)       {}
func (Nop) RecordCacheHit(string)                        {}
func (Nop) RecordCacheMiss(string)                       {}
func (Nop) RecordError(string)                           {}
func (Nop) RecordLastPrediction(string, string, float64) {}
func (Nop) RecordLatency(string, float64)                {}
