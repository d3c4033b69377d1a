// Package metrics - Prometheus instrumentation for the keyword detection pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "kws"

// Metrics contains a set of functions that are invoked on different stages
// of a detection cycle to report metrics.
//
// A nil *Metrics is valid and reports nothing.
type Metrics struct {
	OnDecision    func(outcome, label string)
	OnReported    func(label string)
	OnInference   func(took time.Duration)
	OnInputError  func()
	OnEngineError func()
}

// New registers the detection metrics on reg.
//
// Arguments:
//   - reg: The registerer; nil disables metrics.
//   - namespace: Metric name prefix; empty uses DefaultNamespace.
//
// Returns:
//   - *Metrics: The metrics, or nil when reg is nil.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		return nil
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	decisions := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decisions_total",
		Help:      "Number of decisions by outcome and top label",
	}, []string{"outcome", "label"})

	reported := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "keywords_reported_total",
		Help:      "Number of recognized keywords delivered to the sink after cooldown",
	}, []string{"label"})

	inferenceDuration := promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "inference_duration_seconds",
		Help:      "Duration of one engine inference",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	inputErrors := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "input_length_errors_total",
		Help:      "Number of feature or score vectors rejected for their length",
	})

	engineErrors := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "engine_errors_total",
		Help:      "Number of failed engine inferences",
	})

	return &Metrics{
		OnDecision: func(outcome, label string) {
			decisions.WithLabelValues(outcome, label).Inc()
		},
		OnReported: func(label string) {
			reported.WithLabelValues(label).Inc()
		},
		OnInference: func(took time.Duration) {
			inferenceDuration.Observe(took.Seconds())
		},
		OnInputError: func() {
			inputErrors.Inc()
		},
		OnEngineError: func() {
			engineErrors.Inc()
		},
	}
}

// Decision records one decision.
func (m *Metrics) Decision(outcome, label string) {
	if m == nil {
		return
	}
	m.OnDecision(outcome, label)
}

// Reported records one keyword delivered to the sink.
func (m *Metrics) Reported(label string) {
	if m == nil {
		return
	}
	m.OnReported(label)
}

// Inference records the duration of one engine call.
func (m *Metrics) Inference(took time.Duration) {
	if m == nil {
		return
	}
	m.OnInference(took)
}

// InputError records one rejected vector.
func (m *Metrics) InputError() {
	if m == nil {
		return
	}
	m.OnInputError()
}

// EngineError records one failed inference.
func (m *Metrics) EngineError() {
	if m == nil {
		return
	}
	m.OnEngineError()
}
