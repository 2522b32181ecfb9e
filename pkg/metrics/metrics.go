// Package metrics exposes Prometheus collectors for the classification loop.
//
// All methods are safe to call on a nil *Metrics, so components can take an
// optional collector without checking for it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smartbin"

// Metrics holds the loop's collectors.
type Metrics struct {
	frames          *prometheus.CounterVec
	classifications *prometheus.CounterVec
	actuations      *prometheus.CounterVec
	inference       prometheus.Histogram
	state           prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_total",
				Help:      "Frames read from the camera by result.",
			},
			[]string{"result"},
		),
		classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifications_total",
				Help:      "Resolved class labels.",
			},
			[]string{"label"},
		),
		actuations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actuations_total",
				Help:      "Open/close cycles by actuator and result.",
			},
			[]string{"actuator", "result"},
		),
		inference: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "inference_seconds",
				Help:      "Preprocess plus classify latency.",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		state: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dispatcher_state",
				Help:      "Current dispatcher state (0 idle, 1 capturing, 2 classifying, 3 dispatching, 4 shutdown).",
			},
		),
	}

	reg.MustRegister(m.frames, m.classifications, m.actuations, m.inference, m.state)
	return m
}

// FrameCaptured counts a successful read.
func (m *Metrics) FrameCaptured() {
	if m == nil {
		return
	}
	m.frames.WithLabelValues("captured").Inc()
}

// FrameDropped counts a skipped read.
func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.frames.WithLabelValues("dropped").Inc()
}

// Classified counts a resolved label.
func (m *Metrics) Classified(label string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(label).Inc()
}

// Actuated counts an open/close cycle.
func (m *Metrics) Actuated(actuator string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.actuations.WithLabelValues(actuator, result).Inc()
}

// ObserveInference records one preprocess+classify duration.
func (m *Metrics) ObserveInference(d time.Duration) {
	if m == nil {
		return
	}
	m.inference.Observe(d.Seconds())
}

// SetState records the dispatcher state.
func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.state.Set(float64(state))
}
