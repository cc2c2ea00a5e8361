package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the pipeline. A nil *Metrics records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	ttfb      *prometheus.HistogramVec
	fallbacks *prometheus.CounterVec
	audioSecs prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxd",
			Subsystem: "synthesis",
			Name:      "requests_total",
			Help:      "Synthesis requests by format and result",
		}, []string{"format", "result"}),
		ttfb: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voxd",
			Subsystem: "synthesis",
			Name:      "time_to_first_byte_seconds",
			Help:      "Time from request start to the first audio byte",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"format"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxd",
			Subsystem: "synthesis",
			Name:      "encoding_fallbacks_total",
			Help:      "Encoder failures answered with WAV instead",
		}, []string{"format"}),
		audioSecs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxd",
			Subsystem: "synthesis",
			Name:      "audio_seconds_total",
			Help:      "Seconds of audio generated",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.ttfb, m.fallbacks, m.audioSecs)
	}
	return m
}

func (m *Metrics) observeRequest(format, result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(format, result).Inc()
}

func (m *Metrics) observeTTFB(format string, d time.Duration) {
	if m == nil {
		return
	}
	m.ttfb.WithLabelValues(format).Observe(d.Seconds())
}

func (m *Metrics) observeFallback(format string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(format).Inc()
}

func (m *Metrics) observeAudio(samples, rate int) {
	if m == nil || rate <= 0 {
		return
	}
	m.audioSecs.Add(float64(samples) / float64(rate))
}
