package manager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsPublisher turns lifecycle events into Prometheus series.
type MetricsPublisher struct {
	loads        *prometheus.CounterVec
	evictions    *prometheus.CounterVec
	loadDuration prometheus.Histogram
	loaded       prometheus.Gauge
}

// NewMetricsPublisher creates the collectors and registers them with reg.
func NewMetricsPublisher(reg prometheus.Registerer) *MetricsPublisher {
	p := &MetricsPublisher{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxd",
			Subsystem: "model",
			Name:      "loads_total",
			Help:      "Model load attempts by result",
		}, []string{"result"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxd",
			Subsystem: "model",
			Name:      "evictions_total",
			Help:      "Model evictions by reason",
		}, []string{"reason"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxd",
			Subsystem: "model",
			Name:      "load_duration_seconds",
			Help:      "Time spent loading the model",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxd",
			Subsystem: "model",
			Name:      "loaded",
			Help:      "1 when a model is resident",
		}),
	}
	if reg != nil {
		reg.MustRegister(p.loads, p.evictions, p.loadDuration, p.loaded)
	}
	return p
}

func (p *MetricsPublisher) Publish(e Event) {
	switch e.Name {
	case EventLoadDone:
		p.loads.WithLabelValues("ok").Inc()
		p.loaded.Set(1)
		if d, ok := e.Fields["duration"].(time.Duration); ok {
			p.loadDuration.Observe(d.Seconds())
		}
	case EventLoadError:
		p.loads.WithLabelValues("error").Inc()
		p.loaded.Set(0)
	case EventEvict:
		reason, _ := e.Fields["reason"].(string)
		p.evictions.WithLabelValues(reason).Inc()
		p.loaded.Set(0)
	}
}
