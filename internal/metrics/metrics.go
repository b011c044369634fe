package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HeartbeatsAccepted prometheus.Counter
	HeartbeatsRejected *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
	Subscribers        prometheus.Gauge
	SweepDuration      prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		HeartbeatsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "presence_heartbeats_accepted_total",
			Help: "Heartbeats accepted by the liveness ledger.",
		}),
		HeartbeatsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_heartbeats_rejected_total",
			Help: "Heartbeats rejected by the liveness ledger.",
		}, []string{"reason"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_transitions_total",
			Help: "Published status transitions.",
		}, []string{"status"}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "presence_subscribers",
			Help: "Currently connected websocket subscribers.",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "presence_sweep_duration_seconds",
			Help:    "Duration of liveness sweep cycles.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
