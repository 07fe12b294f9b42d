package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the server's Prometheus collectors on a private registry.
// A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	connectionsActive   prometheus.Gauge
	connectionsTotal    prometheus.Counter
	connectionsRejected *prometheus.CounterVec
	requests            *prometheus.CounterVec
	malformed           prometheus.Counter
	latency             *prometheus.HistogramVec
}

// NewMetrics registers the collectors. sessions, when non-nil, is exported
// as the live session gauge.
func NewMetrics(sessions func() int) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pix", Name: "connections_active",
			Help: "Connections currently being served.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pix", Name: "connections_total",
			Help: "Connections accepted.",
		}),
		connectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pix", Name: "connections_rejected_total",
			Help: "Connections closed before serving, by reason.",
		}, []string{"reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pix", Name: "requests_total",
			Help: "Requests answered, by operation and status.",
		}, []string{"operation", "status"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pix", Name: "malformed_lines_total",
			Help: "Lines that could not be decoded.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pix", Name: "request_duration_seconds",
			Help:    "Time from decoded request to written response.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connectionsActive,
		m.connectionsTotal,
		m.connectionsRejected,
		m.requests,
		m.malformed,
		m.latency,
	)
	if sessions != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "pix", Name: "sessions_active",
			Help: "Session tokens currently bound.",
		}, func() float64 { return float64(sessions()) }))
	}
	return m
}

func (m *Metrics) connectionOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

func (m *Metrics) connectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

func (m *Metrics) connectionRejected(reason string) {
	if m == nil {
		return
	}
	m.connectionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) malformedLine() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

func (m *Metrics) observe(operation string, status bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status {
		label = "ok"
	}
	m.requests.WithLabelValues(operation, label).Inc()
	m.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}
