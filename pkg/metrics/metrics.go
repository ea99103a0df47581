package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lingline"

// Metrics holds every collector on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	CallsTotal          *prometheus.CounterVec
	CallDuration        prometheus.Histogram
	StageDuration       *prometheus.HistogramVec
	ActiveCalls         prometheus.Gauge
	RecordingBytes      prometheus.Histogram
	AgentState          prometheus.Gauge
	AgentCrashes        prometheus.Counter
	NotificationFailure *prometheus.CounterVec
	RequestCount        *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		CallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Inbound calls by terminal stage",
			},
			[]string{"stage"},
		),
		CallDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "call_duration_seconds",
				Help:      "Time from arrival to terminal stage",
				Buckets:   []float64{1, 5, 15, 30, 60, 90, 120, 180, 300},
			},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each call stage",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"stage"},
		),
		ActiveCalls: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_calls",
				Help:      "Calls currently being processed",
			},
		),
		RecordingBytes: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "recording_bytes",
				Help:      "Size of captured recordings",
				Buckets:   prometheus.ExponentialBuckets(16<<10, 2, 10),
			},
		),
		AgentState: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "agent_state",
				Help:      "SIP agent state: 0 stopped, 1 starting, 2 registered, 3 failed",
			},
		),
		AgentCrashes: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_crashes_total",
				Help:      "Unexpected SIP agent exits",
			},
		),
		NotificationFailure: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_failures_total",
				Help:      "Failed notification deliveries",
			},
			[]string{"notifier"},
		),
		RequestCount: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
			},
			[]string{"method", "endpoint"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
