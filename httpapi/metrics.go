package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// gatewayMetrics is a per-gateway registry so several gateways can coexist in tests.
type gatewayMetrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	limited       *prometheus.CounterVec
	clients       prometheus.Gauge
	frames        *prometheus.CounterVec
	invalidFrames prometheus.Counter
}

func newGatewayMetrics() *gatewayMetrics {
	m := &gatewayMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tether",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tether",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		limited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tether",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tether",
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Connected WebSocket clients.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tether",
			Subsystem: "ws",
			Name:      "frames_total",
			Help:      "WebSocket frames by direction.",
		}, []string{"direction"}),
		invalidFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tether",
			Subsystem: "ws",
			Name:      "invalid_frames_total",
			Help:      "Inbound frames that were not a JSON object.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.limited,
		m.clients,
		m.frames,
		m.invalidFrames,
	)
	return m
}

func (m *gatewayMetrics) instrument(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	labels := prometheus.Labels{"route": route}
	next = promhttp.InstrumentHandlerDuration(m.duration.MustCurryWith(labels), next)
	return promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(labels), next)
}

func (m *gatewayMetrics) rateLimited(route string) {
	if m == nil {
		return
	}
	m.limited.WithLabelValues(route).Inc()
}

func (m *gatewayMetrics) clientConnected() {
	if m != nil {
		m.clients.Inc()
	}
}

func (m *gatewayMetrics) clientDisconnected() {
	if m != nil {
		m.clients.Dec()
	}
}

func (m *gatewayMetrics) frameSent() {
	if m != nil {
		m.frames.WithLabelValues("out").Inc()
	}
}

func (m *gatewayMetrics) frameReceived() {
	if m != nil {
		m.frames.WithLabelValues("in").Inc()
	}
}

func (m *gatewayMetrics) invalidFrame() {
	if m != nil {
		m.invalidFrames.Inc()
	}
}

func (m *gatewayMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
