package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters and histograms for the analysis pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	fallbackTotal   *prometheus.CounterVec
	cacheTotal      *prometheus.CounterVec
	analysesTotal   *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
}

// New registers the pipeline metrics on reg, or on the default registerer
// when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchcoach",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Completion requests sent to the model provider",
		}, []string{"op", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pitchcoach",
			Subsystem: "llm",
			Name:      "request_seconds",
			Help:      "Latency of completion requests",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"op"}),
		fallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchcoach",
			Subsystem: "analysis",
			Name:      "fallbacks_total",
			Help:      "Fields or results filled from a fallback instead of model output",
		}, []string{"kind"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchcoach",
			Subsystem: "llm",
			Name:      "cache_total",
			Help:      "Completion cache lookups",
		}, []string{"result"}),
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchcoach",
			Subsystem: "analysis",
			Name:      "completed_total",
			Help:      "Completed conversation analyses",
		}, []string{"mode"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pitchcoach",
			Subsystem: "http",
			Name:      "request_seconds",
			Help:      "Latency of API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.upstreamTotal, m.upstreamLatency, m.fallbackTotal, m.cacheTotal, m.analysesTotal, m.requestLatency)
	return m
}

func (m *Metrics) ObserveUpstream(op string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.upstreamTotal.WithLabelValues(op, status).Inc()
	m.upstreamLatency.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) ObserveFallback(kind string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveAnalysis(mode string) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveRequest(route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.requestLatency.WithLabelValues(route, strconv.Itoa(status)).Observe(seconds)
}
