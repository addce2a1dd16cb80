// Package metrics exposes pipeline and HTTP counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "templatefiller"

// Recorder captures pipeline and request metrics.
type Recorder interface {
	ObserveSession(mode, outcome string, d time.Duration)
	ObserveStage(stage string, d time.Duration)
	AddDiagnostics(kind, severity string, n int)
	IncFault(kind string)
	AddBytes(direction string, n int64)
	ObserveRequest(method, route, status string, d time.Duration)
}

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) ObserveSession(string, string, time.Duration)         {}
func (Noop) ObserveStage(string, time.Duration)                   {}
func (Noop) AddDiagnostics(string, string, int)                   {}
func (Noop) IncFault(string)                                      {}
func (Noop) AddBytes(string, int64)                               {}
func (Noop) ObserveRequest(string, string, string, time.Duration) {}

// Prom implements Recorder on a private registry.
type Prom struct {
	registry *prometheus.Registry

	sessions    *prometheus.CounterVec
	sessionTime *prometheus.HistogramVec
	stageTime   *prometheus.HistogramVec
	diagnostics *prometheus.CounterVec
	faults      *prometheus.CounterVec
	bytes       *prometheus.CounterVec
	requests    *prometheus.CounterVec
	requestTime *prometheus.HistogramVec
}

// NewProm constructs a Prom recorder with Go runtime and process collectors.
func NewProm() *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_total",
			Help:      "Sessions finished by mode and outcome",
		}, []string{"mode", "outcome"}),
		sessionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "session_duration_seconds",
			Help:      "Session wall time by mode",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		stageTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage wall time",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "diagnostics_total",
			Help:      "Validation diagnostics by kind and severity",
		}, []string{"kind", "severity"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "faults_total",
			Help:      "Session faults by kind",
		}, []string{"kind"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "archive_bytes_total",
			Help:      "Archive bytes received and produced",
		}, []string{"direction"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	p.registry.MustRegister(
		p.sessions, p.sessionTime, p.stageTime, p.diagnostics,
		p.faults, p.bytes, p.requests, p.requestTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry exposes the underlying registry for gathering.
func (p *Prom) Registry() *prometheus.Registry { return p.registry }

// Handler returns an HTTP handler serving this recorder's metrics.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prom) ObserveSession(mode, outcome string, d time.Duration) {
	p.sessions.WithLabelValues(mode, outcome).Inc()
	p.sessionTime.WithLabelValues(mode).Observe(d.Seconds())
}

func (p *Prom) ObserveStage(stage string, d time.Duration) {
	p.stageTime.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *Prom) AddDiagnostics(kind, severity string, n int) {
	if n <= 0 {
		return
	}
	p.diagnostics.WithLabelValues(kind, severity).Add(float64(n))
}

func (p *Prom) IncFault(kind string) {
	p.faults.WithLabelValues(kind).Inc()
}

func (p *Prom) AddBytes(direction string, n int64) {
	if n <= 0 {
		return
	}
	p.bytes.WithLabelValues(direction).Add(float64(n))
}

func (p *Prom) ObserveRequest(method, route, status string, d time.Duration) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.requestTime.WithLabelValues(method, route).Observe(d.Seconds())
}
