package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes used as the status label of the request counter.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeNotReady = "not_ready"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	registry *prometheus.Registry
	window   *stageWindow

	Requests        *prometheus.CounterVec
	StageLatency    *prometheus.HistogramVec
	BackendFailures *prometheus.CounterVec
	CannedResponses *prometheus.CounterVec
	SessionsActive  prometheus.Gauge
	ErrorRate       prometheus.Gauge
	ASRWordError    prometheus.Gauge
	IntentAccuracy  prometheus.Gauge
	RateLimited     prometheus.Counter
	WSMessages      *prometheus.CounterVec
}

// NewMetrics registers every instrument on a private registry so that several
// instances (tests, embedded servers) never collide.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		window:   newStageWindow(512),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_requests_total",
			Help:      "Voice requests by outcome.",
		}, []string{"status"}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_seconds",
			Help:      "Pipeline stage latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"stage"}),
		BackendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_failures_total",
			Help:      "Backend invocations that failed and fell through, by capability and backend.",
		}, []string{"capability", "backend"}),
		CannedResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canned_responses_total",
			Help:      "Canned fallback responses served, by capability.",
		}, []string{"capability"}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Voice requests currently in flight.",
		}),
		ErrorRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "error_rate_rolling",
			Help:      "Share of failed requests over the most recent window.",
		}),
		ASRWordError: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "asr_wer",
			Help:      "Word error proxy of the last transcription (1 - confidence).",
		}),
		IntentAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "intent_accuracy",
			Help:      "Confidence recorded for the last classified intent.",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limit.",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	m.window.Observe(stage, float64(d.Microseconds())/1000)
}

// ObserveOutcome counts a finished request. Invalid input and client aborts
// are not server faults and do not move the rolling error rate.
func (m *Metrics) ObserveOutcome(status string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(status).Inc()
	if status == OutcomeInvalid || status == OutcomeCanceled {
		return
	}
	failed := status == OutcomeError || status == OutcomeNotReady
	m.ErrorRate.Set(m.window.ObserveOutcome(failed))
}

func (m *Metrics) ObserveBackendFailure(capability, backend string) {
	if m == nil {
		return
	}
	m.BackendFailures.WithLabelValues(capability, backend).Inc()
	m.window.ObserveIndicator(capability + "_fallthrough")
}

func (m *Metrics) ObserveCanned(capability string) {
	if m == nil {
		return
	}
	m.CannedResponses.WithLabelValues(capability).Inc()
	m.window.ObserveIndicator(capability + "_canned")
}

func (m *Metrics) ObserveTranscription(confidence float64) {
	if m == nil {
		return
	}
	m.ASRWordError.Set(1 - confidence)
}

func (m *Metrics) ObserveIntent(confidence float64) {
	if m == nil {
		return
	}
	m.IntentAccuracy.Set(confidence)
}

// TrackInFlight bumps the in-flight gauge and returns the matching release.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.SessionsActive.Inc()
	return m.SessionsActive.Dec
}

func (m *Metrics) StageSnapshot() StageSnapshot {
	if m == nil {
		return newStageWindow(1).Snapshot()
	}
	return m.window.Snapshot()
}

func (m *Metrics) ResetStageWindow() {
	if m == nil {
		return
	}
	m.window.Reset()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
