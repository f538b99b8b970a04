package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsOutcomesFeedRollingErrorRate(t *testing.T) {
	m := NewMetrics("test")

	m.ObserveOutcome(OutcomeSuccess)
	m.ObserveOutcome(OutcomeError)
	m.ObserveOutcome(OutcomeInvalid)
	m.ObserveOutcome(OutcomeCanceled)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(OutcomeInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(OutcomeCanceled)))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.ErrorRate))
}

func TestMetricsInFlightGauge(t *testing.T) {
	m := NewMetrics("test")
	release := m.TrackInFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	release()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionsActive))
}

func TestMetricsHandlerServesPrivateRegistry(t *testing.T) {
	m := NewMetrics("sauti_test")
	m.ObserveStage(StageASR, 120*time.Millisecond)
	m.ObserveBackendFailure("llm", "openai")
	m.ObserveTranscription(0.75)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "sauti_test_stage_latency_seconds_bucket")
	assert.Contains(t, body, `sauti_test_backend_failures_total{backend="openai",capability="llm"} 1`)
	assert.True(t, strings.Contains(body, "sauti_test_asr_wer 0.25"), "asr_wer gauge missing")

	snap := m.StageSnapshot()
	require.Len(t, snap.Stages, 1)
	assert.Equal(t, StageASR, snap.Stages[0].Stage)
	assert.Equal(t, []Indicator{{Name: "llm_fallthrough", Count: 1}}, snap.Indicators)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveStage(StageTTS, time.Second)
	m.ObserveOutcome(OutcomeError)
	m.ObserveCanned("tts")
	m.TrackInFlight()()
	assert.Empty(t, m.StageSnapshot().Stages)
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := newLoggerTo(&buf, "loud", "json")
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())

	log.Debug().Msg("hidden")
	log.Info().Str("stage", "asr").Msg("visible")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"stage":"asr"`)
	assert.Contains(t, out, `"service":"sauti"`)
}
