package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.BindAddr)
	assert.Equal(t, 10, cfg.RateLimitPerMinute)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxAudioBytes)
	assert.Equal(t, time.Hour, cfg.ContextTTL)
	assert.Equal(t, 5, cfg.ContextLimit)
	assert.Equal(t, StoreAuto, cfg.ContextStore)
	assert.True(t, cfg.SessionStrictVerify)
	assert.Equal(t, "sw-KE-Standard-A", cfg.GoogleTTSVoice)
	assert.Equal(t, int64(1), cfg.ChamaDefaultID)
	assert.Contains(t, cfg.AllowedOrigins, "https://chamas.lovable.app")
	assert.Len(t, cfg.AllowedOrigins, 4)
	assert.Equal(t, 2*time.Minute, cfg.StreamIdleTimeout)
}

func TestLoadReadsOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("LLM_TIMEOUT", "12s")
	t.Setenv("CONTEXT_STORE", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("APP_ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("SESSION_STRICT_VERIFY", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9191", cfg.BindAddr)
	assert.Equal(t, 12*time.Second, cfg.LLMTimeout)
	assert.Equal(t, StoreRedis, cfg.ContextStore)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.False(t, cfg.SessionStrictVerify)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "zero rate limit", env: map[string]string{"RATE_LIMIT_PER_MINUTE": "0"}},
		{name: "negative timeout", env: map[string]string{"TTS_TIMEOUT": "-1s"}},
		{name: "context limit above cap", env: map[string]string{"CONTEXT_LIMIT": "11"}},
		{name: "unknown store", env: map[string]string{"CONTEXT_STORE": "mongo"}},
		{name: "redis without url", env: map[string]string{"CONTEXT_STORE": "redis"}},
		{name: "postgres without url", env: map[string]string{"CONTEXT_STORE": "postgres"}},
		{name: "tiny audio ceiling", env: map[string]string{"MAX_AUDIO_BYTES": "10"}},
		{name: "unknown log format", env: map[string]string{"LOG_FORMAT": "xml"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setCoreEnvEmpty(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

// setCoreEnvEmpty unsets keys a developer shell might carry so defaults apply.
func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_ALLOWED_ORIGINS",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"RATE_LIMIT_PER_MINUTE",
		"MAX_AUDIO_BYTES",
		"ASR_TIMEOUT",
		"LLM_TIMEOUT",
		"TTS_TIMEOUT",
		"WS_IDLE_TIMEOUT",
		"ENCRYPTION_KEY",
		"SESSION_STRICT_VERIFY",
		"CONTEXT_STORE",
		"CONTEXT_LIMIT",
		"CONTEXT_TTL",
		"REDIS_URL",
		"DATABASE_URL",
		"OPENAI_API_KEY",
		"GEMINI_API_KEY",
		"GOOGLE_TTS_VOICE",
		"CHAMA_DEFAULT_ID",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
