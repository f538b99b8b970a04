package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store modes accepted by CONTEXT_STORE.
const (
	StoreAuto     = "auto"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
	StoreNone     = "none"
)

// Config contains all runtime settings for the sauti voice service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	LogLevel         string
	LogFormat        string

	AllowedOrigins     []string
	RateLimitPerMinute int
	MaxAudioBytes      int64
	TempDir            string
	StreamIdleTimeout  time.Duration

	ASRTimeout    time.Duration
	LLMTimeout    time.Duration
	TTSTimeout    time.Duration
	DomainTimeout time.Duration
	MemoryTimeout time.Duration

	EncryptionKey       string
	SessionStrictVerify bool

	ContextStore string
	RedisURL     string
	DatabaseURL  string
	ContextTTL   time.Duration
	ContextLimit int

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIASRModel string
	LLMModel       string

	GeminiAPIKey string
	GeminiModel  string

	GoogleCredentials  string
	GoogleTTSVoice     string
	GoogleTTSLanguage  string
	GoogleTTSRate      float64
	GoogleSpeechLocale string

	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsVoiceID string
	ElevenLabsModelID string

	LocalWhisperCLI       string
	LocalWhisperModelPath string
	LocalWhisperThreads   int

	LocalLLMURL   string
	LocalLLMModel string

	PiperCLI       string
	PiperModelPath string

	VoiceMock bool

	SepoliaRPCURL        string
	ChamaFactoryAddress  string
	ChamaDefaultID       int64
	ChamaListConcurrency int
}

var defaultOrigins = []string{
	"http://localhost:5173",
	"http://localhost:8080",
	"http://127.0.0.1:8080",
	"https://chamas.lovable.app",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_BIND_ADDR", ":8000")
	v.SetDefault("APP_SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("APP_METRICS_NAMESPACE", "sauti")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("APP_ALLOWED_ORIGINS", strings.Join(defaultOrigins, ","))
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 10)
	v.SetDefault("MAX_AUDIO_BYTES", 5*1024*1024)
	v.SetDefault("TEMP_DIR", "")
	v.SetDefault("WS_IDLE_TIMEOUT", 2*time.Minute)

	v.SetDefault("ASR_TIMEOUT", 60*time.Second)
	v.SetDefault("LLM_TIMEOUT", 30*time.Second)
	v.SetDefault("TTS_TIMEOUT", 30*time.Second)
	v.SetDefault("DOMAIN_TIMEOUT", 5*time.Second)
	v.SetDefault("MEMORY_TIMEOUT", 2*time.Second)

	v.SetDefault("ENCRYPTION_KEY", "")
	v.SetDefault("SESSION_STRICT_VERIFY", true)

	v.SetDefault("CONTEXT_STORE", StoreAuto)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("CONTEXT_TTL", time.Hour)
	v.SetDefault("CONTEXT_LIMIT", 5)

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("OPENAI_ASR_MODEL", "whisper-1")
	v.SetDefault("CHAMAS_LLM_MODEL", "gpt-4o-mini")

	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")

	v.SetDefault("GOOGLE_APPLICATION_CREDENTIALS", "")
	v.SetDefault("GOOGLE_TTS_VOICE", "sw-KE-Standard-A")
	v.SetDefault("GOOGLE_TTS_LANGUAGE", "sw-KE")
	v.SetDefault("GOOGLE_TTS_RATE", 0.95)
	v.SetDefault("GOOGLE_SPEECH_LOCALE", "sw-KE")

	v.SetDefault("ELEVENLABS_API_KEY", "")
	v.SetDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io")
	v.SetDefault("ELEVENLABS_VOICE_ID", "")
	v.SetDefault("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2")

	v.SetDefault("LOCAL_WHISPER_CLI", "")
	v.SetDefault("LOCAL_WHISPER_MODEL_PATH", "")
	v.SetDefault("LOCAL_WHISPER_THREADS", 0)

	v.SetDefault("LOCAL_LLM_URL", "")
	v.SetDefault("LOCAL_LLM_MODEL", "")

	v.SetDefault("PIPER_CLI", "")
	v.SetDefault("PIPER_MODEL_PATH", "")

	v.SetDefault("VOICE_MOCK", false)

	v.SetDefault("SEPOLIA_RPC_URL", "")
	v.SetDefault("CHAMA_FACTORY_ADDRESS", "")
	v.SetDefault("CHAMA_DEFAULT_ID", 1)
	v.SetDefault("CHAMA_LIST_CONCURRENCY", 4)
	return v
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	v := newViper()

	cfg := Config{
		BindAddr:         strings.TrimSpace(v.GetString("APP_BIND_ADDR")),
		ShutdownTimeout:  v.GetDuration("APP_SHUTDOWN_TIMEOUT"),
		MetricsNamespace: strings.TrimSpace(v.GetString("APP_METRICS_NAMESPACE")),
		LogLevel:         strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFormat:        strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),

		AllowedOrigins:     splitList(v.GetString("APP_ALLOWED_ORIGINS")),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		MaxAudioBytes:      v.GetInt64("MAX_AUDIO_BYTES"),
		TempDir:            strings.TrimSpace(v.GetString("TEMP_DIR")),
		StreamIdleTimeout:  v.GetDuration("WS_IDLE_TIMEOUT"),

		ASRTimeout:    v.GetDuration("ASR_TIMEOUT"),
		LLMTimeout:    v.GetDuration("LLM_TIMEOUT"),
		TTSTimeout:    v.GetDuration("TTS_TIMEOUT"),
		DomainTimeout: v.GetDuration("DOMAIN_TIMEOUT"),
		MemoryTimeout: v.GetDuration("MEMORY_TIMEOUT"),

		EncryptionKey:       strings.TrimSpace(v.GetString("ENCRYPTION_KEY")),
		SessionStrictVerify: v.GetBool("SESSION_STRICT_VERIFY"),

		ContextStore: strings.ToLower(strings.TrimSpace(v.GetString("CONTEXT_STORE"))),
		RedisURL:     strings.TrimSpace(v.GetString("REDIS_URL")),
		DatabaseURL:  strings.TrimSpace(v.GetString("DATABASE_URL")),
		ContextTTL:   v.GetDuration("CONTEXT_TTL"),
		ContextLimit: v.GetInt("CONTEXT_LIMIT"),

		OpenAIAPIKey:   strings.TrimSpace(v.GetString("OPENAI_API_KEY")),
		OpenAIBaseURL:  strings.TrimSpace(v.GetString("OPENAI_BASE_URL")),
		OpenAIASRModel: strings.TrimSpace(v.GetString("OPENAI_ASR_MODEL")),
		LLMModel:       strings.TrimSpace(v.GetString("CHAMAS_LLM_MODEL")),

		GeminiAPIKey: strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
		GeminiModel:  strings.TrimSpace(v.GetString("GEMINI_MODEL")),

		GoogleCredentials:  strings.TrimSpace(v.GetString("GOOGLE_APPLICATION_CREDENTIALS")),
		GoogleTTSVoice:     strings.TrimSpace(v.GetString("GOOGLE_TTS_VOICE")),
		GoogleTTSLanguage:  strings.TrimSpace(v.GetString("GOOGLE_TTS_LANGUAGE")),
		GoogleTTSRate:      v.GetFloat64("GOOGLE_TTS_RATE"),
		GoogleSpeechLocale: strings.TrimSpace(v.GetString("GOOGLE_SPEECH_LOCALE")),

		ElevenLabsAPIKey:  strings.TrimSpace(v.GetString("ELEVENLABS_API_KEY")),
		ElevenLabsBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("ELEVENLABS_BASE_URL")), "/"),
		ElevenLabsVoiceID: strings.TrimSpace(v.GetString("ELEVENLABS_VOICE_ID")),
		ElevenLabsModelID: strings.TrimSpace(v.GetString("ELEVENLABS_MODEL_ID")),

		LocalWhisperCLI:       strings.TrimSpace(v.GetString("LOCAL_WHISPER_CLI")),
		LocalWhisperModelPath: strings.TrimSpace(v.GetString("LOCAL_WHISPER_MODEL_PATH")),
		LocalWhisperThreads:   v.GetInt("LOCAL_WHISPER_THREADS"),

		LocalLLMURL:   strings.TrimSpace(v.GetString("LOCAL_LLM_URL")),
		LocalLLMModel: strings.TrimSpace(v.GetString("LOCAL_LLM_MODEL")),

		PiperCLI:       strings.TrimSpace(v.GetString("PIPER_CLI")),
		PiperModelPath: strings.TrimSpace(v.GetString("PIPER_MODEL_PATH")),

		VoiceMock: v.GetBool("VOICE_MOCK"),

		SepoliaRPCURL:        strings.TrimSpace(v.GetString("SEPOLIA_RPC_URL")),
		ChamaFactoryAddress:  strings.TrimSpace(v.GetString("CHAMA_FACTORY_ADDRESS")),
		ChamaDefaultID:       v.GetInt64("CHAMA_DEFAULT_ID"),
		ChamaListConcurrency: v.GetInt("CHAMA_LIST_CONCURRENCY"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("APP_BIND_ADDR must not be empty")
	}
	timeouts := []struct {
		key string
		val time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
		{"ASR_TIMEOUT", c.ASRTimeout},
		{"LLM_TIMEOUT", c.LLMTimeout},
		{"TTS_TIMEOUT", c.TTSTimeout},
		{"DOMAIN_TIMEOUT", c.DomainTimeout},
		{"MEMORY_TIMEOUT", c.MemoryTimeout},
		{"CONTEXT_TTL", c.ContextTTL},
		{"WS_IDLE_TIMEOUT", c.StreamIdleTimeout},
	}
	for _, tt := range timeouts {
		if tt.val <= 0 {
			return fmt.Errorf("%s must be positive", tt.key)
		}
	}
	if c.RateLimitPerMinute < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be at least 1")
	}
	if c.MaxAudioBytes < 1024 {
		return fmt.Errorf("MAX_AUDIO_BYTES must be at least 1024")
	}
	if c.ContextLimit < 1 || c.ContextLimit > 10 {
		return fmt.Errorf("CONTEXT_LIMIT must be between 1 and 10")
	}
	if c.ChamaListConcurrency < 1 {
		return fmt.Errorf("CHAMA_LIST_CONCURRENCY must be at least 1")
	}
	switch c.ContextStore {
	case StoreAuto, StoreRedis, StorePostgres, StoreMemory, StoreNone:
	default:
		return fmt.Errorf("invalid CONTEXT_STORE %q (expected auto|redis|postgres|memory|none)", c.ContextStore)
	}
	if c.ContextStore == StoreRedis && c.RedisURL == "" {
		return fmt.Errorf("CONTEXT_STORE=redis requires REDIS_URL")
	}
	if c.ContextStore == StorePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("CONTEXT_STORE=postgres requires DATABASE_URL")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q (expected json|console)", c.LogFormat)
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
