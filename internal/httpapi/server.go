package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/antoniostano/sauti/internal/chama"
	"github.com/antoniostano/sauti/internal/config"
	"github.com/antoniostano/sauti/internal/observability"
	"github.com/antoniostano/sauti/internal/session"
	"github.com/antoniostano/sauti/internal/voice"
)

// Response headers carrying turn metadata next to the audio body.
const (
	HeaderSessionID    = "X-Session-ID"
	HeaderIntent       = "X-Intent"
	HeaderDialect      = "X-Dialect"
	HeaderConfidence   = "X-Confidence"
	HeaderResponseText = "X-Response-Text"
	HeaderTranscript   = "X-Transcript"
)

const healthTimeout = 3 * time.Second

// ChamaDirectory is the read side of the chama client used by the HTTP layer.
type ChamaDirectory interface {
	Ready() bool
	Healthcheck(ctx context.Context) bool
	ListRecent(ctx context.Context, limit int) ([]chama.Record, error)
}

type Server struct {
	cfg      config.Config
	pipeline *voice.Pipeline
	chamas   ChamaDirectory
	streams  *session.Streams
	metrics  *observability.Metrics
	logger   zerolog.Logger
	limiter  *ipLimiter
	upgrader websocket.Upgrader
}

func New(cfg config.Config, pipeline *voice.Pipeline, chamas ChamaDirectory, streams *session.Streams, metrics *observability.Metrics, logger zerolog.Logger) *Server {
	if streams == nil {
		streams = session.NewStreams(cfg.StreamIdleTimeout)
	}
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		chamas:   chamas,
		streams:  streams,
		metrics:  metrics,
		logger:   logger.With().Str("component", "httpapi").Logger(),
		limiter:  newIPLimiter(cfg.RateLimitPerMinute),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin admits non-browser clients and browsers from the allowed origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Encoding", HeaderSessionID},
		ExposedHeaders: []string{
			HeaderSessionID,
			HeaderIntent,
			HeaderDialect,
			HeaderConfidence,
			HeaderResponseText,
			HeaderTranscript,
		},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleLive)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.With(s.rateLimit).Post("/voice/process", s.handleProcess)
	r.Get("/voice/session/intents", s.handleSessionIntents)
	r.Get("/chamas", s.handleListChamas)
	r.With(s.rateLimit).Get("/v1/voice/ws", s.handleVoiceWS)

	return r
}

type healthResponse struct {
	ASR    bool `json:"asr"`
	LLM    bool `json:"llm"`
	TTS    bool `json:"tts"`
	Chama  bool `json:"chama"`
	Memory bool `json:"memory"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ready := s.pipeline.Readiness()
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	respondJSON(w, http.StatusOK, healthResponse{
		ASR:    ready.ASR,
		LLM:    ready.LLM,
		TTS:    ready.TTS,
		Chama:  s.chamas != nil && s.chamas.Ready() && s.chamas.Healthcheck(ctx),
		Memory: s.pipeline.ContextHealthy(ctx),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	ready := s.pipeline.Readiness()
	status := http.StatusOK
	label := "ready"
	if !ready.All() {
		status = http.StatusServiceUnavailable
		label = "not_ready"
	}
	respondJSON(w, status, map[string]any{
		"status":       label,
		"capabilities": ready,
		"open_streams": s.streams.ActiveCount(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		http.NotFound(w, r)
		return
	}
	s.metrics.Handler().ServeHTTP(w, r)
}

type errorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, detail string) {
	respondJSON(w, status, errorResponse{Detail: detail, Code: code})
}
