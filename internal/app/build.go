package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/antoniostano/sauti/internal/chama"
	"github.com/antoniostano/sauti/internal/config"
	"github.com/antoniostano/sauti/internal/httpapi"
	"github.com/antoniostano/sauti/internal/memory"
	"github.com/antoniostano/sauti/internal/observability"
	"github.com/antoniostano/sauti/internal/session"
	"github.com/antoniostano/sauti/internal/voice"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Pipeline *voice.Pipeline
	Streams  *session.Streams
	Memory   *memory.Memory
	Chama    *chama.Client
	Metrics  *observability.Metrics

	store memory.Store

	// Cleanup should be called on shutdown to release external resources (stores, cloud clients).
	Cleanup func() error
}

// Build wires the service from cfg. Optional collaborators that fail to
// initialise degrade the service instead of failing startup: no context
// store means stateless turns, a bad session key means passthrough tokens.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := memory.NewStore(ctx, memory.FactoryConfig{
		Mode:        cfg.ContextStore,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		TTL:         cfg.ContextTTL,
	})
	if err != nil {
		logger.Warn().Err(err).Str("mode", cfg.ContextStore).Msg("context store unavailable, continuing stateless")
		store = nil
	}
	mem := memory.NewMemory(store, cfg.MemoryTimeout, logger)

	codec, err := session.NewCodec(cfg.EncryptionKey)
	if err != nil {
		logger.Error().Err(err).Msg("invalid ENCRYPTION_KEY, session tokens are not protected")
		codec, _ = session.NewCodec("")
	} else if !codec.Enabled() {
		logger.Warn().Msg("ENCRYPTION_KEY not set, session tokens are not protected")
	}

	chamaClient := chama.NewClient(chama.Config{
		RPCURL:         cfg.SepoliaRPCURL,
		FactoryAddress: cfg.ChamaFactoryAddress,
		Concurrency:    cfg.ChamaListConcurrency,
	}, logger)
	if !chamaClient.Ready() {
		logger.Warn().Msg("chama client not configured, balance questions use the language model")
	}

	gates := resolveVoiceGates(ctx, cfg, metrics, logger)

	pipeline := voice.NewPipeline(voice.PipelineConfig{
		MaxAudioBytes:  cfg.MaxAudioBytes,
		TempDir:        cfg.TempDir,
		ContextLimit:   cfg.ContextLimit,
		DomainTimeout:  cfg.DomainTimeout,
		StrictVerify:   cfg.SessionStrictVerify,
		DefaultChamaID: cfg.ChamaDefaultID,
	}, voice.PipelineDeps{
		ASR:     gates.asr,
		LLM:     gates.llm,
		TTS:     gates.tts,
		Memory:  mem,
		Codec:   codec,
		Chama:   chamaClient,
		Metrics: metrics,
		Logger:  logger,
	})

	streams := session.NewStreams(cfg.StreamIdleTimeout)
	api := httpapi.New(cfg, pipeline, chamaClient, streams, metrics, logger)

	cleanup := func() error {
		return errors.Join(gates.Close(), mem.Close())
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Pipeline: pipeline,
		Streams:  streams,
		Memory:   mem,
		Chama:    chamaClient,
		Metrics:  metrics,
		store:    store,
		Cleanup:  cleanup,
	}, nil
}

// StartBackground runs the store sweeper and the stream janitor until ctx ends.
func (b *BuildResult) StartBackground(ctx context.Context, logger zerolog.Logger) {
	memory.StartJanitor(ctx, b.store, b.Config.ContextTTL/4, logger)
	b.Streams.StartJanitor(ctx, streamJanitorInterval(b.Config))
}

func streamJanitorInterval(cfg config.Config) time.Duration {
	return max(cfg.StreamIdleTimeout/4, time.Second)
}
