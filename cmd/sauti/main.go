package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antoniostano/sauti/internal/app"
	"github.com/antoniostano/sauti/internal/config"
	"github.com/antoniostano/sauti/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := observability.NewLogger("info", "json")
		bootLogger.Fatal().Err(err).Msg("config error")
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	built, err := app.Build(runCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build failed")
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			logger.Warn().Err(err).Msg("cleanup failed")
		}
	}()
	built.StartBackground(runCtx, logger)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           built.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		ready := built.Pipeline.Readiness()
		logger.Info().
			Str("addr", cfg.BindAddr).
			Bool("asr", ready.ASR).
			Bool("llm", ready.LLM).
			Bool("tts", ready.TTS).
			Bool("chama", built.Chama.Ready()).
			Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	logger.Info().Msg("shutdown complete")
}
