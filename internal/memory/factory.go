package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FactoryConfig selects and configures a Store backend.
type FactoryConfig struct {
	Mode        string
	RedisURL    string
	DatabaseURL string
	TTL         time.Duration
}

// NewStore builds the configured backend. Mode "auto" prefers Redis, then
// Postgres, then the in-process store. Mode "none" returns a nil Store.
func NewStore(ctx context.Context, cfg FactoryConfig) (Store, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" || mode == "auto" {
		switch {
		case strings.TrimSpace(cfg.RedisURL) != "":
			mode = "redis"
		case strings.TrimSpace(cfg.DatabaseURL) != "":
			mode = "postgres"
		default:
			mode = "memory"
		}
	}

	switch mode {
	case "redis":
		store, err := NewRedisStore(cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := NewPostgresStore(ctx, cfg.DatabaseURL, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return NewInMemoryStore(cfg.TTL), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown context store mode %q", cfg.Mode)
	}
}

// StartJanitor periodically sweeps stores that cannot expire keys on their own.
func StartJanitor(ctx context.Context, store Store, interval time.Duration, logger zerolog.Logger) {
	sweeper, ok := store.(Sweeper)
	if !ok {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := sweeper.Sweep(ctx)
				if err != nil {
					logger.Warn().Err(err).Msg("context sweep failed")
					continue
				}
				if n > 0 {
					logger.Debug().Int("removed", n).Msg("context sweep")
				}
			}
		}
	}()
}
