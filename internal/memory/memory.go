package memory

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultOpTimeout = 2 * time.Second

// Memory is the pipeline's view of the context store. It never returns
// errors: a missing or failing store degrades to empty history, and failures
// are only logged.
type Memory struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewMemory wraps store. A nil store is valid and makes every call a no-op.
func NewMemory(store Store, timeout time.Duration, logger zerolog.Logger) *Memory {
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Memory{
		store:   store,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With().Str("component", "memory").Logger(),
	}
}

// Ready reports whether a backing store is configured.
func (m *Memory) Ready() bool {
	return m != nil && m.store != nil
}

// AppendTurn records one exchange. The write is detached from ctx
// cancellation so an aborted request still keeps what it produced.
func (m *Memory) AppendTurn(ctx context.Context, sessionID, userText, aiText, dialect string) {
	if !m.Ready() || sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	err := m.store.AppendTurn(ctx, sessionID, Turn{
		User:      userText,
		AI:        aiText,
		Dialect:   dialect,
		CreatedAt: m.now(),
	})
	if err != nil {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("append turn failed")
	}
}

func (m *Memory) AppendIntent(ctx context.Context, sessionID, label string, confidence float64) {
	if !m.Ready() || sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	err := m.store.AppendIntent(ctx, sessionID, IntentRecord{
		Intent:     label,
		Confidence: confidence,
		CreatedAt:  m.now(),
	})
	if err != nil {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("append intent failed")
	}
}

// RecentTurns returns at most limit turns, oldest first.
func (m *Memory) RecentTurns(ctx context.Context, sessionID string, limit int) []Turn {
	if !m.Ready() || sessionID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	turns, err := m.store.RecentTurns(ctx, sessionID, limit)
	if err != nil {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("read turns failed")
		return nil
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns
}

// RecentContext renders the most recent turns as a prompt transcript.
func (m *Memory) RecentContext(ctx context.Context, sessionID string, limit int) string {
	return FormatTranscript(m.RecentTurns(ctx, sessionID, limit))
}

func (m *Memory) Intents(ctx context.Context, sessionID string) []IntentRecord {
	if !m.Ready() || sessionID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	intents, err := m.store.Intents(ctx, sessionID)
	if err != nil {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("read intents failed")
		return nil
	}
	return intents
}

// Healthy pings the backing store.
func (m *Memory) Healthy(ctx context.Context) bool {
	if !m.Ready() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.store.Ping(ctx) == nil
}

func (m *Memory) Close() error {
	if !m.Ready() {
		return nil
	}
	return m.store.Close()
}

// FormatTranscript renders turns as alternating user and assistant lines.
func FormatTranscript(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	lines := make([]string, 0, len(turns)*2)
	for _, t := range turns {
		lines = append(lines, "Mtumiaji: "+t.User, "AI: "+t.AI)
	}
	return strings.Join(lines, "\n")
}
