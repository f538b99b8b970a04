package memory

import (
	"context"
	"errors"
	"time"
)

const (
	// MaxTurns and MaxIntents cap each session list; older entries are trimmed on write.
	MaxTurns   = 10
	MaxIntents = 20

	DefaultTTL          = time.Hour
	DefaultContextLimit = 5
)

// ErrUnavailable is returned by backends that cannot reach their storage.
var ErrUnavailable = errors.New("context store unavailable")

// Turn is one user utterance and the reply it received.
type Turn struct {
	User      string    `json:"user"`
	AI        string    `json:"ai"`
	Dialect   string    `json:"dialect"`
	CreatedAt time.Time `json:"ts"`
}

// IntentRecord is one classified intent.
type IntentRecord struct {
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"ts"`
}

// Store persists bounded, expiring per-session history. Every append refreshes
// the session TTL. Reads return entries oldest first and skip entries that
// cannot be decoded.
type Store interface {
	AppendTurn(ctx context.Context, sessionID string, turn Turn) error
	AppendIntent(ctx context.Context, sessionID string, rec IntentRecord) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	Intents(ctx context.Context, sessionID string) ([]IntentRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// Sweeper is implemented by stores that must evict expired sessions themselves.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
