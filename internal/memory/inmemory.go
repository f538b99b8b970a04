package memory

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is an in-process store for local/dev use. It follows the same
// cap and sliding TTL rules as the shared backends.
type InMemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	turns         []Turn
	intents       []IntentRecord
	turnsExpire   time.Time
	intentsExpire time.Time
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

func (s *InMemoryStore) entry(sessionID string, now time.Time) *sessionEntry {
	e, ok := s.sessions[sessionID]
	if !ok {
		e = &sessionEntry{}
		s.sessions[sessionID] = e
	}
	if !e.turnsExpire.IsZero() && !now.Before(e.turnsExpire) {
		e.turns = nil
	}
	if !e.intentsExpire.IsZero() && !now.Before(e.intentsExpire) {
		e.intents = nil
	}
	return e
}

func (s *InMemoryStore) AppendTurn(_ context.Context, sessionID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e := s.entry(sessionID, now)
	e.turns = appendCapped(e.turns, turn, MaxTurns)
	e.turnsExpire = now.Add(s.ttl)
	return nil
}

func (s *InMemoryStore) AppendIntent(_ context.Context, sessionID string, rec IntentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e := s.entry(sessionID, now)
	e.intents = appendCapped(e.intents, rec, MaxIntents)
	e.intentsExpire = now.Add(s.ttl)
	return nil
}

// appendCapped keeps items oldest first and drops from the front past limit.
func appendCapped[T any](items []T, v T, limit int) []T {
	items = append(items, v)
	if over := len(items) - limit; over > 0 {
		items = append(items[:0:0], items[over:]...)
	}
	return items
}

func (s *InMemoryStore) RecentTurns(_ context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	e = s.entry(sessionID, s.now())
	if limit > len(e.turns) {
		limit = len(e.turns)
	}
	out := make([]Turn, limit)
	copy(out, e.turns[len(e.turns)-limit:])
	return out, nil
}

func (s *InMemoryStore) Intents(_ context.Context, sessionID string) ([]IntentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, nil
	}
	e := s.entry(sessionID, s.now())
	out := make([]IntentRecord, len(e.intents))
	copy(out, e.intents)
	return out, nil
}

// Sweep drops sessions whose lists have both expired.
func (s *InMemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id := range s.sessions {
		e := s.entry(id, now)
		if len(e.turns) == 0 && len(e.intents) == 0 {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemoryStore) Ping(context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }
