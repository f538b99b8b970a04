package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrStreamNotFound = errors.New("stream not found")

// Stream is one live websocket conversation. SessionID is the decoded
// conversation session and changes when the client switches sessions.
type Stream struct {
	ID             string    `json:"stream_id"`
	SessionID      string    `json:"session_id,omitempty"`
	Remote         string    `json:"remote"`
	Turns          int       `json:"turns"`
	OpenedAt       time.Time `json:"opened_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type streamEntry struct {
	Stream
	busy   bool
	onIdle func()
}

// Streams tracks open websocket conversations and closes idle ones.
type Streams struct {
	mu          sync.RWMutex
	streams     map[string]*streamEntry
	idleTimeout time.Duration
	now         func() time.Time
}

func NewStreams(idleTimeout time.Duration) *Streams {
	if idleTimeout <= 0 {
		idleTimeout = 2 * time.Minute
	}
	return &Streams{
		streams:     make(map[string]*streamEntry),
		idleTimeout: idleTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Open registers a stream. onIdle runs once, outside the lock, if the janitor
// finds the stream idle past the timeout.
func (s *Streams) Open(remote string, onIdle func()) Stream {
	now := s.now()
	e := &streamEntry{
		Stream: Stream{
			ID:             uuid.NewString(),
			Remote:         remote,
			OpenedAt:       now,
			LastActivityAt: now,
		},
		onIdle: onIdle,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[e.ID] = e
	return e.Stream
}

func (s *Streams) Touch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.streams[id]
	if !ok {
		return ErrStreamNotFound
	}
	e.LastActivityAt = s.now()
	return nil
}

// BeginTurn marks the stream busy. The janitor leaves busy streams alone so a
// slow turn is never cut off mid-pipeline.
func (s *Streams) BeginTurn(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.streams[id]
	if !ok {
		return ErrStreamNotFound
	}
	e.busy = true
	e.LastActivityAt = s.now()
	return nil
}

// FinishTurn clears the busy mark and restarts the idle clock. A non-empty
// sessionID counts the turn and binds the stream to that session.
func (s *Streams) FinishTurn(id, sessionID string) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.streams[id]
	if !ok {
		return Stream{}, ErrStreamNotFound
	}
	e.busy = false
	e.LastActivityAt = s.now()
	if sessionID != "" {
		e.Turns++
		e.SessionID = sessionID
	}
	return e.Stream, nil
}

func (s *Streams) Close(id string) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.streams[id]
	if !ok {
		return Stream{}, ErrStreamNotFound
	}
	delete(s.streams, id)
	return e.Stream, nil
}

func (s *Streams) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams)
}

func (s *Streams) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.expireIdle()
			}
		}
	}()
}

func (s *Streams) expireIdle() int {
	now := s.now()
	var hooks []func()

	s.mu.Lock()
	for id, e := range s.streams {
		if e.busy || now.Sub(e.LastActivityAt) < s.idleTimeout {
			continue
		}
		delete(s.streams, id)
		if e.onIdle != nil {
			hooks = append(hooks, e.onIdle)
		}
	}
	s.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
	return len(hooks)
}
