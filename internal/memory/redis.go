package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session as two capped lists, newest entry at the head.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore parses url and returns a store. The connection is made lazily.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStoreFromClient(redis.NewClient(opts), ttl), nil
}

func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func turnsKey(sessionID string) string   { return "session:" + sessionID + ":turns" }
func intentsKey(sessionID string) string { return "session:" + sessionID + ":intents" }

func (s *RedisStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	return s.push(ctx, turnsKey(sessionID), turn, MaxTurns)
}

func (s *RedisStore) AppendIntent(ctx context.Context, sessionID string, rec IntentRecord) error {
	return s.push(ctx, intentsKey(sessionID), rec, MaxIntents)
}

// push runs LPUSH, LTRIM and EXPIRE in one MULTI/EXEC so concurrent requests
// for a session cannot interleave between the push and the trim.
func (s *RedisStore) push(ctx context.Context, key string, v any, limit int) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, int64(limit-1))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	if limit > MaxTurns {
		limit = MaxTurns
	}
	return readList[Turn](ctx, s.client, turnsKey(sessionID), limit)
}

func (s *RedisStore) Intents(ctx context.Context, sessionID string) ([]IntentRecord, error) {
	return readList[IntentRecord](ctx, s.client, intentsKey(sessionID), MaxIntents)
}

func readList[T any](ctx context.Context, client *redis.Client, key string, limit int) ([]T, error) {
	raw, err := client.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	reverse(out)
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
