package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreCapsTurnsAndKeepsNewest(t *testing.T) {
	store, mr := newMiniredisStore(t, time.Hour)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		require.NoError(t, store.AppendTurn(ctx, "s1", Turn{User: fmt.Sprintf("u%d", i), AI: fmt.Sprintf("a%d", i)}))
	}

	raw, err := mr.List(turnsKey("s1"))
	require.NoError(t, err)
	assert.Len(t, raw, MaxTurns)

	turns, err := store.RecentTurns(ctx, "s1", MaxTurns)
	require.NoError(t, err)
	require.Len(t, turns, MaxTurns)
	assert.Equal(t, "u5", turns[0].User)
	assert.Equal(t, "u14", turns[MaxTurns-1].User)

	recent, err := store.RecentTurns(ctx, "s1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"u12", "u13", "u14"}, []string{recent[0].User, recent[1].User, recent[2].User})
}

func TestRedisStoreCapsIntents(t *testing.T) {
	store, mr := newMiniredisStore(t, time.Hour)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		require.NoError(t, store.AppendIntent(ctx, "s1", IntentRecord{Intent: fmt.Sprintf("i%d", i), Confidence: 0.85}))
	}
	raw, err := mr.List(intentsKey("s1"))
	require.NoError(t, err)
	assert.Len(t, raw, MaxIntents)

	intents, err := store.Intents(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, intents, MaxIntents)
	assert.Equal(t, "i5", intents[0].Intent)
	assert.Equal(t, "i24", intents[MaxIntents-1].Intent)
}

func TestRedisStoreSlidingTTL(t *testing.T) {
	store, mr := newMiniredisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.AppendTurn(ctx, "s1", Turn{User: "a"}))
	assert.Equal(t, time.Minute, mr.TTL(turnsKey("s1")))

	mr.FastForward(40 * time.Second)
	require.NoError(t, store.AppendTurn(ctx, "s1", Turn{User: "b"}))
	assert.Equal(t, time.Minute, mr.TTL(turnsKey("s1")), "append must refresh the TTL")

	mr.FastForward(61 * time.Second)
	turns, err := store.RecentTurns(ctx, "s1", 5)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRedisStoreSkipsMalformedEntries(t *testing.T) {
	store, mr := newMiniredisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.AppendTurn(ctx, "s1", Turn{User: "first"}))
	_, err := mr.Lpush(turnsKey("s1"), "{not json")
	require.NoError(t, err)
	require.NoError(t, store.AppendTurn(ctx, "s1", Turn{User: "second"}))

	turns, err := store.RecentTurns(ctx, "s1", 5)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].User)
	assert.Equal(t, "second", turns[1].User)
}

func TestRedisStoreSessionsAreIsolated(t *testing.T) {
	store, _ := newMiniredisStore(t, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, sid := range []string{"a", "b"} {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(sid string, i int) {
				defer wg.Done()
				_ = store.AppendTurn(ctx, sid, Turn{User: fmt.Sprintf("%s-%d", sid, i)})
			}(sid, i)
		}
	}
	wg.Wait()

	for _, sid := range []string{"a", "b"} {
		turns, err := store.RecentTurns(ctx, sid, MaxTurns)
		require.NoError(t, err)
		assert.Len(t, turns, MaxTurns)
		for _, turn := range turns {
			assert.Contains(t, turn.User, sid+"-")
		}
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newMiniredisStore(t, time.Hour)
	mr.Close()

	ctx := context.Background()
	assert.ErrorIs(t, store.Ping(ctx), ErrUnavailable)
	assert.Error(t, store.AppendTurn(ctx, "s1", Turn{User: "x"}))
	_, err := store.RecentTurns(ctx, "s1", 5)
	assert.Error(t, err)
}
