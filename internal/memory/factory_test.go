package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreModes(t *testing.T) {
	ctx := context.Background()

	store, err := NewStore(ctx, FactoryConfig{Mode: "auto"})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryStore{}, store)

	mr := miniredis.RunT(t)
	store, err = NewStore(ctx, FactoryConfig{Mode: "auto", RedisURL: "redis://" + mr.Addr() + "/0", TTL: time.Minute})
	require.NoError(t, err)
	require.IsType(t, &RedisStore{}, store)
	assert.NoError(t, store.Ping(ctx))
	assert.NoError(t, store.Close())

	store, err = NewStore(ctx, FactoryConfig{Mode: "none"})
	require.NoError(t, err)
	assert.Nil(t, store)

	_, err = NewStore(ctx, FactoryConfig{Mode: "redis", RedisURL: "://bad"})
	assert.Error(t, err)

	_, err = NewStore(ctx, FactoryConfig{Mode: "cassandra"})
	assert.Error(t, err)
}

func TestStartJanitorSweepsInMemoryStore(t *testing.T) {
	store := NewInMemoryStore(time.Millisecond)
	require.NoError(t, store.AppendTurn(context.Background(), "s1", Turn{User: "a"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartJanitor(ctx, store, 5*time.Millisecond, zerolog.Nop())

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.sessions) == 0
	}, time.Second, 5*time.Millisecond)
}
