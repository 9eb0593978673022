package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, time.Hour), mr
}

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	session := &Session{
		ID:          "s-1",
		Participant: &Participant{ID: "p-1", Name: "Maria"},
		History:     []Turn{{Role: RoleAssistant, Content: "hello"}},
	}
	require.NoError(t, store.Save(ctx, session))
	assert.Equal(t, time.Hour, mr.TTL(sessionKey("s-1")))

	loaded, err := store.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Maria", loaded.Participant.Name)
	require.Len(t, loaded.History, 1)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	mr.FastForward(2 * time.Hour)
	_, err = store.Load(ctx, "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStoreLock(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	unlock, err := store.Lock(ctx, "s-1")
	require.NoError(t, err)
	_, err = store.Lock(ctx, "s-1")
	assert.ErrorIs(t, err, ErrTurnInProgress)

	unlock()
	assert.False(t, mr.Exists(turnLockKey("s-1")))

	unlock2, err := store.Lock(ctx, "s-1")
	require.NoError(t, err)
	unlock2()
}

func TestRedisSessionStoreUnavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Load(context.Background(), "s-1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
