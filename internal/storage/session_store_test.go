package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreWithClient(client), mr
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedis(t)
	sessions := NewSessionStore(store, time.Hour)

	token, err := sessions.Create(ctx, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := sessions.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	require.NoError(t, sessions.Delete(ctx, token))

	_, err = sessions.Get(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionTokensAreUnique(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedis(t)
	sessions := NewSessionStore(store, time.Hour)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		token, err := sessions.Create(ctx, "user-1")
		require.NoError(t, err)
		require.False(t, seen[token], "duplicate session token")
		seen[token] = true
	}
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedis(t)
	sessions := NewSessionStore(store, time.Minute)

	token, err := sessions.Create(ctx, "user-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = sessions.Get(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestJobGroupHandle(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedis(t)
	sessions := NewSessionStore(store, time.Hour)

	token, err := sessions.Create(ctx, "user-1")
	require.NoError(t, err)

	// No handle yet: empty string, not an error
	groupID, err := sessions.GetJobGroup(ctx, token)
	require.NoError(t, err)
	assert.Empty(t, groupID)

	require.NoError(t, sessions.SetJobGroup(ctx, token, "group-1"))

	groupID, err = sessions.GetJobGroup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "group-1", groupID)

	// Deleting the session clears the handle too
	require.NoError(t, sessions.Delete(ctx, token))
	groupID, err = sessions.GetJobGroup(ctx, token)
	require.NoError(t, err)
	assert.Empty(t, groupID)
}
