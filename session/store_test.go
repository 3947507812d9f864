package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRevocationStoreTest(t *testing.T) (*RevocationStore, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRevocationStore(rdb, "acr")

	return store, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestRevocationStoreRevokeAndCheck(t *testing.T) {
	store, mr, done := newRevocationStoreTest(t)
	defer done()
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "sid-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "sid-1", time.Now().Add(time.Hour).Unix()))

	revoked, err = store.IsRevoked(ctx, "sid-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl := mr.TTL("acr:sid-1")
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestRevocationStoreEntryLapsesWithToken(t *testing.T) {
	store, mr, done := newRevocationStoreTest(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "sid-2", time.Now().Add(time.Minute).Unix()))
	mr.FastForward(2 * time.Minute)

	revoked, err := store.IsRevoked(ctx, "sid-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevocationStoreSkipsExpiredTokens(t *testing.T) {
	store, mr, done := newRevocationStoreTest(t)
	defer done()

	require.NoError(t, store.Revoke(context.Background(), "sid-old", time.Now().Add(-time.Hour).Unix()))
	assert.False(t, mr.Exists("acr:sid-old"))
}

func TestRevocationStoreRejectsEmptyID(t *testing.T) {
	store, _, done := newRevocationStoreTest(t)
	defer done()

	assert.ErrorIs(t, store.Revoke(context.Background(), "", time.Now().Unix()+60), ErrEmptySessionID)
	_, err := store.IsRevoked(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptySessionID)
}

func TestRevocationStoreReportsBackendDown(t *testing.T) {
	store, mr, done := newRevocationStoreTest(t)
	defer done()

	mr.Close()

	_, err := store.IsRevoked(context.Background(), "sid-3")
	assert.ErrorIs(t, err, ErrRedisUnavailable)
	assert.ErrorIs(t, store.Ping(context.Background()), ErrRedisUnavailable)
}
