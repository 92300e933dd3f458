package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := AcquireLock(ctx, store, "digest:lock", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "digest:lock", first.Key())

	_, err = AcquireLock(ctx, store, "digest:lock", time.Minute)
	require.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, first.Release(ctx))

	second, err := AcquireLock(ctx, store, "digest:lock", time.Minute)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestStaleReleaseDoesNotFreeNewHolder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	stale, err := AcquireLock(ctx, store, "digest:lock", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	current, err := AcquireLock(ctx, store, "digest:lock", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))

	_, err = AcquireLock(ctx, store, "digest:lock", time.Minute)
	require.ErrorIs(t, err, ErrLockHeld, "the expired holder must not release the new lock")
	require.NoError(t, current.Release(ctx))
}

func TestAcquireLockRequiresStore(t *testing.T) {
	_, err := AcquireLock(context.Background(), nil, "k", time.Minute)
	require.Error(t, err)
}

func TestNewRedisStoreRequiresAddress(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{Address: "  "})
	require.Error(t, err)
	require.Nil(t, NewRedisStoreFromClient(nil))
}
