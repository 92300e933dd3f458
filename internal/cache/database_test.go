package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matchbook/notifier/internal/database/testutil"
)

func newTestStore(t *testing.T) *DatabaseStore {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	return NewDatabaseStore(db)
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "k", []byte("v1"), time.Minute))
	require.NoError(t, store.Set(ctx, "k", []byte("v2"), time.Minute))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), value)

	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreGetHonoursExpiry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	now = now.Add(2 * time.Minute)
	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreSetNX(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ok, err := store.SetNX(ctx, "lock", []byte("a"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.SetNX(ctx, "lock", []byte("b"), time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "live entry must not be replaced")

	now = now.Add(5 * time.Minute)
	ok, err = store.SetNX(ctx, "lock", []byte("c"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired entry should be taken over")

	value, found, err := store.Get(ctx, "lock")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("c"), value)
}

func TestDatabaseStoreCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "k", []byte("mine"), time.Minute))

	deleted, err := store.CompareAndDelete(ctx, "k", []byte("theirs"))
	require.NoError(t, err)
	require.False(t, deleted)

	deleted, err = store.CompareAndDelete(ctx, "k", []byte("mine"))
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = store.CompareAndDelete(ctx, "missing", []byte("mine"))
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "long", []byte("2"), time.Hour))
	require.NoError(t, store.Set(ctx, "forever", []byte("3"), 0))

	purged, err := store.PurgeExpired(ctx, now.Add(10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	_, ok, err := store.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNilDatabaseStore(t *testing.T) {
	var store *DatabaseStore
	require.Nil(t, NewDatabaseStore(nil))
	require.Error(t, store.Set(context.Background(), "k", nil, 0))
	_, err := store.SetNX(context.Background(), "k", nil, 0)
	require.Error(t, err)
}
