package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("cache: lock already held")

// Lock is a best-effort mutual exclusion token stored in a cache Store. It expires on its
// own after the TTL so a crashed holder cannot block later runs forever.
type Lock struct {
	store Store
	key   string
	token []byte
}

// AcquireLock takes key for ttl, returning ErrLockHeld when someone else holds it.
func AcquireLock(ctx context.Context, store Store, key string, ttl time.Duration) (*Lock, error) {
	if store == nil {
		return nil, errors.New("cache: lock store is nil")
	}

	token := []byte(uuid.NewString())
	ok, err := store.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{store: store, key: key, token: token}, nil
}

// Key returns the locked key.
func (l *Lock) Key() string {
	return l.key
}

// Release frees the lock if it is still owned by this holder.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	_, err := l.store.CompareAndDelete(ctx, l.key, l.token)
	return err
}
