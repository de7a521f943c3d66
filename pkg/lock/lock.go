// Package lock serializes work on a key, in process or across instances.
package lock

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock not acquired")

type Locker interface {
	// WithLock runs fn while holding the lock for key.
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
