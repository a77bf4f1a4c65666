// Package lock serializes work on one key, either inside the process or
// across replicas through Redis.
package lock

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive ownership of a key until release is called.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}
