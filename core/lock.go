package core

import (
	"context"

	"github.com/pkg/errors"
)

var ErrLocked = errors.New("another plan operation is running for this user")

// Locker serializes plan operations per key (a user id).
// Acquire fails with ErrLocked when the key is held past the configured wait.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
