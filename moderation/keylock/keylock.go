// Per-key mutual exclusion for read-modify-write sequences.
//
// The engine takes a lock on "user/<hash>" before reading punishment history and writing an
// escalation, and on "moderator/<id>" before appointments and removals, so two concurrent
// requests on the same key cannot both act on the same stale read.
package keylock

import (
	"context"
	"fmt"

	"github.com/veilcampus/warden/moderation/errs"
)

// Locker hands out exclusive locks by key. The returned unlock function must be called exactly
// once. When the context ends before the lock is acquired, Lock returns an error wrapping
// errs.ErrLockTimeout.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func timeoutErr(key string, cause error) error {
	return fmt.Errorf("%w: %s: %w", errs.ErrLockTimeout, key, cause)
}
