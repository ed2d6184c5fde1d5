package keylock

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

type memEntry struct {
	sem  chan struct{}
	refs int
}

// MemLocker serializes callers within one process. Entries are reference counted and dropped
// once no caller holds or waits on them.
type MemLocker struct {
	entries *xsync.MapOf[string, *memEntry]
}

var _ Locker = (*MemLocker)(nil)

func NewMemLocker() *MemLocker {
	return &MemLocker{
		entries: xsync.NewMapOf[string, *memEntry](),
	}
}

func (l *MemLocker) acquireRef(key string) *memEntry {
	e, _ := l.entries.Compute(key, func(old *memEntry, loaded bool) (*memEntry, bool) {
		if !loaded {
			old = &memEntry{sem: make(chan struct{}, 1)}
		}
		old.refs++
		return old, false
	})
	return e
}

func (l *MemLocker) releaseRef(key string) {
	l.entries.Compute(key, func(old *memEntry, loaded bool) (*memEntry, bool) {
		if !loaded {
			return nil, true
		}
		old.refs--
		return old, old.refs <= 0
	})
}

func (l *MemLocker) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquireRef(key)
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(key)
		return nil, timeoutErr(key, ctx.Err())
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		<-e.sem
		l.releaseRef(key)
	}, nil
}

// Len is the number of keys currently held or waited on.
func (l *MemLocker) Len() int {
	return l.entries.Size()
}
