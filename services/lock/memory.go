package locksvc

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core"
)

// MemoryLocker serializes plan operations of a single process.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
	wait    time.Duration
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

var _ core.Locker = (*MemoryLocker)(nil)

// NewMemoryLocker returns a locker that waits up to wait for a held key; zero fails fast.
func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]*entry), wait: wait}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	e := l.ref(key)

	var err error
	if l.wait <= 0 {
		if !e.sem.TryAcquire(1) {
			err = core.ErrLocked
		}
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, l.wait)
		err = e.sem.Acquire(waitCtx, 1)
		cancel()
		if err != nil && ctx.Err() == nil {
			err = core.ErrLocked
		}
	}
	if err != nil {
		l.unref(key)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.unref(key)
		})
	}, nil
}

func (l *MemoryLocker) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *MemoryLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		e.refs--
		if e.refs == 0 {
			delete(l.entries, key)
		}
	}
}
