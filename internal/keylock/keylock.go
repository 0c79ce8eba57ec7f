// Package keylock serializes work per entity key (a report id, a zone id).
package keylock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotObtained = errors.New("keylock: lock not obtained")

// Locker grants exclusive access to a key until the returned unlock func runs.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
	// TryLock returns ErrNotObtained instead of waiting. The ttl bounds how long
	// a distributed holder keeps the key if it dies without unlocking.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

type entry struct {
	sem  chan struct{}
	refs int
}

// Local is an in-process Locker. Entries are reference counted and removed
// once no goroutine holds or waits for the key.
type Local struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewLocal() *Local {
	return &Local{entries: make(map[string]*entry)}
}

func (l *Local) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquire(key)
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

// TryLock on Local succeeds only if key is free right now.
func (l *Local) TryLock(_ context.Context, key string, _ time.Duration) (func(), error) {
	e := l.acquire(key)
	select {
	case e.sem <- struct{}{}:
	default:
		l.release(key, e)
		return nil, ErrNotObtained
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

// Len reports how many keys are currently held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
