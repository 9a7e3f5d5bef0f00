// Package keylock provides mutual exclusion per string key, typically a party
// id, for one process.
package keylock

import (
	"context"
	"fmt"
	"sync"

	"github.com/khata-ledger/khata/internal/apperr"
)

// Locks serialises work per key. Each lock is a one-slot channel so waiting
// can be abandoned when the caller's context ends; entries are reference
// counted and dropped once nobody holds or waits on them.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func New() *Locks {
	return &Locks{locks: make(map[string]*keyLock)}
}

// Acquire blocks until the key is free or ctx ends. A context that ends first
// yields apperr.ErrTimeout. The returned release func is safe to call twice.
func (l *Locks) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.sem
				l.unref(key, kl)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, kl)
		return nil, fmt.Errorf("%w: waiting for lock on %s: %w", apperr.ErrTimeout, key, ctx.Err())
	}
}

func (l *Locks) unref(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// Len reports how many keys are currently held or waited on.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
