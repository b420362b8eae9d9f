package lock

import (
	"context"
	"sync"
	"time"

	"inviteflow/core/constants"
	"inviteflow/core/errors"
)

// Locker serializes work on a single key. Acquire blocks until the key is
// free, the context ends, or the locker's own timeout elapses; the returned
// release must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Each key gets its own mutex; entries
// are dropped once the last holder and waiter are gone.
type KeyedMutex struct {
	mu      sync.Mutex
	locks   map[string]*keyLock
	timeout time.Duration
}

func NewKeyedMutex(timeout time.Duration) *KeyedMutex {
	if timeout <= 0 {
		timeout = constants.InboxLockTimeoutSeconds * time.Second
	}
	return &KeyedMutex{
		locks:   make(map[string]*keyLock),
		timeout: timeout,
	}
}

func (m *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case kl.ch <- struct{}{}:
		return func() {
			<-kl.ch
			m.drop(key, kl)
		}, nil
	case <-timer.C:
		m.drop(key, kl)
		return nil, errors.NewAppError(errors.ErrLockTimeout, "lock acquisition timed out for "+key, nil)
	case <-ctx.Done():
		m.drop(key, kl)
		return nil, errors.NewAppError(errors.ErrLockTimeout, "lock acquisition canceled for "+key, ctx.Err())
	}
}

func (m *KeyedMutex) drop(key string, kl *keyLock) {
	m.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}
