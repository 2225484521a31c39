package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// KeyedMutex is an in-process Locker.  Each key owns a one-slot channel;
// entries are dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	slot chan struct{}
	refs int
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// Acquire implements Locker.
func (k *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{slot: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		k.unref(key, l)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.slot
			k.unref(key, l)
		})
	}, nil
}

func (k *KeyedMutex) unref(key string, l *keyLock) {
	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

// BookingLockKey is the lock key serializing validate-then-persist for a
// class on one calendar day.
func BookingLockKey(classID uint64, day time.Time) string {
	return fmt.Sprintf("class:%d:%s", classID, day.Format("2006-01-02"))
}

// UnitsLockKey is the lock key serializing check-in allocation for a class.
func UnitsLockKey(classID uint64) string {
	return fmt.Sprintf("units:%d", classID)
}
