package redisclient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// localDayLocker is the single-process Locker used when Redis is disabled.
// Entries live only while someone holds or waits for the key.
type localDayLocker struct {
	mu    sync.Mutex
	slots map[string]*daySlot
	wait  time.Duration
}

type daySlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalDayLocker(wait time.Duration) Locker {
	return &localDayLocker{
		slots: make(map[string]*daySlot),
		wait:  wait,
	}
}

func (l *localDayLocker) acquire(key string) *daySlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &daySlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *localDayLocker) release(key string, s *daySlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *localDayLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *localDayLocker) WithDayLock(ctx context.Context, doctorID uuid.UUID, day string, fn func(ctx context.Context) error) error {
	key := lockKey(doctorID, day)
	s := l.acquire(key)
	defer l.release(key, s)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrLockNotAcquired
	}
	defer func() { <-s.ch }()

	return fn(ctx)
}
