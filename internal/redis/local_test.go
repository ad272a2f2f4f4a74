package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLocalDayLocker_SerializesSameDay(t *testing.T) {
	locker := NewLocalDayLocker(time.Second)
	doctor := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithDayLock(context.Background(), doctor, "2024-06-03", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected at most one holder at a time, saw %d", maxInside)
	}
}

func TestLocalDayLocker_TimesOut(t *testing.T) {
	locker := NewLocalDayLocker(20 * time.Millisecond)
	doctor := uuid.New()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithDayLock(context.Background(), doctor, "2024-06-03", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err := locker.WithDayLock(context.Background(), doctor, "2024-06-03", func(ctx context.Context) error {
		t.Error("critical section should not run")
		return nil
	})
	if !errors.Is(err, ErrLockNotAcquired) {
		t.Errorf("expected ErrLockNotAcquired, got %v", err)
	}

	// A different day is independent.
	ran := false
	err = locker.WithDayLock(context.Background(), doctor, "2024-06-04", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Errorf("expected other day to lock freely, err=%v ran=%v", err, ran)
	}
}

func TestLocalDayLocker_ForgetsIdleKeys(t *testing.T) {
	locker := NewLocalDayLocker(time.Second).(*localDayLocker)
	doctor := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			day := time.Date(2024, 6, 1+i%10, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
			err := locker.WithDayLock(context.Background(), doctor, day, func(ctx context.Context) error {
				if locker.size() == 0 {
					t.Error("expected the held key to be tracked")
				}
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if n := locker.size(); n != 0 {
		t.Errorf("expected no tracked keys after all locks were released, got %d", n)
	}

	// A timed-out waiter also gives its reference back.
	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	short := NewLocalDayLocker(10 * time.Millisecond).(*localDayLocker)
	go func() {
		defer close(done)
		_ = short.WithDayLock(context.Background(), doctor, "2024-06-03", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	err := short.WithDayLock(context.Background(), doctor, "2024-06-03", func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrLockNotAcquired) {
		t.Errorf("expected ErrLockNotAcquired, got %v", err)
	}
	if n := short.size(); n != 1 {
		t.Errorf("expected only the holder's key, got %d", n)
	}
	close(release)
	<-done
	if n := short.size(); n != 0 {
		t.Errorf("expected no tracked keys, got %d", n)
	}
}

func TestLockKey(t *testing.T) {
	id := uuid.MustParse("7f1c2b1e-1111-4c1e-9a3b-000000000001")
	got := lockKey(id, "2024-06-03")
	want := "lock:doctor:7f1c2b1e-1111-4c1e-9a3b-000000000001:day:2024-06-03"
	if got != want {
		t.Errorf("lockKey() = %q, want %q", got, want)
	}
}
