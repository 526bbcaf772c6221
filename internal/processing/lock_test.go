package processing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestFileLock_ExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autosheet.lock")
	first := NewFileLock(path)
	second := NewFileLock(path)
	second.retry = 5 * time.Millisecond

	if err := first.Lock(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := second.Lock(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second Lock = %v, want deadline exceeded", err)
	}

	if err := first.Unlock(); err != nil {
		t.Fatal(err)
	}
	if err := second.Lock(context.Background()); err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	second.Unlock()
}

type countingLock struct {
	locks, unlocks int
}

func (l *countingLock) Lock(ctx context.Context) error { l.locks++; return nil }
func (l *countingLock) Unlock() error                  { l.unlocks++; return nil }

func TestQueue_HoldsLockAroundTask(t *testing.T) {
	q := NewQueue(nil)
	lock := &countingLock{}
	q.SetLocker(lock)

	var heldDuringTask bool
	err := q.Add(context.Background(), "locked", func(ctx context.Context) error {
		heldDuringTask = lock.locks == 1 && lock.unlocks == 0
		panic("boom")
	}).Wait(context.Background())
	if err == nil {
		t.Fatal("panic not reported")
	}
	if !heldDuringTask {
		t.Error("task ran without the lock")
	}
	if lock.unlocks != 1 {
		t.Errorf("unlocks = %d, want 1 after panic", lock.unlocks)
	}
}
