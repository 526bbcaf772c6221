package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// Locker excludes other processes while a queued task runs.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// FileLock is an advisory lock on a file shared by every autosheet process,
// so a manual run and the scheduler never submit at the same time.
type FileLock struct {
	flock *flock.Flock
	retry time.Duration
}

func NewFileLock(path string) *FileLock {
	return &FileLock{flock: flock.New(path), retry: 250 * time.Millisecond}
}

// Lock blocks until the lock is held or ctx is done.
func (l *FileLock) Lock(ctx context.Context) error {
	ok, err := l.flock.TryLockContext(ctx, l.retry)
	if err != nil {
		return fmt.Errorf("locking %s: %w", l.flock.Path(), err)
	}
	if !ok {
		return ctx.Err()
	}
	return nil
}

func (l *FileLock) Unlock() error {
	return l.flock.Unlock()
}
