package processing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueue_RunsSequentially(t *testing.T) {
	q := NewQueue(nil)
	ctx := context.Background()

	release := make(chan struct{})
	firstStarted := make(chan struct{})
	var mu sync.Mutex
	var order []string

	first := q.Add(ctx, "first", func(ctx context.Context) error {
		close(firstStarted)
		<-release
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
		return nil
	})
	second := q.Add(ctx, "second", func(ctx context.Context) error {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		return errors.New("second failed")
	})

	<-firstStarted
	if got := q.Size(); got != 2 {
		t.Errorf("Size while first runs = %d, want 2", got)
	}
	if !q.IsBusy() {
		t.Error("IsBusy = false while running")
	}
	select {
	case <-second.Done():
		t.Fatal("second finished before first was released")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	if err := first.Wait(ctx); err != nil {
		t.Errorf("first: %v", err)
	}
	if err := second.Wait(ctx); err == nil || err.Error() != "second failed" {
		t.Errorf("second = %v, want its own error", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v", order)
	}
	if q.Size() != 0 {
		t.Errorf("Size after drain = %d", q.Size())
	}
}

func TestQueue_CancelledBeforeStart(t *testing.T) {
	q := NewQueue(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	f := q.Add(ctx, "cancelled", func(ctx context.Context) error {
		ran = true
		return nil
	})
	<-f.Done()
	if !errors.Is(f.Err(), context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", f.Err())
	}
	if ran {
		t.Error("cancelled task ran")
	}
}

func TestQueue_RecoversPanic(t *testing.T) {
	q := NewQueue(nil)
	f := q.Add(context.Background(), "panics", func(ctx context.Context) error {
		panic("boom")
	})
	if err := f.Wait(context.Background()); err == nil {
		t.Fatal("panicking task reported success")
	}

	next := q.Add(context.Background(), "after", func(ctx context.Context) error { return nil })
	if err := next.Wait(context.Background()); err != nil {
		t.Errorf("queue unusable after panic: %v", err)
	}
}

func TestQueue_OnChange(t *testing.T) {
	q := NewQueue(nil)
	var mu sync.Mutex
	var sizes []int
	q.OnChange(func(size int) {
		mu.Lock()
		sizes = append(sizes, size)
		mu.Unlock()
	})

	f := q.Add(context.Background(), "one", func(ctx context.Context) error { return nil })
	if err := f.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The final notification is sent after the future resolves.
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(sizes)
		last := -1
		if n > 0 {
			last = sizes[n-1]
		}
		mu.Unlock()
		if n >= 2 && last == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sizes = %v, want 1 then 0", sizes)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if sizes[0] != 1 {
		t.Errorf("first size = %d, want 1", sizes[0])
	}
}

func TestFuture_WaitHonoursContext(t *testing.T) {
	q := NewQueue(nil)
	release := make(chan struct{})
	defer close(release)
	f := q.Add(context.Background(), "slow", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want DeadlineExceeded", err)
	}
}
