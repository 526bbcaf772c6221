package scheduler

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/christopherklint97/autosheet/internal/processing"
)

type recordingGenerator struct {
	mu     sync.Mutex
	ranges []processing.Range
	called chan struct{}
}

func (g *recordingGenerator) Generate(ctx context.Context, r processing.Range) error {
	g.mu.Lock()
	g.ranges = append(g.ranges, r)
	g.mu.Unlock()
	select {
	case g.called <- struct{}{}:
	default:
	}
	return nil
}

func TestScheduler_CatchUpAndPID(t *testing.T) {
	gen := &recordingGenerator{called: make(chan struct{}, 1)}
	s := New("0 0 1 1 *", true, gen, nil)
	s.pidPath = filepath.Join(t.TempDir(), "autosheet.pid")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-gen.called:
	case <-time.After(2 * time.Second):
		t.Fatal("catch-up run was not triggered")
	}

	pid, err := readPID(s.pidPath)
	if err != nil || pid <= 0 {
		t.Errorf("readPID = %d, %v", pid, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, err := readPID(s.pidPath); err == nil {
		t.Error("PID file left behind")
	}
	gen.mu.Lock()
	defer gen.mu.Unlock()
	if len(gen.ranges) != 1 || gen.ranges[0] != (processing.Range{}) {
		t.Errorf("ranges = %+v, want one default range", gen.ranges)
	}
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := New("not a cron", false, &recordingGenerator{}, nil)
	s.pidPath = filepath.Join(t.TempDir(), "autosheet.pid")
	if err := s.Run(context.Background()); err == nil {
		t.Error("Run accepted an invalid schedule")
	}
}

func TestScheduler_TickLogsNextRun(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	gen := &recordingGenerator{called: make(chan struct{}, 1)}
	s := New("0 9 * * *", false, gen, logger)

	schedule, err := cron.ParseStandard("0 9 * * *")
	if err != nil {
		t.Fatal(err)
	}
	s.tick(context.Background(), schedule)

	if len(gen.ranges) != 1 {
		t.Fatalf("ranges = %+v, want one run", gen.ranges)
	}
	next := schedule.Next(time.Now()).Format("2006-01-02 15:04")
	out := buf.String()
	if !strings.Contains(out, "level=INFO") || !strings.Contains(out, "next timesheet check") || !strings.Contains(out, next) {
		t.Errorf("log = %q, want next run %s at info", out, next)
	}
}
