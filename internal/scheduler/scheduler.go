// Package scheduler triggers timesheet generation on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/christopherklint97/autosheet/internal/config"
	"github.com/christopherklint97/autosheet/internal/processing"
)

// Generator runs one generation over the default window.
type Generator interface {
	Generate(ctx context.Context, r processing.Range) error
}

type Scheduler struct {
	spec    string
	catchUp bool
	runner  Generator
	pidPath string
	logger  *slog.Logger
}

// New returns a scheduler firing on the standard cron expression spec. With
// catchUp set a run is also queued right after start.
func New(spec string, catchUp bool, runner Generator, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{spec: spec, catchUp: catchUp, runner: runner, logger: logger}
}

// Run blocks until ctx is done. Ticks and the startup catch-up go through
// the same runner, which serialises them.
func (s *Scheduler) Run(ctx context.Context) error {
	schedule, err := cron.ParseStandard(s.spec)
	if err != nil {
		return fmt.Errorf("parsing schedule %q: %w", s.spec, err)
	}

	if err := s.writePID(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer s.removePID()

	c := cron.New(
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger})),
	)
	c.Schedule(schedule, cron.FuncJob(func() { s.tick(ctx, schedule) }))

	if s.catchUp {
		go s.trigger(ctx, "startup")
	}

	c.Start()
	s.logger.Info("scheduler started", "schedule", s.spec, "next", schedule.Next(time.Now()))

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// tick runs a scheduled generation and reports when the next one is due.
func (s *Scheduler) tick(ctx context.Context, schedule cron.Schedule) {
	s.trigger(ctx, "schedule")
	if ctx.Err() == nil {
		s.logger.Info("next timesheet check", "at", schedule.Next(time.Now()).Format("2006-01-02 15:04"))
	}
}

func (s *Scheduler) trigger(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Debug("queueing timesheet generation", "trigger", reason)
	if err := s.runner.Generate(ctx, processing.Range{}); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("scheduled generation failed", "trigger", reason, "error", err)
	}
}

// cronLogger adapts slog to cron's logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}

// PIDPath is the PID file of a running scheduler.
func PIDPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "autosheet.pid"), nil
}

func (s *Scheduler) path() (string, error) {
	if s.pidPath != "" {
		return s.pidPath, nil
	}
	return PIDPath()
}

func (s *Scheduler) writePID() error {
	path, err := s.path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (s *Scheduler) removePID() {
	if path, err := s.path(); err == nil {
		os.Remove(path)
	}
}

func ReadPID() (int, error) {
	path, err := PIDPath()
	if err != nil {
		return 0, err
	}
	return readPID(path)
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("no running scheduler found")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file")
	}

	return pid, nil
}
