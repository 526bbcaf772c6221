package processing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/christopherklint97/autosheet/internal/calendar"
	"github.com/christopherklint97/autosheet/internal/timesheet"
)

// Notifier shows a user-visible message.
type Notifier interface {
	Notify(title, message string) error
}

// Service is the entry point for every trigger. All mutations go through
// one Queue so runs never overlap.
type Service struct {
	queue         *Queue
	calendar      calendar.Provider
	timesheets    TimesheetProvider
	planner       *Planner
	generator     *Generator
	remover       *Remover
	notifier      Notifier
	notifySuccess bool
	logger        *slog.Logger
	now           func() time.Time
}

type ServiceOptions struct {
	Queue         *Queue
	Calendar      calendar.Provider
	Timesheets    TimesheetProvider
	Ledger        Ledger
	Profiles      ProfileSource
	Notifier      Notifier
	NotifySuccess bool
	// Lock, when set, is held by every queued task.
	Lock   Locker
	Logger *slog.Logger
}

func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	queue := opts.Queue
	if queue == nil {
		queue = NewQueue(logger.With("component", "queue"))
	}
	if opts.Lock != nil {
		queue.SetLocker(opts.Lock)
	}
	return &Service{
		queue:         queue,
		calendar:      opts.Calendar,
		timesheets:    opts.Timesheets,
		planner:       NewPlanner(opts.Ledger, logger.With("component", "planner")),
		generator:     NewGenerator(opts.Calendar, opts.Timesheets, opts.Ledger, opts.Profiles, logger.With("component", "generator")),
		remover:       NewRemover(opts.Timesheets, opts.Ledger, logger.With("component", "remover")),
		notifier:      opts.Notifier,
		notifySuccess: opts.NotifySuccess,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *Service) IsBusy() bool { return s.queue.IsBusy() }

// Generate queues a generation run for r and waits for it. A missing
// account link is not an error. Cancellation by the caller is returned but
// not notified.
func (s *Service) Generate(ctx context.Context, r Range) error {
	err := s.queue.Add(ctx, "generate", func(ctx context.Context) error {
		return s.generate(ctx, r)
	}).Wait(ctx)

	switch {
	case err == nil:
		if s.notifySuccess {
			s.notify("Timesheets processed", "All timesheets have been processed successfully.")
		}
		return nil
	case errors.Is(err, timesheet.ErrAccountNotLinked):
		s.logger.Warn("skipping generation because an account is not linked", "error", err)
		return nil
	case errors.Is(err, context.Canceled):
		s.logger.Info("timesheet generation cancelled")
		return err
	default:
		s.logger.Error("failed to process timesheets", "error", err)
		s.notify("Failed to process timesheets", err.Error())
		return err
	}
}

// Remove queues removal of the days in r and waits for it.
func (s *Service) Remove(ctx context.Context, r Range, includeNonGenerated bool) error {
	err := s.queue.Add(ctx, "remove", func(ctx context.Context) error {
		return s.remove(ctx, r, includeNonGenerated)
	}).Wait(ctx)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, timesheet.ErrAccountNotLinked):
		s.logger.Warn("skipping removal because an account is not linked", "error", err)
		return nil
	case errors.Is(err, context.Canceled):
		s.logger.Info("timesheet removal cancelled")
		return err
	default:
		s.logger.Error("failed to remove timesheets", "error", err)
		s.notify("Failed to remove timesheets", err.Error())
		return err
	}
}

func (s *Service) generate(ctx context.Context, r Range) error {
	linked, err := s.timesheets.IsLinked(ctx)
	if err != nil {
		return err
	}
	if !linked {
		s.logger.Warn("skipping job because BambooHR account is not linked")
		return nil
	}

	primary, err := s.calendar.PrimaryCalendar(ctx)
	if err != nil {
		return err
	}
	loc := primary.Location
	if loc == nil {
		loc = calendar.LoadLocation(primary.TimeZone)
	}
	today := timesheet.DateOf(s.now().In(loc))

	start, end, err := r.Resolve(today)
	if err != nil {
		return err
	}
	days, err := s.planner.Plan(ctx, start, end, today)
	if err != nil {
		return err
	}
	s.logger.Info("job will start checking dates", "first_day", start.String(), "last_day", end.String(), "eligible", len(days))

	// Every day is attempted; the first failure is reported afterwards.
	var errs []error
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.generator.GenerateForDay(ctx, day); err != nil {
			s.logger.Error("failed to generate timesheet", "date", day.String(), "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		if len(errs) > 1 {
			s.logger.Error("several days failed", "failed", len(errs), "error", errors.Join(errs...))
		}
		return errs[0]
	}
	return nil
}

func (s *Service) remove(ctx context.Context, r Range, includeNonGenerated bool) error {
	if r.Start == "" {
		return &timesheet.InvalidRangeError{Field: "start", Reason: "required"}
	}
	today := timesheet.DateOf(s.now())
	start, end, err := r.Resolve(today)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return &timesheet.InvalidRangeError{Field: "end", Value: end.String(), Reason: "is before start " + start.String()}
	}

	var days []timesheet.Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		days = append(days, d)
	}
	return s.remover.Remove(ctx, days, includeNonGenerated)
}

func (s *Service) notify(title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(title, message); err != nil {
		s.logger.Debug("failed to send notification", "error", err)
	}
}
