package processing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/christopherklint97/autosheet/internal/calendar"
	"github.com/christopherklint97/autosheet/internal/classify"
	"github.com/christopherklint97/autosheet/internal/timesheet"
)

// Generator creates the timesheet entries of a single day.
type Generator struct {
	calendar   calendar.Provider
	timesheets TimesheetProvider
	ledger     Ledger
	profiles   ProfileSource
	logger     *slog.Logger
	now        func() time.Time
}

func NewGenerator(cal calendar.Provider, timesheets TimesheetProvider, ledger Ledger, profiles ProfileSource, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Generator{
		calendar:   cal,
		timesheets: timesheets,
		ledger:     ledger,
		profiles:   profiles,
		logger:     logger,
		now:        time.Now,
	}
}

// GenerateForDay submits entries for day unless the HR system already has
// some. It is a no-op when no HR account is linked. The ledger is only
// updated once the HR system reflects the day.
func (g *Generator) GenerateForDay(ctx context.Context, day timesheet.Date) error {
	logger := g.logger.With("date", day.String())

	if err := ctx.Err(); err != nil {
		return err
	}
	linked, err := g.timesheets.IsLinked(ctx)
	if err != nil {
		return err
	}
	if !linked {
		logger.Warn("skipping day because BambooHR account is not linked")
		return nil
	}

	profile, err := g.profiles.Profile(ctx)
	if err != nil {
		return err
	}
	if profile.Email == "" {
		return &timesheet.AccountNotLinkedError{Service: "calendar"}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	existing, err := g.timesheets.Entries(ctx, day, day)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("BambooHR already has timesheet entries, skipping", "entries", len(existing))
		return g.ledger.MarkComplete(ctx, day, nil)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Info("generating timesheet entries")
	primary, err := g.calendar.PrimaryCalendar(ctx)
	if err != nil {
		return err
	}
	loc := primary.Location
	if loc == nil {
		loc = calendar.LoadLocation(primary.TimeZone)
	}
	now := g.now().In(loc)

	if err := ctx.Err(); err != nil {
		return err
	}
	events, err := g.calendar.Events(ctx, primary.ID, day.In(loc), day.AddDays(1).In(loc))
	if err != nil {
		return err
	}
	logger.Debug("got calendar events", "events", len(events))

	entries, classified := g.classify(day, events, profile.Email, profile.DirectReports, logger)

	// Not clamped: a day full of meetings yields a negative filler.
	entries = append(entries, timesheet.Entry{
		Date:     day,
		Hours:    profile.WorkingHours - classified,
		Category: timesheet.CategoryDevelopment,
	})

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.timesheets.CreateEntries(ctx, entries); err != nil {
		return err
	}

	completedAt := now.UTC()
	if err := g.ledger.MarkComplete(ctx, day, &completedAt); err != nil {
		return err
	}
	logger.Info("timesheet entries generated", "entries", len(entries), "classified_hours", classified)
	return nil
}

func (g *Generator) classify(day timesheet.Date, events []calendar.Event, email string, reports []string, logger *slog.Logger) ([]timesheet.Entry, float64) {
	classifier := classify.New(email, reports)

	var entries []timesheet.Entry
	for _, event := range events {
		entry, decision := classifier.Classify(day, event)
		if decision != classify.Accepted {
			logger.Debug("skipping event", "event", event.ID, "reason", string(decision))
			continue
		}
		if err := timesheet.Validate(entry); err != nil {
			var verr *timesheet.ValidationError
			if errors.As(err, &verr) {
				logger.Warn("dropping invalid timesheet entry", "event", event.ID, "error", verr.Err)
			}
			continue
		}
		entries = append(entries, entry)
		logger.Debug("prepared timesheet entry", "category", string(entry.Category), "hours", entry.Hours)
	}
	return entries, timesheet.TotalHours(entries)
}
