package processing

import (
	"context"
	"io"
	"log/slog"

	"github.com/christopherklint97/autosheet/internal/timesheet"
)

// Range is a requested span of days. Empty fields fall back to the
// trailing window.
type Range struct {
	Start string
	End   string
}

// DefaultRange is the trailing window ending yesterday: the six days before
// yesterday plus yesterday itself.
func DefaultRange(today timesheet.Date) (timesheet.Date, timesheet.Date) {
	yesterday := today.AddDays(-1)
	return yesterday.AddDays(-6), yesterday
}

// Resolve parses r relative to today. When only Start is set the range is
// that single day. Range checks against today happen in Days.
func (r Range) Resolve(today timesheet.Date) (timesheet.Date, timesheet.Date, error) {
	if r.Start == "" && r.End == "" {
		start, end := DefaultRange(today)
		return start, end, nil
	}
	if r.Start == "" {
		return timesheet.Date{}, timesheet.Date{}, &timesheet.InvalidRangeError{Field: "start", Reason: "required when end is set"}
	}

	start, err := ParseDay(r.Start, today)
	if err != nil {
		return timesheet.Date{}, timesheet.Date{}, &timesheet.InvalidRangeError{Field: "start", Value: r.Start, Reason: "not a valid date"}
	}
	end := start
	if r.End != "" {
		end, err = ParseDay(r.End, today)
		if err != nil {
			return timesheet.Date{}, timesheet.Date{}, &timesheet.InvalidRangeError{Field: "end", Value: r.End, Reason: "not a valid date"}
		}
	}
	return start, end, nil
}

// Days lists every day from start through end inclusive. It rejects ranges
// that reach today or later.
func Days(start, end, today timesheet.Date) ([]timesheet.Date, error) {
	if start.IsZero() {
		return nil, &timesheet.InvalidRangeError{Field: "start", Reason: "missing"}
	}
	if end.IsZero() {
		return nil, &timesheet.InvalidRangeError{Field: "end", Reason: "missing"}
	}
	if !start.Before(today) {
		return nil, &timesheet.InvalidRangeError{Field: "start", Value: start.String(), Reason: "is in the future"}
	}
	if !end.Before(today) {
		return nil, &timesheet.InvalidRangeError{Field: "end", Value: end.String(), Reason: "is in the future"}
	}
	if end.Before(start) {
		return nil, &timesheet.InvalidRangeError{Field: "end", Value: end.String(), Reason: "is before start " + start.String()}
	}

	var days []timesheet.Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days, nil
}

// Planner picks the days of a range that still need generating.
type Planner struct {
	ledger Ledger
	logger *slog.Logger
}

func NewPlanner(ledger Ledger, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Planner{ledger: ledger, logger: logger}
}

// Plan returns the weekdays between start and end that are not in the
// ledger yet, ascending.
func (p *Planner) Plan(ctx context.Context, start, end, today timesheet.Date) ([]timesheet.Date, error) {
	days, err := Days(start, end, today)
	if err != nil {
		return nil, err
	}

	var eligible []timesheet.Date
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger := p.logger.With("date", day.String())
		if day.IsWeekend() {
			logger.Debug("skipping weekend day")
			continue
		}
		done, err := p.ledger.IsComplete(ctx, day)
		if err != nil {
			return nil, err
		}
		if done {
			logger.Info("timesheet was already marked as done")
			continue
		}
		eligible = append(eligible, day)
	}
	return eligible, nil
}
