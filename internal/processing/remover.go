package processing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/christopherklint97/autosheet/internal/timesheet"
)

// Remover undoes generated days: it deletes the day's hour entries from the
// HR system and clears the ledger row.
type Remover struct {
	timesheets TimesheetProvider
	ledger     Ledger
	logger     *slog.Logger
}

func NewRemover(timesheets TimesheetProvider, ledger Ledger, logger *slog.Logger) *Remover {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Remover{timesheets: timesheets, ledger: ledger, logger: logger}
}

// Remove processes every day. Days not generated by autosheet are left
// alone unless includeNonGenerated is set. Remote deletion is best effort:
// the ledger row is cleared either way and remote failures are returned
// joined once every day has been attempted.
func (r *Remover) Remove(ctx context.Context, days []timesheet.Date, includeNonGenerated bool) error {
	linked, err := r.timesheets.IsLinked(ctx)
	if err != nil {
		return err
	}
	if !linked {
		return &timesheet.AccountNotLinkedError{Service: "BambooHR"}
	}

	var errs []error
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger := r.logger.With("date", day.String())

		completion, err := r.ledger.Completion(ctx, day)
		if err != nil {
			return err
		}
		generated := completion != nil && completion.Generated()
		if !generated && !includeNonGenerated {
			logger.Debug("skipping day that was not generated")
			continue
		}

		if err := r.deleteRemote(ctx, day, logger); err != nil {
			logger.Warn("failed to delete remote entries", "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", day, err))
		}

		if err := r.ledger.Clear(ctx, day); err != nil {
			return err
		}
		logger.Info("timesheet removed")
	}
	return errors.Join(errs...)
}

func (r *Remover) deleteRemote(ctx context.Context, day timesheet.Date, logger *slog.Logger) error {
	entries, err := r.timesheets.Entries(ctx, day, day)
	if err != nil {
		return err
	}

	var ids []string
	for _, e := range entries {
		if e.Date != day {
			continue
		}
		if e.Approved {
			logger.Warn("keeping approved entry", "id", e.ID)
			continue
		}
		ids = append(ids, e.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	logger.Debug("deleting remote entries", "count", len(ids))
	return r.timesheets.DeleteEntries(ctx, ids)
}
