// Package processing decides which days need timesheet entries and creates
// them, one day and one job at a time.
package processing

import (
	"context"
	"time"

	"github.com/christopherklint97/autosheet/internal/store"
	"github.com/christopherklint97/autosheet/internal/timesheet"
)

// TimesheetProvider is the HR system entries are written to.
type TimesheetProvider interface {
	IsLinked(ctx context.Context) (bool, error)
	Entries(ctx context.Context, start, end timesheet.Date) ([]timesheet.RemoteEntry, error)
	CreateEntries(ctx context.Context, entries []timesheet.Entry) error
	DeleteEntries(ctx context.Context, ids []string) error
}

// Ledger persists which days are done.
type Ledger interface {
	IsComplete(ctx context.Context, day timesheet.Date) (bool, error)
	Completion(ctx context.Context, day timesheet.Date) (*store.Completion, error)
	MarkComplete(ctx context.Context, day timesheet.Date, completedAt *time.Time) error
	Clear(ctx context.Context, day timesheet.Date) error
}

// ProfileSource loads the identity and classification settings.
type ProfileSource interface {
	Profile(ctx context.Context) (store.Profile, error)
}
