package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/christopherklint97/autosheet/internal/timesheet"
)

// Completion is one row of the completion ledger. A nil CompletedAt means
// the day already had entries in the HR system and was not generated here.
type Completion struct {
	Date              string        `db:"date"`
	CompletedAtMillis sql.NullInt64 `db:"completed_at"`
}

func (c Completion) CompletedAt() *time.Time {
	if !c.CompletedAtMillis.Valid {
		return nil
	}
	t := time.UnixMilli(c.CompletedAtMillis.Int64).UTC()
	return &t
}

// Generated reports whether the day's entries were created by autosheet.
func (c Completion) Generated() bool {
	return c.CompletedAtMillis.Valid
}

// Ledger records which days already have timesheet entries.
type Ledger struct {
	db *DB
}

func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) IsComplete(ctx context.Context, day timesheet.Date) (bool, error) {
	c, err := l.Completion(ctx, day)
	if err != nil {
		return false, err
	}
	return c != nil, nil
}

// Completion returns the ledger row for day, or nil when there is none.
func (l *Ledger) Completion(ctx context.Context, day timesheet.Date) (*Completion, error) {
	var c Completion
	err := l.db.GetContext(ctx, &c, "SELECT date, completed_at FROM timesheets_done WHERE date = ?", day.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger for %s: %w", day, err)
	}
	return &c, nil
}

// MarkComplete records day as done. With a completion time the row is
// upserted; without one an existing row is left untouched.
func (l *Ledger) MarkComplete(ctx context.Context, day timesheet.Date, completedAt *time.Time) error {
	var err error
	if completedAt == nil {
		_, err = l.db.ExecContext(ctx,
			"INSERT INTO timesheets_done (date) VALUES (?) ON CONFLICT(date) DO NOTHING",
			day.String(),
		)
	} else {
		_, err = l.db.ExecContext(ctx,
			"INSERT INTO timesheets_done (date, completed_at) VALUES (?, ?) ON CONFLICT(date) DO UPDATE SET completed_at = excluded.completed_at",
			day.String(), completedAt.UTC().UnixMilli(),
		)
	}
	if err != nil {
		return fmt.Errorf("marking %s complete: %w", day, err)
	}
	return nil
}

func (l *Ledger) Clear(ctx context.Context, day timesheet.Date) error {
	if _, err := l.db.ExecContext(ctx, "DELETE FROM timesheets_done WHERE date = ?", day.String()); err != nil {
		return fmt.Errorf("clearing %s: %w", day, err)
	}
	return nil
}

// List returns ledger rows between start and end inclusive, ascending.
func (l *Ledger) List(ctx context.Context, start, end timesheet.Date) ([]Completion, error) {
	var rows []Completion
	err := l.db.SelectContext(ctx, &rows,
		"SELECT date, completed_at FROM timesheets_done WHERE date >= ? AND date <= ? ORDER BY date ASC",
		start.String(), end.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing ledger: %w", err)
	}
	return rows, nil
}
