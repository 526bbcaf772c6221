package processing

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/christopherklint97/autosheet/internal/calendar"
	"github.com/christopherklint97/autosheet/internal/store"
	"github.com/christopherklint97/autosheet/internal/timesheet"
)

type fakeCalendar struct {
	mu      sync.Mutex
	loc     *time.Location
	events  []calendar.Event
	err     error
	queries [][2]time.Time
}

func (c *fakeCalendar) PrimaryCalendar(ctx context.Context) (calendar.Calendar, error) {
	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	return calendar.Calendar{ID: "primary", TimeZone: loc.String(), Location: loc}, nil
}

func (c *fakeCalendar) Events(ctx context.Context, calendarID string, start, end time.Time) ([]calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, [2]time.Time{start, end})
	if c.err != nil {
		return nil, c.err
	}
	var out []calendar.Event
	for _, e := range c.events {
		if e.Start.Before(end) && e.End.After(start) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeTimesheets struct {
	mu        sync.Mutex
	unlinked  bool
	remote    []timesheet.RemoteEntry
	batches   [][]timesheet.Entry
	deleted   []string
	createErr map[string]error
	deleteErr error
	nextID    int

	// concurrency tracking for queue tests
	active    int
	maxActive int
	delay     time.Duration
}

func (f *fakeTimesheets) IsLinked(ctx context.Context) (bool, error) {
	return !f.unlinked, nil
}

func (f *fakeTimesheets) Entries(ctx context.Context, start, end timesheet.Date) ([]timesheet.RemoteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []timesheet.RemoteEntry
	for _, e := range f.remote {
		if !e.Date.Before(start) && !e.Date.After(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeTimesheets) CreateEntries(ctx context.Context, entries []timesheet.Entry) error {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
	if len(entries) > 0 {
		if err := f.createErr[entries[0].Date.String()]; err != nil {
			return err
		}
	}
	f.batches = append(f.batches, entries)
	for _, e := range entries {
		f.nextID++
		f.remote = append(f.remote, timesheet.RemoteEntry{
			ID:    fmt.Sprint(f.nextID),
			Date:  e.Date,
			Hours: e.Hours,
			Note:  e.Note,
		})
	}
	return nil
}

func (f *fakeTimesheets) DeleteEntries(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, ids...)
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.remote[:0]
	for _, e := range f.remote {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}
	f.remote = kept
	return nil
}

func (f *fakeTimesheets) submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakeLedger struct {
	mu   sync.Mutex
	rows map[string]*store.Completion
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[string]*store.Completion)}
}

func (l *fakeLedger) IsComplete(ctx context.Context, day timesheet.Date) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.rows[day.String()]
	return ok, nil
}

func (l *fakeLedger) Completion(ctx context.Context, day timesheet.Date) (*store.Completion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.rows[day.String()]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (l *fakeLedger) MarkComplete(ctx context.Context, day timesheet.Date, completedAt *time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if completedAt == nil {
		if _, ok := l.rows[day.String()]; !ok {
			l.rows[day.String()] = &store.Completion{Date: day.String()}
		}
		return nil
	}
	l.rows[day.String()] = &store.Completion{
		Date:              day.String(),
		CompletedAtMillis: sql.NullInt64{Int64: completedAt.UnixMilli(), Valid: true},
	}
	return nil
}

func (l *fakeLedger) Clear(ctx context.Context, day timesheet.Date) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rows, day.String())
	return nil
}

func (l *fakeLedger) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

type fakeProfiles struct {
	profile store.Profile
}

func (p fakeProfiles) Profile(ctx context.Context) (store.Profile, error) {
	return p.profile, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	titles   []string
	messages []string
}

func (n *fakeNotifier) Notify(title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	n.messages = append(n.messages, message)
	return nil
}

func defaultProfile() fakeProfiles {
	return fakeProfiles{profile: store.Profile{
		Email:         "me@example.com",
		DirectReports: []string{"report@example.com"},
		WorkingHours:  8,
	}}
}

func mustDate(s string) timesheet.Date {
	d, err := timesheet.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func at(day string, hour, minute int) time.Time {
	d := mustDate(day)
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, time.UTC)
}

func meeting(id string, start, end time.Time, attendees ...calendar.Attendee) calendar.Event {
	return calendar.Event{
		ID:        id,
		Type:      calendar.EventTypeDefault,
		Status:    calendar.StatusConfirmed,
		Start:     start,
		End:       end,
		Summary:   id,
		Attendees: attendees,
	}
}

func self() calendar.Attendee {
	return calendar.Attendee{Email: "me@example.com", Self: true, ResponseStatus: calendar.ResponseAccepted}
}

func guest(email string) calendar.Attendee {
	return calendar.Attendee{Email: email, ResponseStatus: calendar.ResponseAccepted}
}
