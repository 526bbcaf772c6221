package calendar

import (
	"context"
	"strings"
	"time"
)

type EventType string

const (
	EventTypeDefault     EventType = "default"
	EventTypeOutOfOffice EventType = "outOfOffice"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusTentative Status = "tentative"
	StatusCancelled Status = "cancelled"
)

type ResponseStatus string

const (
	ResponseAccepted    ResponseStatus = "accepted"
	ResponseDeclined    ResponseStatus = "declined"
	ResponseTentative   ResponseStatus = "tentative"
	ResponseNeedsAction ResponseStatus = "needsAction"
)

// Attendee is one invitee of an event. ResponseStatus is empty when the
// provider did not report one.
type Attendee struct {
	Email          string
	Self           bool
	ResponseStatus ResponseStatus
}

// Event is a calendar event as seen by the timesheet generator. Start and
// End always carry a resolved location.
type Event struct {
	ID          string
	Type        EventType
	Status      Status
	Start       time.Time
	End         time.Time
	Summary     string
	Description string
	Attendees   []Attendee
}

// SelfAttendee returns the attendee flagged as the calendar owner.
func (e Event) SelfAttendee() (Attendee, bool) {
	for _, a := range e.Attendees {
		if a.Self {
			return a, true
		}
	}
	return Attendee{}, false
}

// Calendar identifies a calendar and the zone its days are evaluated in.
type Calendar struct {
	ID       string
	TimeZone string
	Location *time.Location
}

// Provider lists events of a linked calendar account.
type Provider interface {
	PrimaryCalendar(ctx context.Context) (Calendar, error)
	Events(ctx context.Context, calendarID string, start, end time.Time) ([]Event, error)
}

// LoadLocation resolves an IANA zone name, falling back to time.Local when
// the name is empty or unknown.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// MarkSelf flags attendees whose email matches selfEmail.
func MarkSelf(attendees []Attendee, selfEmail string) {
	if selfEmail == "" {
		return
	}
	for i := range attendees {
		if strings.EqualFold(attendees[i].Email, selfEmail) {
			attendees[i].Self = true
		}
	}
}
