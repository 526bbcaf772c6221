// Package classify maps calendar events to timesheet entries.
package classify

import (
	"html"
	"math"
	"strings"

	"github.com/christopherklint97/autosheet/internal/calendar"
	"github.com/christopherklint97/autosheet/internal/timesheet"
)

// Decision tells why an event was or was not turned into an entry.
type Decision string

const (
	Accepted     Decision = "accepted"
	SkipType     Decision = "not a default event"
	SkipStatus   Decision = "not confirmed"
	SkipResponse Decision = "not accepted by self"
)

// Classifier turns events into entries for one person. It has no side
// effects and the zero value classifies everything as a meeting.
type Classifier struct {
	selfEmail     string
	directReports map[string]bool
}

func New(selfEmail string, directReports []string) *Classifier {
	reports := make(map[string]bool, len(directReports))
	for _, r := range directReports {
		r = normalizeEmail(r)
		if r != "" {
			reports[r] = true
		}
	}
	return &Classifier{
		selfEmail:     normalizeEmail(selfEmail),
		directReports: reports,
	}
}

// Classify returns the entry for event on day. The entry is only meaningful
// when the decision is Accepted.
func (c *Classifier) Classify(day timesheet.Date, event calendar.Event) (timesheet.Entry, Decision) {
	if event.Type != calendar.EventTypeDefault {
		return timesheet.Entry{}, SkipType
	}
	if event.Status != calendar.StatusConfirmed {
		return timesheet.Entry{}, SkipStatus
	}
	if self, ok := event.SelfAttendee(); ok && self.ResponseStatus != "" && self.ResponseStatus != calendar.ResponseAccepted {
		return timesheet.Entry{}, SkipResponse
	}

	entry := timesheet.Entry{
		Date:     day,
		Hours:    math.Abs(event.End.Sub(event.Start).Hours()),
		Category: timesheet.CategoryMeeting,
	}
	if c.isOneOnOne(event.Attendees) {
		entry.Category = timesheet.CategoryOneOnOne
	}
	if event.Summary != "" {
		entry.Note = html.EscapeString(event.Summary)
	}
	return entry, Accepted
}

func (c *Classifier) isOneOnOne(attendees []calendar.Attendee) bool {
	if len(attendees) != 2 {
		return false
	}
	for _, a := range attendees {
		email := normalizeEmail(a.Email)
		if email == "" {
			return false
		}
		if email != c.selfEmail && !c.directReports[email] {
			return false
		}
	}
	return true
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
