package classify

import (
	"testing"
	"time"

	"github.com/christopherklint97/autosheet/internal/calendar"
	"github.com/christopherklint97/autosheet/internal/timesheet"
)

const self = "me@example.com"

var day = timesheet.Date{Year: 2024, Month: time.January, Day: 2}

func event(hours float64, attendees ...calendar.Attendee) calendar.Event {
	start := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	return calendar.Event{
		ID:        "evt",
		Type:      calendar.EventTypeDefault,
		Status:    calendar.StatusConfirmed,
		Start:     start,
		End:       start.Add(time.Duration(hours * float64(time.Hour))),
		Summary:   "Sync",
		Attendees: attendees,
	}
}

func me(status calendar.ResponseStatus) calendar.Attendee {
	return calendar.Attendee{Email: self, Self: true, ResponseStatus: status}
}

func other(email string) calendar.Attendee {
	return calendar.Attendee{Email: email, ResponseStatus: calendar.ResponseAccepted}
}

func TestClassify_SkipRules(t *testing.T) {
	c := New(self, []string{"report@example.com"})

	ooo := event(1)
	ooo.Type = calendar.EventTypeOutOfOffice

	tentative := event(1)
	tentative.Status = calendar.StatusTentative

	cancelled := event(1)
	cancelled.Status = calendar.StatusCancelled

	noStatus := event(1)
	noStatus.Status = ""

	tests := []struct {
		name  string
		event calendar.Event
		want  Decision
	}{
		{"out of office", ooo, SkipType},
		{"tentative", tentative, SkipStatus},
		{"cancelled", cancelled, SkipStatus},
		{"missing status", noStatus, SkipStatus},
		{"self declined", event(1, me(calendar.ResponseDeclined), other("a@example.com")), SkipResponse},
		{"self tentative", event(1, me(calendar.ResponseTentative), other("a@example.com")), SkipResponse},
		{"self needs action", event(1, me(calendar.ResponseNeedsAction), other("a@example.com")), SkipResponse},
		{"self accepted", event(1, me(calendar.ResponseAccepted), other("a@example.com")), Accepted},
		{"self without response", event(1, me(""), other("a@example.com")), Accepted},
		{"no attendees", event(1), Accepted},
		{"no self attendee", event(1, other("a@example.com"), other("b@example.com")), Accepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := c.Classify(day, tt.event)
			if got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify_Category(t *testing.T) {
	c := New(self, []string{" Report@Example.com ", "", "lead@example.com"})

	tests := []struct {
		name      string
		attendees []calendar.Attendee
		want      timesheet.Category
	}{
		{"self and report", []calendar.Attendee{me(calendar.ResponseAccepted), other("report@example.com")}, timesheet.CategoryOneOnOne},
		{"two reports", []calendar.Attendee{other("report@example.com"), other("lead@example.com")}, timesheet.CategoryOneOnOne},
		{"self and stranger", []calendar.Attendee{me(calendar.ResponseAccepted), other("boss@example.com")}, timesheet.CategoryMeeting},
		{"three attendees", []calendar.Attendee{me(calendar.ResponseAccepted), other("report@example.com"), other("lead@example.com")}, timesheet.CategoryMeeting},
		{"only self", []calendar.Attendee{me(calendar.ResponseAccepted)}, timesheet.CategoryMeeting},
		{"no attendees", nil, timesheet.CategoryMeeting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, decision := c.Classify(day, event(1, tt.attendees...))
			if decision != Accepted {
				t.Fatalf("decision = %q", decision)
			}
			if entry.Category != tt.want {
				t.Errorf("category = %q, want %q", entry.Category, tt.want)
			}
		})
	}
}

func TestClassify_HoursAndNote(t *testing.T) {
	c := New(self, nil)

	e := event(1.5)
	e.Summary = `Design <review> & "planning"`
	entry, decision := c.Classify(day, e)
	if decision != Accepted {
		t.Fatalf("decision = %q", decision)
	}
	if entry.Hours != 1.5 {
		t.Errorf("hours = %v, want 1.5", entry.Hours)
	}
	if entry.Date != day {
		t.Errorf("date = %v", entry.Date)
	}
	if want := "Design &lt;review&gt; &amp; &#34;planning&#34;"; entry.Note != want {
		t.Errorf("note = %q, want %q", entry.Note, want)
	}

	// Reversed timestamps still yield a positive duration.
	reversed := event(0)
	reversed.Start, reversed.End = reversed.Start.Add(45*time.Minute), reversed.Start
	reversed.Summary = ""
	entry, _ = c.Classify(day, reversed)
	if entry.Hours != 0.75 {
		t.Errorf("hours = %v, want 0.75", entry.Hours)
	}
	if entry.Note != "" {
		t.Errorf("note = %q, want empty", entry.Note)
	}
}
