package processing

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/tj/go-naturaldate"

	"github.com/christopherklint97/autosheet/internal/timesheet"
)

// ParseDay accepts an ISO date or a past-tense natural expression such as
// "yesterday", "last monday" or "3 days ago", relative to today.
func ParseDay(s string, today timesheet.Date) (timesheet.Date, error) {
	s = strings.TrimSpace(s)
	if !strings.ContainsFunc(s, unicode.IsLetter) {
		return timesheet.ParseDate(s)
	}

	ref := time.Date(today.Year, today.Month, today.Day, 12, 0, 0, 0, time.UTC)
	t, err := naturaldate.Parse(s, ref, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return timesheet.Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return timesheet.DateOf(t), nil
}
