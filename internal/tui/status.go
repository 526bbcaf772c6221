package tui

import (
	"fmt"
	"strings"

	"github.com/christopherklint97/autosheet/internal/store"
	"github.com/christopherklint97/autosheet/internal/timesheet"
)

// StatusRow is one day of the status table.
type StatusRow struct {
	Date       timesheet.Date
	Completion *store.Completion
}

// RenderStatus renders the ledger state of rows, one line per day.
func RenderStatus(title string, rows []StatusRow) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n")

	generated, pending := 0, 0
	for _, r := range rows {
		var state string
		switch {
		case r.Date.IsWeekend():
			state = dimStyle.Render("weekend")
		case r.Completion == nil:
			state = warningStyle.Render("pending")
			pending++
		case r.Completion.Generated():
			state = successStyle.Render("generated") + dimStyle.Render(" "+r.Completion.CompletedAt().Local().Format("2006-01-02 15:04"))
			generated++
		default:
			state = highlightStyle.Render("already filled")
		}
		sb.WriteString(fmt.Sprintf("%s  %s  %s\n", r.Date, r.Date.Weekday().String()[:3], state))
	}

	sb.WriteString(helpStyle.Render(fmt.Sprintf("%d generated, %d pending", generated, pending)))
	return boxStyle.Render(sb.String())
}
