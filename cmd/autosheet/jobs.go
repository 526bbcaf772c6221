package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/christopherklint97/autosheet/internal/config"
	"github.com/christopherklint97/autosheet/internal/processing"
	"github.com/christopherklint97/autosheet/internal/scheduler"
	"github.com/christopherklint97/autosheet/internal/store"
	"github.com/christopherklint97/autosheet/internal/timesheet"
	"github.com/christopherklint97/autosheet/internal/tui"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Submit timesheets for past days that are not done yet",
	Long: `Submit timesheets for every weekday in the range that has no entries yet.
Without flags the seven days ending yesterday are processed. Dates are
YYYY-MM-DD or expressions such as "yesterday" or "last monday".`,
	RunE: runGenerate,
}

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete generated timesheet entries and forget the days",
	RunE:  runRemove,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which days are done",
	RunE:  runStatus,
}

func init() {
	generateCmd.Flags().String("from", "", "First day to generate")
	generateCmd.Flags().String("to", "", "Last day to generate (defaults to --from)")

	removeCmd.Flags().String("from", "", "First day to remove")
	removeCmd.Flags().String("to", "", "Last day to remove (defaults to --from)")
	removeCmd.Flags().Bool("all", false, "Also remove days that autosheet did not generate")
	removeCmd.MarkFlagRequired("from")

	statusCmd.Flags().String("from", "", "First day to show")
	statusCmd.Flags().String("to", "", "Last day to show")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(statusCmd)
}

func rangeFlags(cmd *cobra.Command) processing.Range {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	return processing.Range{Start: from, End: to}
}

// runJob runs fn behind a spinner when attached to a terminal.
func runJob(a *app, label string, fn func() error) error {
	if !interactive() || verbose {
		return fn()
	}
	progress := tui.NewProgress(label)
	a.queue.OnChange(progress.QueueChanged)
	defer a.queue.OnChange(nil)
	return progress.Run(fn)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	r := rangeFlags(cmd)
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := requireLinked(ctx, a.cfg.Calendar.Provider, a.db, a.bamboo); err != nil {
			return err
		}
		return runJob(a, "Generating timesheets", func() error {
			return a.service.Generate(ctx, r)
		})
	})
}

func runRemove(cmd *cobra.Command, args []string) error {
	r := rangeFlags(cmd)
	all, _ := cmd.Flags().GetBool("all")
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := requireLinked(ctx, a.cfg.Calendar.Provider, a.db, a.bamboo); err != nil {
			return err
		}
		return runJob(a, "Removing timesheets", func() error {
			return a.service.Remove(ctx, r, all)
		})
	})
}

type identitySource interface {
	Email(ctx context.Context) (string, error)
}

type linkChecker interface {
	IsLinked(ctx context.Context) (bool, error)
}

// requireLinked reports missing accounts up front. The service itself
// treats them as a silent no-op.
func requireLinked(ctx context.Context, provider string, identity identitySource, timesheets linkChecker) error {
	email, err := identity.Email(ctx)
	if err != nil {
		return err
	}
	if email == "" {
		service := "calendar"
		if provider == config.ProviderICS {
			service = "ICS"
		}
		return &timesheet.AccountNotLinkedError{Service: service}
	}
	linked, err := timesheets.IsLinked(ctx)
	if err != nil {
		return err
	}
	if !linked {
		return &timesheet.AccountNotLinkedError{Service: "BambooHR"}
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	r := rangeFlags(cmd)
	return withApp(cmd, func(ctx context.Context, a *app) error {
		today := timesheet.DateOf(time.Now())
		start, end, err := r.Resolve(today)
		if err != nil {
			return err
		}
		if end.Before(start) {
			return &timesheet.InvalidRangeError{Field: "end", Value: end.String(), Reason: "is before start " + start.String()}
		}

		rows, err := statusRows(ctx, a.ledger, start, end)
		if err != nil {
			return err
		}
		fmt.Println(tui.RenderStatus(fmt.Sprintf("Timesheets %s to %s", start, end), rows))

		email, err := a.db.Email(ctx)
		if err != nil {
			return err
		}
		linked, err := a.bamboo.IsLinked(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Calendar (%s): %s\n", a.cfg.Calendar.Provider, orNone(email))
		fmt.Printf("BambooHR:  %s\n", yesNo(linked, "linked", "not linked"))
		if pid, err := scheduler.ReadPID(); err == nil && processAlive(pid) {
			fmt.Printf("Scheduler: running (PID %d)\n", pid)
		} else {
			fmt.Println("Scheduler: stopped")
		}
		return nil
	})
}

func statusRows(ctx context.Context, ledger *store.Ledger, start, end timesheet.Date) ([]tui.StatusRow, error) {
	completions, err := ledger.List(ctx, start, end)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]*store.Completion, len(completions))
	for i := range completions {
		byDate[completions[i].Date] = &completions[i]
	}

	var rows []tui.StatusRow
	for d := start; !d.After(end); d = d.AddDays(1) {
		rows = append(rows, tui.StatusRow{Date: d, Completion: byDate[d.String()]})
	}
	return rows, nil
}

func orNone(s string) string {
	if s == "" {
		return "not signed in"
	}
	return s
}

func yesNo(b bool, yes, no string) string {
	if b {
		return okStyle.Render(yes)
	}
	return no
}

func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return signalZero(process) == nil
}
