package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/christopherklint97/autosheet/internal/config"
	"github.com/christopherklint97/autosheet/internal/store"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change per-user settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <direct-reports|working-hours|email> <value>",
	Short: "Change a setting",
	Long: `Change a setting.

  direct-reports   comma separated emails of your direct reports ("" to clear)
  working-hours    hours in a working day, e.g. 8 or 7.5
  email            your calendar address; only for the ics provider, the
                   google and graph providers take it from the sign-in`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := a.db.Profile(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Email:          %s\n", orNone(p.Email))
		fmt.Printf("Working hours:  %s\n", strconv.FormatFloat(p.WorkingHours, 'f', -1, 64))
		if len(p.DirectReports) == 0 {
			fmt.Println("Direct reports: none")
		} else {
			fmt.Printf("Direct reports: %s\n", strings.Join(p.DirectReports, ", "))
		}
		return nil
	})
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	return withApp(cmd, func(ctx context.Context, a *app) error {
		switch key {
		case "direct-reports":
			reports := store.SplitList(value)
			if err := a.db.SetDirectReports(ctx, reports); err != nil {
				return err
			}
			fmt.Printf("Saved %d direct report(s).\n", len(reports))
		case "working-hours":
			hours, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil || hours <= 0 || hours > 24 {
				return fmt.Errorf("working-hours must be a number between 0 and 24, got %q", value)
			}
			if err := a.db.SetWorkingHours(ctx, hours); err != nil {
				return err
			}
			fmt.Printf("Working hours set to %s.\n", strconv.FormatFloat(hours, 'f', -1, 64))
		case "email":
			if err := setIdentityEmail(ctx, a.cfg.Calendar.Provider, a.db, value); err != nil {
				return err
			}
			fmt.Printf("Email set to %s.\n", strings.TrimSpace(value))
		default:
			return fmt.Errorf("unknown setting %q (want direct-reports, working-hours or email)", key)
		}
		return nil
	})
}

type identityStore interface {
	SetEmail(ctx context.Context, email string) error
}

var emailValidator = validator.New()

// setIdentityEmail stores the identity for feeds that have no sign-in. The
// other providers own the identity and overwrite it on login.
func setIdentityEmail(ctx context.Context, provider string, identity identityStore, email string) error {
	if provider != config.ProviderICS {
		return fmt.Errorf("email comes from the %s sign-in; run `autosheet %s login` instead", provider, provider)
	}
	email = strings.TrimSpace(email)
	if err := emailValidator.Var(email, "required,email"); err != nil {
		return fmt.Errorf("invalid email %q", email)
	}
	return identity.SetEmail(ctx, email)
}
