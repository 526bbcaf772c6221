package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/christopherklint97/autosheet/internal/bamboohr"
	"github.com/christopherklint97/autosheet/internal/config"
	"github.com/christopherklint97/autosheet/internal/google"
	"github.com/christopherklint97/autosheet/internal/msgraph"
	"github.com/christopherklint97/autosheet/internal/tui"
)

var googleCmd = &cobra.Command{
	Use:   "google",
	Short: "Manage the Google Calendar account",
}

var googleLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with Google in the browser",
	RunE:  runGoogleLogin,
}

var googleLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the Google account",
	RunE:  runGoogleLogout,
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Manage the Microsoft 365 calendar account",
}

var graphLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with Microsoft using a device code",
	RunE:  runGraphLogin,
}

var bamboohrCmd = &cobra.Command{
	Use:   "bamboohr",
	Short: "Manage the BambooHR account",
}

var bamboohrLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Store and verify a BambooHR API key",
	RunE:  runBambooHRLink,
}

var bamboohrUnlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Remove the stored BambooHR API key",
	RunE:  runBambooHRUnlink,
}

func init() {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	googleLoginCmd.Flags().Bool("no-browser", false, "Print the sign-in URL instead of opening a browser")
	googleCmd.AddCommand(googleLoginCmd, googleLogoutCmd)

	graphCmd.AddCommand(graphLoginCmd)

	bamboohrLinkCmd.Flags().String("api-key", "", "BambooHR API key (prompted when empty)")
	bamboohrLinkCmd.Flags().String("employee-id", "", "BambooHR employee ID (prompted when empty)")
	bamboohrCmd.AddCommand(bamboohrLinkCmd, bamboohrUnlinkCmd)

	rootCmd.AddCommand(googleCmd, graphCmd, bamboohrCmd)
}

func runGoogleLogin(cmd *cobra.Command, args []string) error {
	noBrowser, _ := cmd.Flags().GetBool("no-browser")
	return withApp(cmd, func(ctx context.Context, a *app) error {
		open := browser.OpenURL
		if noBrowser {
			open = nil
		}
		email, err := a.google.Login(ctx, signInPrompt(os.Stdout, open, a.logger))
		if err != nil {
			return err
		}
		if err := config.SetValue("calendar.provider", config.ProviderGoogle); err != nil {
			return fmt.Errorf("saving provider: %w", err)
		}
		fmt.Println(okStyle.Render("Signed in as ") + email)
		return nil
	})
}

// signInPrompt prints the consent URL and opens it with open when set.
func signInPrompt(w io.Writer, open func(url string) error, logger *slog.Logger) func(string) {
	return func(authURL string) {
		fmt.Fprintf(w, "Sign in to Google at:\n\n  %s\n\n", authURL)
		if open == nil {
			return
		}
		if err := open(authURL); err != nil {
			logger.Debug("could not open browser", "error", err)
		}
	}
}

func runGoogleLogout(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.google.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Signed out of Google.")
		return nil
	})
}

func runGraphLogin(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if a.cfg.Calendar.Graph.ClientID == "" {
			return errors.New("graph client_id is not configured; set [calendar.graph] client_id or MSGRAPH_CLIENT_ID")
		}
		ctx, cancel := context.WithTimeout(ctx, google.SignInTimeout)
		defer cancel()

		dc, err := a.graph.StartDeviceCodeFlow(ctx)
		if err != nil {
			return err
		}
		if dc.Message != "" {
			fmt.Println(dc.Message)
		} else {
			fmt.Printf("Open %s and enter the code %s\n", dc.VerificationURI, dc.UserCode)
		}

		tokens, err := a.graph.PollForToken(ctx, dc.DeviceCode, dc.Interval)
		if err != nil {
			return err
		}
		client := msgraph.NewClient(a.graph, a.cfg.Calendar.TimeZone, a.logger.With("component", "msgraph"))
		email, err := a.graph.Complete(ctx, client, tokens)
		if err != nil {
			return err
		}
		if err := config.SetValue("calendar.provider", config.ProviderGraph); err != nil {
			return fmt.Errorf("saving provider: %w", err)
		}
		fmt.Println(okStyle.Render("Signed in as ") + email)
		return nil
	})
}

func runBambooHRLink(cmd *cobra.Command, args []string) error {
	apiKey, _ := cmd.Flags().GetString("api-key")
	employeeID, _ := cmd.Flags().GetString("employee-id")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if a.cfg.BambooHR.CompanyDomain == "" {
			return errors.New("bamboohr company_domain is not configured; run `autosheet config` or set BAMBOOHR_COMPANY_DOMAIN")
		}

		submit := func(apiKey, employeeID string) (string, error) {
			emp, err := a.account.Link(ctx, a.bamboo, bamboohr.Credentials{
				APIKey:     strings.TrimSpace(apiKey),
				EmployeeID: strings.TrimSpace(employeeID),
			})
			if err != nil {
				return "", err
			}
			return employeeName(emp), nil
		}

		if apiKey != "" && employeeID != "" {
			name, err := submit(apiKey, employeeID)
			if err != nil {
				return err
			}
			fmt.Println(okStyle.Render("Linked BambooHR as ") + name)
			return nil
		}

		if !interactive() {
			return errors.New("--api-key and --employee-id are required when not running in a terminal")
		}
		result, err := tui.RunLinkForm(submit)
		if err != nil {
			return err
		}
		if result.Cancelled {
			fmt.Println("Cancelled.")
			return nil
		}
		fmt.Println(okStyle.Render("Linked BambooHR as ") + result.Name)
		return nil
	})
}

func runBambooHRUnlink(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.account.Unlink(ctx); err != nil {
			return err
		}
		fmt.Println("BambooHR unlinked.")
		return nil
	})
}

func employeeName(emp *bamboohr.Employee) string {
	if emp.DisplayName != "" {
		return emp.DisplayName
	}
	name := strings.TrimSpace(emp.FirstName + " " + emp.LastName)
	if name == "" {
		return "employee " + emp.ID.String()
	}
	return name
}
