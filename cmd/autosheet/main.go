package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/christopherklint97/autosheet/internal/bamboohr"
	"github.com/christopherklint97/autosheet/internal/calendar"
	"github.com/christopherklint97/autosheet/internal/config"
	"github.com/christopherklint97/autosheet/internal/google"
	"github.com/christopherklint97/autosheet/internal/keyring"
	"github.com/christopherklint97/autosheet/internal/msgraph"
	"github.com/christopherklint97/autosheet/internal/notify"
	"github.com/christopherklint97/autosheet/internal/processing"
	"github.com/christopherklint97/autosheet/internal/store"
)

const appID = "autosheet"

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "autosheet",
	Short:         "Fill in BambooHR timesheets from your calendar",
	Long:          "autosheet reads your calendar, classifies meetings and one-on-ones and submits the day's hours to BambooHR, once per day.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err))
		os.Exit(1)
	}
}

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *store.DB
	ledger   *store.Ledger
	secrets  *keyring.Namespaced
	bamboo   *bamboohr.Client
	account  *bamboohr.Account
	google   *google.Auth
	graph    *msgraph.Auth
	calendar calendar.Provider
	notifier *notify.Desktop
	queue    *processing.Queue
	service  *processing.Service
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, _ := cfg.Log.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg, logOut)

	dbPath, err := store.DefaultPath()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	backend, err := secretBackend(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	secrets := keyring.NewNamespaced(appID, backend)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		ledger:   store.NewLedger(db),
		secrets:  secrets,
		notifier: notify.NewDesktop(cfg.Notifications.Enabled, logger.With("component", "notify")),
	}

	a.account = bamboohr.NewAccount(secrets, db)
	a.bamboo = bamboohr.NewClient(cfg.BambooHR.CompanyDomain, cfg.BambooHR.BaseURL, a.account, bamboohr.Tasks{
		ProjectID:   cfg.BambooHR.ProjectID,
		Meeting:     cfg.BambooHR.Tasks.Meeting,
		OneOnOne:    cfg.BambooHR.Tasks.OneOnOne,
		Development: cfg.BambooHR.Tasks.Development,
	}, logger.With("component", "bamboohr"))

	a.google = google.NewAuth(cfg.Calendar.Google.ClientID, cfg.Calendar.Google.ClientSecret,
		google.NewTokenStore(secrets), db, logger.With("component", "google"))
	a.graph = msgraph.NewAuth(cfg.Calendar.Graph.ClientID, cfg.Calendar.Graph.TenantID,
		msgraph.NewTokenStore(secrets), db, logger.With("component", "msgraph"))

	a.calendar, err = a.calendarProvider(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	lockPath, err := lockFile()
	if err != nil {
		db.Close()
		return nil, err
	}

	a.queue = processing.NewQueue(logger.With("component", "queue"))
	a.service = processing.NewService(processing.ServiceOptions{
		Queue:         a.queue,
		Calendar:      a.calendar,
		Timesheets:    a.bamboo,
		Ledger:        a.ledger,
		Profiles:      db,
		Notifier:      a.notifier,
		NotifySuccess: cfg.Notifications.OnSuccess,
		Lock:          processing.NewFileLock(lockPath),
		Logger:        logger,
	})
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// lockFile is shared by every autosheet process so their queues never run
// at the same time.
func lockFile() (string, error) {
	if err := config.EnsureConfigDir(); err != nil {
		return "", err
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "autosheet.lock"), nil
}

func secretBackend(cfg *config.Config) (keyring.Store, error) {
	switch cfg.Credentials.Backend {
	case config.BackendFile:
		path, err := cfg.SecretsFile()
		if err != nil {
			return nil, err
		}
		return keyring.NewFileStore(path), nil
	default:
		return keyring.NewOSStore(), nil
	}
}

func (a *app) calendarProvider(ctx context.Context) (calendar.Provider, error) {
	logger := a.logger.With("component", "calendar")
	switch a.cfg.Calendar.Provider {
	case config.ProviderGraph:
		return msgraph.NewClient(a.graph, a.cfg.Calendar.TimeZone, logger), nil
	case config.ProviderICS:
		email, err := a.db.Email(ctx)
		if err != nil {
			return nil, err
		}
		return calendar.NewICSProvider(a.cfg.Calendar.Source, a.cfg.Calendar.TimeZone, email, logger), nil
	default:
		return google.NewCalendarProvider(a.google, logger), nil
	}
}

// withApp builds the app for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
