package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/christopherklint97/autosheet/internal/config"
	"github.com/christopherklint97/autosheet/internal/scheduler"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the scheduler in the foreground",
	Long:  "Generate timesheets on start-up and then on every tick of the configured cron schedule until stopped.",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running scheduler",
	RunE:  runStop,
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	if pid, err := scheduler.ReadPID(); err == nil && processAlive(pid) {
		return fmt.Errorf("scheduler already running (PID %d)", pid)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logOut, closeLog, err := schedulerLogOutput()
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := newApp(ctx, logOut)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Scheduler started (schedule: %s). Press Ctrl+C to stop.\n", a.cfg.Schedule.Cron)
	sched := scheduler.New(a.cfg.Schedule.Cron, a.cfg.Schedule.CatchUpOnStart, a.service, a.logger.With("component", "scheduler"))
	if err := sched.Run(ctx); err != nil {
		return err
	}
	fmt.Println("\nScheduler stopped.")
	return nil
}

// schedulerLogOutput tees logs to stderr and the log file.
func schedulerLogOutput() (io.Writer, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return nil, nil, err
	}
	path, err := cfg.LogFile()
	if err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return io.MultiWriter(os.Stderr, f), func() { f.Close() }, nil
}

func runStop(cmd *cobra.Command, args []string) error {
	pid, err := scheduler.ReadPID()
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending stop signal: %w", err)
	}

	fmt.Printf("Sent stop signal to autosheet (PID %d)\n", pid)
	return nil
}

func signalZero(p *os.Process) error {
	return p.Signal(syscall.Signal(0))
}
