package main

import (
	"errors"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/christopherklint97/autosheet/internal/timesheet"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func interactive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func errorLine(err error) string {
	line := errStyle.Render("Error: ") + err.Error()
	var notLinked *timesheet.AccountNotLinkedError
	if errors.As(err, &notLinked) {
		line += "\n" + hintStyle.Render(linkHint(notLinked.Service))
	}
	return line
}

func linkHint(service string) string {
	switch service {
	case "BambooHR":
		return "Run `autosheet bamboohr link` first."
	case "ICS":
		return "Run `autosheet settings set email <you@example.com>` first."
	case "Microsoft Graph":
		return "Run `autosheet graph login` first."
	default:
		return "Run `autosheet google login` first."
	}
}
