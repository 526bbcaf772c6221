package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/christopherklint97/autosheet/internal/bamboohr"
	"github.com/christopherklint97/autosheet/internal/timesheet"
)

func TestErrorLineHints(t *testing.T) {
	tests := []struct {
		err  error
		hint string
	}{
		{&timesheet.AccountNotLinkedError{Service: "BambooHR"}, "autosheet bamboohr link"},
		{fmt.Errorf("generate: %w", &timesheet.AccountNotLinkedError{Service: "Microsoft Graph"}), "autosheet graph login"},
		{&timesheet.AccountNotLinkedError{Service: "Google"}, "autosheet google login"},
		{&timesheet.AccountNotLinkedError{Service: "ICS"}, "autosheet settings set email"},
	}
	for _, tt := range tests {
		line := errorLine(tt.err)
		if !strings.Contains(line, tt.hint) {
			t.Errorf("errorLine(%v) = %q, want hint %q", tt.err, line, tt.hint)
		}
	}

	if line := errorLine(fmt.Errorf("boom")); strings.Contains(line, "Run `") {
		t.Errorf("unexpected hint in %q", line)
	}
}

func TestSignInPrompt(t *testing.T) {
	var out strings.Builder
	var opened []string
	open := func(url string) error {
		opened = append(opened, url)
		return errors.New("no display")
	}

	signInPrompt(&out, open, slog.New(slog.NewTextHandler(io.Discard, nil)))("https://accounts.example/auth")
	if !strings.Contains(out.String(), "https://accounts.example/auth") {
		t.Errorf("output = %q, want the URL", out.String())
	}
	if len(opened) != 1 || opened[0] != "https://accounts.example/auth" {
		t.Errorf("opened = %v", opened)
	}

	out.Reset()
	signInPrompt(&out, nil, nil)("https://accounts.example/auth")
	if !strings.Contains(out.String(), "https://accounts.example/auth") {
		t.Errorf("output without browser = %q", out.String())
	}
}

func TestEmployeeName(t *testing.T) {
	tests := []struct {
		emp  bamboohr.Employee
		want string
	}{
		{bamboohr.Employee{ID: "7", DisplayName: "Ada L.", FirstName: "Ada", LastName: "Lovelace"}, "Ada L."},
		{bamboohr.Employee{ID: "7", FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{bamboohr.Employee{ID: "7"}, "employee 7"},
	}
	for _, tt := range tests {
		if got := employeeName(&tt.emp); got != tt.want {
			t.Errorf("employeeName(%+v) = %q, want %q", tt.emp, got, tt.want)
		}
	}
}
