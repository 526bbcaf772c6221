package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	KeyEmail         = "account.email"
	KeyDirectReports = "settings.direct_reports"
	KeyWorkingHours  = "settings.working_hours"

	DefaultWorkingHours = 8.0
)

// Profile is the locally cached identity and the settings the classifier
// needs.
type Profile struct {
	Email         string
	DirectReports []string
	WorkingHours  float64
}

func (db *DB) Email(ctx context.Context) (string, error) {
	return db.GetSetting(ctx, KeyEmail)
}

func (db *DB) SetEmail(ctx context.Context, email string) error {
	return db.SetSetting(ctx, KeyEmail, strings.TrimSpace(email))
}

func (db *DB) DirectReports(ctx context.Context) ([]string, error) {
	raw, err := db.GetSetting(ctx, KeyDirectReports)
	if err != nil {
		return nil, err
	}
	return SplitList(raw), nil
}

func (db *DB) SetDirectReports(ctx context.Context, emails []string) error {
	return db.SetSetting(ctx, KeyDirectReports, strings.Join(emails, ","))
}

// WorkingHours returns the daily target, DefaultWorkingHours when unset.
func (db *DB) WorkingHours(ctx context.Context) (float64, error) {
	raw, err := db.GetSetting(ctx, KeyWorkingHours)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return DefaultWorkingHours, nil
	}
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing working hours %q: %w", raw, err)
	}
	return hours, nil
}

func (db *DB) SetWorkingHours(ctx context.Context, hours float64) error {
	if hours <= 0 || hours > 24 {
		return fmt.Errorf("working hours must be in (0, 24], got %v", hours)
	}
	return db.SetSetting(ctx, KeyWorkingHours, strconv.FormatFloat(hours, 'f', -1, 64))
}

// Profile loads the identity, direct reports and working hours.
func (db *DB) Profile(ctx context.Context) (Profile, error) {
	email, err := db.Email(ctx)
	if err != nil {
		return Profile{}, err
	}
	reports, err := db.DirectReports(ctx)
	if err != nil {
		return Profile{}, err
	}
	hours, err := db.WorkingHours(ctx)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Email: email, DirectReports: reports, WorkingHours: hours}, nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
