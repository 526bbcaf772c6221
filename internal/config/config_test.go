package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func useTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AUTOSHEET_CONFIG_DIR", dir)
	for _, key := range []string{
		"AUTOSHEET_CALENDAR_PROVIDER", "AUTOSHEET_CALENDAR_SOURCE",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET",
		"MSGRAPH_CLIENT_ID", "MSGRAPH_TENANT_ID",
		"BAMBOOHR_COMPANY_DOMAIN", "BAMBOOHR_BASE_URL", "AUTOSHEET_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	useTempDir(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Calendar.Provider != ProviderGoogle {
		t.Errorf("provider = %q", cfg.Calendar.Provider)
	}
	if cfg.Schedule.Cron != "*/30 * * * *" || !cfg.Schedule.CatchUpOnStart {
		t.Errorf("schedule = %+v", cfg.Schedule)
	}
	if cfg.Credentials.Backend != BackendKeyring {
		t.Errorf("backend = %q", cfg.Credentials.Backend)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := useTempDir(t)
	data := `
[calendar]
provider = "ics"
source = "/tmp/cal.ics"

[bamboohr]
company_domain = "acme"
project_id = 12

[bamboohr.tasks]
meeting = 1
one_on_one = 2
development = 3
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BAMBOOHR_COMPANY_DOMAIN", "override")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Calendar.Provider != ProviderICS || cfg.Calendar.Source != "/tmp/cal.ics" {
		t.Errorf("calendar = %+v", cfg.Calendar)
	}
	if cfg.BambooHR.CompanyDomain != "override" {
		t.Errorf("company domain = %q, want env override", cfg.BambooHR.CompanyDomain)
	}
	if cfg.BambooHR.Tasks.OneOnOne != 2 || cfg.BambooHR.ProjectID != 12 {
		t.Errorf("bamboohr = %+v", cfg.BambooHR)
	}
	// Untouched sections keep defaults.
	if cfg.Schedule.Cron != "*/30 * * * *" {
		t.Errorf("cron = %q", cfg.Schedule.Cron)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.Calendar.Provider = "outlook" }, "calendar.provider"},
		{"ics without source", func(c *Config) { c.Calendar.Provider = ProviderICS }, "calendar.source"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every minute" }, "schedule.cron"},
		{"bad backend", func(c *Config) { c.Credentials.Backend = "vault" }, "credentials.backend"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate = %v, want mention of %s", err, tt.want)
			}
		})
	}

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestSetValue(t *testing.T) {
	useTempDir(t)
	if err := SetValue("bamboohr.company_domain", "acme"); err != nil {
		t.Fatal(err)
	}
	if err := SetValue("calendar.provider", ProviderGraph); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BambooHR.CompanyDomain != "acme" || cfg.Calendar.Provider != ProviderGraph {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestWriteDefault(t *testing.T) {
	useTempDir(t)
	path, err := WriteDefault()
	if err != nil {
		t.Fatal(err)
	}
	if err := SetValue("log.level", "debug"); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteDefault(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "debug") {
		t.Error("WriteDefault overwrote an existing file")
	}
}

func TestSchema(t *testing.T) {
	out, err := Schema()
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	props, _ := doc["properties"].(map[string]any)
	for _, key := range []string{"calendar", "bamboohr", "schedule", "credentials"} {
		if _, ok := props[key]; !ok {
			t.Errorf("schema missing %q", key)
		}
	}
}
