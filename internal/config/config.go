package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

const (
	ProviderGoogle = "google"
	ProviderGraph  = "graph"
	ProviderICS    = "ics"

	BackendKeyring = "keyring"
	BackendFile    = "file"
)

type Config struct {
	Calendar      CalendarConfig    `toml:"calendar" jsonschema:"description=Where calendar events are read from"`
	BambooHR      BambooHRConfig    `toml:"bamboohr" jsonschema:"description=BambooHR time tracking"`
	Schedule      ScheduleConfig    `toml:"schedule"`
	Notifications NotifyConfig      `toml:"notifications"`
	Credentials   CredentialsConfig `toml:"credentials"`
	Log           LogConfig         `toml:"log"`
}

type CalendarConfig struct {
	Provider string       `toml:"provider" jsonschema:"enum=google,enum=graph,enum=ics,default=google"`
	Source   string       `toml:"source" jsonschema:"description=ICS URL or file path (ics provider only)"`
	TimeZone string       `toml:"timezone" jsonschema:"description=IANA zone days are evaluated in when the provider reports none"`
	Google   GoogleConfig `toml:"google"`
	Graph    GraphConfig  `toml:"graph"`
}

type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

type GraphConfig struct {
	ClientID string `toml:"client_id"`
	TenantID string `toml:"tenant_id"`
}

type BambooHRConfig struct {
	CompanyDomain string      `toml:"company_domain" jsonschema:"description=Subdomain of <company>.bamboohr.com"`
	BaseURL       string      `toml:"base_url"`
	ProjectID     int         `toml:"project_id" jsonschema:"minimum=0"`
	Tasks         TasksConfig `toml:"tasks"`
}

// TasksConfig maps entry categories to BambooHR task ids. Zero leaves the
// task unset.
type TasksConfig struct {
	Meeting     int `toml:"meeting" jsonschema:"minimum=0"`
	OneOnOne    int `toml:"one_on_one" jsonschema:"minimum=0"`
	Development int `toml:"development" jsonschema:"minimum=0"`
}

type ScheduleConfig struct {
	Cron           string `toml:"cron" jsonschema:"description=Standard five-field cron expression,default=*/30 * * * *"`
	CatchUpOnStart bool   `toml:"catch_up_on_start" jsonschema:"default=true"`
}

type NotifyConfig struct {
	Enabled   bool `toml:"enabled" jsonschema:"default=true"`
	OnSuccess bool `toml:"on_success"`
}

type CredentialsConfig struct {
	Backend string `toml:"backend" jsonschema:"enum=keyring,enum=file,default=keyring"`
	File    string `toml:"file" jsonschema:"description=Encrypted secrets file for the file backend"`
}

type LogConfig struct {
	Level string `toml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	File  string `toml:"file" jsonschema:"description=Log file used by the scheduler"`
}

func DefaultConfig() Config {
	return Config{
		Calendar: CalendarConfig{
			Provider: ProviderGoogle,
		},
		Schedule: ScheduleConfig{
			Cron:           "*/30 * * * *",
			CatchUpOnStart: true,
		},
		Notifications: NotifyConfig{
			Enabled: true,
		},
		Credentials: CredentialsConfig{
			Backend: BackendKeyring,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func ConfigDir() (string, error) {
	if dir := os.Getenv("AUTOSHEET_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "autosheet"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUTOSHEET_CALENDAR_PROVIDER"); v != "" {
		cfg.Calendar.Provider = v
	}
	if v := os.Getenv("AUTOSHEET_CALENDAR_SOURCE"); v != "" {
		cfg.Calendar.Source = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Calendar.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Calendar.Google.ClientSecret = v
	}
	if v := os.Getenv("MSGRAPH_CLIENT_ID"); v != "" {
		cfg.Calendar.Graph.ClientID = v
	}
	if v := os.Getenv("MSGRAPH_TENANT_ID"); v != "" {
		cfg.Calendar.Graph.TenantID = v
	}
	if v := os.Getenv("BAMBOOHR_COMPANY_DOMAIN"); v != "" {
		cfg.BambooHR.CompanyDomain = v
	}
	if v := os.Getenv("BAMBOOHR_BASE_URL"); v != "" {
		cfg.BambooHR.BaseURL = v
	}
	if v := os.Getenv("AUTOSHEET_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Calendar.Provider {
	case ProviderGoogle, ProviderGraph:
	case ProviderICS:
		if c.Calendar.Source == "" {
			errs = append(errs, errors.New("calendar.source is required for the ics provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("calendar.provider %q must be one of google, graph, ics", c.Calendar.Provider))
	}
	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			errs = append(errs, fmt.Errorf("schedule.cron: %w", err))
		}
	}
	switch c.Credentials.Backend {
	case BackendKeyring, BackendFile:
	default:
		errs = append(errs, fmt.Errorf("credentials.backend %q must be keyring or file", c.Credentials.Backend))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// SecretsFile is where the file credential backend keeps its data.
func (c *Config) SecretsFile() (string, error) {
	if c.Credentials.File != "" {
		return c.Credentials.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "secrets.enc"), nil
}

// LogFile is where the scheduler writes its log.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "autosheet.log"), nil
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// WriteDefault creates the config file with default values unless it
// already exists. It returns the file path.
func WriteDefault() (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := EnsureConfigDir(); err != nil {
		return "", err
	}
	out, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}
	return path, os.WriteFile(path, out, 0644)
}

// SetValue persists one key using a read-modify-write approach to preserve
// other settings. key is dotted, e.g. "calendar.provider".
func SetValue(key string, value any) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	cfg := make(map[string]any)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	parts := strings.Split(key, ".")
	table := cfg
	for _, part := range parts[:len(parts)-1] {
		next, ok := table[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			table[part] = next
		}
		table = next
	}
	table[parts[len(parts)-1]] = value

	if err := EnsureConfigDir(); err != nil {
		return err
	}

	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// Schema returns the JSON Schema of the config file.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		FieldNameTag:   "toml",
		DoNotReference: true,
	}
	s := r.Reflect(&Config{})
	s.Title = "autosheet configuration"
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	return out, nil
}
