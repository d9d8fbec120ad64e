package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // America/Santiago on hosts without zoneinfo

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"acta-go/internal/calendar"
	"acta-go/internal/fault"
	"acta-go/internal/normalize"
)

// Config is the acta client configuration.
type Config struct {
	DeviceID  string `toml:"device_id"`
	BaseDir   string `toml:"base_dir"`
	LogDir    string `toml:"log_dir"`
	LogLevel  string `toml:"log_level"` // debug, info, warn, error
	Timezone  string `toml:"timezone"`
	Inspector string `toml:"inspector"` // default login credential
	Comuna    string `toml:"comuna"`

	Backend    BackendConfig       `toml:"backend"`
	Sheet      SheetConfig         `toml:"sheet"`
	Dates      DatesConfig         `toml:"dates"`
	Columns    map[string][]string `toml:"columns,omitempty"`
	Agenda     AgendaConfig        `toml:"agenda"`
	Watch      WatchConfig         `toml:"watch"`
	Database   DatabaseConfig      `toml:"database"`
	Vault      VaultConfig         `toml:"vault"`
	Encryption EncryptionConfig    `toml:"encryption"`
}

// BackendConfig locates the scheduling web app.
type BackendConfig struct {
	WebAppURL      string        `toml:"webapp_url"`
	APIKey         string        `toml:"api_key"`
	Retries        int           `toml:"retries"`
	AssignmentsKey string        `toml:"assignments_key"` // "email" or "rut"
	Actions        ActionsConfig `toml:"actions"`
}

// ActionsConfig renames remote actions. Empty entries keep the defaults.
type ActionsConfig struct {
	Login           string `toml:"login,omitempty"`
	Assignments     string `toml:"assignments,omitempty"`
	StartProcess    string `toml:"start_process,omitempty"`
	CompleteProcess string `toml:"complete_process,omitempty"`
	ActaStatus      string `toml:"acta_status,omitempty"`
	Health          string `toml:"health,omitempty"`
}

// SheetConfig points at the published CSV exports used when the web app is down.
type SheetConfig struct {
	RosterCSVURL string `toml:"roster_csv_url,omitempty"`
	UnitsCSVURL  string `toml:"units_csv_url,omitempty"`
}

type DatesConfig struct {
	Formats []string `toml:"formats,omitempty"`
}

type AgendaConfig struct {
	UpcomingDays int `toml:"upcoming_days"`
}

type WatchConfig struct {
	Schedule string `toml:"schedule"`
}

// DatabaseConfig selects the journal backend.
// The Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// VaultConfig selects where archived signatures and actas go.
// The Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "filesystem" or "s3"
	Name string `toml:"name"`

	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible stores such as MinIO
	// Static credentials. Empty means the default AWS credential chain.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds the age key pair paths.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// Defaults.
const (
	DefaultTimezone       = "America/Santiago"
	DefaultComuna         = "Santiago"
	DefaultWatchSchedule  = "@every 5m"
	DefaultAssignmentsKey = "email"
	DefaultUpcomingDays   = 14
)

// NewConfig returns a config rooted at baseDir with default paths.
func NewConfig(deviceID, baseDir string) *Config {
	return &Config{
		DeviceID: deviceID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Timezone: DefaultTimezone,
		Comuna:   DefaultComuna,
		Backend: BackendConfig{
			Retries:        2,
			AssignmentsKey: DefaultAssignmentsKey,
		},
		Dates:    DatesConfig{Formats: append([]string(nil), calendar.DefaultFormats...)},
		Agenda:   AgendaConfig{UpcomingDays: DefaultUpcomingDays},
		Watch:    WatchConfig{Schedule: DefaultWatchSchedule},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Vault:    VaultConfig{Type: "filesystem", Name: "local", FSVaultRoot: filepath.Join(baseDir, "vault")},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "acta.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "acta.key"),
		},
	}
}

// Environment overrides.
const (
	EnvWebAppURL = "ACTA_WEBAPP_URL"
	EnvAPIKey    = "ACTA_API_KEY"
	EnvInspector = "ACTA_INSPECTOR"
)

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides backend credentials and the default inspector from
// the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvWebAppURL); v != "" {
		c.Backend.WebAppURL = v
	}
	if v := getenv(EnvAPIKey); v != "" {
		c.Backend.APIKey = v
	}
	if v := getenv(EnvInspector); v != "" {
		c.Inspector = v
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	tz := c.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fault.Wrap(fault.Configuration, err, fmt.Sprintf("unknown timezone %q", tz))
	}
	return loc, nil
}

// Validate checks everything the client needs before talking to the backend.
func (c *Config) Validate() error {
	var problems []string

	url := strings.TrimSpace(c.Backend.WebAppURL)
	switch {
	case url == "":
		problems = append(problems, "backend.webapp_url is not set (or "+EnvWebAppURL+")")
	case !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://"):
		problems = append(problems, fmt.Sprintf("backend.webapp_url must be an http(s) URL, got %q", url))
	}
	if strings.TrimSpace(c.Backend.APIKey) == "" {
		problems = append(problems, "backend.api_key is not set (or "+EnvAPIKey+")")
	}
	if c.Backend.Retries < 0 {
		problems = append(problems, "backend.retries must not be negative")
	}
	switch c.Backend.AssignmentsKey {
	case "", "email", "rut":
	default:
		problems = append(problems, fmt.Sprintf("backend.assignments_key must be \"email\" or \"rut\", got %q", c.Backend.AssignmentsKey))
	}

	loc, err := c.Location()
	if err != nil {
		problems = append(problems, fault.Message(err))
	}
	if _, err := calendar.NewResolver(c.Dates.Formats, loc); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := c.ColumnMap(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Agenda.UpcomingDays < 0 {
		problems = append(problems, "agenda.upcoming_days must not be negative")
	}

	if len(problems) > 0 {
		return fault.New(fault.Configuration, "%s", strings.Join(problems, "; "))
	}
	return nil
}

// ColumnMap merges configured aliases over the defaults.
func (c *Config) ColumnMap() (normalize.ColumnMap, error) {
	return normalize.DefaultColumns().WithAliases(c.Columns)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes cfg to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file carries the API key.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. An existing file is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
