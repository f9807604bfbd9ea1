// Package config loads fieldsync configuration.
//
// Configuration comes from a single YAML file named by the --config flag or
// the FIELDSYNC_CONFIG environment variable. Without either, defaults are
// used. Before decoding, the file is checked against an embedded CUE schema
// so typos in key names and malformed durations fail loudly instead of
// being ignored.
//
// Command-line flags override file values; that merge happens in the CLI.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "FIELDSYNC_CONFIG"

//go:embed schema.cue
var schemaCUE []byte

// Config is the complete fieldsync configuration.
type Config struct {
	// Database is the SQLite file holding the queue.
	// Default: fieldsync.db
	Database string `yaml:"database"`

	// Tenant is the active tenant id. Empty disables syncing.
	Tenant string `yaml:"tenant"`

	Remote RemoteConfig `yaml:"remote"`
	Sync   SyncConfig   `yaml:"sync"`
	Log    LogConfig    `yaml:"log"`
}

// RemoteConfig configures the backend.
type RemoteConfig struct {
	// BaseURL is where mutations are posted ({base_url}/mutations).
	BaseURL string `yaml:"base_url"`

	// HealthURL is polled for connectivity. Empty falls back to the
	// signal file, or to assuming online.
	HealthURL string `yaml:"health_url"`

	// Token is sent as a bearer token when set.
	Token string `yaml:"token"`

	// Timeout bounds each HTTP request.
	// Default: 15s
	Timeout Duration `yaml:"timeout"`
}

// SyncConfig configures the sync engine.
type SyncConfig struct {
	// RefreshInterval is how often the pending count is reloaded.
	// Default: 10s
	RefreshInterval Duration `yaml:"refresh_interval"`

	// SuccessDisplay is how long a successful pass shows before idle.
	// Default: 3s
	SuccessDisplay Duration `yaml:"success_display"`

	// ProbeInterval is the health probe period.
	// Default: 15s
	ProbeInterval Duration `yaml:"probe_interval"`

	// ApplyTimeout bounds each mutation apply. Zero means no limit.
	ApplyTimeout Duration `yaml:"apply_timeout"`

	// Collapse enables last-write-wins collapsing before each pass.
	// Default: true
	Collapse bool `yaml:"collapse"`

	// SignalFile, when set, is watched for "online"/"offline" instead of
	// probing the health URL.
	SignalFile string `yaml:"signal_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// File, when set, receives logs instead of stderr, rotated by size.
	File string `yaml:"file"`

	// MaxSizeMB is the size at which the log file is rotated.
	// Default: 10
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	// Default: 3
	MaxBackups int `yaml:"max_backups"`
}

// SlogLevel converts Level to a slog.Level. Unknown values are info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: "fieldsync.db",
		Remote: RemoteConfig{
			Timeout: Duration(15 * time.Second),
		},
		Sync: SyncConfig{
			RefreshInterval: Duration(10 * time.Second),
			SuccessDisplay:  Duration(3 * time.Second),
			ProbeInterval:   Duration(15 * time.Second),
			Collapse:        true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load loads the file at path, or the file named by FIELDSYNC_CONFIG when
// path is empty. With neither, it returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads and validates a configuration file. Keys absent from the
// file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates YAML configuration against the schema and decodes it
// over Default().
func Parse(data []byte) (*Config, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// validate unifies the raw YAML document with the #Config definition.
func validate(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return fmt.Errorf("config schema: #Config not found")
	}

	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
