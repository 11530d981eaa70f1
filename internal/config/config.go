// Package config loads helpdesk configuration.
//
// Values come from built-in defaults, then an optional YAML file (the
// --config flag or HELPDESK_CONFIG), then HELPDESK_* environment
// variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the helpdesk configuration
type Config struct {
	// DB is the SQLite database path.
	DB string `yaml:"db"`

	// Addr is the REST server listen address.
	Addr string `yaml:"addr"`

	// LoadDelay is the simulated latency of the initial load when
	// serving.
	LoadDelay time.Duration `yaml:"load_delay"`

	// Agent is the name recorded on replies and in the audit log.
	Agent string `yaml:"agent"`

	// ShutdownTimeout bounds graceful server shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Log LogConfig `yaml:"log"`
}

// LogConfig configures the structured logger
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DB:              filepath.Join(home, ".helpdesk", "helpdesk.db"),
		Addr:            ":8080",
		LoadDelay:       time.Second,
		Agent:           "John Doe",
		ShutdownTimeout: 10 * time.Second,
		Log:             LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from path (or HELPDESK_CONFIG when path
// is empty) and the environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("HELPDESK_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.DB = expandHome(cfg.DB)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("HELPDESK_DB"); ok {
		c.DB = v
	}
	if v, ok := os.LookupEnv("HELPDESK_ADDR"); ok {
		c.Addr = v
	}
	if v, ok := os.LookupEnv("HELPDESK_AGENT"); ok {
		c.Agent = v
	}
	if v, ok := os.LookupEnv("HELPDESK_LOAD_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HELPDESK_LOAD_DELAY: %w", err)
		}
		c.LoadDelay = d
	}
	if v, ok := os.LookupEnv("HELPDESK_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("HELPDESK_LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	return nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db is required"))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.LoadDelay < 0 {
		errs = append(errs, fmt.Errorf("load_delay must not be negative, got %s", c.LoadDelay))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Logger builds the slog logger described by the configuration
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %s: %w", strconv.Quote(s), err)
	}
	return level, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
