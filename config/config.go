// Package config loads the sqlstack configuration.
//
// Values are resolved in order: defaults, then the YAML file, then
// environment variables (SQLSTACK_DIALECT, SQLSTACK_DSN,
// SQLSTACK_LOG_LEVEL).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/sqlstack"
	"github.com/syssam/sqlstack/dialect"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Stats    StatsConfig    `yaml:"stats"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig selects the driver and data source.
type DatabaseConfig struct {
	Dialect string `yaml:"dialect"`
	DSN     string `yaml:"dsn"`
	// MaxOpenConns caps the pool. The commit serializer assumes one
	// physical connection, so values above 1 are only safe for engines
	// supporting concurrent transactions.
	MaxOpenConns int `yaml:"max_open_conns"`
	// ReadOnly rejects statements other than reads before they reach
	// the database.
	ReadOnly bool `yaml:"read_only"`
}

// StatsConfig configures the statistics and debug driver decorators.
type StatsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	Debug         bool          `yaml:"debug"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Environment variables overriding file values.
const (
	EnvDialect  = "SQLSTACK_DIALECT"
	EnvDSN      = "SQLSTACK_DSN"
	EnvLogLevel = "SQLSTACK_LOG_LEVEL"
)

// Default returns a Config with defaults: an in-memory SQLite database,
// info level text logging to stderr.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect:      dialect.SQLite,
			DSN:          ":memory:",
			MaxOpenConns: 1,
		},
		Stats: StatsConfig{
			SlowThreshold: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads configuration from a YAML file and applies environment
// variable overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	return LoadEnv(path, os.Getenv)
}

// LoadEnv is like Load but reads the environment through getenv.
func LoadEnv(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvDialect); v != "" {
		c.Database.Dialect = v
	}
	if v := getenv(EnvDSN); v != "" {
		c.Database.DSN = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration. Every failure is reported as a
// *sqlstack.ConfigError, joined.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Dialect {
	case dialect.SQLite, dialect.MySQL, dialect.Postgres:
	case "":
		errs = append(errs, sqlstack.NewConfigError("database.dialect", sqlstack.ErrNoDriver))
	default:
		errs = append(errs, sqlstack.NewConfigError("database.dialect", fmt.Errorf("unsupported dialect %q", c.Database.Dialect)))
	}
	if c.Database.DSN == "" {
		errs = append(errs, sqlstack.NewConfigError("database.dsn", errors.New("required")))
	}
	if c.Database.MaxOpenConns < 0 {
		errs = append(errs, sqlstack.NewConfigError("database.max_open_conns", errors.New("must not be negative")))
	}
	if c.Stats.SlowThreshold < 0 {
		errs = append(errs, sqlstack.NewConfigError("stats.slow_threshold", errors.New("must not be negative")))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, sqlstack.NewConfigError("logging.level", fmt.Errorf("unknown level %q", c.Logging.Level)))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, sqlstack.NewConfigError("logging.format", fmt.Errorf("unknown format %q", c.Logging.Format)))
	}
	return errors.Join(errs...)
}
