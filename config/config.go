/*
Package config loads the server configuration.

LAYERS (weakest to strongest):
  1. Defaults()                       built-in values
  2. YAML file (-config / ITPEI_CONFIG) gopkg.in/yaml.v3
  3. Environment (ITPEI_*)
  4. Command-line flags

A stronger layer only overrides what it actually sets: an absent YAML key,
an unset variable or a flag left off the command line keeps the weaker
value.

ENVIRONMENT:
  ITPEI_CONFIG            YAML file path
  ITPEI_ADDR              Listen address (":8080")
  ITPEI_DRIVER            sqlite | postgres | memory
  ITPEI_SQLITE_PATH       SQLite file, ":memory:" allowed
  ITPEI_POSTGRES_DSN      Postgres DSN (DATABASE_URL is honoured too)
  ITPEI_LOG_LEVEL         debug | info | warn | error
  ITPEI_LOG_FORMAT        text | json
  ITPEI_CORS_ORIGINS      Comma-separated origins
  ITPEI_SUBMIT_RATE       Write requests per second (0 disables throttling)
  ITPEI_SUBMIT_BURST      Burst above the rate
  ITPEI_SHUTDOWN_TIMEOUT  Graceful shutdown window ("30s")

SEE ALSO:
  - cmd/server/main.go: Consumer
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	envPrefix = "ITPEI_"
)

// Config holds the runtime configuration.
type Config struct {
	Addr            string        `yaml:"addr"`
	Driver          string        `yaml:"driver"`
	SQLitePath      string        `yaml:"sqlite_path"`
	PostgresDSN     string        `yaml:"postgres_dsn"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	SubmitRate      float64       `yaml:"submit_rate"`
	SubmitBurst     int           `yaml:"submit_burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Defaults mirrors what the server used before it had a config file.
func Defaults() Config {
	return Config{
		Addr:            ":8080",
		Driver:          DriverSQLite,
		SQLitePath:      "itpei.db",
		LogLevel:        "info",
		LogFormat:       "text",
		CORSOrigins:     []string{"*"},
		SubmitRate:      5,
		SubmitBurst:     10,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load applies every layer. args excludes the program name; getenv is
// os.Getenv outside tests.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Defaults()

	flags := flag.NewFlagSet("itpei", flag.ContinueOnError)
	var (
		configPath  = flags.String("config", "", "YAML configuration file")
		addr        = flags.String("addr", "", "HTTP listen address")
		port        = flags.Int("port", 0, "HTTP server port (shorthand for -addr=:PORT)")
		driver      = flags.String("driver", "", "Storage driver: sqlite, postgres or memory")
		dbPath      = flags.String("db", "", `SQLite database path (":memory:" for in-memory)`)
		dsn         = flags.String("dsn", "", "Postgres DSN")
		logLevel    = flags.String("log-level", "", "debug, info, warn or error")
		logFormat   = flags.String("log-format", "", "text or json")
		submitRate  = flags.Float64("submit-rate", -1, "Write requests per second, 0 disables throttling")
		submitBurst = flags.Int("submit-burst", -1, "Write burst size")
	)
	if err := flags.Parse(args); err != nil {
		return cfg, err
	}

	path := *configPath
	if path == "" {
		path = getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.mergeEnv(getenv); err != nil {
		return cfg, err
	}

	// Flags: only the ones given on the command line.
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "port":
			cfg.Addr = fmt.Sprintf(":%d", *port)
		case "driver":
			cfg.Driver = *driver
		case "db":
			cfg.SQLitePath = *dbPath
		case "dsn":
			cfg.PostgresDSN = *dsn
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "submit-rate":
			cfg.SubmitRate = *submitRate
		case "submit-burst":
			cfg.SubmitBurst = *submitBurst
		}
	})

	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	return cfg, cfg.Validate()
}

// mergeFile overlays the keys present in a YAML file.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	// Decoding onto the current value leaves absent keys untouched.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(envPrefix + key)); v != "" {
			*dst = v
		}
	}
	str("ADDR", &c.Addr)
	str("DRIVER", &c.Driver)
	str("SQLITE_PATH", &c.SQLitePath)
	if v := strings.TrimSpace(getenv("DATABASE_URL")); v != "" {
		c.PostgresDSN = v
	}
	str("POSTGRES_DSN", &c.PostgresDSN)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	if v := getenv(envPrefix + "CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := getenv(envPrefix + "SUBMIT_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sSUBMIT_RATE: %w", envPrefix, err)
		}
		c.SubmitRate = f
	}
	if v := getenv(envPrefix + "SUBMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sSUBMIT_BURST: %w", envPrefix, err)
		}
		c.SubmitBurst = n
	}
	if v := getenv(envPrefix + "SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSHUTDOWN_TIMEOUT: %w", envPrefix, err)
		}
		c.ShutdownTimeout = d
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Driver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite driver needs a database path"))
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres driver needs a DSN"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q (want sqlite, postgres or memory)", c.Driver))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat))
	}
	if c.SubmitRate < 0 || c.SubmitBurst < 0 {
		errs = append(errs, errors.New("submit rate and burst must not be negative"))
	}
	if c.SubmitRate > 0 && c.SubmitBurst == 0 {
		errs = append(errs, errors.New("submit burst must be positive when a rate is set"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return lvl, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return lvl, nil
}

// Logger builds the process logger described by LogLevel and LogFormat.
func (c Config) Logger(w io.Writer) *slog.Logger {
	lvl, err := c.SlogLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
