package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the service configuration. Values come from the yaml file first
// and are then overridden by environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	NATS     NATSConfig     `yaml:"nats"`
	Relay    RelayConfig    `yaml:"relay"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Gateway  GatewayConfig  `yaml:"gateway"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	MaxConns    int32  `yaml:"max_conns"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type NATSConfig struct {
	URL             string        `yaml:"url"` // empty disables JetStream
	StreamName      string        `yaml:"stream_name"`
	SubjectPrefix   string        `yaml:"subject_prefix"`
	MaxAge          time.Duration `yaml:"max_age"`
	DuplicateWindow time.Duration `yaml:"duplicate_window"`
	ConsumerPrefix  string        `yaml:"consumer_prefix"`
}

type RelayConfig struct {
	FallbackInterval time.Duration `yaml:"fallback_interval"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	BatchSize        int           `yaml:"batch_size"`
}

type WatchdogConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Workers     int           `yaml:"workers"`
	BatchSize   int           `yaml:"batch_size"`
	MinInterval time.Duration `yaml:"min_interval"`
	MaxInterval time.Duration `yaml:"max_interval"`
}

type GatewayConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PingInterval time.Duration `yaml:"ping_interval"`
	SendBuffer   int           `yaml:"send_buffer"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Log:   LogConfig{Level: "info", Format: "json"},
		Store: StoreConfig{Driver: StorePostgres, MaxConns: 10, AutoMigrate: true},
		NATS: NATSConfig{
			StreamName:      "DRAFT_EVENTS",
			SubjectPrefix:   "draft.events",
			MaxAge:          7 * 24 * time.Hour,
			DuplicateWindow: 2 * time.Hour,
			ConsumerPrefix:  "draft-gateway",
		},
		Relay: RelayConfig{
			FallbackInterval: 30 * time.Second,
			MaxRetries:       5,
			RetryDelay:       200 * time.Millisecond,
			BatchSize:        100,
		},
		Watchdog: WatchdogConfig{
			Enabled:     false,
			Workers:     4,
			BatchSize:   100,
			MinInterval: 250 * time.Millisecond,
			MaxInterval: 30 * time.Second,
		},
		Gateway: GatewayConfig{
			Enabled:      true,
			PingInterval: 30 * time.Second,
			SendBuffer:   256,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		c.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("WATCHDOG_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid WATCHDOG_ENABLED %q: %w", v, err)
		}
		c.Watchdog.Enabled = enabled
	}
	return nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Store.Driver != StoreMemory && c.Store.Driver != StorePostgres {
		errs = append(errs, fmt.Errorf("store.driver must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store.Driver))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	if c.Relay.BatchSize < 1 {
		errs = append(errs, errors.New("relay.batch_size must be positive"))
	}
	if c.Relay.MaxRetries < 0 {
		errs = append(errs, errors.New("relay.max_retries cannot be negative"))
	}
	if c.Watchdog.Enabled {
		if c.Watchdog.Workers < 1 {
			errs = append(errs, errors.New("watchdog.workers must be positive"))
		}
		if c.Watchdog.MinInterval <= 0 || c.Watchdog.MaxInterval < c.Watchdog.MinInterval {
			errs = append(errs, errors.New("watchdog intervals must satisfy 0 < min_interval <= max_interval"))
		}
	}
	return errors.Join(errs...)
}

// LogLevel is the parsed log level, info when unparseable.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
