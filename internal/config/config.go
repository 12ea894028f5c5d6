// Package config resolves server settings from defaults, an optional YAML
// file, an optional .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/operator-board/internal/roster"
	"github.com/DoyleJ11/operator-board/internal/store"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "operator-board.yaml"

const envPrefix = "OPBOARD_"

type Config struct {
	Addr           string        `yaml:"addr"`
	RosterSource   string        `yaml:"roster_source"`
	ConfigSource   string        `yaml:"config_source"`
	StaticDir      string        `yaml:"static_dir"`
	LetterMode     string        `yaml:"letter_mode"` // jump | filter
	DefaultProfile string        `yaml:"default_profile"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	// SessionIdleTimeout evicts profile sessions without clients. Zero keeps
	// them for the life of the process.
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`

	Log   LogConfig    `yaml:"log"`
	Store store.Config `yaml:"store"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

func Default() *Config {
	return &Config{
		Addr:         ":8080",
		RosterSource: "data/characterData.json",
		ConfigSource: "data/config.json",
		LetterMode:   string(roster.LetterFilter),
		FetchTimeout: 10 * time.Second,

		SessionIdleTimeout: 30 * time.Minute,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: store.Config{
			Driver:      store.DriverSQLite,
			SQLitePath:  "data/operator-board.db",
			RedisPrefix: "operator-board:",
		},
	}
}

// Load builds the config. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// .env is optional; values already in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}
	str("ADDR", &c.Addr)
	str("ROSTER_SOURCE", &c.RosterSource)
	str("CONFIG_SOURCE", &c.ConfigSource)
	str("STATIC_DIR", &c.StaticDir)
	str("LETTER_MODE", &c.LetterMode)
	str("DEFAULT_PROFILE", &c.DefaultProfile)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	var driver string
	str("STORE_DRIVER", &driver)
	if driver != "" {
		c.Store.Driver = store.Driver(driver)
	}
	str("SQLITE_PATH", &c.Store.SQLitePath)
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Store.PostgresDSN = dsn
	}
	str("POSTGRES_DSN", &c.Store.PostgresDSN)
	str("REDIS_ADDR", &c.Store.RedisAddr)
	str("REDIS_PREFIX", &c.Store.RedisPrefix)

	if v := os.Getenv(envPrefix + "REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sREDIS_DB: %w", envPrefix, err)
		}
		c.Store.RedisDB = db
	}
	if v := os.Getenv(envPrefix + "FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sFETCH_TIMEOUT: %w", envPrefix, err)
		}
		c.FetchTimeout = d
	}
	if v := os.Getenv(envPrefix + "SESSION_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sSESSION_IDLE_TIMEOUT: %w", envPrefix, err)
		}
		c.SessionIdleTimeout = d
	}
	return nil
}

// Validate normalizes enum fields and checks that the chosen store backend
// has what it needs.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	mode, err := roster.ParseLetterMode(c.LetterMode)
	if err != nil {
		errs = append(errs, err)
	} else {
		c.LetterMode = string(mode)
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout))
	}
	if c.SessionIdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("session_idle_timeout must not be negative, got %s", c.SessionIdleTimeout))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}

	driver, err := store.ParseDriver(string(c.Store.Driver))
	if err != nil {
		errs = append(errs, err)
	} else {
		c.Store.Driver = driver
		switch driver {
		case store.DriverSQLite:
			if c.Store.SQLitePath == "" {
				errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
			}
		case store.DriverPostgres:
			if c.Store.PostgresDSN == "" {
				errs = append(errs, errors.New("store.postgres_dsn is required for the postgres driver"))
			}
		case store.DriverRedis:
			if c.Store.RedisAddr == "" {
				errs = append(errs, errors.New("store.redis_addr is required for the redis driver"))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) Letters() roster.LetterMode {
	return roster.LetterMode(c.LetterMode)
}
