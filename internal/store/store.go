// Package store is the key-value persistence boundary the team boards write
// to. Every backend is last-write-wins with no transactional guarantees.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var ErrNotFound = errors.New("key not found")

type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverRedis    Driver = "redis"
)

type Config struct {
	Driver      Driver `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	RedisPrefix string `yaml:"redis_prefix"`
}

func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverRedis:
		return d, nil
	case "sqlite3":
		return DriverSQLite, nil
	case "postgresql", "pg":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unknown store driver %q", s)
	}
}

// Open connects the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (KV, error) {
	logger = logger.Named("store")
	switch cfg.Driver {
	case DriverMemory, "":
		logger.Info("using in-memory store")
		return NewMemory(), nil
	case DriverSQLite:
		logger.Info("opening sqlite store", zap.String("path", cfg.SQLitePath))
		return OpenSQLite(ctx, cfg.SQLitePath)
	case DriverPostgres:
		logger.Info("opening postgres store")
		return OpenPostgres(ctx, cfg.PostgresDSN, logger)
	case DriverRedis:
		logger.Info("opening redis store", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Namespace scopes every key of kv under profile. The empty profile maps to
// the bare keys.
func Namespace(kv KV, profile string) KV {
	if profile == "" {
		return kv
	}
	return &namespaced{kv: kv, prefix: profile + "/"}
}

type namespaced struct {
	kv     KV
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.kv.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.kv.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.kv.Delete(ctx, n.prefix+key)
}

// Close is a no-op; the underlying store is owned by whoever opened it.
func (n *namespaced) Close() error { return nil }
