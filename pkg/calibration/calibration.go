// Package calibration persists per-actuator zero offsets.
//
// Offsets are keyed by actuator ID. A missing key means "use the
// actuator's default"; stores never invent values.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrInvalidKey is returned for an empty actuator ID.
var ErrInvalidKey = errors.New("calibration: empty actuator id")

// Store is a durable id→offset mapping.
type Store interface {
	// Load returns every persisted offset.
	Load(ctx context.Context) (map[string]float64, error)

	// Save persists one offset.
	Save(ctx context.Context, id string, offset float64) error

	// Close releases the store.
	Close() error
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendFile  Backend = "file"
	BackendRedis Backend = "redis"
)

// Config holds calibration store configuration.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend" mapstructure:"backend"`

	// Path is the YAML file used by the file backend.
	Path string `yaml:"path" json:"path" mapstructure:"path"`

	// RedisAddr, RedisDB and RedisKey configure the redis backend.
	RedisAddr string `yaml:"redis_addr" json:"redis_addr" mapstructure:"redis_addr"`
	RedisDB   int    `yaml:"redis_db" json:"redis_db" mapstructure:"redis_db"`
	RedisKey  string `yaml:"redis_key" json:"redis_key" mapstructure:"redis_key"`
}

// DefaultConfig stores offsets next to the binary in calibration.yaml.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendFile,
		Path:      "calibration.yaml",
		RedisAddr: "localhost:6379",
		RedisKey:  "smartbin:calibration",
	}
}

// Open creates the configured store.
func Open(cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendFile, "":
		logger.Debug("calibration store", "backend", BackendFile, "path", cfg.Path)
		return NewFileStore(cfg.Path), nil
	case BackendRedis:
		logger.Debug("calibration store", "backend", BackendRedis, "addr", cfg.RedisAddr, "key", cfg.RedisKey)
		return NewRedisStore(cfg.RedisAddr, cfg.RedisDB, WithKey(cfg.RedisKey)), nil
	default:
		return nil, fmt.Errorf("unsupported calibration backend: %s", cfg.Backend)
	}
}
