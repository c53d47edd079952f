// Package config loads tripdraw configuration from TOML files.
//
// Configuration is optional: every field has a default, so the CLI
// works without a config file. The server requires one for the Mongo
// and Redis connection settings.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tripdraw/tripdraw/pkg/errors"
)

// Defaults applied when a field is absent from the config file.
const (
	DefaultLotteryKey = "ws"
	DefaultMinDrivers = 2
	DefaultMongoURI   = "mongodb://localhost:27017"
	DefaultMongoDB    = "tripdraw"
	DefaultRedisAddr  = "localhost:6379"
	DefaultCacheTTL   = "24h"
	DefaultServerAddr = ":8080"
)

// Config is the top-level tripdraw configuration.
type Config struct {
	Lottery LotteryConfig `toml:"lottery"`
	Mongo   MongoConfig   `toml:"mongo"`
	Redis   RedisConfig   `toml:"redis"`
	Cache   CacheConfig   `toml:"cache"`
	Server  ServerConfig  `toml:"server"`
}

// LotteryConfig controls lottery runs.
type LotteryConfig struct {
	// Key distinguishes lottery programs; it is mixed into every
	// participant's rank seed.
	Key string `toml:"key"`

	// SeedSecret is mixed into rank seeds so that ranks cannot be
	// predicted from public data. Changing it reshuffles all ranks.
	SeedSecret string `toml:"seed_secret"`

	// MinDrivers is the number of drivers each multi-trip run tries
	// to place on every trip.
	MinDrivers int `toml:"min_drivers"`

	// LogDir is where per-run logs are written.
	LogDir string `toml:"log_dir"`
}

// MongoConfig holds the document store connection settings.
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// RedisConfig holds the Redis cache connection settings.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// CacheConfig controls the local artifact cache.
type CacheConfig struct {
	// Dir overrides the XDG cache directory.
	Dir string `toml:"dir"`

	// TTL is how long cached artifacts stay valid, in Go duration
	// syntax (e.g. "24h", "90m").
	TTL string `toml:"ttl"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Lottery: LotteryConfig{
			Key:        DefaultLotteryKey,
			MinDrivers: DefaultMinDrivers,
		},
		Mongo: MongoConfig{
			URI:      DefaultMongoURI,
			Database: DefaultMongoDB,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		Cache: CacheConfig{
			TTL: DefaultCacheTTL,
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
	}
}

// Load reads and parses the config file at path.
// Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "config file not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "failed to read config file")
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "failed to parse config file")
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the config file at path if it exists.
// A missing file is not an error: the defaults are returned instead.
// This is the CLI entry point; the server uses Load directly so a
// typo'd --config path fails loudly.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// DefaultPath returns the XDG config file location
// (~/.config/tripdraw/config.toml).
func DefaultPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "tripdraw", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tripdraw", "config.toml"), nil
}

// CacheTTL parses the cache TTL.
// Load has already validated the syntax.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		d, _ = time.ParseDuration(DefaultCacheTTL)
	}
	return d
}

// validate performs validation on the configuration.
func validate(cfg *Config) error {
	if cfg.Lottery.Key == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "lottery.key cannot be empty")
	}
	if cfg.Lottery.MinDrivers < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "lottery.min_drivers cannot be negative")
	}
	if cfg.Mongo.URI == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "mongo.uri cannot be empty")
	}
	if cfg.Mongo.Database == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "mongo.database cannot be empty")
	}
	if cfg.Cache.TTL != "" {
		if _, err := time.ParseDuration(cfg.Cache.TTL); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "cache.ttl is not a valid duration")
		}
	}
	if cfg.Server.Addr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "server.addr cannot be empty")
	}
	return nil
}
