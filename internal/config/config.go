// Package config loads CLI defaults from an optional YAML file and
// BESTARM_* environment variables. Flags set on the command line win over
// both.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	ErrorRate float64 `yaml:"error_rate"`
	MinReward float64 `yaml:"min_reward"`
	MaxReward float64 `yaml:"max_reward"`
	LogMode   string  `yaml:"log_mode"`

	Cache CacheConfig `yaml:"cache"`
	Store StoreConfig `yaml:"store"`

	MetricsAddr  string `yaml:"metrics_addr"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

type CacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// StoreConfig selects the report store. Backend is one of none, memory,
// redis or postgres.
type StoreConfig struct {
	Backend       string        `yaml:"backend"`
	SnapshotPath  string        `yaml:"snapshot_path"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	PostgresConn  string        `yaml:"postgres_conn"`
	TTL           time.Duration `yaml:"ttl"`
}

func Default() *Config {
	return &Config{
		ErrorRate: 0.05,
		MinReward: 1,
		MaxReward: 5,
		LogMode:   "dev",
		Cache: CacheConfig{
			Size: 1024,
			TTL:  time.Hour,
		},
		Store: StoreConfig{
			Backend:      "none",
			SnapshotPath: "data/reports.json",
			RedisAddr:    "localhost:6379",
			TTL:          24 * time.Hour,
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies
// environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ErrorRate = getEnvFloat("BESTARM_ERROR_RATE", c.ErrorRate)
	c.MinReward = getEnvFloat("BESTARM_MIN_REWARD", c.MinReward)
	c.MaxReward = getEnvFloat("BESTARM_MAX_REWARD", c.MaxReward)
	c.LogMode = getEnv("BESTARM_LOG_MODE", c.LogMode)

	c.Cache.Size = getEnvInt("BESTARM_CACHE_SIZE", c.Cache.Size)
	c.Cache.TTL = getEnvDuration("BESTARM_CACHE_TTL", c.Cache.TTL)

	c.Store.Backend = getEnv("BESTARM_STORE_BACKEND", c.Store.Backend)
	c.Store.SnapshotPath = getEnv("BESTARM_STORE_SNAPSHOT", c.Store.SnapshotPath)
	c.Store.RedisAddr = getEnv("BESTARM_REDIS_ADDR", c.Store.RedisAddr)
	c.Store.RedisPassword = getEnv("BESTARM_REDIS_PASSWORD", c.Store.RedisPassword)
	c.Store.RedisDB = getEnvInt("BESTARM_REDIS_DB", c.Store.RedisDB)
	c.Store.PostgresConn = getEnv("BESTARM_POSTGRES_CONN", c.Store.PostgresConn)
	c.Store.TTL = getEnvDuration("BESTARM_STORE_TTL", c.Store.TTL)

	c.MetricsAddr = getEnv("BESTARM_METRICS_ADDR", c.MetricsAddr)
	c.OTLPEndpoint = getEnv("BESTARM_OTLP_ENDPOINT", c.OTLPEndpoint)
}

func (c *Config) Validate() error {
	if !(c.ErrorRate > 0 && c.ErrorRate < 1) {
		return fmt.Errorf("%w: error_rate %v not in (0,1)", ErrInvalidConfig, c.ErrorRate)
	}
	if !(c.MaxReward > c.MinReward) {
		return fmt.Errorf("%w: max_reward %v must exceed min_reward %v", ErrInvalidConfig, c.MaxReward, c.MinReward)
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("%w: cache.size must be positive", ErrInvalidConfig)
	}
	switch c.Store.Backend {
	case "none", "memory", "redis":
	case "postgres":
		if c.Store.PostgresConn == "" {
			return fmt.Errorf("%w: store.postgres_conn required for postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
