package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.ErrorRate)
	assert.Equal(t, 1.0, cfg.MinReward)
	assert.Equal(t, 5.0, cfg.MaxReward)
	assert.Equal(t, "none", cfg.Store.Backend)
	assert.Equal(t, 1024, cfg.Cache.Size)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bestarm.yaml")
	yml := `
error_rate: 0.01
max_reward: 10
cache:
  size: 16
  ttl: 5m
store:
  backend: redis
  redis_addr: redis:6379
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("BESTARM_REDIS_DB", "3")
	t.Setenv("BESTARM_MIN_REWARD", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.01, cfg.ErrorRate)
	assert.Equal(t, 2.0, cfg.MinReward)
	assert.Equal(t, 10.0, cfg.MaxReward)
	assert.Equal(t, 16, cfg.Cache.Size)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, 3, cfg.Store.RedisDB)
	// untouched keys keep their defaults
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
}

func TestEnvIgnoresUnparseable(t *testing.T) {
	t.Setenv("BESTARM_CACHE_SIZE", "lots")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Cache.Size)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"error rate zero", func(c *Config) { c.ErrorRate = 0 }},
		{"error rate one", func(c *Config) { c.ErrorRate = 1 }},
		{"inverted bounds", func(c *Config) { c.MinReward, c.MaxReward = 5, 1 }},
		{"empty cache", func(c *Config) { c.Cache.Size = 0 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }},
		{"postgres without conn", func(c *Config) { c.Store.Backend = "postgres" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
