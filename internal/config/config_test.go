package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NONCE_SECRET", "0123456789abcdef")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "development", c.Env)
	require.Equal(t, "8080", c.Port)
	require.Equal(t, SettingsFromFile, c.SettingsSource)
	require.Equal(t, 12*time.Hour, c.NonceTTL)
	require.Equal(t, 2*time.Hour, c.DraftTTL)
	require.Equal(t, "memory", c.DraftStore)
	require.Equal(t, "sqlite", c.DatabaseDriver)
	require.Equal(t, []string{"*"}, c.AllowedOrigins)
	require.Equal(t, 5.0, c.RateLimitRPS)
	require.Equal(t, 10, c.RateLimitBurst)
	require.Equal(t, 3, c.Redis.ReadTimeout)
	require.False(t, c.NeedsAWS())
}

func TestLoad_RequiresNonceSecret(t *testing.T) {
	t.Setenv("NONCE_SECRET", "unused")
	require.NoError(t, os.Unsetenv("NONCE_SECRET"))
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NONCE_SECRET", "0123456789abcdef")
	t.Setenv("SETTINGS_SOURCE", "ssm")
	t.Setenv("PARAM_PREFIX", "/store")
	t.Setenv("DRAFT_STORE", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("DRAFT_TTL", "30m")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "redis://localhost:6379/0", c.Redis.URL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	require.Equal(t, 30*time.Minute, c.DraftTTL)
	require.True(t, c.NeedsAWS())
}

func TestValidate(t *testing.T) {
	base := Config{SettingsSource: "file", DraftStore: "memory", RateLimitRPS: 5, RateLimitBurst: 10, NonceTTL: time.Hour, DraftTTL: time.Hour}
	require.NoError(t, base.Validate())

	cases := map[string]func(c *Config){
		"ssm without prefix":     func(c *Config) { c.SettingsSource = "ssm" },
		"unknown source":         func(c *Config) { c.SettingsSource = "vault" },
		"redis without url":      func(c *Config) { c.DraftStore = "redis" },
		"dynamodb without table": func(c *Config) { c.DraftStore = "dynamodb" },
		"unknown store":          func(c *Config) { c.DraftStore = "etcd" },
		"zero rate":              func(c *Config) { c.RateLimitRPS = 0 },
		"zero ttl":               func(c *Config) { c.DraftTTL = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}
