// Package config binds process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	pkgredis "store-assistant/pkg/redis"
)

const (
	SettingsFromFile = "file"
	SettingsFromSSM  = "ssm"
)

type Config struct {
	Env  string `envconfig:"APP_ENV" default:"development"`
	Port string `envconfig:"PORT" default:"8080"`

	SettingsSource string        `envconfig:"SETTINGS_SOURCE" default:"file"`
	SettingsFile   string        `envconfig:"SETTINGS_FILE" default:"settings.yaml"`
	SettingsTTL    time.Duration `envconfig:"SETTINGS_TTL" default:"1m"`
	ParamPrefix    string        `envconfig:"PARAM_PREFIX"`

	OpenAIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	NonceSecret string        `envconfig:"NONCE_SECRET" required:"true"`
	NonceTTL    time.Duration `envconfig:"NONCE_TTL" default:"12h"`

	DraftStore string        `envconfig:"DRAFT_STORE" default:"memory"`
	DraftTTL   time.Duration `envconfig:"DRAFT_TTL" default:"2h"`
	DraftTable string        `envconfig:"DRAFT_TABLE"`
	Redis      pkgredis.Config

	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"sqlite"`
	DatabaseURL    string `envconfig:"DATABASE_URL" default:"file:store.db?_pragma=busy_timeout(5000)"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
	RateLimitRPS   float64  `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int      `envconfig:"RATE_LIMIT_BURST" default:"10"`
}

// Load reads the environment and validates cross-field requirements.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch strings.ToLower(c.SettingsSource) {
	case SettingsFromFile:
	case SettingsFromSSM:
		if strings.TrimSpace(c.ParamPrefix) == "" {
			return errors.New("config: PARAM_PREFIX is required when SETTINGS_SOURCE=ssm")
		}
	default:
		return fmt.Errorf("config: unknown SETTINGS_SOURCE %q", c.SettingsSource)
	}

	switch strings.ToLower(c.DraftStore) {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Redis.URL) == "" {
			return errors.New("config: REDIS_URL is required when DRAFT_STORE=redis")
		}
	case "dynamodb":
		if strings.TrimSpace(c.DraftTable) == "" {
			return errors.New("config: DRAFT_TABLE is required when DRAFT_STORE=dynamodb")
		}
	default:
		return fmt.Errorf("config: unknown DRAFT_STORE %q", c.DraftStore)
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.NonceTTL <= 0 || c.DraftTTL <= 0 {
		return errors.New("config: NONCE_TTL and DRAFT_TTL must be positive")
	}
	return nil
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c Config) NeedsAWS() bool {
	return strings.EqualFold(c.SettingsSource, SettingsFromSSM) || strings.EqualFold(c.DraftStore, "dynamodb")
}
