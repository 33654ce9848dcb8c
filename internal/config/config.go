package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	RedisURL            string
	DatabaseURL         string // optional; enables the access audit log
	AuthAPIBaseURL      string // EduStack REST API, e.g. https://api.edustack.com/api
	AuthAPITimeout      time.Duration
	SessionTTL          time.Duration
	SessionCacheSize    int
	GateWaitTimeout     time.Duration
	SessionRetryBackoff time.Duration // wait before re-verifying after an auth API outage
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("AUTH_API_TIMEOUT", "10s")
	v.SetDefault("SESSION_TTL", "168h")
	v.SetDefault("SESSION_CACHE_SIZE", 10000)
	v.SetDefault("GATE_WAIT_TIMEOUT", "5s")
	v.SetDefault("SESSION_RETRY_BACKOFF", "5s")

	env := v.GetString("APP_ENV")

	return &Config{
		Env:                 env,
		Port:                v.GetString("PORT"),
		RedisURL:            v.GetString("REDIS_URL"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		AuthAPIBaseURL:      authAPIBaseURL(env, v.GetString("AUTH_API_BASE_URL")),
		AuthAPITimeout:      v.GetDuration("AUTH_API_TIMEOUT"),
		SessionTTL:          v.GetDuration("SESSION_TTL"),
		SessionCacheSize:    v.GetInt("SESSION_CACHE_SIZE"),
		GateWaitTimeout:     v.GetDuration("GATE_WAIT_TIMEOUT"),
		SessionRetryBackoff: v.GetDuration("SESSION_RETRY_BACKOFF"),
		FrontendURLEndsWith: v.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         v.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(v.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:      v.GetString("HEALTH_ADMIN_KEY"),
	}, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// authAPIBaseURL falls back to the per-environment API hosts when unset.
func authAPIBaseURL(env, s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if s != "" {
		return s
	}
	switch env {
	case "production":
		return "https://api.edustack.com/api"
	case "staging":
		return "https://staging-api.edustack.com/api"
	default:
		return "http://localhost:7000/api"
	}
}
