package main

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds the daemon configuration, loaded from the environment with
// an optional .env overlay.
type Config struct {
	// HTTPAddr is the listen address of the JSON API.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN. When empty the daemon runs with an
	// in-memory identity store, for development only.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// SessionPrefix namespaces every session key in Redis.
	SessionPrefix string `mapstructure:"SESSION_PREFIX"`

	// JWTSigningKey signs every token. Required; there is no default.
	JWTSigningKey string `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer     string `mapstructure:"JWT_ISSUER"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTLShort applies to logins without stay-signed-in.
	JWTRefreshTTLShort string `mapstructure:"JWT_REFRESH_TTL_SHORT"`
	// JWTRefreshTTLLong applies to stay-signed-in logins.
	JWTRefreshTTLLong string `mapstructure:"JWT_REFRESH_TTL_LONG"`

	// SessionTTL is the expiry horizon of session records (e.g. "4320h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// SweepInterval is how often expired session records are purged.
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`

	DefaultRole string `mapstructure:"DEFAULT_ROLE"`

	AuditEnabled    bool `mapstructure:"AUDIT_ENABLED"`
	AuditBufferSize int  `mapstructure:"AUDIT_BUFFER_SIZE"`
	MetricsEnabled  bool `mapstructure:"METRICS_ENABLED"`
}

// loadConfig reads .env (if present), then the environment. Env vars win
// over the file. The signing key is validated here so a misconfigured
// daemon dies at startup instead of minting unverifiable tokens.
func loadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_PREFIX", "as")
	v.SetDefault("JWT_SIGNING_KEY", "")
	v.SetDefault("JWT_ISSUER", "authd")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL_SHORT", "6h")
	v.SetDefault("JWT_REFRESH_TTL_LONG", "4320h") // 180d
	v.SetDefault("SESSION_TTL", "4320h")
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("DEFAULT_ROLE", "donor")
	v.SetDefault("AUDIT_ENABLED", false)
	v.SetDefault("AUDIT_BUFFER_SIZE", 256)
	v.SetDefault("METRICS_ENABLED", true)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.JWTSigningKey == "" {
		return nil, errors.New("config: JWT_SIGNING_KEY must be set")
	}
	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	return &cfg, nil
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// AccessTTL parses JWTAccessTTL, defaulting to 15m.
func (c *Config) AccessTTL() time.Duration {
	return durationOr(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTLShort parses JWTRefreshTTLShort, defaulting to 6h.
func (c *Config) RefreshTTLShort() time.Duration {
	return durationOr(c.JWTRefreshTTLShort, 6*time.Hour)
}

// RefreshTTLLong parses JWTRefreshTTLLong, defaulting to 180 days.
func (c *Config) RefreshTTLLong() time.Duration {
	return durationOr(c.JWTRefreshTTLLong, 4320*time.Hour)
}

// SessionTTLDuration parses SessionTTL, defaulting to 180 days.
func (c *Config) SessionTTLDuration() time.Duration {
	return durationOr(c.SessionTTL, 4320*time.Hour)
}

// SweepIntervalDuration parses SweepInterval, defaulting to 1h.
func (c *Config) SweepIntervalDuration() time.Duration {
	return durationOr(c.SweepInterval, time.Hour)
}
