package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures environment driven configuration values for the sessions service.
type Config struct {
	HTTPPort         int           `env:"SESSIONS_HTTP_PORT" envDefault:"8080"`
	SQLitePath       string        `env:"SESSIONS_SQLITE_PATH" envDefault:"sessions.db"`
	AuthSecret       string        `env:"SESSIONS_AUTH_SECRET"`
	AuthIssuer       string        `env:"SESSIONS_AUTH_ISSUER" envDefault:"sessions-dev"`
	AuthAudience     string        `env:"SESSIONS_AUTH_AUDIENCE" envDefault:"sessions"`
	AllowHostConfirm bool          `env:"SESSIONS_ALLOW_HOST_CONFIRM" envDefault:"false"`
	UpcomingLimit    int           `env:"SESSIONS_UPCOMING_LIMIT" envDefault:"10"`
	RedisAddr        string        `env:"SESSIONS_REDIS_ADDR"`
	RedisPrefix      string        `env:"SESSIONS_REDIS_PREFIX" envDefault:"sessions:"`
	LogLevel         string        `env:"SESSIONS_LOG_LEVEL" envDefault:"info"`
	OTELEndpoint     string        `env:"SESSIONS_OTEL_ENDPOINT"`
	ShutdownTimeout  time.Duration `env:"SESSIONS_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses configuration values from the current process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses configuration values from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

// parse applies defaults for optional fields while validating required values
// and reporting localized error messages for missing or malformed entries.
func parse(opts env.Options) (Config, error) {
	var cfg Config
	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		var aggregate env.AggregateError
		if !errors.As(err, &aggregate) {
			return Config{}, fmt.Errorf("parse env: %w", err)
		}
		for _, fieldErr := range aggregate.Errors {
			var parseErr env.ParseError
			if errors.As(fieldErr, &parseErr) {
				invalid = append(invalid, envKey(parseErr.Name))
				continue
			}
			return Config{}, fmt.Errorf("parse env: %w", fieldErr)
		}
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	if cfg.AuthSecret == "" {
		missing = append(missing, "SESSIONS_AUTH_SECRET")
	} else if len(cfg.AuthSecret) < 16 {
		invalid = append(invalid, "SESSIONS_AUTH_SECRET")
	}
	if strings.TrimSpace(cfg.SQLitePath) == "" {
		invalid = append(invalid, "SESSIONS_SQLITE_PATH")
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = appendOnce(invalid, "SESSIONS_HTTP_PORT")
	}
	if cfg.UpcomingLimit <= 0 {
		invalid = appendOnce(invalid, "SESSIONS_UPCOMING_LIMIT")
	}
	if cfg.ShutdownTimeout <= 0 {
		invalid = appendOnce(invalid, "SESSIONS_SHUTDOWN_TIMEOUT")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
		cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	default:
		invalid = append(invalid, "SESSIONS_LOG_LEVEL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// RedisEnabled reports whether the reminder index should be wired.
func (c Config) RedisEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func envKey(field string) string {
	if f, ok := reflect.TypeOf(Config{}).FieldByName(field); ok {
		if key := f.Tag.Get("env"); key != "" {
			return key
		}
	}
	return field
}

func appendOnce(values []string, value string) []string {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}
