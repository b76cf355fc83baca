package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the intake chat service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	// TypingDelay spaces out consecutive bot messages; GenerateDelay is the
	// pause before a finished document is announced.
	TypingDelay   time.Duration
	GenerateDelay time.Duration

	// RepliesPath optionally overrides the embedded scripted reply table.
	RepliesPath string

	// DatabaseURL selects Postgres for the response log; DBPath selects the
	// local SQLite file when no database is configured.
	DatabaseURL string
	DBPath      string

	// AuthToken guards the API when set. LoginURL is returned to
	// unauthenticated clients as the place to obtain a token.
	AuthToken string
	LoginURL  string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "complybot"),
		AllowAnyOrigin:           false,
		RepliesPath:              stringsTrimSpace("APP_REPLIES_PATH"),
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		DBPath:                   envOrDefault("APP_DB_PATH", "data/complybot.db"),
		AuthToken:                stringsTrimSpace("APP_AUTH_TOKEN"),
		LoginURL:                 envOrDefault("APP_LOGIN_URL", "/login"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 30 * time.Minute,
		TypingDelay:              800 * time.Millisecond,
		GenerateDelay:            2 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TypingDelay, err = durationFromEnv("APP_TYPING_DELAY", cfg.TypingDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerateDelay, err = durationFromEnv("APP_GENERATE_DELAY", cfg.GenerateDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.TypingDelay < 0 {
		return Config{}, fmt.Errorf("APP_TYPING_DELAY must be >= 0")
	}
	if cfg.GenerateDelay < 0 {
		return Config{}, fmt.Errorf("APP_GENERATE_DELAY must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
