package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds everything the service reads from the environment.
type Config struct {
	AppEnv     string
	ServerPort string
	LogLevel   string

	// DatabaseURL is a Postgres DSN. When empty outside production the
	// service falls back to a local SQLite file.
	DatabaseURL string
	SQLitePath  string

	// Redis backs the API rate limiter; rate limiting is disabled when
	// RedisAddr is empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	TokenTTL  time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration

	// AllowInsecureWSAuth accepts websocket handshakes without a token
	// when the claimed user exists. Development only; Validate refuses
	// it in production.
	AllowInsecureWSAuth bool
}

// Load reads configuration from the environment, preferring a .env file
// when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SQLitePath:          getEnv("SQLITE_PATH", "smobile.db"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		TokenTTL:            time.Hour,
		RateLimitMax:        100,
		RateLimitWindow:     time.Second,
		AllowInsecureWSAuth: getEnv("ALLOW_INSECURE_WS_AUTH", "false") == "true",
	}

	if raw := os.Getenv("REDIS_DB"); raw != "" {
		cfg.RedisDB, _ = strconv.Atoi(raw)
	}
	if raw := os.Getenv("TOKEN_TTL_MINUTES"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			cfg.TokenTTL = time.Duration(minutes) * time.Minute
		}
	}
	if raw := os.Getenv("RATE_LIMIT_MAX"); raw != "" {
		if max, err := strconv.Atoi(raw); err == nil && max > 0 {
			cfg.RateLimitMax = max
		}
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL %q, using 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the production invariants: a real database, a JWT
// secret, and no authentication bypass.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.IsProduction() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set in production")
		}
		if c.AllowInsecureWSAuth {
			return fmt.Errorf("ALLOW_INSECURE_WS_AUTH cannot be enabled in production")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
