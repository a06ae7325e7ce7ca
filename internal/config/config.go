package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=pharmadist port=5432 sslmode=disable"

type Config struct {
	HTTPPort          string
	DatabaseDSN       string
	JWTSecret         string
	CORSOrigins       string
	RedisAddress      string // empty disables document locks
	LogLevel          string
	AutoMigrate       bool
	ExpiryWarningDays int // near-expiry report window
}

func Load() *Config {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:       getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		CORSOrigins:       getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		RedisAddress:      getEnv("REDIS_ADDRESS", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		AutoMigrate:       getEnvBool("AUTO_MIGRATE", true),
		ExpiryWarningDays: getEnvInt("EXPIRY_WARNING_DAYS", 90),
	}

	SetLogLevel(cfg.LogLevel)
	logger := GetLogger()

	if err := cfg.Validate(); err != nil {
		logger.WithField("module", "config").Fatal(err.Error())
	}
	if cfg.DatabaseDSN == defaultDSN {
		logger.Warn("DATABASE_DSN is using the default value, set your own Postgres DSN for production")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		logger.Warn("CORS_ALLOWED_ORIGINS is using the default value, set your own domain for production")
	}
	if cfg.RedisAddress == "" {
		logger.Warn("REDIS_ADDRESS not set; document locks are disabled")
	}

	return cfg
}

// Validate reports the settings the server refuses to start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.ExpiryWarningDays <= 0 {
		return errors.New("EXPIRY_WARNING_DAYS must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
