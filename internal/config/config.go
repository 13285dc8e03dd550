package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config carries all environment-driven settings for the service.
type Config struct {
	HTTPAddr     string
	DatabaseDSN  string
	TokenTTL     time.Duration
	RateBurst    int
	RatePerSec   int
	MaxBodyBytes int64
	Dev          bool

	// BootstrapLogin/BootstrapPassword create the initial superadmin on
	// startup when set and no such user exists yet.
	BootstrapLogin    string
	BootstrapPassword string
}

// Load reads configuration from the environment. In dev mode a local .env
// file is loaded first.
func Load() Config {
	if os.Getenv("ADMINHUB_ENV") == "dev" {
		_ = godotenv.Load()
	}

	return Config{
		HTTPAddr:     getEnv("ADMINHUB_HTTP_ADDR", ":8080"),
		DatabaseDSN:  getEnv("ADMINHUB_PG_DSN", ""),
		TokenTTL:     getEnvDuration("ADMINHUB_TOKEN_TTL", time.Hour),
		RateBurst:    getEnvInt("ADMINHUB_RATE_BURST", 50),
		RatePerSec:   getEnvInt("ADMINHUB_RATE_PER_SEC", 25),
		MaxBodyBytes: int64(getEnvInt("ADMINHUB_MAX_BODY_BYTES", 1<<20)),
		Dev:          os.Getenv("ADMINHUB_ENV") == "dev",

		BootstrapLogin:    getEnv("ADMINHUB_BOOTSTRAP_LOGIN", ""),
		BootstrapPassword: getEnv("ADMINHUB_BOOTSTRAP_PASSWORD", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(valueStr); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
