package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL   string
	JWTSecret     string
	JWTExpiration time.Duration
	ServerPort    string

	// DBTimeout caps every persistence call issued by the session manager
	// and the earnings calculator.
	DBTimeout time.Duration

	// EarningsBatchSize bounds how many employees the company earnings
	// calculation processes concurrently. It protects the database
	// connection pool, not correctness.
	EarningsBatchSize int

	LogLevel logrus.Level
}

func Load() *Config {
	// Optional .env for local development; env vars win.
	_ = godotenv.Load()

	return &Config{
		DatabaseURL:       getEnv("DATABASE_URL", "postgresql://postgres@localhost:5432/timeclock"),
		JWTSecret:         getEnv("JWT_SECRET", "your-super-secret-key-change-in-production"),
		JWTExpiration:     24 * time.Hour,
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		DBTimeout:         getEnvDuration("DB_TIMEOUT", 5*time.Second),
		EarningsBatchSize: getEnvInt("EARNINGS_BATCH_SIZE", 3),
		LogLevel:          getEnvLevel("LOG_LEVEL", logrus.InfoLevel),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvLevel(key string, defaultValue logrus.Level) logrus.Level {
	if value := os.Getenv(key); value != "" {
		if level, err := logrus.ParseLevel(value); err == nil {
			return level
		}
	}
	return defaultValue
}
