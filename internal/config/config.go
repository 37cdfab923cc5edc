package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	GinMode     string
	CORSOrigins []string
	// Outbox worker
	OutboxQueue       string
	OutboxMaxAttempts int
	OutboxPollTimeout time.Duration
	OutboxDoneTTL     time.Duration
}

// Load reads configs/.env when present and then the process environment.
func Load() Config {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	return Config{
		Port:              getenv("PORT", "8080"),
		DatabaseURL:       databaseURL(),
		RedisURL:          getenv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		GinMode:           getenv("GIN_MODE", "debug"),
		CORSOrigins:       splitList(getenv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
		OutboxQueue:       getenv("OUTBOX_QUEUE", "collector:outbox"),
		OutboxMaxAttempts: getenvInt("OUTBOX_MAX_ATTEMPTS", 5),
		OutboxPollTimeout: getenvDuration("OUTBOX_POLL_TIMEOUT", 2*time.Second),
		OutboxDoneTTL:     getenvDuration("OUTBOX_DONE_TTL", 7*24*time.Hour),
	}
}

// JWTKey returns the signing secret, falling back to a development key outside release mode.
func (c Config) JWTKey() []byte {
	if c.JWTSecret == "" {
		if c.GinMode == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		return []byte("default_super_secret_key") // Development fallback only
	}
	return []byte(c.JWTSecret)
}

func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return "postgres://" + getenv("DB_USER", "postgres") + ":" + getenv("DB_PASSWORD", "postgres") +
		"@" + getenv("DB_HOST", "localhost") + ":" + getenv("DB_PORT", "5432") +
		"/" + getenv("DB_NAME", "postgres") + "?sslmode=" + getenv("DB_SSLMODE", "disable")
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
