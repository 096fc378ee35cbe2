package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// AllowedOrigins restricts websocket upgrades and CORS. Empty means
	// any origin (the default deployment serves the client itself).
	AllowedOrigins []string

	// DefaultRoom is the room joined when a client names none.
	DefaultRoom string

	// MaxOpPoints caps the point count of a single operation.
	MaxOpPoints int

	// SendQueueSize is the per-session outbound frame buffer; frames are
	// dropped when it overflows.
	SendQueueSize int
}

// Load reads configuration from environment variables. In development it
// loads from a .env file if present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		DefaultRoom:   getEnv("DEFAULT_ROOM", "default"),
		MaxOpPoints:   getEnvInt("MAX_OP_POINTS", 4096),
		SendQueueSize: getEnvInt("SEND_QUEUE_SIZE", 256),
	}

	// Comma-separated origin list
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, entry := range strings.Split(origins, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, entry)
			}
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
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
