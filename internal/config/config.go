package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the server's environment-driven settings.
type Config struct {
	// Port the HTTP/websocket server listens on.
	Port string
	// Origins allowed to open websocket connections. Empty means
	// same-origin only; "*" disables the check (dev).
	Origins []string
}

// Load reads a .env file when present and resolves the config from the
// environment. A missing .env is not an error.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: getEnvDefault("PORT", "3001"),
	}
	if raw := os.Getenv("WS_ORIGINS"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Origins = append(cfg.Origins, o)
			}
		}
	}
	return cfg
}

func getEnvDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
