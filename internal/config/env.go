package config

import (
	"log/slog"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads environment variables from .env/.env.local.
// The first file that parses wins; existing process env is never overwritten.
func loadEnvFiles() {
	for _, p := range []string{".env", ".env.local"} {
		if err := godotenv.Load(p); err == nil {
			slog.Debug("Loaded environment variables", "file", p)
			return
		}
	}
}
