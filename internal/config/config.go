// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	// Addr is the listen address of the HTTP server.
	Addr string `env:"SPY_ADDR,default=:8080"`

	// WordsFile is the CSV file backing the word pool. The server refuses
	// to start without it.
	WordsFile string `env:"SPY_WORDS_FILE,default=words.csv"`

	// PublicURL is the externally reachable base URL embedded in QR invites.
	PublicURL string `env:"SPY_PUBLIC_URL,default=http://localhost:8080"`

	// StaticDir serves a client build from / when set.
	StaticDir string `env:"SPY_STATIC_DIR"`

	// ShutdownTimeout bounds the graceful drain on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `env:"SPY_SHUTDOWN_TIMEOUT,default=10s"`
}

// Load reads .env when present, then decodes the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}
