package aidesk

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds process configuration, loaded from the environment.
type Config struct {
	Port int `env:"PORT" envDefault:"8080"`

	// Session store
	StoreType       string `env:"STORE_TYPE" envDefault:"sqlite"`
	StoreConnection string `env:"STORE_CONNECTION" envDefault:"chat_history.sqlite"`

	// License record store
	RecordStoreType       string `env:"RECORD_STORE_TYPE" envDefault:"sqlite"`
	RecordStoreConnection string `env:"RECORD_STORE_CONNECTION" envDefault:"licenses.sqlite"`

	// Encrypted credential storage; empty means ~/.aidesk
	CredentialDir string `env:"CREDENTIAL_DIR"`

	DefaultModel         string        `env:"DEFAULT_MODEL" envDefault:"gemini-2.0-flash"`
	ModelRefreshInterval time.Duration `env:"MODEL_REFRESH_INTERVAL" envDefault:"6h"`
}

// LoadConfig reads .env (when present) and parses the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.CredentialDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.CredentialDir = filepath.Join(home, ".aidesk")
	}

	return cfg, nil
}
