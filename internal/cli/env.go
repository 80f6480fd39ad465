package cli

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds flag defaults read from the environment.
type EnvConfig struct {
	Store    string        `env:"STASH_STORE"    envDefault:"memory"`
	Path     string        `env:"STASH_PATH"`
	Name     string        `env:"STASH_NAME"`
	Schemas  string        `env:"STASH_SCHEMAS"`
	Debounce time.Duration `env:"STASH_DEBOUNCE" envDefault:"0s"`
	Keys     string        `env:"STASH_KEYS"     envDefault:"base36"`
	Minio    MinioConfig   `envPrefix:"STASH_MINIO_"`
}

// MinioConfig holds connection settings for the minio store.
type MinioConfig struct {
	Endpoint  string `env:"ENDPOINT"   envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET"     envDefault:"stash"`
	UseSSL    bool   `env:"USE_SSL"`
}

// LoadEnv parses EnvConfig from the process environment.
func LoadEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
