package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Config represents the global ~/.wclone/config.toml, with WCLONE_* environment
// variables taking precedence over file values.
type Config struct {
	DefaultProfile string `toml:"default_profile" envconfig:"PROFILE"`

	// Store selects the document store backend: "local" (embedded SQLite)
	// or "remote" (hosted store over websocket).
	Store     string `toml:"store" envconfig:"STORE"`
	ServerURL string `toml:"server_url" envconfig:"SERVER_URL"`

	// Identity provider endpoints for the OAuth device flow.
	Auth AuthConfig `toml:"auth"`
}

// AuthConfig holds identity provider settings.
type AuthConfig struct {
	ClientID  string `toml:"client_id" envconfig:"AUTH_CLIENT_ID"`
	DeviceURL string `toml:"device_url" envconfig:"AUTH_DEVICE_URL"`
	TokenURL  string `toml:"token_url" envconfig:"AUTH_TOKEN_URL"`
}

// Load reads config from the given path, then applies WCLONE_* environment
// overrides. A missing file is not an error; env-only configuration is valid.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := envconfig.Process("wclone", &cfg); err != nil {
		return nil, err
	}
	if cfg.Store == "" {
		cfg.Store = "local"
	}
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = "main"
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
