// Package config loads the hearsay CLI configuration.
//
// Configuration is stored under os.UserConfigDir()/hearsay/:
//
//	~/Library/Application Support/hearsay/config.yaml   (macOS)
//	~/.config/hearsay/config.yaml                       (Linux)
//	%AppData%/hearsay/config.yaml                       (Windows)
//
// The data directory (segment and profile store) defaults to a "data"
// subdirectory next to the config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

const (
	appDir     = "hearsay"
	configFile = "config.yaml"
)

// Speaker configures the speaker identification provider.
type Speaker struct {
	// Endpoint is the provider base URL.
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates requests. Empty disables the provider; the
	// local feature-vector fallback is used for identification instead.
	APIKey string `yaml:"api_key"`
}

// Transcription configures the streaming transcription provider.
type Transcription struct {
	// APIKey authenticates requests. Empty disables live sessions.
	APIKey string `yaml:"api_key"`

	// Model overrides the default transcription model.
	Model string `yaml:"model,omitempty"`

	// Language hint for transcription, e.g. "en".
	Language string `yaml:"language,omitempty"`
}

// Config is the root CLI configuration.
type Config struct {
	// DataDir holds the profile and segment store.
	DataDir string `yaml:"data_dir"`

	// SampleRate of session audio in Hz.
	SampleRate int `yaml:"sample_rate,omitempty"`

	Speaker       Speaker       `yaml:"speaker"`
	Transcription Transcription `yaml:"transcription"`
}

// Dir returns the configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir), nil
}

// Load reads the configuration from the default location. A missing file
// yields the defaults, so the CLI works out of the box with the local
// identification fallback.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads the configuration from a specific directory.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{
		DataDir:    filepath.Join(dir, "data"),
		SampleRate: 16000,
	}
	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFile, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(dir, "data")
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	return cfg, nil
}

// Save writes the configuration to a directory.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, configFile), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
