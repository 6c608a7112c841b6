// Package config loads lorekit settings from YAML with environment
// overrides. A missing config file is not an error; defaults apply.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"lorekit/internal/logging"
)

// Config holds all lorekit configuration.
type Config struct {
	// Compose defaults, overridable per command invocation.
	Compose ComposeConfig `yaml:"compose"`

	// Estimator selects the token estimator calibration.
	Estimator EstimatorConfig `yaml:"estimator"`

	// Store configures the card database.
	Store StoreConfig `yaml:"store"`

	// Logging configures categorized logging.
	Logging logging.Config `yaml:"logging"`
}

// ComposeConfig carries composition defaults.
type ComposeConfig struct {
	Variant        string   `yaml:"variant"`
	MaxTokens      int      `yaml:"max_tokens"`
	DropPolicy     string   `yaml:"drop_policy"`
	PreserveFields []string `yaml:"preserve_fields"`
	ScanDepth      int      `yaml:"scan_depth"`
}

// EstimatorConfig selects the estimator model family.
type EstimatorConfig struct {
	Model string `yaml:"model"`
}

// StoreConfig locates the SQLite card store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Compose: ComposeConfig{
			Variant:    "v2",
			DropPolicy: "truncate-end",
		},
		Estimator: EstimatorConfig{Model: "default"},
		Store: StoreConfig{
			Path: filepath.Join(home, ".lorekit", "cards.db"),
		},
		Logging: logging.Config{Level: "info"},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "lorekit.yaml"
	}
	return filepath.Join(home, ".lorekit", "config.yaml")
}

// Load reads config from path, falling back to defaults when the file does
// not exist, then applies LOREKIT_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides maps LOREKIT_* variables onto scalar settings.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOREKIT_VARIANT"); v != "" {
		c.Compose.Variant = v
	}
	if v := os.Getenv("LOREKIT_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Compose.MaxTokens = n
		}
	}
	if v := os.Getenv("LOREKIT_DROP_POLICY"); v != "" {
		c.Compose.DropPolicy = v
	}
	if v := os.Getenv("LOREKIT_ESTIMATOR_MODEL"); v != "" {
		c.Estimator.Model = v
	}
	if v := os.Getenv("LOREKIT_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("LOREKIT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}
