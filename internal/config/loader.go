package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// ConfigPath returns the default configuration file path: ~/.synapse/config.json.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".synapse/config.json"
	}
	return filepath.Join(home, ".synapse", "config.json")
}

// Load reads the config file at path, falling back to DefaultConfig when the
// file is missing or malformed, then applies SYNAPSE_* environment
// overrides. If path is empty, ConfigPath() is used.
func Load(path string) (Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			slog.Warn("config: parse failed, using defaults", "path", path, "err", err)
			cfg = DefaultConfig()
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "SYNAPSE_"}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON.
// If path is empty, ConfigPath() is used.
func Save(cfg Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queueCapacity must be positive, got %d", c.QueueCapacity)
	}
	if c.ProgressBuffer <= 0 {
		return fmt.Errorf("progressBuffer must be positive, got %d", c.ProgressBuffer)
	}
	if c.RouteTimeoutMs <= 0 || c.InvokeTimeoutMs <= 0 || c.SamplingTimeoutMs <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if len(c.AllowedRoots) == 0 {
		return fmt.Errorf("at least one allowed root is required")
	}
	return nil
}
