package modstore

import (
	"fmt"

	"github.com/rzpsarthak13/modstore/internal/registry"
)

// Config is the root configuration of a Client.
type Config = registry.Config

// DefaultConfig returns a configuration for an embedded SQLite store with an
// in-memory cache and no cross-server events.
func DefaultConfig() *Config {
	return registry.DefaultConfig()
}

// LoadConfig reads a YAML or JSON file on top of the defaults, then applies
// MODSTORE_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cm := registry.NewConfigManager()
	if path != "" {
		if err := cm.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cm.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	return cm.GetConfig(), nil
}
