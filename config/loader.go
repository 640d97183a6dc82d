package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file and unmarshals it into the specified type.
// T must be a struct type that can be unmarshaled from YAML.
func LoadConfig[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// LoadProxyConfig reads a proxy configuration file, applies defaults and validates it.
func LoadProxyConfig(path string) (*Proxy, error) {
	logger := log.With().Str("com", "config-loader").Logger()

	cfg, err := LoadConfig[Proxy](path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("proxy configuration validation failed: %w", err)
	}

	logger.Info().
		Str("upstream_version", cfg.Upstream.Version).
		Int("server_count", len(cfg.Upstream.Servers)).
		Int("registry_count", len(cfg.Registries)).
		Msg("loaded proxy configuration")

	return cfg, nil
}
