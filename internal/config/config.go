// Package config loads configuration from files, env vars, and flags, and validates it.
package config

import (
	"fmt"

	"collections-graphql/internal/engine"
	"collections-graphql/internal/versions"
)

// EngineConfig converts the engine settings into the engine's configuration.
func (c *Config) EngineConfig() (engine.Config, error) {
	mode, err := versions.ParseMode(c.Engine.VersionMerge)
	if err != nil {
		return engine.Config{}, fmt.Errorf("engine.version_merge: %w", err)
	}
	cfg := engine.DefaultConfig()
	cfg.Filters = c.Engine.Filters
	cfg.DenyCollections = append([]string(nil), c.Engine.DenyCollections...)
	cfg.ReadOnlyCollections = append([]string(nil), c.Engine.ReadOnlyCollections...)
	cfg.LegacyIDCollections = append([]string(nil), c.Engine.LegacyIDCollections...)
	if c.Engine.SystemPrefix != "" {
		cfg.SystemPrefix = c.Engine.SystemPrefix
	}
	cfg.Limits = c.Engine.Limits
	cfg.MaxQueryDepth = c.Engine.MaxQueryDepth
	cfg.VersionMerge = mode
	cfg.Naming = c.Naming
	return cfg, nil
}
