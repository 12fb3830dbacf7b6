package config

import (
	"time"

	"collections-graphql/internal/naming"
	"collections-graphql/internal/observability"
	"collections-graphql/internal/schemafilter"
	"collections-graphql/internal/translate"
)

// Config holds the application configuration.
type Config struct {
	Schema        SchemaConfig        `mapstructure:"schema"`
	Permissions   PermissionsConfig   `mapstructure:"permissions"`
	Data          DataConfig          `mapstructure:"data"`
	Engine        EngineSettings      `mapstructure:"engine"`
	Naming        naming.Config       `mapstructure:"naming"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// SchemaConfig locates the relational schema document.
type SchemaConfig struct {
	// File is a YAML relational schema. Supports "@-" to read from stdin.
	File string `mapstructure:"file"`
	// RefreshMinInterval is the first poll interval when watching File.
	RefreshMinInterval time.Duration `mapstructure:"refresh_min_interval"`
	// RefreshMaxInterval caps the back-off between unchanged polls.
	RefreshMaxInterval time.Duration `mapstructure:"refresh_max_interval"`
}

// PermissionsConfig locates the role table.
type PermissionsConfig struct {
	// File is a YAML role table. When empty only AdminRole is known and it sees everything.
	File      string `mapstructure:"file"`
	AdminRole string `mapstructure:"admin_role"`
}

// DataConfig controls the in-memory item store.
type DataConfig struct {
	// File is a YAML document of collection name to records used to seed the store.
	File string `mapstructure:"file"`
	// DefaultLimit caps list reads without a limit; -1 disables the cap.
	DefaultLimit int `mapstructure:"default_limit"`
	// SubscriptionBuffer is the per-subscriber event channel capacity.
	SubscriptionBuffer int `mapstructure:"subscription_buffer"`
}

// EngineSettings holds the schema composition and query translation settings.
type EngineSettings struct {
	Filters             schemafilter.Config `mapstructure:"filters"`
	DenyCollections     []string            `mapstructure:"deny_collections"`
	ReadOnlyCollections []string            `mapstructure:"read_only_collections"`
	LegacyIDCollections []string            `mapstructure:"legacy_id_collections"`
	SystemPrefix        string              `mapstructure:"system_prefix"`
	Limits              translate.Limits    `mapstructure:"limits"`
	MaxQueryDepth       int                 `mapstructure:"max_query_depth"`
	VersionMerge        string              `mapstructure:"version_merge"`
	DefaultOutputFormat string              `mapstructure:"default_output_format"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // Enable OTLP log export
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	ServiceVersion   string        `mapstructure:"service_version"`
	Environment      string        `mapstructure:"environment"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	TracingEnabled   bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	Logging          LoggingConfig `mapstructure:"logging"`

	// Global OTLP settings (defaults for all signals)
	OTLP observability.OTLPConfig `mapstructure:"otlp"`

	// Signal-specific overrides (optional)
	Traces *observability.OTLPConfig `mapstructure:"traces,omitempty"`
	Logs   *observability.OTLPConfig `mapstructure:"logs,omitempty"`
}

// GetTracesConfig returns the effective OTLP config for traces
func (c *ObservabilityConfig) GetTracesConfig() observability.OTLPConfig {
	if c.Traces != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Traces)
	}
	return c.OTLP
}

// GetLogsConfig returns the effective OTLP config for logs
func (c *ObservabilityConfig) GetLogsConfig() observability.OTLPConfig {
	if c.Logs != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Logs)
	}
	return c.OTLP
}

// Telemetry returns the observability settings for one signal's OTLP config.
func (c *ObservabilityConfig) Telemetry(otlp observability.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.ServiceVersion,
		Environment:      c.Environment,
		TraceSampleRatio: c.TraceSampleRatio,
		OTLP:             otlp,
	}
}

// mergeOTLPConfigs merges signal-specific config over global defaults
func mergeOTLPConfigs(base, override observability.OTLPConfig) observability.OTLPConfig {
	result := base

	if override.Endpoint != "" {
		result.Endpoint = override.Endpoint
	}
	if override.Protocol != "" {
		result.Protocol = override.Protocol
	}
	// Booleans cannot distinguish an explicit false; an override section owns them.
	result.Insecure = override.Insecure
	result.Retry = override.Retry

	if override.TLSCertFile != "" {
		result.TLSCertFile = override.TLSCertFile
	}
	if override.TLSClientCertFile != "" {
		result.TLSClientCertFile = override.TLSClientCertFile
	}
	if override.TLSClientKeyFile != "" {
		result.TLSClientKeyFile = override.TLSClientKeyFile
	}

	// Signal-specific headers override global ones
	if override.Headers != nil {
		result.Headers = make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			result.Headers[k] = v
		}
		for k, v := range override.Headers {
			result.Headers[k] = v
		}
	}

	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	if override.Compression != "" {
		result.Compression = override.Compression
	}
	return result
}
