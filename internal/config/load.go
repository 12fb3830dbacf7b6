package config

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"collections-graphql/internal/dataaccess"
	"collections-graphql/internal/engine"
	"collections-graphql/internal/events"
	"collections-graphql/internal/translate"
	"collections-graphql/internal/versions"
)

// EnvPrefix prefixes every environment variable, e.g. CGQL_SCHEMA_FILE.
const EnvPrefix = "CGQL"

// StdinSource names stdin in place of a file path.
const StdinSource = "@-"

// Load loads configuration from multiple sources with the following precedence:
// 1. Command line flags that were explicitly set
// 2. Environment variables
// 3. Config file
// 4. Default values
//
// flags must have been defined with DefineFlags and parsed.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Defaults (lowest priority)
	setDefaults(v)

	// --- Config file ---
	cfgPath := ""
	if flags != nil {
		cfgPath, _ = flags.GetString("config")
	}
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("collections-graphql")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/collections-graphql/")
		v.AddConfigPath("$HOME/.collections-graphql")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// --- Environment variables ---
	// Canonical keys: dot + snake_case
	// Env vars: CGQL_ENGINE_LIMITS_MAX_FIELD_DEPTH
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Flags binding (highest normal priority) ---
	if flags != nil {
		bindChangedFlagsToViper(v, flags)
	}
	if err := validateSingleStdinFileSource(v); err != nil {
		return nil, err
	}

	// --- Unmarshal (strict) ---
	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlagsToViper(v *viper.Viper, flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		if _, ok := f.Annotations[nonConfigAnnotation]; ok || f.Name == "config" {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := flags.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := flags.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := flags.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := flags.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := flags.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := flags.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// nonConfigAnnotation marks command flags that share a flag set with config keys.
const nonConfigAnnotation = "collections-graphql/non-config"

// MarkNonConfig excludes a command flag from config binding.
func MarkNonConfig(flags *pflag.FlagSet, name string) {
	_ = flags.SetAnnotation(name, nonConfigAnnotation, []string{"true"})
}

// DefineFlags defines the configuration flags on flags using canonical snake_case keys.
func DefineFlags(flags *pflag.FlagSet) {
	// Source documents
	flags.String("schema.file", "", "Relational schema YAML file (use @- for stdin)")
	flags.Duration("schema.refresh_min_interval", 0, "Initial poll interval when watching the schema file")
	flags.Duration("schema.refresh_max_interval", 0, "Maximum poll interval when watching the schema file")
	flags.String("permissions.file", "", "Role permissions YAML file (use @- for stdin)")
	flags.String("permissions.admin_role", "", "Role that sees every collection when no permissions file is set")
	flags.String("data.file", "", "YAML records used to seed the in-memory store (use @- for stdin)")
	flags.Int("data.default_limit", 0, "Default list limit (-1 for unlimited)")
	flags.Int("data.subscription_buffer", 0, "Per-subscriber event buffer")

	// Engine flags
	flags.StringSlice("engine.deny_collections", nil, "Structural collections that never get types")
	flags.StringSlice("engine.read_only_collections", nil, "Collections without mutations")
	flags.StringSlice("engine.legacy_id_collections", nil, "Collections whose primary key is a nullable ID")
	flags.String("engine.system_prefix", "", "Name prefix of system collections")
	flags.StringSlice("engine.filters.allow_collections", nil, "Collection glob patterns to include")
	flags.StringSlice("engine.filters.deny_collections", nil, "Collection glob patterns to exclude")
	flags.Int("engine.limits.max_field_depth", 0, "Maximum relational depth of selected fields")
	flags.Int("engine.limits.max_filter_depth", 0, "Maximum relational depth of filters")
	flags.Int("engine.limits.max_deep_depth", 0, "Maximum relational depth of deep arguments")
	flags.Int("engine.limits.max_sort_depth", 0, "Maximum relational depth of sort fields")
	flags.Int("engine.max_query_depth", 0, "Maximum selection depth of a document (0 for unlimited)")
	flags.String("engine.version_merge", "", "Version merge mode (recursive, raw)")
	flags.String("engine.default_output_format", "", "Schema output format (graphql, sdl)")

	// Observability flags
	flags.String("observability.service_name", "", "Service name for telemetry")
	flags.String("observability.service_version", "", "Service version for telemetry")
	flags.String("observability.environment", "", "Deployment environment for telemetry")
	flags.Bool("observability.metrics_enabled", false, "Enable metrics collection")
	flags.Bool("observability.tracing_enabled", false, "Enable OpenTelemetry tracing")
	flags.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio between 0 and 1")
	flags.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
	flags.String("observability.logging.format", "", "Log format (json, text)")
	flags.Bool("observability.logging.exports_enabled", false, "Enable OTLP log export")

	// Global OTLP flags
	flags.String("observability.otlp.endpoint", "", "OTLP endpoint (e.g., localhost:4317)")
	flags.String("observability.otlp.protocol", "", "OTLP protocol (grpc, http/protobuf)")
	flags.Bool("observability.otlp.insecure", false, "Use insecure connection for OTLP")
	flags.Duration("observability.otlp.timeout", 0, "Timeout for OTLP exports")
	flags.String("observability.otlp.compression", "", "OTLP compression (none, gzip)")

	// Config file flag
	flags.StringP("config", "c", "", "Config file path")
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	defaults := engine.DefaultConfig()
	limits := translate.DefaultLimits()

	// Source documents
	v.SetDefault("schema.file", "")
	v.SetDefault("schema.refresh_min_interval", 2*time.Second)
	v.SetDefault("schema.refresh_max_interval", 30*time.Second)
	v.SetDefault("permissions.file", "")
	v.SetDefault("permissions.admin_role", "admin")
	v.SetDefault("data.file", "")
	v.SetDefault("data.default_limit", dataaccess.DefaultLimit)
	v.SetDefault("data.subscription_buffer", events.DefaultBuffer)

	// Engine defaults
	v.SetDefault("engine.deny_collections", defaults.DenyCollections)
	v.SetDefault("engine.read_only_collections", defaults.ReadOnlyCollections)
	v.SetDefault("engine.legacy_id_collections", []string{})
	v.SetDefault("engine.system_prefix", defaults.SystemPrefix)
	v.SetDefault("engine.filters.allow_collections", []string{})
	v.SetDefault("engine.filters.deny_collections", []string{})
	v.SetDefault("engine.filters.deny_fields", map[string][]string{})
	v.SetDefault("engine.limits.max_field_depth", limits.MaxFieldDepth)
	v.SetDefault("engine.limits.max_filter_depth", limits.MaxFilterDepth)
	v.SetDefault("engine.limits.max_deep_depth", limits.MaxDeepDepth)
	v.SetDefault("engine.limits.max_sort_depth", limits.MaxSortDepth)
	v.SetDefault("engine.max_query_depth", 0)
	v.SetDefault("engine.version_merge", string(versions.ModeRecursive))
	v.SetDefault("engine.default_output_format", engine.FormatSDL)

	// Naming defaults
	v.SetDefault("naming.plural_overrides", map[string]string{})
	v.SetDefault("naming.singular_overrides", map[string]string{})

	// Observability defaults
	v.SetDefault("observability.service_name", "collections-graphql")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", false)
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "text")
	v.SetDefault("observability.logging.exports_enabled", false)

	// OTLP defaults
	v.SetDefault("observability.otlp.endpoint", "")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
	v.SetDefault("observability.otlp.retry", true)
}

// OpenSource opens a configured document path, treating "@-" as stdin.
func OpenSource(path string) (io.ReadCloser, error) {
	if strings.TrimSpace(path) == StdinSource {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func validateSingleStdinFileSource(v *viper.Viper) error {
	stdinBackedKeys := []string{
		"schema.file",
		"permissions.file",
		"data.file",
	}

	var configured []string
	for _, key := range stdinBackedKeys {
		if strings.TrimSpace(v.GetString(key)) == StdinSource {
			configured = append(configured, key)
		}
	}

	if len(configured) > 1 {
		return fmt.Errorf(
			"multiple stdin-backed file settings use @- (%s); only one @- source is allowed",
			strings.Join(configured, ", "),
		)
	}

	return nil
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
