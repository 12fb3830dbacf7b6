package config

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"collections-graphql/internal/engine"
	"collections-graphql/internal/naming"
	"collections-graphql/internal/observability"
	"collections-graphql/internal/schemafilter"
	"collections-graphql/internal/versions"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Schema.validate(result)
	c.Permissions.validate(result)
	c.Data.validate(result)
	c.Engine.validate(result)
	validateNamingConfig(result, c.Naming)
	c.Observability.validate(result)

	return result
}

func (s *SchemaConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(s.File) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "schema.file",
			Message: "a relational schema file is required",
			Hint:    "set --schema.file or CGQL_SCHEMA_FILE",
		})
	}
	if s.RefreshMinInterval < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "schema.refresh_min_interval",
			Message: "refresh interval cannot be negative",
		})
	}
	if s.RefreshMaxInterval < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "schema.refresh_max_interval",
			Message: "refresh interval cannot be negative",
		})
	}
	if s.RefreshMaxInterval > 0 && s.RefreshMaxInterval < s.RefreshMinInterval {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "schema.refresh_max_interval",
			Message: "maximum refresh interval is below the minimum and will be raised to it",
		})
	}
}

func (p *PermissionsConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(p.File) == "" && strings.TrimSpace(p.AdminRole) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "permissions.admin_role",
			Message: "an admin role is required when no permissions file is set",
		})
	}
}

func (d *DataConfig) validate(result *ValidationResult) {
	if d.DefaultLimit == 0 || d.DefaultLimit < -1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "data.default_limit",
			Message: fmt.Sprintf("invalid default limit %d", d.DefaultLimit),
			Hint:    "use a positive limit or -1 for unlimited",
		})
	}
	if d.SubscriptionBuffer < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "data.subscription_buffer",
			Message: "subscription buffer cannot be negative",
		})
	}
}

func (e *EngineSettings) validate(result *ValidationResult) {
	validateSchemaFilters(result, e.Filters)

	if strings.TrimSpace(e.SystemPrefix) == "" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "engine.system_prefix",
			Message: "no system prefix; the system scope will be empty",
			Hint:    "the usual prefix is " + engine.DefaultSystemPrefix,
		})
	}

	limits := map[string]int{
		"engine.limits.max_field_depth":  e.Limits.MaxFieldDepth,
		"engine.limits.max_filter_depth": e.Limits.MaxFilterDepth,
		"engine.limits.max_deep_depth":   e.Limits.MaxDeepDepth,
		"engine.limits.max_sort_depth":   e.Limits.MaxSortDepth,
		"engine.max_query_depth":         e.MaxQueryDepth,
	}
	for field, value := range limits {
		if value < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: "depth limit cannot be negative",
				Hint:    "use 0 to disable the check",
			})
		}
	}

	if _, err := versions.ParseMode(e.VersionMerge); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "engine.version_merge",
			Message: err.Error(),
			Hint:    "valid values are: recursive, raw",
		})
	}

	switch e.DefaultOutputFormat {
	case engine.FormatGraphQL, engine.FormatSDL:
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "engine.default_output_format",
			Message: fmt.Sprintf("invalid output format %q", e.DefaultOutputFormat),
			Hint:    "valid values are: graphql, sdl",
		})
	}

	denied := make(map[string]bool, len(e.DenyCollections))
	for _, name := range e.DenyCollections {
		denied[name] = true
	}
	for _, name := range e.ReadOnlyCollections {
		if denied[name] {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "engine.read_only_collections",
				Message: fmt.Sprintf("collection %q is also denied and never gets types", name),
			})
		}
	}
}

func validateSchemaFilters(result *ValidationResult, filters schemafilter.Config) {
	validateGlobList(result, "engine.filters.allow_collections", filters.AllowCollections)
	validateGlobList(result, "engine.filters.deny_collections", filters.DenyCollections)
	validatePatternMap(result, "engine.filters.deny_fields", filters.DenyFields)
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	validateOverrides(result, "naming.plural_overrides", cfg.PluralOverrides)
	validateOverrides(result, "naming.singular_overrides", cfg.SingularOverrides)
}

func validateOverrides(result *ValidationResult, field string, overrides map[string]string) {
	for word, override := range overrides {
		if strings.TrimSpace(word) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: "word cannot be empty",
			})
			continue
		}
		if strings.TrimSpace(override) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("override for %q cannot be empty", word),
			})
		}
	}
}

func validatePatternMap(result *ValidationResult, field string, patternMap map[string][]string) {
	for collectionPattern, fieldPatterns := range patternMap {
		if strings.TrimSpace(collectionPattern) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: "collection pattern cannot be empty",
			})
			continue
		}
		if _, err := path.Match(strings.ToLower(collectionPattern), "probe"); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid collection glob pattern %q: %v", collectionPattern, err),
			})
		}
		for _, fieldPattern := range fieldPatterns {
			if strings.TrimSpace(fieldPattern) == "" {
				result.Errors = append(result.Errors, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("field pattern for collection pattern %q cannot be empty", collectionPattern),
				})
				continue
			}
			if _, err := path.Match(strings.ToLower(fieldPattern), "probe"); err != nil {
				result.Errors = append(result.Errors, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("invalid field glob pattern %q for collection pattern %q: %v", fieldPattern, collectionPattern, err),
				})
			}
		}
	}
}

func validateGlobList(result *ValidationResult, field string, patterns []string) {
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: "glob pattern cannot be empty",
			})
			continue
		}
		if _, err := path.Match(strings.ToLower(pattern), "probe"); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid glob pattern %q: %v", pattern, err),
			})
		}
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid log level %q", o.Logging.Level),
			Hint:    "valid values are: debug, info, warn, error",
		})
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid log format %q", o.Logging.Format),
			Hint:    "valid values are: json, text",
		})
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.trace_sample_ratio",
			Message: fmt.Sprintf("trace sample ratio %v is outside [0, 1]", o.TraceSampleRatio),
		})
	}

	validateOTLP("observability.otlp", o.OTLP, result)
	if o.Traces != nil {
		validateOTLP("observability.traces", *o.Traces, result)
	}
	if o.Logs != nil {
		validateOTLP("observability.logs", *o.Logs, result)
	}

	if o.Logging.ExportsEnabled && !o.GetLogsConfig().Enabled() {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.exports_enabled",
			Message: "log export requires an OTLP endpoint",
			Hint:    "set observability.otlp.endpoint or observability.logs.endpoint",
		})
	}
	if o.TracingEnabled && !o.GetTracesConfig().Enabled() {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "observability.tracing_enabled",
			Message: "tracing is enabled without an OTLP endpoint; spans are sampled but not exported",
		})
	}
}

func validateOTLP(prefix string, o observability.OTLPConfig, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".protocol",
			Message: fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			Hint:    "valid values are: grpc, http/protobuf",
		})
	}

	if o.Protocol == "http/protobuf" && o.Endpoint != "" && !validOTLPEndpoint(o.Endpoint) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".endpoint",
			Message: fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			Hint:    "use host:port or a full URL",
		})
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".compression",
			Message: fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			Hint:    "valid values are: none, gzip",
		})
	}

	if o.Timeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".timeout",
			Message: "timeout cannot be negative",
		})
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
