package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"collections-graphql/internal/config"
	"collections-graphql/internal/dataaccess"
	"collections-graphql/internal/logging"
	"collections-graphql/internal/observability"
	"collections-graphql/internal/permissions"
	"collections-graphql/internal/relschema"
)

// InitLogger builds the process logger writing to out and, when log export is
// enabled, an OpenTelemetry logger provider that receives a copy of every record.
func InitLogger(ctx context.Context, cfg *config.Config, out io.Writer) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: out,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(ctx, cfg.Observability.Telemetry(logsConfig))
	if err != nil {
		return nil, nil, err
	}

	logger.Info("OpenTelemetry logging initialized successfully")

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	return logger, loggerProvider, nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.EngineMetrics, *observability.SchemaCacheMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil, nil
	}

	logger.Info("initializing OpenTelemetry metrics",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
	)

	meterProvider, err := observability.InitMeterProvider(cfg.Observability.Telemetry(observability.OTLPConfig{}))
	if err != nil {
		return nil, nil, nil, err
	}

	engineMetrics, cacheMetrics, err := observability.InitMetrics(logger.Logger)
	if err != nil {
		_ = meterProvider.Shutdown(context.Background(), logger.Logger)
		return nil, nil, nil, err
	}

	return meterProvider, engineMetrics, cacheMetrics, nil
}

func initTracing(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.GetTracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Bool("insecure", tracesConfig.Insecure),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)

	tracerProvider, err := observability.InitTracerProvider(ctx, cfg.Observability.Telemetry(tracesConfig))
	if err != nil {
		return nil, err
	}

	logger.Info("OpenTelemetry tracing initialized successfully")

	return tracerProvider, nil
}

func loadSchema(path string) (*relschema.Schema, error) {
	r, err := config.OpenSource(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file: %w", err)
	}
	defer r.Close()
	schema, err := relschema.Load(r)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema file %q: %w", path, err)
	}
	return schema, nil
}

func loadPermissions(cfg config.PermissionsConfig) (permissions.Resolver, error) {
	if cfg.File == "" {
		return permissions.AdminOnly(cfg.AdminRole), nil
	}
	r, err := config.OpenSource(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open permissions file: %w", err)
	}
	defer r.Close()
	static, err := permissions.Load(r)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions file %q: %w", cfg.File, err)
	}
	if cfg.AdminRole != "" {
		if _, ok := static.Roles[cfg.AdminRole]; !ok {
			static.Roles[cfg.AdminRole] = &permissions.RolePolicy{Admin: true}
		}
	}
	return static, nil
}

// seedDocument is the data file layout: records per collection plus draft saves.
type seedDocument struct {
	Items    map[string][]dataaccess.Item `yaml:"items"`
	Versions []seedVersion                `yaml:"versions"`
}

type seedVersion struct {
	Version    string          `yaml:"version"`
	Collection string          `yaml:"collection"`
	Key        interface{}     `yaml:"key"`
	Delta      dataaccess.Item `yaml:"delta"`
}

func seedStore(store *dataaccess.Memory, path string, logger *logging.Logger) error {
	if path == "" {
		return nil
	}
	r, err := config.OpenSource(path)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}
	defer r.Close()
	return seed(store, r, logger)
}

func seed(store *dataaccess.Memory, r io.Reader, logger *logging.Logger) error {
	var doc seedDocument
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode data file: %w", err)
	}
	for collection, records := range doc.Items {
		if err := store.Seed(collection, records...); err != nil {
			return fmt.Errorf("failed to seed %q: %w", collection, err)
		}
		logger.Debug("seeded collection", slog.String("collection", collection), slog.Int("records", len(records)))
	}
	for _, v := range doc.Versions {
		if v.Version == "" || v.Collection == "" {
			return fmt.Errorf("version saves need a version and a collection")
		}
		store.SaveVersion(v.Version, v.Collection, v.Key, v.Delta)
	}
	return nil
}
