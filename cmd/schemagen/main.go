// Command schemagen composes GraphQL schemas from a relational schema document
// and runs documents against an in-memory item store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"collections-graphql/internal/app"
	"collections-graphql/internal/config"
	"collections-graphql/internal/engine"
	"collections-graphql/internal/relschema"
	"collections-graphql/internal/typegraph"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

const usage = `usage: schemagen <command> [flags]

commands:
  sdl      print the schema composed for a role
  exec     run a query or mutation document
  watch    print the schema again whenever the schema file changes
  version  print the version
`

// introspectionSummary lists the root types and every named type of a schema.
const introspectionSummary = `{
  __schema {
    queryType { name }
    mutationType { name }
    subscriptionType { name }
    types { kind name fields { name } inputFields { name } enumValues { name } }
  }
}`

// errQueryFailed reports that a document ran but produced errors.
var errQueryFailed = errors.New("document returned errors")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errQueryFailed) {
			slog.Error("schemagen error", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}

// command holds the flags shared by every subcommand.
type command struct {
	name      string
	flags     *pflag.FlagSet
	role      *string
	user      *string
	scope     *string
	format    *string
	query     *string
	queryFile *string
	variables *string
	operation *string
	metrics   *string
}

func newCommand(name string, stderr io.Writer) *command {
	flags := pflag.NewFlagSet("schemagen "+name, pflag.ContinueOnError)
	flags.SetOutput(stderr)
	config.DefineFlags(flags)
	c := &command{
		name:  name,
		flags: flags,
		role:  flags.String("role", "", "Role the schema is composed for (empty for public)"),
		user:  flags.String("user", "", "User the schema is composed for"),
		scope: flags.String("scope", string(typegraph.ScopeItems), "Schema scope (items, system)"),
		metrics: flags.String("metrics-file", "",
			"Write collected metrics in the Prometheus text format to this file on exit (requires observability.metrics_enabled)"),
	}
	for _, flag := range []string{"role", "user", "scope", "metrics-file"} {
		config.MarkNonConfig(flags, flag)
	}
	switch name {
	case "sdl", "watch":
		c.format = flags.String("format", "", "Output format (sdl, graphql); defaults to engine.default_output_format")
		config.MarkNonConfig(flags, "format")
	case "exec":
		c.query = flags.StringP("query", "q", "", "GraphQL document")
		c.queryFile = flags.String("query-file", "", "File holding the GraphQL document (use - for stdin)")
		c.variables = flags.String("variables", "", "JSON object of variable values")
		c.operation = flags.String("operation", "", "Operation to run when the document has several")
		for _, flag := range []string{"query", "query-file", "variables", "operation"} {
			config.MarkNonConfig(flags, flag)
		}
	}
	return c
}

func (c *command) request(query string, variables map[string]interface{}) engine.Request {
	req := engine.Request{
		Query:          query,
		Variables:      variables,
		Scope:          typegraph.Scope(*c.scope),
		Accountability: engine.Accountability{Role: *c.role, User: *c.user},
	}
	if c.operation != nil {
		req.OperationName = *c.operation
	}
	return req
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("missing command")
	}
	name := args[0]
	switch name {
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "schemagen %s (%s)\n", Version, Commit)
		return nil
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return nil
	case "sdl", "exec", "watch":
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", name)
	}

	c := newCommand(name, stderr)
	if err := c.flags.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(c.flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Observability.ServiceVersion == "" || cfg.Observability.ServiceVersion == "dev" {
		cfg.Observability.ServiceVersion = Version
	}
	if err := validate(cfg); err != nil {
		return err
	}

	logger, loggerProvider, err := app.InitLogger(ctx, cfg, stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	a.AttachLoggerProvider(loggerProvider)
	if err := a.Init(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}
	defer func() {
		if err := a.Shutdown(context.Background()); err != nil {
			logger.Warn("shutdown incomplete", slog.String("error", err.Error()))
		}
	}()

	switch name {
	case "sdl":
		err = c.printSchema(ctx, a.Engine(), cfg, stdout)
	case "exec":
		err = c.exec(ctx, a.Engine(), stdin, stdout)
	default:
		err = c.watch(ctx, a, cfg, stdout, stderr)
	}
	if *c.metrics != "" {
		if metricsErr := a.WriteMetrics(*c.metrics); metricsErr != nil {
			return errors.Join(err, metricsErr)
		}
	}
	return err
}

func validate(cfg *config.Config) error {
	result := cfg.Validate()
	for _, warn := range result.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if result.HasErrors() {
		for _, err := range result.Errors {
			slog.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed: %s", result.Error())
	}
	return nil
}

func (c *command) outputFormat(cfg *config.Config) string {
	if c.format != nil && *c.format != "" {
		return *c.format
	}
	return cfg.Engine.DefaultOutputFormat
}

// printSchema writes the SDL document, or for the graphql format a JSON summary
// of the executable schema's types.
func (c *command) printSchema(ctx context.Context, eng *engine.Engine, cfg *config.Config, stdout io.Writer) error {
	format := c.outputFormat(cfg)
	if format == engine.FormatGraphQL {
		resp := eng.Execute(ctx, c.request(introspectionSummary, nil))
		return writeResponse(stdout, resp)
	}
	entry, err := eng.BuildSchema(ctx, typegraph.Scope(*c.scope), format, engine.Accountability{Role: *c.role, User: *c.user})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, entry.SDL)
	return err
}

func (c *command) exec(ctx context.Context, eng *engine.Engine, stdin io.Reader, stdout io.Writer) error {
	query := *c.query
	if *c.queryFile != "" {
		data, err := readQueryFile(*c.queryFile, stdin)
		if err != nil {
			return err
		}
		query = string(data)
	}
	if query == "" {
		return fmt.Errorf("exec requires --query or --query-file")
	}

	var variables map[string]interface{}
	if *c.variables != "" {
		if err := json.Unmarshal([]byte(*c.variables), &variables); err != nil {
			return fmt.Errorf("failed to parse --variables: %w", err)
		}
	}

	return writeResponse(stdout, eng.Execute(ctx, c.request(query, variables)))
}

func (c *command) watch(ctx context.Context, a *app.App, cfg *config.Config, stdout, stderr io.Writer) error {
	eng := a.Engine()
	if err := c.printSchema(ctx, eng, cfg, stdout); err != nil {
		return err
	}
	onChange := func(*relschema.Schema) {
		if err := c.printSchema(ctx, eng, cfg, stdout); err != nil {
			fmt.Fprintf(stderr, "failed to print schema: %v\n", err)
		}
	}
	if err := a.Watch(ctx, onChange); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	if _, err := a.WaitForStop(ctx, stop); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func readQueryFile(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}
	return data, nil
}

func writeResponse(stdout io.Writer, resp *engine.Response) error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(resp); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if resp.HasErrors() {
		return errQueryFailed
	}
	return nil
}
