package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"collections-graphql/internal/apierror"
	"collections-graphql/internal/gqlrequest"
	"collections-graphql/internal/logging"
	"collections-graphql/internal/observability"
	"collections-graphql/internal/typegraph"
)

// Request is one GraphQL document run on behalf of a caller.
type Request struct {
	Query          string
	OperationName  string
	Variables      map[string]interface{}
	Scope          typegraph.Scope
	Accountability Accountability
}

func (r Request) scope() typegraph.Scope {
	if r.Scope == "" {
		return typegraph.ScopeItems
	}
	return r.Scope
}

// Response is the result envelope. Every error carries extensions.code.
type Response struct {
	Data   interface{}                `json:"data"`
	Errors []gqlerrors.FormattedError `json:"errors,omitempty"`
}

// HasErrors reports whether any error was produced.
func (r *Response) HasErrors() bool {
	return r != nil && len(r.Errors) > 0
}

// Execute runs a query or mutation. Subscriptions are rejected; use Subscribe.
func (e *Engine) Execute(ctx context.Context, req Request) *Response {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	e.metrics.IncrementActiveRequests(ctx)
	defer e.metrics.DecrementActiveRequests(ctx)

	ctx, span := startSpan(ctx, "graphql.execute")
	defer span.End()

	analysis := gqlrequest.Analyze(gqlrequest.NewEnvelope(req.Query, req.OperationName, req.Variables))
	resp := e.execute(ctx, span, req, analysis)
	e.record(ctx, start, req, analysis, resp)
	return resp
}

func (e *Engine) execute(ctx context.Context, span trace.Span, req Request, analysis *gqlrequest.Analysis) *Response {
	if analysis.IsSubscription() {
		return errorResponse(apierror.InvalidQuery("subscription operations must be started with Subscribe"))
	}
	ctx, schema, err := e.prepare(ctx, span, req, analysis)
	if err != nil {
		return errorResponse(err)
	}

	validation := graphql.ValidateDocument(schema, analysis.Document, nil)
	if !validation.IsValid {
		return &Response{Errors: shapeErrors(validation.Errors)}
	}
	result := graphql.Execute(graphql.ExecuteParams{
		Schema:        *schema,
		AST:           analysis.Document,
		OperationName: analysis.Envelope.OperationName,
		Args:          req.Variables,
		Context:       ctx,
	})
	resp := &Response{Data: result.Data, Errors: shapeErrors(result.Errors)}

	logger := logging.FromContext(ctx)
	for _, formatted := range resp.Errors {
		if formatted.Extensions["code"] == string(apierror.CodeExecution) {
			logger.Warn("graphql execution error",
				slog.String("error", formatted.Message),
				slog.Any("path", formatted.Path),
			)
		}
	}
	return resp
}

// prepare checks the analyzed document, resolves the caller's schema and
// decorates ctx with request metadata and a request logger.
func (e *Engine) prepare(ctx context.Context, span trace.Span, req Request, analysis *gqlrequest.Analysis) (context.Context, *graphql.Schema, error) {
	if err := analysis.Err(); err != nil {
		return ctx, nil, err
	}
	if limit := e.cfg.MaxQueryDepth; limit > 0 && analysis.SelectionDepth > limit {
		return ctx, nil, apierror.InvalidQuery("query depth %d exceeds the maximum of %d", analysis.SelectionDepth, limit)
	}

	entry, err := e.BuildSchema(ctx, req.scope(), FormatGraphQL, req.Accountability)
	if err != nil {
		return ctx, nil, apierror.Wrap(apierror.CodeExecution, err, "failed to build schema")
	}

	meta := gqlrequest.ExecMeta{
		Role:          req.Accountability.role(),
		User:          req.Accountability.User,
		Scope:         string(req.scope()),
		Fingerprint:   entry.Fingerprint,
		OperationName: analysis.OperationName,
		OperationType: analysis.OperationType,
		OperationHash: analysis.OperationHash,
	}
	ctx = gqlrequest.WithAnalysis(ctx, analysis)
	ctx = gqlrequest.WithExecMeta(ctx, meta)
	logger := e.logger.
		WithAccountability(meta.Role, meta.User).
		WithFields(observability.GraphQLLogFields(ctx, analysis, meta)...)
	ctx = logging.WithLogger(ctx, logger)
	if span.IsRecording() {
		span.SetAttributes(observability.GraphQLSpanAttributes(analysis, meta)...)
	}
	e.metrics.RecordQueryDepth(ctx, int64(analysis.SelectionDepth), analysis.OperationType)
	return ctx, entry.Schema, nil
}

func (e *Engine) record(ctx context.Context, start time.Time, req Request, analysis *gqlrequest.Analysis, resp *Response) {
	operationType := analysis.OperationType
	if operationType == "" {
		operationType = "unknown"
	}
	duration := time.Since(start)
	e.metrics.RecordRequest(ctx, duration, resp.HasErrors(), operationType, string(req.scope()))
	for _, formatted := range resp.Errors {
		code, _ := formatted.Extensions["code"].(string)
		e.metrics.RecordError(ctx, code, operationType)
	}
	e.logger.Debug("graphql request completed",
		slog.String("operation_type", operationType),
		slog.String("operation_name", analysis.OperationName),
		slog.Duration("duration", duration),
		slog.Int("errors", len(resp.Errors)),
	)
}

// Subscribe starts a subscription. Problems found before the subscription starts
// are returned as a coded error; the channel closes when ctx ends or the event
// source stops.
func (e *Engine) Subscribe(ctx context.Context, req Request) (<-chan *Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := startSpan(ctx, "graphql.subscribe")
	defer span.End()

	analysis := gqlrequest.Analyze(gqlrequest.NewEnvelope(req.Query, req.OperationName, req.Variables))
	if analysis.Err() == nil && !analysis.IsSubscription() {
		return nil, apierror.InvalidQuery("%s operations must be run with Execute", analysis.OperationType)
	}
	ctx, schema, err := e.prepare(ctx, span, req, analysis)
	if err != nil {
		coded := shapeError(gqlerrors.FormatError(err))
		code, _ := coded.Extensions["code"].(string)
		return nil, apierror.Wrap(apierror.Code(code), err, coded.Message)
	}
	validation := graphql.ValidateDocument(schema, analysis.Document, nil)
	if !validation.IsValid {
		messages := make([]string, 0, len(validation.Errors))
		for _, formatted := range validation.Errors {
			messages = append(messages, formatted.Message)
		}
		return nil, apierror.New(apierror.CodeValidation, "%s", strings.Join(messages, "; "))
	}

	e.metrics.RecordRequest(ctx, 0, false, analysis.OperationType, string(req.scope()))
	span.SetAttributes(attribute.Bool("graphql.subscription.started", true))

	results := graphql.ExecuteSubscription(graphql.ExecuteParams{
		Schema:        *schema,
		AST:           analysis.Document,
		OperationName: analysis.Envelope.OperationName,
		Args:          req.Variables,
		Context:       ctx,
	})
	out := make(chan *Response)
	go func() {
		defer close(out)
		// Drain until graphql-go closes its channel so its goroutine never blocks.
		for result := range results {
			resp := &Response{Data: result.Data, Errors: shapeErrors(result.Errors)}
			select {
			case out <- resp:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func errorResponse(err error) *Response {
	return &Response{Errors: []gqlerrors.FormattedError{shapeError(gqlerrors.FormatError(err))}}
}

func shapeErrors(errs []gqlerrors.FormattedError) []gqlerrors.FormattedError {
	if len(errs) == 0 {
		return nil
	}
	out := make([]gqlerrors.FormattedError, 0, len(errs))
	for _, formatted := range errs {
		out = append(out, shapeError(formatted))
	}
	return out
}

// shapeError guarantees extensions.code. Coded errors keep their code even when
// wrapped; anything else is an execution error when it happened at a response
// path and a validation error otherwise.
func shapeError(formatted gqlerrors.FormattedError) gqlerrors.FormattedError {
	if code, ok := formatted.Extensions["code"].(string); ok && code != "" {
		return formatted
	}
	ext := make(map[string]interface{}, len(formatted.Extensions)+1)
	for k, v := range formatted.Extensions {
		ext[k] = v
	}

	original := formatted.OriginalError()
	var located *gqlerrors.Error
	if errors.As(original, &located) && located.OriginalError != nil {
		original = located.OriginalError
	}
	var coded *apierror.Error
	switch {
	case errors.As(original, &coded):
		for k, v := range coded.Extensions() {
			ext[k] = v
		}
	case len(formatted.Path) > 0:
		ext["code"] = string(apierror.CodeExecution)
	default:
		ext["code"] = string(apierror.CodeValidation)
	}
	formatted.Extensions = ext
	return formatted
}
