package gqlrequest

import "context"

type contextKey int

const (
	analysisKey contextKey = iota
	execMetaKey
)

// ExecMeta identifies who ran an operation, against which schema, and which
// operation it was.
type ExecMeta struct {
	Role  string
	User  string
	Scope string
	// Fingerprint identifies the relational schema the executed graph was built from.
	Fingerprint string

	OperationName string
	OperationType string
	OperationHash string
}

// WithAnalysis returns a copy of ctx carrying analysis.
func WithAnalysis(ctx context.Context, analysis *Analysis) context.Context {
	return context.WithValue(orBackground(ctx), analysisKey, analysis)
}

// AnalysisFromContext returns the analysis stored by WithAnalysis, or nil.
func AnalysisFromContext(ctx context.Context) *Analysis {
	if ctx == nil {
		return nil
	}
	analysis, _ := ctx.Value(analysisKey).(*Analysis)
	return analysis
}

// WithExecMeta returns a copy of ctx carrying meta.
func WithExecMeta(ctx context.Context, meta ExecMeta) context.Context {
	return context.WithValue(orBackground(ctx), execMetaKey, meta)
}

// ExecMetaFromContext returns the metadata stored by WithExecMeta.
func ExecMetaFromContext(ctx context.Context) (ExecMeta, bool) {
	if ctx == nil {
		return ExecMeta{}, false
	}
	meta, ok := ctx.Value(execMetaKey).(ExecMeta)
	return meta, ok
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
