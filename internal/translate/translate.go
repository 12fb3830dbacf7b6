// Package translate compiles a normalized GraphQL selection tree and its arguments
// into the canonical query consumed by the data-access layer.
package translate

import (
	"context"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"collections-graphql/internal/fieldtype"
	"collections-graphql/internal/query"
	"collections-graphql/internal/scalars"
)

var tracer = otel.Tracer("collections-graphql/translate")

// Option configures a translation.
type Option func(*translator)

// WithLimits sets the depth limits enforced by validation.
func WithLimits(limits Limits) Option {
	return func(t *translator) {
		t.limits = limits
	}
}

// WithVariables supplies operation variables for arguments nested in the selection tree.
func WithVariables(vars map[string]interface{}) Option {
	return func(t *translator) {
		t.vars = vars
	}
}

type translator struct {
	limits Limits
	vars   map[string]interface{}
	q      *query.Query
}

func newTranslator(opts []Option) *translator {
	t := &translator{limits: DefaultLimits()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Query translates the arguments and selections of a read or mutation field.
func Query(ctx context.Context, rawArgs map[string]interface{}, selections []ast.Selection, opts ...Option) (*query.Query, error) {
	_, span := startSpan(ctx, "translate.query", attribute.Int("graphql.selections", len(selections)))
	defer span.End()

	t := newTranslator(opts)
	q, err := Sanitize(rawArgs)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	t.q = q

	q.Alias = parseAliases(selections)
	fields, err := t.parseFields(selections, "")
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	q.Fields = fields

	if q.Filter != nil {
		q.Filter = ReplaceFuncs(q.Filter)
	}
	if q.Deep != nil {
		q.Deep = ReplaceFuncs(q.Deep)
	}

	if err := Validate(q, t.limits); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("query.fields", len(q.Fields)))
	return q, nil
}

// Aggregate translates the arguments and selections of an aggregate field. Each
// selected method becomes an entry of the aggregate map listing its fields, or "*"
// when the method takes no sub-selection.
func Aggregate(ctx context.Context, rawArgs map[string]interface{}, selections []ast.Selection, opts ...Option) (*query.Query, error) {
	_, span := startSpan(ctx, "translate.aggregate", attribute.Int("graphql.selections", len(selections)))
	defer span.End()

	t := newTranslator(opts)
	q, err := Sanitize(rawArgs)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	q.Aggregate = map[string][]string{}
	for _, selection := range selections {
		field, ok := selection.(*ast.Field)
		if !ok || field.Name == nil {
			continue
		}
		if skipped(field.Directives, t.vars) {
			continue
		}
		method := field.Name.Value
		if strings.HasPrefix(method, "__") || method == "group" {
			continue
		}
		if field.SelectionSet == nil {
			q.Aggregate[method] = []string{"*"}
			continue
		}
		fields := make([]string, 0, len(field.SelectionSet.Selections))
		for _, sub := range field.SelectionSet.Selections {
			subField, ok := sub.(*ast.Field)
			if !ok || subField.Name == nil || strings.HasPrefix(subField.Name.Value, "__") {
				continue
			}
			fields = append(fields, subField.Name.Value)
		}
		q.Aggregate[method] = uniq(append(q.Aggregate[method], fields...))
	}

	if q.Filter != nil {
		q.Filter = ReplaceFuncs(q.Filter)
	}
	if err := Validate(q, t.limits); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return q, nil
}

// parseAliases records top-level aliases as output name to real field name.
func parseAliases(selections []ast.Selection) map[string]string {
	aliases := map[string]string{}
	for _, selection := range selections {
		field, ok := selection.(*ast.Field)
		if !ok || field.Alias == nil || field.Alias.Value == "" || field.Name == nil {
			continue
		}
		aliases[field.Alias.Value] = field.Name.Value
	}
	if len(aliases) == 0 {
		return nil
	}
	return aliases
}

func (t *translator) parseFields(selections []ast.Selection, parent string) ([]string, error) {
	fields := make([]string, 0, len(selections))
	for _, selection := range selections {
		var (
			current      string
			currentAlias string
			selectionSet *ast.SelectionSet
		)

		switch sel := selection.(type) {
		case *ast.InlineFragment:
			if skipped(sel.Directives, t.vars) {
				continue
			}
			if sel.TypeCondition == nil || sel.TypeCondition.Name == nil {
				if sel.SelectionSet != nil {
					children, err := t.parseFields(sel.SelectionSet.Selections, parent)
					if err != nil {
						return nil, err
					}
					fields = append(fields, children...)
				}
				continue
			}
			typeName := sel.TypeCondition.Name.Value
			if strings.HasPrefix(typeName, "__") {
				continue
			}
			current = parent + ":" + typeName
			selectionSet = sel.SelectionSet
		case *ast.Field:
			if sel.Name == nil || skipped(sel.Directives, t.vars) {
				continue
			}
			if strings.HasPrefix(sel.Name.Value, "__") {
				continue
			}
			current = sel.Name.Value
			if sel.Alias != nil && sel.Alias.Value != "" {
				currentAlias = sel.Alias.Value
			}
			if parent != "" {
				current = parent + "." + current
				if currentAlias != "" {
					currentAlias = parent + "." + currentAlias
				}
			}
			selectionSet = sel.SelectionSet
		default:
			continue
		}

		if selectionSet != nil {
			var children []string
			if strings.HasSuffix(current, fieldtype.FuncSuffix) {
				children = functionLeaves(current, selectionSet)
			} else {
				childParent := current
				if currentAlias != "" {
					childParent = currentAlias
				}
				var err error
				children, err = t.parseFields(selectionSet.Selections, childParent)
				if err != nil {
					return nil, err
				}
			}
			fields = append(fields, children...)
		} else {
			fields = append(fields, current)
		}

		field, ok := selection.(*ast.Field)
		if !ok {
			continue
		}
		path := current
		if currentAlias != "" {
			path = currentAlias
		}
		if len(field.Arguments) > 0 {
			if err := t.mergeDeep(path, field.Arguments); err != nil {
				return nil, err
			}
		}
		if currentAlias != "" && selectionSet != nil && !strings.HasSuffix(current, fieldtype.FuncSuffix) {
			t.recordDeepAlias(path, field.Alias.Value, field.Name.Value)
		}
	}
	return uniq(fields), nil
}

// functionLeaves expands a function pseudo-field into one leaf per requested
// component, e.g. published_on_func { year } becomes year(published_on).
func functionLeaves(current string, selectionSet *ast.SelectionSet) []string {
	prefix := ""
	name := current
	if idx := strings.LastIndex(current, "."); idx >= 0 {
		prefix = current[:idx+1]
		name = current[idx+1:]
	}
	rootField := strings.TrimSuffix(name, fieldtype.FuncSuffix)

	leaves := make([]string, 0, len(selectionSet.Selections))
	for _, sub := range selectionSet.Selections {
		subField, ok := sub.(*ast.Field)
		if !ok || subField.Name == nil || strings.HasPrefix(subField.Name.Value, "__") {
			continue
		}
		leaves = append(leaves, prefix+subField.Name.Value+"("+rootField+")")
	}
	return leaves
}

func (t *translator) mergeDeep(path string, arguments []*ast.Argument) error {
	raw := make(map[string]interface{}, len(arguments))
	for _, arg := range arguments {
		if arg == nil || arg.Name == nil {
			continue
		}
		raw[arg.Name.Value] = scalars.LiteralValue(arg.Value, t.vars)
	}
	sanitized, err := Sanitize(raw)
	if err != nil {
		return err
	}
	directives := map[string]interface{}{}
	for key, value := range ToMap(sanitized) {
		directives["_"+key] = value
	}
	if t.q.Deep == nil {
		t.q.Deep = map[string]interface{}{}
	}
	node := deepNode(t.q.Deep, path)
	mergeInto(node, directives)
	return nil
}

func (t *translator) recordDeepAlias(path, alias, name string) {
	if t.q.Deep == nil {
		t.q.Deep = map[string]interface{}{}
	}
	node := deepNode(t.q.Deep, path)
	aliases, ok := node["_alias"].(map[string]interface{})
	if !ok {
		aliases = map[string]interface{}{}
		node["_alias"] = aliases
	}
	aliases[alias] = name
}

// deepNode walks (creating as needed) the nested deep map along a dotted path.
func deepNode(deep map[string]interface{}, path string) map[string]interface{} {
	node := deep
	for _, segment := range strings.Split(path, ".") {
		next, ok := node[segment].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			node[segment] = next
		}
		node = next
	}
	return node
}

// mergeInto merges src into dst recursively; nested maps are merged, other values replaced.
func mergeInto(dst, src map[string]interface{}) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]interface{})
		dstMap, dstIsMap := dst[key].(map[string]interface{})
		if srcIsMap && dstIsMap {
			mergeInto(dstMap, srcMap)
			continue
		}
		dst[key] = query.DeepCopy(value)
	}
}

// skipped evaluates @skip and @include directives.
func skipped(directives []*ast.Directive, vars map[string]interface{}) bool {
	for _, directive := range directives {
		if directive == nil || directive.Name == nil {
			continue
		}
		name := directive.Name.Value
		if name != "skip" && name != "include" {
			continue
		}
		for _, arg := range directive.Arguments {
			if arg == nil || arg.Name == nil || arg.Name.Value != "if" {
				continue
			}
			value, _ := scalars.LiteralValue(arg.Value, vars).(bool)
			if name == "skip" && value {
				return true
			}
			if name == "include" && !value {
				return true
			}
		}
	}
	return false
}

func uniq(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordSpanError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
