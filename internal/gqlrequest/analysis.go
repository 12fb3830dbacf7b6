package gqlrequest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/kinds"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// AnonymousOperation is the operation name reported for unnamed operations.
const AnonymousOperation = "<anonymous>"

// Analysis stores parsed and derived GraphQL request metadata.
type Analysis struct {
	Envelope               Envelope
	RequestedOperationName string

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	OperationName string
	OperationType string

	// RootFields are the top-level fields of the selected operation in
	// document order, without aliases.
	RootFields     []string
	FieldCount     int
	SelectionDepth int
	VariableCount  int

	CanonicalOperation string
	OperationHash      string

	ParseError      error
	SelectionError  error
	CanonicalizeErr error
}

// Err returns the first error that stopped analysis. Canonicalization failures are
// not included: they only affect the hash.
func (a *Analysis) Err() error {
	if a == nil {
		return fmt.Errorf("request was not analyzed")
	}
	if a.ParseError != nil {
		return a.ParseError
	}
	if a.SelectionError != nil {
		return a.SelectionError
	}
	if a.Document == nil {
		return fmt.Errorf("must provide an operation")
	}
	return nil
}

// IsSubscription reports whether the selected operation is a subscription.
func (a *Analysis) IsSubscription() bool {
	return a != nil && a.OperationType == ast.OperationTypeSubscription
}

// Analyze parses the envelope's document and selects the operation to run.
func Analyze(env Envelope) *Analysis {
	a := &Analysis{
		Envelope:               env,
		RequestedOperationName: env.OperationName,
		Fragments:              map[string]*ast.FragmentDefinition{},
	}
	if strings.TrimSpace(env.Query) == "" {
		return a
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(env.Query), Name: "graphql"}),
	})
	if err != nil {
		a.ParseError = err
		return a
	}
	a.Document = doc

	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch def.GetKind() {
		case kinds.OperationDefinition:
			if op, ok := def.(*ast.OperationDefinition); ok {
				operations = append(operations, op)
			}
		case kinds.FragmentDefinition:
			if frag, ok := def.(*ast.FragmentDefinition); ok && nameOf(frag.Name) != "" {
				a.Fragments[frag.Name.Value] = frag
			}
		}
	}

	op, err := pickOperation(operations, env.OperationName)
	if err != nil {
		a.SelectionError = err
		return a
	}
	a.Operation = op
	a.OperationName = nameOf(op.Name)
	if a.OperationName == "" {
		a.OperationName = AnonymousOperation
	}
	a.OperationType = op.Operation
	a.VariableCount = len(op.VariableDefinitions)

	w := &walker{fragments: a.Fragments, used: map[string]bool{}, active: map[string]bool{}}
	if op.SelectionSet != nil {
		for _, sel := range op.SelectionSet.Selections {
			if field, ok := sel.(*ast.Field); ok {
				a.RootFields = append(a.RootFields, nameOf(field.Name))
			}
		}
	}
	a.FieldCount, a.SelectionDepth = w.walk(op.SelectionSet, 1)

	a.CanonicalOperation, a.CanonicalizeErr = canonicalize(op, w.usedNames(), a.Fragments)
	if a.CanonicalizeErr == nil {
		a.OperationHash = frameHash(a.CanonicalOperation, a.OperationName)
	}
	return a
}

func pickOperation(operations []*ast.OperationDefinition, name string) (*ast.OperationDefinition, error) {
	if name != "" {
		for _, op := range operations {
			if nameOf(op.Name) == name {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", name)
	}
	switch len(operations) {
	case 0:
		return nil, fmt.Errorf("request does not include an operation")
	case 1:
		return operations[0], nil
	default:
		return nil, fmt.Errorf("operationName is required when request has multiple operations")
	}
}

func nameOf(name *ast.Name) string {
	if name == nil {
		return ""
	}
	return name.Value
}

// walker counts fields and nesting depth of a selection set. Each fragment is
// expanded at most once per operation, so spread cycles terminate.
type walker struct {
	fragments map[string]*ast.FragmentDefinition
	used      map[string]bool
	active    map[string]bool
}

func (w *walker) walk(set *ast.SelectionSet, depth int) (fields, maxDepth int) {
	if set == nil {
		return 0, depth - 1
	}
	maxDepth = depth
	merge := func(f, d int) {
		fields += f
		if d > maxDepth {
			maxDepth = d
		}
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.SelectionSet != nil {
				merge(w.walk(sel.SelectionSet, depth+1))
			}
		case *ast.InlineFragment:
			merge(w.walk(sel.SelectionSet, depth))
		case *ast.FragmentSpread:
			name := nameOf(sel.Name)
			if name == "" || w.used[name] || w.active[name] {
				continue
			}
			w.used[name] = true
			if frag := w.fragments[name]; frag != nil {
				w.active[name] = true
				merge(w.walk(frag.SelectionSet, depth))
				delete(w.active, name)
			}
		}
	}
	return fields, maxDepth
}

func (w *walker) usedNames() []string {
	names := make([]string, 0, len(w.used))
	for name := range w.used {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
