// Package fragments substitutes fragment spreads in a selection tree with the
// selections they name, producing a tree that no longer refers to fragments.
package fragments

import (
	"strings"

	"github.com/graphql-go/graphql/language/ast"

	"collections-graphql/internal/apierror"
)

// FromDefinitions picks the fragment definitions out of a document definition map,
// such as graphql.ResolveInfo.Fragments.
func FromDefinitions(defs map[string]ast.Definition) map[string]*ast.FragmentDefinition {
	out := make(map[string]*ast.FragmentDefinition, len(defs))
	for name, def := range defs {
		if fragment, ok := def.(*ast.FragmentDefinition); ok && fragment != nil {
			out[name] = fragment
		}
	}
	return out
}

// Inline returns a copy of selections where every fragment spread, at any depth, is
// replaced by the inlined selections of the fragment it names. The input is not
// modified and no node is shared with the result. Unknown fragments and cycles
// between fragments are rejected.
func Inline(selections []ast.Selection, fragments map[string]*ast.FragmentDefinition) ([]ast.Selection, error) {
	return inline(selections, fragments, nil)
}

func inline(selections []ast.Selection, fragments map[string]*ast.FragmentDefinition, stack []string) ([]ast.Selection, error) {
	out := make([]ast.Selection, 0, len(selections))
	for _, selection := range selections {
		switch sel := selection.(type) {
		case *ast.FragmentSpread:
			name := ""
			if sel.Name != nil {
				name = sel.Name.Value
			}
			for i, active := range stack {
				if active == name {
					cycle := append(append([]string(nil), stack[i:]...), name)
					return nil, apierror.InvalidQuery("fragment cycle detected: %s", strings.Join(cycle, " -> "))
				}
			}
			fragment, ok := fragments[name]
			if !ok || fragment == nil {
				return nil, apierror.InvalidQuery("unknown fragment %q", name)
			}
			var nested []ast.Selection
			if fragment.SelectionSet != nil {
				nested = fragment.SelectionSet.Selections
			}
			expanded, err := inline(nested, fragments, append(stack, name))
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		case *ast.Field:
			copied := copyField(sel)
			if sel.SelectionSet != nil {
				children, err := inline(sel.SelectionSet.Selections, fragments, stack)
				if err != nil {
					return nil, err
				}
				copied.SelectionSet = &ast.SelectionSet{Kind: sel.SelectionSet.Kind, Loc: sel.SelectionSet.Loc, Selections: children}
			}
			out = append(out, copied)
		case *ast.InlineFragment:
			copied := &ast.InlineFragment{
				Kind:          sel.Kind,
				Loc:           sel.Loc,
				TypeCondition: sel.TypeCondition,
				Directives:    append([]*ast.Directive(nil), sel.Directives...),
			}
			if sel.SelectionSet != nil {
				children, err := inline(sel.SelectionSet.Selections, fragments, stack)
				if err != nil {
					return nil, err
				}
				copied.SelectionSet = &ast.SelectionSet{Kind: sel.SelectionSet.Kind, Loc: sel.SelectionSet.Loc, Selections: children}
			}
			out = append(out, copied)
		}
	}
	return out, nil
}

func copyField(field *ast.Field) *ast.Field {
	copied := &ast.Field{
		Kind:       field.Kind,
		Loc:        field.Loc,
		Alias:      field.Alias,
		Name:       field.Name,
		Directives: append([]*ast.Directive(nil), field.Directives...),
	}
	if len(field.Arguments) > 0 {
		copied.Arguments = make([]*ast.Argument, 0, len(field.Arguments))
		for _, arg := range field.Arguments {
			if arg == nil {
				continue
			}
			a := *arg
			copied.Arguments = append(copied.Arguments, &a)
		}
	}
	return copied
}

// ContainsSpread reports whether any fragment spread remains in selections.
func ContainsSpread(selections []ast.Selection) bool {
	for _, selection := range selections {
		switch sel := selection.(type) {
		case *ast.FragmentSpread:
			return true
		case *ast.Field:
			if sel.SelectionSet != nil && ContainsSpread(sel.SelectionSet.Selections) {
				return true
			}
		case *ast.InlineFragment:
			if sel.SelectionSet != nil && ContainsSpread(sel.SelectionSet.Selections) {
				return true
			}
		}
	}
	return false
}
