package fragments

import (
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collections-graphql/internal/apierror"
)

func parse(t *testing.T, query string) ([]ast.Selection, map[string]*ast.FragmentDefinition) {
	t.Helper()
	doc, err := parser.Parse(parser.ParseParams{Source: source.NewSource(&source.Source{Body: []byte(query), Name: "test"})})
	require.NoError(t, err)

	defs := map[string]ast.Definition{}
	var op *ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.OperationDefinition:
			op = d
		case *ast.FragmentDefinition:
			defs[d.Name.Value] = d
		}
	}
	require.NotNil(t, op)
	root := op.SelectionSet.Selections[0].(*ast.Field)
	return root.SelectionSet.Selections, FromDefinitions(defs)
}

func names(selections []ast.Selection) []string {
	var out []string
	for _, selection := range selections {
		switch sel := selection.(type) {
		case *ast.Field:
			out = append(out, sel.Name.Value)
		case *ast.InlineFragment:
			out = append(out, "..."+sel.TypeCondition.Name.Value)
		case *ast.FragmentSpread:
			out = append(out, "spread:"+sel.Name.Value)
		}
	}
	return out
}

func TestInlineNestedFragments(t *testing.T) {
	selections, fragments := parse(t, `
		query {
			posts {
				...postFields
				comments { ...commentFields }
			}
		}
		fragment postFields on posts { id ...titleFields }
		fragment titleFields on posts { title ...authorFields }
		fragment authorFields on posts { author { name ...userFields } }
		fragment userFields on users { id }
		fragment commentFields on comments { id text }
	`)

	out, err := Inline(selections, fragments)
	require.NoError(t, err)

	assert.False(t, ContainsSpread(out))
	assert.Equal(t, []string{"id", "title", "author", "comments"}, names(out))

	author := out[2].(*ast.Field)
	assert.Equal(t, []string{"name", "id"}, names(author.SelectionSet.Selections))

	comments := out[3].(*ast.Field)
	assert.Equal(t, []string{"id", "text"}, names(comments.SelectionSet.Selections))
}

func TestInlineUnionBranches(t *testing.T) {
	selections, fragments := parse(t, `
		query {
			page_blocks {
				item {
					... on headings { ...headingFields }
					... on paragraphs { body }
				}
			}
		}
		fragment headingFields on headings { text }
	`)

	out, err := Inline(selections, fragments)
	require.NoError(t, err)
	require.Len(t, out, 1)

	item := out[0].(*ast.Field)
	assert.Equal(t, []string{"...headings", "...paragraphs"}, names(item.SelectionSet.Selections))
	headings := item.SelectionSet.Selections[0].(*ast.InlineFragment)
	assert.Equal(t, []string{"text"}, names(headings.SelectionSet.Selections))
}

func TestInlineDoesNotShareNodes(t *testing.T) {
	selections, fragments := parse(t, `
		query {
			posts {
				author(limit: 1) { ...userFields }
			}
		}
		fragment userFields on users { name }
	`)

	out, err := Inline(selections, fragments)
	require.NoError(t, err)

	original := selections[0].(*ast.Field)
	copied := out[0].(*ast.Field)
	assert.NotSame(t, original, copied)
	assert.NotSame(t, original.SelectionSet, copied.SelectionSet)
	assert.NotSame(t, original.Arguments[0], copied.Arguments[0])
	assert.Equal(t, []string{"spread:userFields"}, names(original.SelectionSet.Selections), "input untouched")

	fragmentField := fragments["userFields"].SelectionSet.Selections[0].(*ast.Field)
	assert.NotSame(t, fragmentField, copied.SelectionSet.Selections[0])
}

func TestInlineRejectsCycles(t *testing.T) {
	selections, fragments := parse(t, `
		query { posts { ...a } }
		fragment a on posts { id ...b }
		fragment b on posts { title ...a }
	`)

	_, err := Inline(selections, fragments)
	require.Error(t, err)
	assert.Equal(t, apierror.CodeInvalidQuery, apierror.CodeOf(err))
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestInlineSameFragmentTwiceIsNotACycle(t *testing.T) {
	selections, fragments := parse(t, `
		query { posts { ...a author { ...a } } }
		fragment a on posts { id }
	`)

	out, err := Inline(selections, fragments)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "author"}, names(out))
}

func TestInlineUnknownFragment(t *testing.T) {
	selections, fragments := parse(t, `query { posts { ...missing } }`)

	_, err := Inline(selections, fragments)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown fragment "missing"`)
}
