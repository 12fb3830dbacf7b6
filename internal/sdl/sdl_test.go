package sdl

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T, queryName string) *graphql.Schema {
	t.Helper()
	event := graphql.NewEnum(graphql.EnumConfig{
		Name: "EventEnum",
		Values: graphql.EnumValueConfigMap{
			"update": {Value: "update"},
			"create": {Value: "create"},
		},
	})
	headings := graphql.NewObject(graphql.ObjectConfig{
		Name:   "headings",
		Fields: graphql.Fields{"text": &graphql.Field{Type: graphql.String}},
	})
	paragraphs := graphql.NewObject(graphql.ObjectConfig{
		Name:   "paragraphs",
		Fields: graphql.Fields{"body": &graphql.Field{Type: graphql.String}},
	})
	item := graphql.NewUnion(graphql.UnionConfig{
		Name:  "page_blocks_item_union",
		Types: []*graphql.Object{paragraphs, headings},
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			return headings
		},
	})
	posts := graphql.NewObject(graphql.ObjectConfig{
		Name:        "posts",
		Description: "Blog posts",
		Fields: graphql.Fields{
			"title": &graphql.Field{Type: graphql.NewNonNull(graphql.String), Description: "Headline"},
			"id":    &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"tags":  &graphql.Field{Type: graphql.NewList(graphql.NewNonNull(graphql.String))},
			"block": &graphql.Field{Type: item},
		},
	})
	filter := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "posts_filter",
		Fields: graphql.InputObjectConfigFieldMap{
			"title": &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: queryName,
		Fields: graphql.Fields{
			"posts": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(posts))),
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
					"filter": &graphql.ArgumentConfig{Type: filter},
					"event":  &graphql.ArgumentConfig{Type: event},
				},
			},
		},
	})
	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: query})
	require.NoError(t, err)
	return &schema
}

func TestPrint(t *testing.T) {
	out, err := Print(testSchema(t, "Query"))
	require.NoError(t, err)

	assert.Contains(t, out, `"""Blog posts"""`+"\ntype posts {")
	assert.Contains(t, out, "tags: [String!]")
	assert.Contains(t, out, "posts(event: EventEnum, filter: posts_filter, limit: Int = 100): [posts!]!")
	assert.Contains(t, out, "union page_blocks_item_union = headings | paragraphs")
	assert.Contains(t, out, "enum EventEnum {\n  create\n  update\n}")
	assert.Contains(t, out, "input posts_filter {")
	assert.NotContains(t, out, "__Schema")
	assert.NotContains(t, out, "scalar String")
	assert.NotContains(t, out, "schema {")

	_, err = parser.Parse(parser.ParseParams{Source: out})
	assert.NoError(t, err, out)
}

func TestPrintIsDeterministic(t *testing.T) {
	first, err := Print(testSchema(t, "Query"))
	require.NoError(t, err)
	second, err := Print(testSchema(t, "Query"))
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("printed schema changed between builds (-first +second):\n%s", diff)
	}
}

func TestPrintSchemaDefinition(t *testing.T) {
	out, err := Print(testSchema(t, "RootQuery"))
	require.NoError(t, err)
	assert.Contains(t, out, "schema {\n  query: RootQuery\n}")
}

func TestPrintNil(t *testing.T) {
	_, err := Print(nil)
	assert.Error(t, err)
}
