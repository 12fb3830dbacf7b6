package translate

import (
	"context"
	"strings"
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collections-graphql/internal/apierror"
	"collections-graphql/internal/scalars"
)

// parseRoot returns the arguments and child selections of the first root field.
func parseRoot(t *testing.T, document string, vars map[string]interface{}) (map[string]interface{}, []ast.Selection) {
	t.Helper()
	doc, err := parser.Parse(parser.ParseParams{Source: source.NewSource(&source.Source{Body: []byte(document), Name: "test"})})
	require.NoError(t, err)
	op, ok := doc.Definitions[0].(*ast.OperationDefinition)
	require.True(t, ok)
	root := op.SelectionSet.Selections[0].(*ast.Field)
	args := map[string]interface{}{}
	for _, arg := range root.Arguments {
		args[arg.Name.Value] = scalars.LiteralValue(arg.Value, vars)
	}
	var selections []ast.Selection
	if root.SelectionSet != nil {
		selections = root.SelectionSet.Selections
	}
	return args, selections
}

func TestQueryReadScenario(t *testing.T) {
	args, selections := parseRoot(t, `{ posts { title author { name } } }`, nil)
	q, err := Query(context.Background(), args, selections)
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "author.name"}, q.Fields)
	assert.Empty(t, q.Filter)
	assert.Empty(t, q.Deep)
	assert.Nil(t, q.Alias)
}

func TestQueryFunctionFields(t *testing.T) {
	t.Run("root", func(t *testing.T) {
		args, selections := parseRoot(t, `{ posts { published_on_func { year month } } }`, nil)
		q, err := Query(context.Background(), args, selections)
		require.NoError(t, err)
		assert.Equal(t, []string{"year(published_on)", "month(published_on)"}, q.Fields)
		for _, f := range q.Fields {
			assert.NotContains(t, f, "_func")
		}
	})

	t.Run("nested", func(t *testing.T) {
		args, selections := parseRoot(t, `{ comments { post { published_on_func { year } } } }`, nil)
		q, err := Query(context.Background(), args, selections)
		require.NoError(t, err)
		assert.Equal(t, []string{"post.year(published_on)"}, q.Fields)
	})
}

func TestQueryDedupPreservesFirstOccurrence(t *testing.T) {
	args, selections := parseRoot(t, `{ posts { title t1: title author { name } t2: title id } }`, nil)
	q, err := Query(context.Background(), args, selections)
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "author.name", "id"}, q.Fields)
	assert.Equal(t, map[string]string{"t1": "title", "t2": "title"}, q.Alias)
}

func TestQueryAliasDeepMerge(t *testing.T) {
	args, selections := parseRoot(t, `{ posts { top: comments(limit: 2, sort: ["-id"]) { text } } }`, nil)
	q, err := Query(context.Background(), args, selections)
	require.NoError(t, err)

	assert.Equal(t, []string{"top.text"}, q.Fields)
	assert.Equal(t, map[string]string{"top": "comments"}, q.Alias)

	node, ok := q.Deep["top"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"top": "comments"}, node["_alias"])
	assert.Equal(t, 2, node["_limit"])
	assert.Equal(t, []interface{}{"-id"}, node["_sort"])
}

func TestQueryDeepMergesNestedArguments(t *testing.T) {
	doc := `{ users { posts(limit: 5) { comments(filter: {text: {_contains: "x"}}) { text } } } }`
	args, selections := parseRoot(t, doc, nil)
	q, err := Query(context.Background(), args, selections)
	require.NoError(t, err)

	posts, ok := q.Deep["posts"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 5, posts["_limit"])
	comments, ok := posts["comments"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"text": map[string]interface{}{"_contains": "x"}}, comments["_filter"])
}

func TestQueryTopLevelArguments(t *testing.T) {
	doc := `query($n: Int) { posts(limit: $n, offset: 3, sort: "title,-id", search: "go", filter: {published_on_func: {year: {_eq: 2024}}}) { id } }`
	args, selections := parseRoot(t, doc, map[string]interface{}{"n": 10})
	q, err := Query(context.Background(), args, selections)
	require.NoError(t, err)

	require.NotNil(t, q.Limit)
	assert.Equal(t, 10, *q.Limit)
	assert.Equal(t, 3, *q.Offset)
	assert.Equal(t, []string{"title", "-id"}, q.Sort)
	assert.Equal(t, "go", *q.Search)
	assert.Equal(t, map[string]interface{}{"year(published_on)": map[string]interface{}{"_eq": 2024}}, q.Filter)
}

func TestQueryUnionBranches(t *testing.T) {
	doc := `{ page_blocks { id item { __typename ... on headings { text } ... on paragraphs { body } } } }`
	args, selections := parseRoot(t, doc, nil)
	q, err := Query(context.Background(), args, selections)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "item:headings.text", "item:paragraphs.body"}, q.Fields)
}

func TestQueryDirectives(t *testing.T) {
	doc := `query($on: Boolean!) { posts { title @skip(if: true) body @include(if: $on) id } }`
	args, selections := parseRoot(t, doc, map[string]interface{}{"on": false})
	q, err := Query(context.Background(), args, selections)
	require.NoError(t, err)

	assert.Equal(t, []string{"id"}, q.Fields)
}

func TestQueryDropsIntrospectionFields(t *testing.T) {
	args, selections := parseRoot(t, `{ posts { __typename id } }`, nil)
	q, err := Query(context.Background(), args, selections)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, q.Fields)
}

func TestQueryDepthLimits(t *testing.T) {
	t.Run("fields", func(t *testing.T) {
		args, selections := parseRoot(t, `{ comments { post { author { name } } } }`, nil)
		_, err := Query(context.Background(), args, selections, WithLimits(Limits{MaxFieldDepth: 1}))
		require.Error(t, err)
		assert.Equal(t, apierror.CodeInvalidQuery, apierror.CodeOf(err))
	})

	t.Run("filter", func(t *testing.T) {
		args, selections := parseRoot(t, `{ comments(filter: {post: {author: {name: {_eq: "a"}}}}) { id } }`, nil)
		_, err := Query(context.Background(), args, selections, WithLimits(Limits{MaxFilterDepth: 1}))
		require.Error(t, err)
		assert.Equal(t, apierror.CodeInvalidQuery, apierror.CodeOf(err))
	})

	t.Run("sort", func(t *testing.T) {
		args, selections := parseRoot(t, `{ comments(sort: ["-post.author.name"]) { id } }`, nil)
		_, err := Query(context.Background(), args, selections, WithLimits(Limits{MaxSortDepth: 1}))
		require.Error(t, err)
	})

	t.Run("deep", func(t *testing.T) {
		args, selections := parseRoot(t, `{ users { posts { comments(limit: 1) { id } } } }`, nil)
		_, err := Query(context.Background(), args, selections, WithLimits(Limits{MaxDeepDepth: 1}))
		require.Error(t, err)
	})

	t.Run("zero disables", func(t *testing.T) {
		args, selections := parseRoot(t, `{ comments { post { author { name } } } }`, nil)
		q, err := Query(context.Background(), args, selections, WithLimits(Limits{}))
		require.NoError(t, err)
		assert.Equal(t, []string{"post.author.name"}, q.Fields)
	})
}

func TestQueryRejectsMalformedFilter(t *testing.T) {
	cases := map[string]string{
		"and not array":    `{ posts(filter: {_and: {id: {_eq: 1}}}) { id } }`,
		"in not array":     `{ posts(filter: {id: {_in: 1}}) { id } }`,
		"null not boolean": `{ posts(filter: {id: {_null: "yes"}}) { id } }`,
		"unknown operator": `{ posts(filter: {id: {_like: "x"}}) { id } }`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			args, selections := parseRoot(t, doc, nil)
			_, err := Query(context.Background(), args, selections)
			require.Error(t, err)
			assert.Equal(t, apierror.CodeInvalidQuery, apierror.CodeOf(err))
		})
	}
}

func TestAggregateScenario(t *testing.T) {
	args, selections := parseRoot(t, `{ posts_aggregated { count { id } } }`, nil)
	q, err := Aggregate(context.Background(), args, selections)
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{"count": {"id"}}, q.Aggregate)
	assert.Nil(t, q.Group)
}

func TestAggregateGroupBy(t *testing.T) {
	args, selections := parseRoot(t, `{ posts_aggregated(groupBy: ["status"]) { group countAll sum { views rating } __typename } }`, nil)
	q, err := Aggregate(context.Background(), args, selections)
	require.NoError(t, err)

	assert.Equal(t, []string{"status"}, q.Group)
	assert.Equal(t, map[string][]string{"countAll": {"*"}, "sum": {"views", "rating"}}, q.Aggregate)
}

func TestReplaceFuncs(t *testing.T) {
	in := map[string]interface{}{
		"_or": []interface{}{
			map[string]interface{}{"created_at_func": map[string]interface{}{"hour": map[string]interface{}{"_gt": 12}}},
			map[string]interface{}{"author": map[string]interface{}{"posts_func": map[string]interface{}{"count": map[string]interface{}{"_eq": 0}}}},
		},
		"metadata_func": map[string]interface{}{"unknown": 1},
	}
	out := ReplaceFuncs(in)

	or := out["_or"].([]interface{})
	assert.Contains(t, or[0], "hour(created_at)")
	author := or[1].(map[string]interface{})["author"].(map[string]interface{})
	assert.Contains(t, author, "count(posts)")
	assert.Contains(t, out, "metadata_func")
	assert.Contains(t, in["_or"].([]interface{})[0], "created_at_func", "input is not mutated")
}

func TestSanitize(t *testing.T) {
	t.Run("csv and lists", func(t *testing.T) {
		q, err := Sanitize(map[string]interface{}{
			"fields":  "id, title",
			"sort":    []interface{}{"-id"},
			"page":    2,
			"unknown": true,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "title"}, q.Fields)
		assert.Equal(t, []string{"-id"}, q.Sort)
		assert.Equal(t, 2, *q.Page)
	})

	t.Run("filter as json", func(t *testing.T) {
		q, err := Sanitize(map[string]interface{}{"filter": `{"id":{"_eq":1}}`})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"id": map[string]interface{}{"_eq": float64(1)}}, q.Filter)
	})

	t.Run("rejects", func(t *testing.T) {
		for _, raw := range []map[string]interface{}{
			{"limit": -2},
			{"offset": -1},
			{"limit": "many"},
			{"filter": 7},
			{"search": 3},
		} {
			_, err := Sanitize(raw)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), "must"))
		}
	})

	t.Run("limit minus one means unlimited", func(t *testing.T) {
		q, err := Sanitize(map[string]interface{}{"limit": -1})
		require.NoError(t, err)
		assert.Equal(t, -1, *q.Limit)
	})
}

func TestFromDeep(t *testing.T) {
	q, err := FromDeep(map[string]interface{}{
		"_limit":   3,
		"_sort":    []interface{}{"id"},
		"_alias":   map[string]interface{}{"top": "comments"},
		"comments": map[string]interface{}{"_limit": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, *q.Limit)
	assert.Equal(t, []string{"id"}, q.Sort)
	assert.Equal(t, map[string]string{"top": "comments"}, q.Alias)
}
