package gqlrequest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name             string
		query            string
		operationName    string
		wantType         string
		wantFields       int
		wantDepth        int
		wantVars         int
		wantParseErr     bool
		wantSelectionErr bool
		wantName         string
	}{
		{
			name:       "anonymous read",
			query:      `{ posts { id title author { name } } }`,
			wantType:   "query",
			wantFields: 5,
			wantDepth:  3,
			wantName:   "<anonymous>",
		},
		{
			name: "named read with variables",
			query: `query Post($id: ID!, $version: String) {
				posts_by_id(id: $id, version: $version) { id title }
			}`,
			operationName: "Post",
			wantType:      "query",
			wantFields:    3,
			wantDepth:     2,
			wantVars:      2,
			wantName:      "Post",
		},
		{
			name:          "mutation",
			query:         `mutation Create($data: create_posts_input!) { create_posts_item(data: $data) { id } }`,
			operationName: "Create",
			wantType:      "mutation",
			wantFields:    2,
			wantDepth:     2,
			wantVars:      1,
			wantName:      "Create",
		},
		{
			name:       "subscription",
			query:      `subscription { posts_mutated { key event } }`,
			wantType:   "subscription",
			wantFields: 3,
			wantDepth:  2,
			wantName:   "<anonymous>",
		},
		{
			name: "multiple operations without a name",
			query: `
				query A { posts { id } }
				query B { users { id } }
			`,
			wantSelectionErr: true,
		},
		{
			name:             "unknown operation name",
			query:            `query A { posts { id } }`,
			operationName:    "B",
			wantSelectionErr: true,
		},
		{
			name:         "malformed document",
			query:        `query { posts { `,
			wantParseErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := Analyze(NewEnvelope(tt.query, tt.operationName, nil))
			assert.Equal(t, tt.wantParseErr, analysis.ParseError != nil, "parse error: %v", analysis.ParseError)
			assert.Equal(t, tt.wantSelectionErr, analysis.SelectionError != nil, "selection error: %v", analysis.SelectionError)
			if tt.wantParseErr || tt.wantSelectionErr {
				assert.Error(t, analysis.Err())
				return
			}
			require.NoError(t, analysis.Err())
			assert.Equal(t, tt.wantType, analysis.OperationType)
			assert.Equal(t, tt.wantFields, analysis.FieldCount)
			assert.Equal(t, tt.wantDepth, analysis.SelectionDepth)
			assert.Equal(t, tt.wantVars, analysis.VariableCount)
			assert.Equal(t, tt.wantName, analysis.OperationName)
			assert.NotEmpty(t, analysis.OperationHash)
			assert.Equal(t, tt.wantType == "subscription", analysis.IsSubscription())
		})
	}
}

func TestAnalyzeEmptyDocument(t *testing.T) {
	analysis := Analyze(NewEnvelope("  ", "", nil))
	assert.NoError(t, analysis.ParseError)
	assert.EqualError(t, analysis.Err(), "must provide an operation")
	assert.False(t, analysis.IsSubscription())

	var missing *Analysis
	assert.Error(t, missing.Err())
}

func TestAnalyzeFragmentCycleDoesNotLoop(t *testing.T) {
	query := `
		fragment A on posts { id ...B }
		fragment B on posts { title ...A }
		query { posts { ...A } }
	`
	analysis := Analyze(NewEnvelope(query, "", nil))
	require.NoError(t, analysis.Err())
	assert.Equal(t, 3, analysis.FieldCount)
	assert.Len(t, analysis.Fragments, 2)
	assert.Equal(t, []string{"posts"}, analysis.RootFields)
}

func TestAnalyzeRootFields(t *testing.T) {
	analysis := Analyze(NewEnvelope(`{ first: posts { id } users { id } settings { site_name } }`, "", nil))
	require.NoError(t, analysis.Err())
	assert.Equal(t, []string{"posts", "users", "settings"}, analysis.RootFields)
}

func TestOperationHash(t *testing.T) {
	t.Run("ignores whitespace and comments", func(t *testing.T) {
		a := Analyze(NewEnvelope(`query Posts { posts { id title } }`, "Posts", nil))
		b := Analyze(NewEnvelope("# listing\nquery Posts {\n  posts {\n    id\n    title\n  }\n}", "Posts", nil))
		require.NotEmpty(t, a.OperationHash)
		assert.Equal(t, a.OperationHash, b.OperationHash)
	})

	t.Run("differs per selected operation", func(t *testing.T) {
		query := `
			query A { posts { id } }
			query B { users { id name } }
		`
		a := Analyze(NewEnvelope(query, "A", nil))
		b := Analyze(NewEnvelope(query, "B", nil))
		assert.NotEqual(t, a.OperationHash, b.OperationHash)
	})

	t.Run("includes referenced fragments only", func(t *testing.T) {
		query := `
			fragment Used on posts { title }
			fragment Unused on users { name }
			query { posts { ...Used } }
		`
		analysis := Analyze(NewEnvelope(query, "", nil))
		assert.Contains(t, analysis.CanonicalOperation, "fragment Used")
		assert.NotContains(t, analysis.CanonicalOperation, "fragment Unused")
	})

	t.Run("framing separates tuple boundaries", func(t *testing.T) {
		assert.NotEqual(t, frameHash("ab", "c"), frameHash("a", "bc"))
	})
}

func TestDecodeVariables(t *testing.T) {
	vars, err := DecodeVariables([]byte(`{"id": 1, "data": {"title": "A"}}`))
	require.NoError(t, err)
	assert.Equal(t, float64(1), vars["id"])
	assert.Equal(t, map[string]interface{}{"title": "A"}, vars["data"])

	vars, err = DecodeVariables([]byte(" null "))
	require.NoError(t, err)
	assert.Nil(t, vars)

	vars, err = DecodeVariables(nil)
	require.NoError(t, err)
	assert.Nil(t, vars)

	_, err = DecodeVariables([]byte(`[1, 2]`))
	assert.Error(t, err)
}

func TestNewEnvelope(t *testing.T) {
	env := NewEnvelope("{ posts { id } }", " Posts ", map[string]interface{}{"a": 1})
	assert.Equal(t, "Posts", env.OperationName)
	assert.Equal(t, len("{ posts { id } }"), env.DocumentSizeBytes)
	assert.Equal(t, 1, env.Variables["a"])
}
