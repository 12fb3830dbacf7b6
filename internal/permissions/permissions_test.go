package permissions

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collections-graphql/internal/relschema"
	"collections-graphql/internal/schemafilter"
)

const rolesYAML = `
roles:
  admin:
    admin: true
  editor:
    read:
      posts: ["*"]
      users: [id, name]
    create:
      posts: [title, body]
    inconsistent:
      create:
        posts: [title]
  public:
    read:
      posts: [id, title]
  empty:
`

func TestStatic(t *testing.T) {
	static, err := Load(strings.NewReader(rolesYAML))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("admin sees everything", func(t *testing.T) {
		allowed, err := static.AllowedFields(ctx, "admin", relschema.ActionDelete)
		require.NoError(t, err)
		assert.Equal(t, schemafilter.AllowList{"*": {"*"}}, allowed)

		inconsistent, err := static.InconsistentFields(ctx, "admin", relschema.ActionCreate)
		require.NoError(t, err)
		assert.Empty(t, inconsistent)
	})

	t.Run("per action lists", func(t *testing.T) {
		read, err := static.AllowedFields(ctx, "editor", relschema.ActionRead)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name"}, read["users"])

		update, err := static.AllowedFields(ctx, "editor", relschema.ActionUpdate)
		require.NoError(t, err)
		assert.Empty(t, update)

		inconsistent, err := static.InconsistentFields(ctx, "editor", relschema.ActionCreate)
		require.NoError(t, err)
		assert.True(t, inconsistent.Contains("posts", "title"))
		assert.False(t, inconsistent.Contains("posts", "body"))
	})

	t.Run("empty role falls back to public", func(t *testing.T) {
		read, err := static.AllowedFields(ctx, "", relschema.ActionRead)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "title"}, read["posts"])
	})

	t.Run("unknown and empty roles see nothing", func(t *testing.T) {
		for _, role := range []string{"ghost", "empty"} {
			read, err := static.AllowedFields(ctx, role, relschema.ActionRead)
			require.NoError(t, err)
			assert.Empty(t, read, role)
		}
	})

	t.Run("returned lists are copies", func(t *testing.T) {
		read, err := static.AllowedFields(ctx, "editor", relschema.ActionRead)
		require.NoError(t, err)
		read["users"][0] = "mutated"
		again, err := static.AllowedFields(ctx, "editor", relschema.ActionRead)
		require.NoError(t, err)
		assert.Equal(t, "id", again["users"][0])
	})
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(strings.NewReader("roles:\n  x:\n    owner: true\n"))
	require.Error(t, err)
}

func TestAdminOnly(t *testing.T) {
	static := AdminOnly("root")
	allowed, err := static.AllowedFields(context.Background(), "root", relschema.ActionRead)
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, allowed["*"])
}
