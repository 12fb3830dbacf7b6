package schemafilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collections-graphql/internal/relschema"
	"collections-graphql/internal/testutil/fixture"
)

func TestApply_AllowsAllByDefault(t *testing.T) {
	schema := fixture.Blog(t)

	filtered := Apply(schema, Config{})

	assert.Equal(t, schema.CollectionNames(), filtered.CollectionNames())
	assert.Len(t, filtered.Relations, len(schema.Relations))
}

func TestApply_CollectionAndFieldFilters(t *testing.T) {
	schema := fixture.Blog(t)

	filtered := Apply(schema, Config{
		DenyCollections: []string{"directus_*"},
		DenyFields: map[string][]string{
			"*":     {"id"},
			"users": {"PASS*"},
		},
	})

	for _, name := range filtered.CollectionNames() {
		assert.NotContains(t, name, "directus_")
	}
	users := filtered.Collections["users"]
	require.NotNil(t, users)
	assert.NotContains(t, users.Fields, "password", "deny is case-insensitive")
	assert.Contains(t, users.Fields, "id", "primary key survives field deny rules")

	assert.Contains(t, schema.Collections["users"].Fields, "password", "source schema untouched")
}

func TestApply_AllowList(t *testing.T) {
	schema := fixture.Blog(t)

	filtered := Apply(schema, Config{AllowCollections: []string{"posts", "users"}})

	assert.Equal(t, []string{"posts", "users"}, filtered.CollectionNames())
	for _, rel := range filtered.Relations {
		assert.Contains(t, []string{"posts"}, rel.Collection)
	}
}

func TestIntersect(t *testing.T) {
	schema := fixture.Blog(t)

	t.Run("drops collections without visible fields", func(t *testing.T) {
		out := Intersect(schema, AllowList{
			"posts":    {"id", "title", "author"},
			"users":    {"id", "name"},
			"comments": {"nothing_matches"},
		})

		assert.Equal(t, []string{"posts", "users"}, out.CollectionNames())
		assert.Equal(t, []string{"author", "id", "title"}, out.Collections["posts"].FieldNames())
	})

	t.Run("reverse field hidden clears one_field", func(t *testing.T) {
		out := Intersect(schema, AllowList{
			"posts": {"id", "author"},
			"users": {"id"},
		})

		kind, rel, related := out.FieldRelation("posts", "author")
		assert.Equal(t, relschema.RelationManyToOne, kind)
		assert.Equal(t, "users", related)
		assert.Empty(t, rel.OneField)
	})

	t.Run("dangling related collection is kept for the builder to skip", func(t *testing.T) {
		out := Intersect(schema, AllowList{"posts": {"*"}})
		_, rel, related := out.FieldRelation("posts", "editor")
		require.NotNil(t, rel)
		assert.Equal(t, "ghosts", related)
	})

	t.Run("polymorphic targets are narrowed", func(t *testing.T) {
		out := Intersect(schema, AllowList{
			"page_blocks": {"*"},
			"headings":    {"*"},
		})
		kind, rel, _ := out.FieldRelation("page_blocks", "item")
		assert.Equal(t, relschema.RelationManyToAny, kind)
		assert.Equal(t, []string{"headings"}, rel.OneAllowedCollections)

		none := Intersect(schema, AllowList{"page_blocks": {"*"}})
		kind, _, _ = none.FieldRelation("page_blocks", "item")
		assert.Equal(t, relschema.RelationNone, kind)
	})

	t.Run("wildcard collection key", func(t *testing.T) {
		out := Intersect(schema, AllowList{"*": {"id"}})
		assert.Len(t, out.CollectionNames(), len(schema.CollectionNames())-1)
		assert.NotContains(t, out.Collections, "directus_collections", "no id field to show")
		for _, name := range out.CollectionNames() {
			assert.Equal(t, []string{"id"}, out.Collections[name].FieldNames())
		}
	})
}

func TestForActions(t *testing.T) {
	schema := fixture.Blog(t)

	schemas := ForActions(schema, map[relschema.Action]AllowList{
		relschema.ActionRead:   fixture.AllFields(schema),
		relschema.ActionCreate: {"posts": {"title"}},
	})

	require.Len(t, schemas, 4)
	assert.Equal(t, schema.CollectionNames(), schemas[relschema.ActionRead].CollectionNames())
	assert.Equal(t, []string{"posts"}, schemas[relschema.ActionCreate].CollectionNames())
	assert.Empty(t, schemas[relschema.ActionUpdate].Collections)
	assert.Empty(t, schemas[relschema.ActionDelete].Collections)
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("Posts", []string{"post*"}))
	assert.False(t, Matches("posts", []string{"[", ""}))
}
