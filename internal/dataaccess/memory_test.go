package dataaccess

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collections-graphql/internal/apierror"
	"collections-graphql/internal/query"
	"collections-graphql/internal/relschema"
	"collections-graphql/internal/testutil/fixture"
)

func newBlogStore(t *testing.T) *Memory {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	m := NewMemory(fixture.Blog(t), WithClock(clock))
	require.NoError(t, m.Seed("users",
		Item{"id": "u1", "name": "Ada", "active": true},
		Item{"id": "u2", "name": "Grace", "active": false},
	))
	require.NoError(t, m.Seed("posts",
		Item{"id": 1, "title": "Hello", "author": "u1", "status": "published", "published_on": "2024-03-05", "views": 10},
		Item{"id": 2, "title": "Draft", "author": "u2", "status": "draft", "published_on": "2023-12-31", "views": 3},
		Item{"id": 3, "title": "Again", "author": "u1", "status": "published", "views": 7},
	))
	require.NoError(t, m.Seed("comments",
		Item{"id": 1, "post": 1, "text": "first"},
		Item{"id": 2, "post": 1, "text": "second"},
		Item{"id": 3, "post": 2, "text": "third"},
	))
	return m
}

func TestMemoryRead(t *testing.T) {
	ctx := context.Background()
	m := newBlogStore(t)

	t.Run("projects nested many-to-one fields", func(t *testing.T) {
		item, err := m.ReadOne(ctx, "posts", 1, &query.Query{Fields: []string{"title", "author.name"}})
		require.NoError(t, err)
		assert.Equal(t, Item{"title": "Hello", "author": Item{"name": "Ada"}}, item)
	})

	t.Run("missing record reads as nil", func(t *testing.T) {
		item, err := m.ReadOne(ctx, "posts", 99, nil)
		require.NoError(t, err)
		assert.Nil(t, item)
	})

	t.Run("unknown collection", func(t *testing.T) {
		_, err := m.ReadByQuery(ctx, "nope", &query.Query{})
		assert.Equal(t, apierror.CodeNotFound, apierror.CodeOf(err))
	})

	t.Run("filter sort and limit", func(t *testing.T) {
		items, err := m.ReadByQuery(ctx, "posts", &query.Query{
			Fields: []string{"id"},
			Filter: map[string]interface{}{"status": map[string]interface{}{"_eq": "published"}},
			Sort:   []string{"-views"},
			Limit:  query.IntPtr(1),
		})
		require.NoError(t, err)
		assert.Equal(t, []Item{{"id": 1}}, items)
	})

	t.Run("offset past the end is empty", func(t *testing.T) {
		items, err := m.ReadByQuery(ctx, "posts", &query.Query{Fields: []string{"id"}, Offset: query.IntPtr(10)})
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("page uses the limit as page size", func(t *testing.T) {
		items, err := m.ReadByQuery(ctx, "posts", &query.Query{
			Fields: []string{"id"}, Sort: []string{"id"}, Limit: query.IntPtr(2), Page: query.IntPtr(2),
		})
		require.NoError(t, err)
		assert.Equal(t, []Item{{"id": 3}}, items)
	})

	t.Run("filter through a relation", func(t *testing.T) {
		items, err := m.ReadByQuery(ctx, "posts", &query.Query{
			Fields: []string{"id"},
			Filter: map[string]interface{}{"author": map[string]interface{}{"name": map[string]interface{}{"_eq": "Grace"}}},
		})
		require.NoError(t, err)
		assert.Equal(t, []Item{{"id": 2}}, items)
	})

	t.Run("one-to-many some and none", func(t *testing.T) {
		some, err := m.ReadByQuery(ctx, "posts", &query.Query{
			Fields: []string{"id"},
			Sort:   []string{"id"},
			Filter: map[string]interface{}{"comments": map[string]interface{}{
				"_some": map[string]interface{}{"text": map[string]interface{}{"_contains": "ir"}},
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, []Item{{"id": 1}, {"id": 2}}, some)

		none, err := m.ReadByQuery(ctx, "posts", &query.Query{
			Fields: []string{"id"},
			Filter: map[string]interface{}{"comments": map[string]interface{}{
				"_none": map[string]interface{}{"id": map[string]interface{}{"_nnull": true}},
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, []Item{{"id": 3}}, none)
	})

	t.Run("logical operators", func(t *testing.T) {
		items, err := m.ReadByQuery(ctx, "posts", &query.Query{
			Fields: []string{"id"},
			Sort:   []string{"id"},
			Filter: map[string]interface{}{"_or": []interface{}{
				map[string]interface{}{"views": map[string]interface{}{"_gte": 10}},
				map[string]interface{}{"title": map[string]interface{}{"_istarts_with": "dr"}},
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, []Item{{"id": 1}, {"id": 2}}, items)
	})

	t.Run("function values in fields and filters", func(t *testing.T) {
		items, err := m.ReadByQuery(ctx, "posts", &query.Query{
			Fields: []string{"id", "year(published_on)"},
			Filter: map[string]interface{}{"year(published_on)": map[string]interface{}{"_eq": 2024}},
		})
		require.NoError(t, err)
		assert.Equal(t, []Item{{"id": 1, "published_on_year": 2024}}, items)
	})

	t.Run("one-to-many with deep limit", func(t *testing.T) {
		item, err := m.ReadOne(ctx, "posts", 1, &query.Query{
			Fields: []string{"comments.text"},
			Deep: map[string]interface{}{"comments": map[string]interface{}{
				"_sort": []interface{}{"-id"}, "_limit": 1,
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, Item{"comments": []interface{}{Item{"text": "second"}}}, item)
	})

	t.Run("aliased relation", func(t *testing.T) {
		item, err := m.ReadOne(ctx, "posts", 1, &query.Query{
			Fields: []string{"writer.name"},
			Alias:  map[string]string{"writer": "author"},
		})
		require.NoError(t, err)
		assert.Equal(t, Item{"writer": Item{"name": "Ada"}}, item)
	})

	t.Run("one-to-many leaf yields keys", func(t *testing.T) {
		item, err := m.ReadOne(ctx, "posts", 1, &query.Query{Fields: []string{"comments"}})
		require.NoError(t, err)
		assert.Equal(t, Item{"comments": []interface{}{1, 2}}, item)
	})

	t.Run("search", func(t *testing.T) {
		items, err := m.ReadByQuery(ctx, "posts", &query.Query{Fields: []string{"id"}, Search: query.StringPtr("AGA")})
		require.NoError(t, err)
		assert.Equal(t, []Item{{"id": 3}}, items)
	})
}

func TestMemoryAggregate(t *testing.T) {
	ctx := context.Background()
	m := newBlogStore(t)

	t.Run("without groups", func(t *testing.T) {
		rows, err := m.ReadByQuery(ctx, "posts", &query.Query{Aggregate: map[string][]string{"count": {"id"}, "countAll": {"*"}}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, Item{"id": 3}, rows[0]["count"])
		assert.Equal(t, 3, rows[0]["countAll"])
	})

	t.Run("grouped", func(t *testing.T) {
		rows, err := m.ReadByQuery(ctx, "posts", &query.Query{
			Aggregate: map[string][]string{"sum": {"views"}, "max": {"views"}},
			Group:     []string{"status"},
			Sort:      []string{"status"},
		})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "draft", rows[0]["status"])
		assert.Equal(t, Item{"status": "draft"}, rows[0]["group"])
		assert.Equal(t, Item{"views": 3.0}, rows[0]["sum"])
		assert.Equal(t, Item{"views": 17.0}, rows[1]["sum"])
		assert.Equal(t, Item{"views": 10.0}, rows[1]["max"])
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := m.ReadByQuery(ctx, "posts", &query.Query{Aggregate: map[string][]string{"avg": {"ghost"}}})
		assert.Equal(t, apierror.CodeInvalidQuery, apierror.CodeOf(err))
	})
}

func TestMemoryWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("create fills generated values", func(t *testing.T) {
		m := newBlogStore(t)
		key, err := m.CreateOne(ctx, "posts", Item{"title": "New"})
		require.NoError(t, err)
		assert.EqualValues(t, 4, key)

		raw, ok := m.Raw("posts", key)
		require.True(t, ok)
		assert.Equal(t, "2024-05-01T12:00:00Z", raw["created_at"])
	})

	t.Run("create rejects bad payloads", func(t *testing.T) {
		m := newBlogStore(t)
		_, err := m.CreateOne(ctx, "posts", Item{"body": "no title"})
		assert.Equal(t, apierror.CodeInvalidPayload, apierror.CodeOf(err))

		_, err = m.CreateOne(ctx, "posts", Item{"title": "x", "ghost": 1})
		assert.Equal(t, apierror.CodeInvalidPayload, apierror.CodeOf(err))

		_, err = m.CreateOne(ctx, "posts", Item{"id": 1, "title": "dup"})
		assert.Equal(t, apierror.CodeInvalidPayload, apierror.CodeOf(err))

		_, err = m.CreateOne(ctx, "tally", Item{"label": "needs a key"})
		assert.Equal(t, apierror.CodeInvalidPayload, apierror.CodeOf(err))
	})

	t.Run("create many is all or nothing", func(t *testing.T) {
		m := newBlogStore(t)
		_, err := m.CreateMany(ctx, "comments", []Item{{"text": "ok", "post": 1}, {"post": 1}})
		require.Error(t, err)
		assert.Equal(t, 3, m.Count("comments"))
	})

	t.Run("nested relations", func(t *testing.T) {
		m := newBlogStore(t)
		key, err := m.CreateOne(ctx, "posts", Item{
			"title":    "Nested",
			"author":   map[string]interface{}{"name": "Linus"},
			"comments": []interface{}{map[string]interface{}{"text": "hi"}, 3},
		})
		require.NoError(t, err)

		item, err := m.ReadOne(ctx, "posts", key, &query.Query{Fields: []string{"author.name", "comments.text"}})
		require.NoError(t, err)
		assert.Equal(t, Item{"name": "Linus"}, item["author"])
		assert.ElementsMatch(t, []interface{}{Item{"text": "hi"}, Item{"text": "third"}}, item["comments"])
	})

	t.Run("one-to-many edit form", func(t *testing.T) {
		m := newBlogStore(t)
		_, err := m.UpdateOne(ctx, "posts", 1, Item{"comments": map[string]interface{}{
			"create": []interface{}{map[string]interface{}{"text": "added"}},
			"delete": []interface{}{2},
		}})
		require.NoError(t, err)
		item, err := m.ReadOne(ctx, "posts", 1, &query.Query{Fields: []string{"comments.text"}, Deep: map[string]interface{}{
			"comments": map[string]interface{}{"_sort": []interface{}{"id"}},
		}})
		require.NoError(t, err)
		assert.Equal(t, []interface{}{Item{"text": "first"}, Item{"text": "added"}}, item["comments"])
	})

	t.Run("update of a missing record is forbidden", func(t *testing.T) {
		m := newBlogStore(t)
		_, err := m.UpdateOne(ctx, "posts", 42, Item{"title": "x"})
		assert.Equal(t, apierror.CodeForbidden, apierror.CodeOf(err))
	})

	t.Run("batch update needs keys", func(t *testing.T) {
		m := newBlogStore(t)
		keys, err := m.UpdateBatch(ctx, "posts", []Item{{"id": 1, "title": "A"}, {"id": 2, "title": "B"}})
		require.NoError(t, err)
		assert.Equal(t, []interface{}{1, 2}, keys)
		raw, _ := m.Raw("posts", 2)
		assert.Equal(t, "B", raw["title"])

		_, err = m.UpdateBatch(ctx, "posts", []Item{{"title": "C"}})
		assert.Equal(t, apierror.CodeInvalidPayload, apierror.CodeOf(err))
	})

	t.Run("update many shares the patch", func(t *testing.T) {
		m := newBlogStore(t)
		_, err := m.UpdateMany(ctx, "posts", []interface{}{1, 3}, Item{"status": "archived"})
		require.NoError(t, err)
		items, err := m.ReadByQuery(ctx, "posts", &query.Query{
			Fields: []string{"id"}, Filter: map[string]interface{}{"status": map[string]interface{}{"_eq": "archived"}},
		})
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("delete clears links", func(t *testing.T) {
		m := newBlogStore(t)
		key, err := m.DeleteOne(ctx, "posts", 1)
		require.NoError(t, err)
		assert.Equal(t, 1, key)
		raw, ok := m.Raw("comments", 1)
		require.True(t, ok)
		assert.Nil(t, raw["post"])

		_, err = m.DeleteMany(ctx, "posts", []interface{}{2, 99})
		assert.Equal(t, apierror.CodeForbidden, apierror.CodeOf(err))
		assert.Equal(t, 2, m.Count("posts"))
	})

	t.Run("singleton upsert", func(t *testing.T) {
		m := newBlogStore(t)
		empty, err := m.ReadSingleton(ctx, "settings", &query.Query{Fields: []string{"site_name"}})
		require.NoError(t, err)
		assert.Equal(t, Item{"site_name": nil}, empty)

		first, err := m.UpsertSingleton(ctx, "settings", Item{"site_name": "Blog"})
		require.NoError(t, err)
		second, err := m.UpsertSingleton(ctx, "settings", Item{"site_name": "Renamed"})
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, m.Count("settings"))
	})
}

func TestMemoryPolymorphic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(fixture.Blog(t))
	require.NoError(t, m.Seed("headings", Item{"id": 1, "text": "Title"}))
	require.NoError(t, m.Seed("paragraphs", Item{"id": 1, "body": "Words"}))
	require.NoError(t, m.Seed("page_blocks",
		Item{"id": 1, "collection": "headings", "item": "1"},
		Item{"id": 2, "collection": "paragraphs", "item": "1"},
	))

	items, err := m.ReadByQuery(ctx, "page_blocks", &query.Query{
		Fields: []string{"item:headings.text", "item:paragraphs.body"},
		Sort:   []string{"id"},
	})
	require.NoError(t, err)
	assert.Equal(t, []Item{
		{"item": Item{"text": "Title"}, "collection": "headings"},
		{"item": Item{"body": "Words"}, "collection": "paragraphs"},
	}, items)

	filtered, err := m.ReadByQuery(ctx, "page_blocks", &query.Query{
		Fields: []string{"id"},
		Filter: map[string]interface{}{"item__paragraphs": map[string]interface{}{"body": map[string]interface{}{"_eq": "Words"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []Item{{"id": 2}}, filtered)
}

func TestMemoryVersions(t *testing.T) {
	m := NewMemory(fixture.Blog(t))
	m.SaveVersion("draft", "posts", 1, Item{"title": "One"})
	m.SaveVersion("draft", "posts", 1, Item{"title": "Two"})
	m.SaveVersion("draft", "settings", nil, Item{"site_name": "S"})

	saves, err := m.VersionSaves(context.Background(), "draft", "posts", 1)
	require.NoError(t, err)
	assert.Equal(t, []Item{{"title": "One"}, {"title": "Two"}}, saves)

	saves, err = m.VersionSaves(context.Background(), "draft", "settings", nil)
	require.NoError(t, err)
	assert.Len(t, saves, 1)

	saves, err = m.VersionSaves(context.Background(), "other", "posts", 1)
	require.NoError(t, err)
	assert.Empty(t, saves)
}

func TestMemorySetSchema(t *testing.T) {
	ctx := context.Background()
	m := newBlogStore(t)

	_, err := m.CreateOne(ctx, "posts", Item{"title": "Sub", "subtitle": "x"})
	require.Error(t, err)

	next := fixture.Blog(t).Clone()
	posts, _ := next.Collection("posts")
	posts.Fields["subtitle"] = &relschema.Field{Name: "subtitle", Type: "string", Nullable: true}
	m.SetSchema(next)

	key, err := m.CreateOne(ctx, "posts", Item{"title": "Sub", "subtitle": "x"})
	require.NoError(t, err)
	item, err := m.ReadOne(ctx, "posts", key, &query.Query{Fields: []string{"subtitle"}})
	require.NoError(t, err)
	assert.Equal(t, Item{"subtitle": "x"}, item)
	assert.Equal(t, 4, m.Count("posts"))
}
