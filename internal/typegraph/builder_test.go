package typegraph

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collections-graphql/internal/fieldtype"
	"collections-graphql/internal/permissions"
	"collections-graphql/internal/relschema"
	"collections-graphql/internal/schemafilter"
	"collections-graphql/internal/testutil/fixture"
)

func testOptions() Options {
	return Options{
		DenyCollections:     []string{"directus_collections"},
		LegacyIDCollections: []string{"directus_permissions"},
		SystemPrefix:        "directus_",
		Logger:              slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
}

func allActions(schema *relschema.Schema) schemafilter.ActionSchemas {
	allow := fixture.AllFields(schema)
	return schemafilter.ForActions(schema, map[relschema.Action]schemafilter.AllowList{
		relschema.ActionRead:   allow,
		relschema.ActionCreate: allow,
		relschema.ActionUpdate: allow,
		relschema.ActionDelete: allow,
	})
}

func buildBlog(t *testing.T) *Graph {
	t.Helper()
	return Build(allActions(fixture.Blog(t)), nil, ScopeItems, testOptions())
}

func fieldTypes(obj *graphql.Object) map[string]string {
	out := map[string]string{}
	for name, def := range obj.Fields() {
		out[name] = def.Type.String()
	}
	return out
}

func inputTypes(obj *graphql.InputObject) map[string]string {
	out := map[string]string{}
	for name, def := range obj.Fields() {
		out[name] = def.Type.String()
	}
	return out
}

func TestNonNullCrossProduct(t *testing.T) {
	for mask := 0; mask < 32; mask++ {
		nullable := mask&1 != 0
		hasDefault := mask&2 != 0
		generated := mask&4 != 0
		inconsistent := mask&8 != 0
		isUpdate := mask&16 != 0

		name := fmt.Sprintf("nullable=%t/default=%t/generated=%t/inconsistent=%t/update=%t",
			nullable, hasDefault, generated, inconsistent, isUpdate)
		t.Run(name, func(t *testing.T) {
			field := &relschema.Field{Name: "f", Type: "string", Nullable: nullable, HasDefault: hasDefault}
			if generated {
				field.Special = []string{relschema.SpecialUserCreated}
			}
			action := relschema.ActionCreate
			if isUpdate {
				action = relschema.ActionUpdate
			}
			want := !nullable && !hasDefault && !generated && !inconsistent && !isUpdate
			assert.Equal(t, want, NonNull(field, action, inconsistent))

			schema := relschema.New()
			schema.Collections["things"] = &relschema.Collection{
				Name:    "things",
				Primary: "id",
				Fields: map[string]*relschema.Field{
					"id": {Name: "id", Type: "integer", HasDefault: true},
					"f":  field,
				},
			}
			var inconsistentFields map[relschema.Action]permissions.InconsistentFields
			if inconsistent {
				inconsistentFields = map[relschema.Action]permissions.InconsistentFields{
					action: {"things": {"f"}},
				}
			}
			graph := Build(allActions(schema), inconsistentFields, ScopeItems, testOptions())
			input := graph.Action(action).Input("things")
			require.NotNil(t, input)
			_, isNonNull := input.Fields()["f"].Type.(*graphql.NonNull)
			assert.Equal(t, want, isNonNull)
		})
	}
}

func TestPrimaryKeyType(t *testing.T) {
	plain := &relschema.Field{Name: "id", Type: "string"}
	withDefault := &relschema.Field{Name: "id", Type: "integer", HasDefault: true}
	generated := &relschema.Field{Name: "id", Type: "uuid", Special: []string{relschema.SpecialUUID}}

	tests := []struct {
		name   string
		field  *relschema.Field
		action relschema.Action
		legacy bool
		want   string
	}{
		{"legacy read", withDefault, relschema.ActionRead, true, "ID"},
		{"legacy create", plain, relschema.ActionCreate, true, "ID"},
		{"create without default", plain, relschema.ActionCreate, false, "ID!"},
		{"create with default", withDefault, relschema.ActionCreate, false, "ID"},
		{"create generated", generated, relschema.ActionCreate, false, "ID"},
		{"update", plain, relschema.ActionUpdate, false, "ID"},
		{"read", withDefault, relschema.ActionRead, false, "ID!"},
		{"delete", withDefault, relschema.ActionDelete, false, "ID!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrimaryKeyType(tt.field, tt.action, tt.legacy).String())
		})
	}
}

func TestReadTypes(t *testing.T) {
	graph := buildBlog(t)
	read := graph.Action(relschema.ActionRead)

	posts := fieldTypes(read.Output("posts"))
	assert.Equal(t, "ID!", posts["id"])
	assert.Equal(t, "String!", posts["title"])
	assert.Equal(t, "String", posts["status"], "default value keeps the field nullable")
	assert.Equal(t, "Date", posts["created_at"])
	assert.Equal(t, "GraphQLBigInt", posts["views"])
	assert.Equal(t, "[String]", posts["tags"])
	assert.Equal(t, "GraphQLGeoJSON", posts["location"])
	assert.Equal(t, "users", posts["author"])
	assert.Equal(t, "[comments]", posts["comments"])
	assert.Equal(t, "Int", posts["editor"], "dangling relation leaves the scalar field")
	assert.Equal(t, "date_functions", posts["published_on_func"])
	assert.Equal(t, "datetime_functions", posts["created_at_func"])
	assert.Equal(t, "count_functions", posts["metadata_func"])
	assert.Equal(t, "count_functions", posts["comments_func"])
	assert.NotContains(t, posts, "title_func")

	users := fieldTypes(read.Output("users"))
	assert.Equal(t, "Hash", users["password"])
	assert.Equal(t, "[posts]", users["posts"])

	comments := fieldTypes(read.Output("comments"))
	assert.Equal(t, "time_functions", comments["reviewed_at_func"])

	t.Run("relation arguments", func(t *testing.T) {
		def := read.Output("posts").Fields()["comments"]
		var args []string
		for _, arg := range def.Args {
			args = append(args, arg.Name())
		}
		sort.Strings(args)
		assert.Equal(t, []string{"filter", "limit", "offset", "page", "search", "sort"}, args)
	})

	t.Run("deny list", func(t *testing.T) {
		assert.Nil(t, read.Output("directus_collections"))
		assert.NotNil(t, read.Output("directus_users"))
	})

	t.Run("legacy id", func(t *testing.T) {
		assert.Equal(t, "ID", fieldTypes(read.Output("directus_permissions"))["id"])
	})
}

func TestPolymorphicUnion(t *testing.T) {
	graph := buildBlog(t)
	read := graph.Action(relschema.ActionRead)

	blocks := read.Output("page_blocks").Fields()
	union, ok := blocks["item"].Type.(*graphql.Union)
	require.True(t, ok)
	assert.Equal(t, "page_blocks_item_union", union.Name())

	var branches []string
	for _, obj := range union.Types() {
		branches = append(branches, obj.Name())
	}
	assert.ElementsMatch(t, []string{"headings", "paragraphs"}, branches)

	filter := inputTypes(read.Filters["page_blocks"])
	assert.NotContains(t, filter, "item")
	assert.Equal(t, "headings_filter", filter["item__headings"])
	assert.Equal(t, "paragraphs_filter", filter["item__paragraphs"])

	t.Run("skipped when no branch is readable", func(t *testing.T) {
		schema := fixture.Blog(t)
		allow := fixture.AllFields(schema)
		delete(allow, "headings")
		delete(allow, "paragraphs")
		schemas := allActions(schema)
		schemas[relschema.ActionRead] = schemafilter.Intersect(schema, allow)
		graph := Build(schemas, nil, ScopeItems, testOptions())
		item := graph.Action(relschema.ActionRead).Output("page_blocks").Fields()["item"]
		assert.Equal(t, "String", item.Type.String())
	})
}

func TestUnionResolution(t *testing.T) {
	graph := buildBlog(t)
	read := graph.Action(relschema.ActionRead)
	union := read.Unions["page_blocks.item"]
	require.NotNil(t, union)

	parent := map[string]interface{}{
		"collection": "headings",
		"item":       map[string]interface{}{"id": 1, "text": "Hello"},
	}
	resolve := resolveUnionItem("item", "collection")
	value, err := resolve(graphql.ResolveParams{Source: parent, Info: graphql.ResolveInfo{Path: &graphql.ResponsePath{Key: "item"}}})
	require.NoError(t, err)

	item := value.(map[string]interface{})
	assert.Equal(t, "headings", item[DiscriminatorKey])
	assert.NotContains(t, parent["item"], DiscriminatorKey, "parent record is not modified")

	obj := union.ResolveType(graphql.ResolveTypeParams{Value: item})
	require.NotNil(t, obj)
	assert.Equal(t, "headings", obj.Name())
}

func TestFieldResolvers(t *testing.T) {
	t.Run("alias key", func(t *testing.T) {
		source := map[string]interface{}{"headline": "A", "title": "B"}
		value, err := resolveByPath("title")(graphql.ResolveParams{
			Source: source,
			Info:   graphql.ResolveInfo{Path: &graphql.ResponsePath{Key: "headline"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "A", value)
	})

	t.Run("functions", func(t *testing.T) {
		source := map[string]interface{}{"published_on_year": 2024, "published_on_month": 5, "title": "x"}
		value, err := resolveFunctions("published_on", fieldtype.FunctionsDate)(graphql.ResolveParams{Source: source})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"year": 2024, "month": 5}, value)
	})
}

func TestVersionTypes(t *testing.T) {
	graph := buildBlog(t)
	read := graph.Action(relschema.ActionRead)

	version := fieldTypes(read.Versions["posts"])
	assert.Equal(t, "JSON", version["author"])
	assert.Equal(t, "JSON", version["comments"])
	assert.Equal(t, "String!", version["title"])
	assert.Equal(t, "version_posts", read.Versions["posts"].Name())

	blocks := fieldTypes(read.Versions["page_blocks"])
	assert.Equal(t, "JSON", blocks["item"])
}

func TestFilterTypes(t *testing.T) {
	graph := buildBlog(t)
	read := graph.Action(relschema.ActionRead)

	posts := inputTypes(read.Filters["posts"])
	assert.Equal(t, "number_filter_operators", posts["id"])
	assert.Equal(t, "string_filter_operators", posts["title"])
	assert.Equal(t, "big_int_filter_operators", posts["views"])
	assert.Equal(t, "date_filter_operators", posts["published_on"])
	assert.Equal(t, "geometry_filter_operators", posts["location"])
	assert.Equal(t, "date_function_filter_operators", posts["published_on_func"])
	assert.Equal(t, "users_filter", posts["author"])
	assert.Equal(t, "comments_filter", posts["comments"])
	assert.Equal(t, "[posts_filter]", posts["_and"])
	assert.Equal(t, "[posts_filter]", posts["_or"])

	users := inputTypes(read.Filters["users"])
	assert.Equal(t, "hash_filter_operators", users["password"])
	assert.Equal(t, "boolean_filter_operators", users["active"])
	assert.Equal(t, "posts_filter", users["posts"])
}

func TestAggregateTypes(t *testing.T) {
	graph := buildBlog(t)
	read := graph.Action(relschema.ActionRead)

	posts := fieldTypes(read.Aggregates["posts"])
	assert.Equal(t, "JSON", posts["group"])
	assert.Equal(t, "Int", posts["countAll"])
	assert.Equal(t, "posts_aggregated_count", posts["count"])
	assert.Equal(t, "posts_aggregated_fields", posts["sum"])

	numeric := fieldTypes(read.Aggregates["posts"].Fields()["avg"].Type.(*graphql.Object))
	assert.Equal(t, map[string]string{"id": "Float", "editor": "Float", "views": "Float", "rating": "Float"}, numeric)

	tally := fieldTypes(read.Aggregates["tally"])
	assert.NotContains(t, tally, "avg")
	assert.Contains(t, tally, "countDistinct")
}

func TestMutationInputTypes(t *testing.T) {
	graph := buildBlog(t)

	create := graph.Action(relschema.ActionCreate)
	posts := inputTypes(create.Input("posts"))
	assert.Equal(t, "create_posts_input", create.Input("posts").Name())
	assert.Equal(t, "ID", posts["id"])
	assert.Equal(t, "String!", posts["title"])
	assert.Equal(t, "create_users_input", posts["author"])
	assert.Equal(t, "[create_comments_input]", posts["comments"])
	assert.NotContains(t, posts, "published_on_func")

	assert.Equal(t, "ID!", inputTypes(create.Input("tally"))["id"])

	update := graph.Action(relschema.ActionUpdate)
	updatePosts := inputTypes(update.Input("posts"))
	assert.Equal(t, "String", updatePosts["title"])
	assert.Equal(t, "update_users_input", updatePosts["author"])

	page := inputTypes(create.Input("page_blocks"))
	assert.Equal(t, "String", page["item"], "polymorphic relations stay scalar on input")

	del := graph.Action(relschema.ActionDelete)
	assert.Equal(t, "delete_posts", del.Output("posts").Name())
}

// describe flattens a graph into type -> sorted "field:type" entries.
func describe(g *Graph) map[string][]string {
	out := map[string][]string{}
	add := func(name string, fields map[string]string) {
		entries := make([]string, 0, len(fields))
		for f, t := range fields {
			entries = append(entries, f+":"+t)
		}
		sort.Strings(entries)
		out[name] = entries
	}
	for _, action := range relschema.Actions {
		a := g.Action(action)
		for _, obj := range a.Objects {
			add(string(action)+"/"+obj.Name(), fieldTypes(obj))
		}
		for _, in := range a.Inputs {
			add(string(action)+"/"+in.Name(), inputTypes(in))
		}
		for _, in := range a.Filters {
			add(in.Name(), inputTypes(in))
		}
		for _, obj := range a.Aggregates {
			add(obj.Name(), fieldTypes(obj))
		}
		for _, obj := range a.Versions {
			add(obj.Name(), fieldTypes(obj))
		}
	}
	return out
}

func TestBuildIsIdempotent(t *testing.T) {
	schema := fixture.Blog(t)
	first := Build(allActions(schema), nil, ScopeItems, testOptions())
	second := Build(allActions(schema), nil, ScopeItems, testOptions())

	if diff := cmp.Diff(describe(first), describe(second)); diff != "" {
		t.Fatalf("graphs differ (-first +second):\n%s", diff)
	}
}

func TestActionSchemasAreIndependent(t *testing.T) {
	schema := fixture.Blog(t)
	schemas := allActions(schema)
	schemas[relschema.ActionCreate] = schemafilter.Intersect(schema, schemafilter.AllowList{"posts": {"id", "title"}})

	graph := Build(schemas, nil, ScopeItems, testOptions())
	create := graph.Action(relschema.ActionCreate)
	assert.False(t, create.Has("users"))
	assert.Equal(t, map[string]string{"id": "ID", "title": "String!"}, inputTypes(create.Input("posts")))
	assert.True(t, graph.Action(relschema.ActionRead).Has("users"))
}

func loadSchema(t *testing.T, doc string) *relschema.Schema {
	t.Helper()
	schema, err := relschema.Load(strings.NewReader(doc))
	require.NoError(t, err)
	return schema
}

func TestSystemScope(t *testing.T) {
	schema := loadSchema(t, `
collections:
  posts:
    fields:
      id: {type: integer, has_default: true}
      title: {type: string}
  directus_users:
    fields:
      id: {type: uuid, special: [uuid]}
      favorite: {type: integer, nullable: true}
relations:
  - {collection: directus_users, field: favorite, related_collection: posts}
`)

	system := Build(allActions(schema), nil, ScopeSystem, testOptions())
	for _, action := range relschema.Actions {
		t.Run(string(action), func(t *testing.T) {
			graph := system.Action(action)
			assert.True(t, graph.Has("directus_users"))
			assert.False(t, graph.Has("posts"), "ordinary collections have no system type")
		})
	}

	read := system.Action(relschema.ActionRead)
	assert.NotContains(t, read.Filters, "posts")
	assert.NotContains(t, read.Aggregates, "posts")
	assert.Equal(t, "Int", fieldTypes(read.Output("directus_users"))["favorite"],
		"relation into an ordinary collection stays a plain value")
	assert.Equal(t, "Int", inputTypes(system.Action(relschema.ActionCreate).Input("directus_users"))["favorite"])

	items := Build(allActions(schema), nil, ScopeItems, testOptions())
	assert.Equal(t, "posts", fieldTypes(items.Action(relschema.ActionRead).Output("directus_users"))["favorite"])
}

func TestCollectionWithoutUsableFields(t *testing.T) {
	schema := loadSchema(t, `
collections:
  posts:
    fields:
      id: {type: integer, has_default: true}
      title: {type: string}
  weird:
    primary: the-key
    fields:
      the-key: {type: string}
      other field: {type: string, nullable: true}
`)

	graph := Build(allActions(schema), nil, ScopeItems, testOptions())
	for _, action := range relschema.Actions {
		assert.False(t, graph.Action(action).Has("weird"), action)
		assert.True(t, graph.Action(action).Has("posts"), action)
	}

	read := graph.Action(relschema.ActionRead)
	assert.NotContains(t, read.Filters, "weird")
	assert.NotContains(t, read.Aggregates, "weird")

	queryFields := graphql.Fields{}
	for name, obj := range read.Objects {
		queryFields[name] = &graphql.Field{Type: graphql.NewList(obj)}
	}
	_, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: queryFields}),
	})
	require.NoError(t, err)
}
