// Package fixture provides the shared blog schema used across package tests.
package fixture

import (
	"strings"
	"testing"

	"collections-graphql/internal/relschema"
)

// BlogYAML is a small schema covering scalar types, a singleton, one-to-many and
// many-to-one links, a polymorphic relation, a dangling relation and system collections.
const BlogYAML = `
collections:
  posts:
    primary: id
    note: Blog posts
    fields:
      id: {type: integer, has_default: true}
      title: {type: string}
      body: {type: text, nullable: true}
      author: {type: uuid, nullable: true}
      editor: {type: integer, nullable: true}
      status: {type: string, has_default: true}
      published_on: {type: date, nullable: true}
      created_at: {type: timestamp, special: [date-created]}
      metadata: {type: json, nullable: true}
      views: {type: bigInteger, nullable: true}
      rating: {type: float, nullable: true}
      price: {type: decimal, nullable: true}
      location: {type: geometry, nullable: true}
      tags: {type: csv, nullable: true}
      comments: {type: alias, nullable: true, special: [o2m]}
  users:
    fields:
      id: {type: uuid, special: [uuid]}
      name: {type: string}
      password: {type: hash, nullable: true, special: [conceal]}
      active: {type: boolean, has_default: true}
      posts: {type: alias, nullable: true, special: [o2m]}
  comments:
    fields:
      id: {type: integer, has_default: true}
      post: {type: integer, nullable: true}
      text: {type: text}
      reviewed_at: {type: time, nullable: true}
  settings:
    singleton: true
    fields:
      id: {type: integer, has_default: true}
      site_name: {type: string, nullable: true}
  page_blocks:
    fields:
      id: {type: integer, has_default: true}
      collection: {type: string, nullable: true}
      item: {type: string, nullable: true}
  headings:
    fields:
      id: {type: integer, has_default: true}
      text: {type: string, nullable: true}
  paragraphs:
    fields:
      id: {type: integer, has_default: true}
      body: {type: text, nullable: true}
  tally:
    fields:
      id: {type: string}
      label: {type: string, nullable: true}
  directus_users:
    fields:
      id: {type: uuid, special: [uuid]}
      email: {type: string, nullable: true}
  directus_permissions:
    fields:
      id: {type: integer, has_default: true}
      collection: {type: string}
  directus_activity:
    fields:
      id: {type: integer, has_default: true}
      action: {type: string}
  directus_collections:
    primary: collection
    fields:
      collection: {type: string}
relations:
  - {collection: posts, field: author, related_collection: users, one_field: posts}
  - {collection: comments, field: post, related_collection: posts, one_field: comments}
  - {collection: posts, field: editor, related_collection: ghosts}
  - {collection: page_blocks, field: item, one_allowed_collections: [headings, paragraphs], one_collection_field: collection}
`

// Blog loads BlogYAML and fails the test on error.
func Blog(t testing.TB) *relschema.Schema {
	t.Helper()
	schema, err := relschema.Load(strings.NewReader(BlogYAML))
	if err != nil {
		t.Fatalf("failed to load blog fixture: %v", err)
	}
	return schema
}

// AllFields returns an allow-list granting every field of every collection.
func AllFields(schema *relschema.Schema) map[string][]string {
	out := make(map[string][]string, len(schema.Collections))
	for _, name := range schema.CollectionNames() {
		out[name] = []string{"*"}
	}
	return out
}
