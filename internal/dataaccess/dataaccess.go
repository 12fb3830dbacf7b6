// Package dataaccess defines the item and version services the engine executes
// canonical queries against, plus an in-memory implementation.
package dataaccess

import (
	"context"

	"collections-graphql/internal/query"
)

// Item is one record as returned to the engine. Keys are response keys: an
// aliased field is stored under its alias.
type Item = map[string]interface{}

// ItemService executes reads and writes for a collection. Implementations
// report domain failures as *apierror.Error values.
type ItemService interface {
	ReadOne(ctx context.Context, collection string, key interface{}, q *query.Query) (Item, error)
	ReadMany(ctx context.Context, collection string, keys []interface{}, q *query.Query) ([]Item, error)
	// ReadByQuery also serves aggregate queries, returning one row per group.
	ReadByQuery(ctx context.Context, collection string, q *query.Query) ([]Item, error)
	ReadSingleton(ctx context.Context, collection string, q *query.Query) (Item, error)

	CreateOne(ctx context.Context, collection string, data Item) (interface{}, error)
	CreateMany(ctx context.Context, collection string, data []Item) ([]interface{}, error)
	UpdateOne(ctx context.Context, collection string, key interface{}, data Item) (interface{}, error)
	UpdateMany(ctx context.Context, collection string, keys []interface{}, data Item) ([]interface{}, error)
	// UpdateBatch updates each record by the primary key it carries.
	UpdateBatch(ctx context.Context, collection string, data []Item) ([]interface{}, error)
	DeleteOne(ctx context.Context, collection string, key interface{}) (interface{}, error)
	DeleteMany(ctx context.Context, collection string, keys []interface{}) ([]interface{}, error)
	UpsertSingleton(ctx context.Context, collection string, data Item) (interface{}, error)
}

// VersionSource returns the ordered saves of a draft version. Singletons pass a nil key.
type VersionSource interface {
	VersionSaves(ctx context.Context, version, collection string, key interface{}) ([]Item, error)
}
