// Package typegraph derives GraphQL types from permission-filtered collection
// schemas. Each action gets its own set of types; read additionally gets filter,
// aggregate, function and version shadow types.
package typegraph

import (
	"log/slog"

	"github.com/graphql-go/graphql"

	"collections-graphql/internal/naming"
	"collections-graphql/internal/permissions"
	"collections-graphql/internal/relschema"
	"collections-graphql/internal/schemafilter"
)

// Scope selects which audience a graph is composed for.
type Scope string

const (
	// ScopeItems exposes ordinary collections.
	ScopeItems Scope = "items"
	// ScopeSystem exposes only system collections.
	ScopeSystem Scope = "system"
)

// Options carries the collection lists that change how types are built.
type Options struct {
	// DenyCollections are never given types.
	DenyCollections []string
	// LegacyIDCollections keep a nullable primary key on every action.
	LegacyIDCollections []string
	// SystemPrefix identifies system collections.
	SystemPrefix string
	Naming       naming.Config
	Logger       *slog.Logger
}

// Graph is the set of types derived for one (scope, role) combination.
type Graph struct {
	Scope   Scope
	Options Options
	Shared  *Shared
	Actions map[relschema.Action]*ActionGraph
}

// ActionGraph holds the types built from one action's schema. Read and delete
// produce output objects; create and update produce input objects.
type ActionGraph struct {
	Action  relschema.Action
	Schema  *relschema.Schema
	Objects map[string]*graphql.Object
	Inputs  map[string]*graphql.InputObject
	// Read only.
	Filters    map[string]*graphql.InputObject
	Aggregates map[string]*graphql.Object
	Versions   map[string]*graphql.Object
	Unions     map[string]*graphql.Union
}

// Action returns the graph for an action, or nil when the action was not built.
func (g *Graph) Action(action relschema.Action) *ActionGraph {
	if g == nil {
		return nil
	}
	return g.Actions[action]
}

// Has reports whether the action graph carries a type for the collection.
func (a *ActionGraph) Has(collection string) bool {
	if a == nil {
		return false
	}
	if _, ok := a.Objects[collection]; ok {
		return true
	}
	_, ok := a.Inputs[collection]
	return ok
}

// Output returns the output object for a collection (read and delete graphs).
func (a *ActionGraph) Output(collection string) *graphql.Object {
	if a == nil {
		return nil
	}
	return a.Objects[collection]
}

// Input returns the input object for a collection (create and update graphs).
func (a *ActionGraph) Input(collection string) *graphql.InputObject {
	if a == nil {
		return nil
	}
	return a.Inputs[collection]
}

// Collection returns the collection definition from the action's schema.
func (a *ActionGraph) Collection(name string) (*relschema.Collection, bool) {
	if a == nil {
		return nil, false
	}
	return a.Schema.Collection(name)
}

// Build derives the type graph. It never fails: collections and relations that
// cannot be expressed are skipped.
func Build(schemas schemafilter.ActionSchemas, inconsistent map[relschema.Action]permissions.InconsistentFields, scope Scope, opts Options) *Graph {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	g := &Graph{
		Scope:   scope,
		Options: opts,
		Shared:  newShared(),
		Actions: make(map[relschema.Action]*ActionGraph, len(relschema.Actions)),
	}
	namer := naming.New(opts.Naming, opts.Logger)
	for _, action := range relschema.Actions {
		schema := schemas[action]
		if schema == nil {
			schema = relschema.New()
		}
		b := &builder{
			graph:         g,
			action:        action,
			schema:        schema,
			inconsistent:  inconsistent[action],
			namer:         namer,
			deny:          toSet(opts.DenyCollections),
			legacyID:      toSet(opts.LegacyIDCollections),
			fields:        map[string]graphql.Fields{},
			inputFields:   map[string]graphql.InputObjectConfigFieldMap{},
			versionFields: map[string]graphql.Fields{},
			filterFields:  map[string]graphql.InputObjectConfigFieldMap{},
		}
		g.Actions[action] = b.build()
	}
	return g
}

type builder struct {
	graph        *Graph
	action       relschema.Action
	schema       *relschema.Schema
	inconsistent permissions.InconsistentFields
	namer        *naming.Namer
	deny         map[string]struct{}
	legacyID     map[string]struct{}

	out *ActionGraph
	// Field maps are held by reference so the relation pass can add to types
	// that already exist; graphql-go defines fields lazily.
	fields        map[string]graphql.Fields
	inputFields   map[string]graphql.InputObjectConfigFieldMap
	versionFields map[string]graphql.Fields
	filterFields  map[string]graphql.InputObjectConfigFieldMap
}

func (b *builder) build() *ActionGraph {
	b.out = &ActionGraph{
		Action:  b.action,
		Schema:  b.schema,
		Objects: map[string]*graphql.Object{},
		Inputs:  map[string]*graphql.InputObject{},
	}
	if b.action == relschema.ActionRead {
		b.out.Filters = map[string]*graphql.InputObject{}
		b.out.Aggregates = map[string]*graphql.Object{}
		b.out.Versions = map[string]*graphql.Object{}
		b.out.Unions = map[string]*graphql.Union{}
	}

	for _, name := range b.schema.CollectionNames() {
		collection := b.schema.Collections[name]
		if !b.exposed(collection) {
			continue
		}
		b.addCollectionType(collection)
		if b.action == relschema.ActionRead {
			b.addFilterType(collection)
		}
	}

	b.addRelations()

	if b.action == relschema.ActionRead {
		for name, filter := range b.filterFields {
			self := b.out.Filters[name]
			filter["_and"] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(self)}
			filter["_or"] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(self)}
		}
		for _, name := range b.schema.CollectionNames() {
			if collection, ok := b.schema.Collections[name]; ok && b.out.Has(name) {
				b.addAggregateType(collection)
			}
		}
	}
	return b.out
}

// exposed reports whether a collection gets a type under this action. A type
// needs at least one field GraphQL can name, otherwise the schema is invalid.
func (b *builder) exposed(collection *relschema.Collection) bool {
	if _, denied := b.deny[collection.Name]; denied {
		return false
	}
	if b.graph.Scope == ScopeSystem && !relschema.IsSystem(collection.Name, b.graph.Options.SystemPrefix) {
		return false
	}
	if !b.namer.UsableCollection(collection.Name) {
		return false
	}
	for _, name := range collection.FieldNames() {
		if b.namer.UsableField(collection.Name, name) {
			return true
		}
	}
	b.graph.Options.Logger.Warn("collection has no field that can be exposed in GraphQL, skipping",
		slog.String("collection", collection.Name),
		slog.String("action", string(b.action)),
	)
	return false
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
