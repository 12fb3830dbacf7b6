// Package operations assembles the root Query, Mutation and Subscription types
// from a type graph.
package operations

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/graphql-go/graphql"

	"collections-graphql/internal/naming"
	"collections-graphql/internal/relschema"
	"collections-graphql/internal/typegraph"
)

// Resolvers supplies the behavior behind each generated operation.
type Resolvers interface {
	// Read serves the list read, or the single record of a singleton.
	Read(collection string) graphql.FieldResolveFn
	ReadByID(collection string) graphql.FieldResolveFn
	ReadByVersion(collection string) graphql.FieldResolveFn
	Aggregate(collection string) graphql.FieldResolveFn
	// Mutate serves every mutation of a collection; the operation is named by the field.
	Mutate(collection string) graphql.FieldResolveFn
	Subscribe(collection string) graphql.FieldResolveFn
}

// Options configures assembly.
type Options struct {
	// ReadOnlyCollections never get mutations.
	ReadOnlyCollections []string
	Naming              naming.Config
	Logger              *slog.Logger
}

// Mutation cardinality suffixes.
const (
	SuffixItems = "items"
	SuffixItem  = "item"
	SuffixBatch = "batch"
)

type assembler struct {
	graph     *typegraph.Graph
	resolvers Resolvers
	namer     *naming.Namer
	readOnly  map[string]struct{}
	read      *typegraph.ActionGraph

	query        graphql.Fields
	mutation     graphql.Fields
	subscription graphql.Fields
}

// Assemble builds the executable schema for a graph.
func Assemble(graph *typegraph.Graph, resolvers Resolvers, opts Options) (graphql.Schema, error) {
	config := SchemaConfig(graph, resolvers, opts)
	schema, err := graphql.NewSchema(config)
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to assemble %s schema: %w", graph.Scope, err)
	}
	return schema, nil
}

// SchemaConfig returns the root types without validating them as a schema.
func SchemaConfig(graph *typegraph.Graph, resolvers Resolvers, opts Options) graphql.SchemaConfig {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	a := &assembler{
		graph:        graph,
		resolvers:    resolvers,
		namer:        naming.New(opts.Naming, opts.Logger),
		readOnly:     map[string]struct{}{},
		read:         graph.Action(relschema.ActionRead),
		query:        graphql.Fields{},
		mutation:     graphql.Fields{},
		subscription: graphql.Fields{},
	}
	for _, name := range opts.ReadOnlyCollections {
		a.readOnly[name] = struct{}{}
	}

	a.addQueries()
	a.addCreateMutations()
	a.addUpdateMutations()
	a.addDeleteMutations()
	if graph.Scope == typegraph.ScopeItems {
		a.addSubscriptions()
	}

	if len(a.query) == 0 {
		a.query["_empty"] = &graphql.Field{
			Type:        graph.Shared.Void,
			Description: "There's no data to query.",
		}
	}
	config := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: a.query}),
	}
	if len(a.mutation) > 0 {
		config.Mutation = graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: a.mutation})
	}
	if len(a.subscription) > 0 {
		config.Subscription = graphql.NewObject(graphql.ObjectConfig{Name: "Subscription", Fields: a.subscription})
	}
	return config
}

// inScope reports whether a collection's operations belong to the graph's scope.
func (a *assembler) inScope(collection string) bool {
	system := relschema.IsSystem(collection, a.graph.Options.SystemPrefix)
	if a.graph.Scope == typegraph.ScopeSystem {
		return system
	}
	return !system
}

// operationBase is the collection name used inside operation names. System
// operations drop the system prefix.
func (a *assembler) operationBase(collection string) string {
	if a.graph.Scope == typegraph.ScopeSystem {
		return strings.TrimPrefix(collection, a.graph.Options.SystemPrefix)
	}
	return collection
}

func (a *assembler) register(fields graphql.Fields, root, name, collection string, field *graphql.Field) {
	fields[a.namer.RegisterOperation(root, name, collection)] = field
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
