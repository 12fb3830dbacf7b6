package operations

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"collections-graphql/internal/naming"
	"collections-graphql/internal/typegraph"
)

// queryArgs are the arguments of a list read.
func (a *assembler) queryArgs(collection string) graphql.FieldConfigArgument {
	args := graphql.FieldConfigArgument{
		"sort":   &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
		"limit":  &graphql.ArgumentConfig{Type: graphql.Int},
		"offset": &graphql.ArgumentConfig{Type: graphql.Int},
		"page":   &graphql.ArgumentConfig{Type: graphql.Int},
		"search": &graphql.ArgumentConfig{Type: graphql.String},
	}
	if filter, ok := a.read.Filters[collection]; ok {
		args["filter"] = &graphql.ArgumentConfig{Type: filter}
	}
	return args
}

func (a *assembler) addQueries() {
	if a.read == nil {
		return
	}
	for _, collection := range sortedKeys(a.read.Objects) {
		if !a.inScope(collection) {
			continue
		}
		def, _ := a.read.Collection(collection)
		obj := a.read.Objects[collection]
		base := a.operationBase(collection)
		noun := a.namer.ItemNoun(collection)

		if def.Singleton {
			a.register(a.query, "Query", base, collection, &graphql.Field{
				Type:        obj,
				Description: fmt.Sprintf("Fetch the %s.", noun),
				Args: graphql.FieldConfigArgument{
					"version": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: a.resolvers.Read(collection),
			})
		} else {
			args := a.queryArgs(collection)
			args["version"] = &graphql.ArgumentConfig{Type: graphql.String}
			a.register(a.query, "Query", base, collection, &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(obj))),
				Description: fmt.Sprintf("Fetch %s.", a.namer.ItemsNoun(collection)),
				Args:        args,
				Resolve:     a.resolvers.Read(collection),
			})

			a.register(a.query, "Query", naming.ByID(base), collection, &graphql.Field{
				Type:        obj,
				Description: fmt.Sprintf("Fetch a single %s by primary key.", noun),
				Args: graphql.FieldConfigArgument{
					"id":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"version": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: a.resolvers.ReadByID(collection),
			})

			if aggregate, ok := a.read.Aggregates[collection]; ok {
				aggArgs := a.queryArgs(collection)
				aggArgs["groupBy"] = &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)}
				a.register(a.query, "Query", naming.Aggregated(base), collection, &graphql.Field{
					Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(aggregate))),
					Description: fmt.Sprintf("Aggregate %s.", a.namer.ItemsNoun(collection)),
					Args:        aggArgs,
					Resolve:     a.resolvers.Aggregate(collection),
				})
			}
		}

		if a.graph.Scope != typegraph.ScopeItems {
			continue
		}
		versionArgs := graphql.FieldConfigArgument{
			"version": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		}
		if !def.Singleton {
			versionArgs["id"] = &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)}
		}
		a.register(a.query, "Query", naming.ByVersion(base), collection, &graphql.Field{
			Type:        a.read.Versions[collection],
			Description: fmt.Sprintf("Fetch a %s with a draft version applied.", noun),
			Args:        versionArgs,
			Resolve:     a.resolvers.ReadByVersion(collection),
		})
	}
}
