package operations

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"collections-graphql/internal/naming"
)

// addSubscriptions registers <collection>_mutated for every readable collection.
// Each published payload is executed as the root value, so the field resolves to it.
func (a *assembler) addSubscriptions() {
	if a.read == nil {
		return
	}
	for _, collection := range sortedKeys(a.read.Objects) {
		if !a.inScope(collection) {
			continue
		}
		payload := graphql.NewObject(graphql.ObjectConfig{
			Name: naming.MutatedType(collection),
			Fields: graphql.Fields{
				"key":   &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
				"event": &graphql.Field{Type: a.graph.Shared.EventEnum},
				"data":  &graphql.Field{Type: a.read.Objects[collection]},
			},
		})
		a.register(a.subscription, "Subscription", naming.Mutated(collection), collection, &graphql.Field{
			Type:        payload,
			Description: fmt.Sprintf("Receive an event whenever a %s is created, updated or deleted.", a.namer.ItemNoun(collection)),
			Args: graphql.FieldConfigArgument{
				"event": &graphql.ArgumentConfig{Type: a.graph.Shared.EventEnum},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source, nil
			},
			Subscribe: a.resolvers.Subscribe(collection),
		})
	}
}
