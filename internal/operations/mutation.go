package operations

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"collections-graphql/internal/naming"
	"collections-graphql/internal/relschema"
)

// mutable reports whether a collection may receive mutations in this graph.
func (a *assembler) mutable(collection string) bool {
	if _, ok := a.readOnly[collection]; ok {
		return false
	}
	return a.inScope(collection)
}

// returnType is the read type when the caller can read the collection, else Boolean.
func (a *assembler) returnType(collection string, list bool) graphql.Output {
	obj := a.read.Output(collection)
	if obj == nil {
		return graphql.Boolean
	}
	if list {
		return graphql.NewList(obj)
	}
	return obj
}

// listArgs are the read arguments offered on plural mutations so the follow-up
// read can be shaped; they are only offered when the collection is readable.
func (a *assembler) listArgs(collection string) graphql.FieldConfigArgument {
	if a.read.Output(collection) == nil {
		return graphql.FieldConfigArgument{}
	}
	return a.queryArgs(collection)
}

func (a *assembler) addCreateMutations() {
	create := a.graph.Action(relschema.ActionCreate)
	if create == nil {
		return
	}
	for _, collection := range sortedKeys(create.Inputs) {
		if !a.mutable(collection) {
			continue
		}
		def, _ := create.Collection(collection)
		if def.Singleton {
			continue
		}
		input := create.Inputs[collection]
		base := a.operationBase(collection)

		args := a.listArgs(collection)
		args["data"] = &graphql.ArgumentConfig{Type: graphql.NewList(graphql.NewNonNull(input))}
		a.register(a.mutation, "Mutation", naming.Mutation(relschema.ActionCreate, base, SuffixItems), collection, &graphql.Field{
			Type:        a.returnType(collection, true),
			Description: fmt.Sprintf("Create %s.", a.namer.ItemsNoun(collection)),
			Args:        args,
			Resolve:     a.resolvers.Mutate(collection),
		})
		a.register(a.mutation, "Mutation", naming.Mutation(relschema.ActionCreate, base, SuffixItem), collection, &graphql.Field{
			Type:        a.returnType(collection, false),
			Description: fmt.Sprintf("Create a %s.", a.namer.ItemNoun(collection)),
			Args: graphql.FieldConfigArgument{
				"data": &graphql.ArgumentConfig{Type: graphql.NewNonNull(input)},
			},
			Resolve: a.resolvers.Mutate(collection),
		})
	}
}

func (a *assembler) addUpdateMutations() {
	update := a.graph.Action(relschema.ActionUpdate)
	if update == nil {
		return
	}
	for _, collection := range sortedKeys(update.Inputs) {
		if !a.mutable(collection) {
			continue
		}
		def, _ := update.Collection(collection)
		input := update.Inputs[collection]
		base := a.operationBase(collection)

		if def.Singleton {
			a.register(a.mutation, "Mutation", naming.Mutation(relschema.ActionUpdate, base, ""), collection, &graphql.Field{
				Type:        a.returnType(collection, false),
				Description: fmt.Sprintf("Update the %s.", a.namer.ItemNoun(collection)),
				Args: graphql.FieldConfigArgument{
					"data": &graphql.ArgumentConfig{Type: graphql.NewNonNull(input)},
				},
				Resolve: a.resolvers.Mutate(collection),
			})
			continue
		}

		batchArgs := a.listArgs(collection)
		batchArgs["data"] = &graphql.ArgumentConfig{Type: graphql.NewList(graphql.NewNonNull(input))}
		a.register(a.mutation, "Mutation", naming.Mutation(relschema.ActionUpdate, base, SuffixBatch), collection, &graphql.Field{
			Type:        a.returnType(collection, true),
			Description: fmt.Sprintf("Update %s, each record carrying its own primary key.", a.namer.ItemsNoun(collection)),
			Args:        batchArgs,
			Resolve:     a.resolvers.Mutate(collection),
		})

		itemsArgs := a.listArgs(collection)
		itemsArgs["ids"] = &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.ID))}
		itemsArgs["data"] = &graphql.ArgumentConfig{Type: graphql.NewNonNull(input)}
		a.register(a.mutation, "Mutation", naming.Mutation(relschema.ActionUpdate, base, SuffixItems), collection, &graphql.Field{
			Type:        a.returnType(collection, true),
			Description: fmt.Sprintf("Apply one patch to several %s.", a.namer.ItemsNoun(collection)),
			Args:        itemsArgs,
			Resolve:     a.resolvers.Mutate(collection),
		})

		a.register(a.mutation, "Mutation", naming.Mutation(relschema.ActionUpdate, base, SuffixItem), collection, &graphql.Field{
			Type:        a.returnType(collection, false),
			Description: fmt.Sprintf("Update a %s.", a.namer.ItemNoun(collection)),
			Args: graphql.FieldConfigArgument{
				"id":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				"data": &graphql.ArgumentConfig{Type: graphql.NewNonNull(input)},
			},
			Resolve: a.resolvers.Mutate(collection),
		})
	}
}

func (a *assembler) addDeleteMutations() {
	del := a.graph.Action(relschema.ActionDelete)
	if del == nil {
		return
	}
	for _, collection := range sortedKeys(del.Objects) {
		if !a.mutable(collection) {
			continue
		}
		def, _ := del.Collection(collection)
		if def.Singleton {
			continue
		}
		base := a.operationBase(collection)
		a.register(a.mutation, "Mutation", naming.Mutation(relschema.ActionDelete, base, SuffixItems), collection, &graphql.Field{
			Type:        a.graph.Shared.DeleteMany,
			Description: fmt.Sprintf("Delete %s.", a.namer.ItemsNoun(collection)),
			Args: graphql.FieldConfigArgument{
				"ids": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.ID))},
			},
			Resolve: a.resolvers.Mutate(collection),
		})
		a.register(a.mutation, "Mutation", naming.Mutation(relschema.ActionDelete, base, SuffixItem), collection, &graphql.Field{
			Type:        a.graph.Shared.DeleteOne,
			Description: fmt.Sprintf("Delete a %s.", a.namer.ItemNoun(collection)),
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: a.resolvers.Mutate(collection),
		})
	}
}
