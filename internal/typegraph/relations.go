package typegraph

import (
	"github.com/graphql-go/graphql"

	"collections-graphql/internal/naming"
	"collections-graphql/internal/relschema"
)

// addRelations wires relation fields once every collection type exists. A relation
// whose other side has no type under this action is skipped.
func (b *builder) addRelations() {
	for _, rel := range b.schema.Relations {
		if rel.Polymorphic() {
			if b.action == relschema.ActionRead {
				b.addPolymorphic(rel)
			}
			continue
		}
		if rel.RelatedCollection == "" {
			continue
		}
		if !b.out.Has(rel.Collection) || !b.out.Has(rel.RelatedCollection) {
			continue
		}
		if b.hasField(rel.Collection, rel.Field) {
			b.addRelationField(rel.Collection, rel.Field, rel.RelatedCollection, false)
		}
		if rel.OneField != "" && b.hasField(rel.RelatedCollection, rel.OneField) {
			b.addRelationField(rel.RelatedCollection, rel.OneField, rel.Collection, true)
		}
	}
}

func (b *builder) hasField(collection, field string) bool {
	c, ok := b.schema.Collection(collection)
	if !ok {
		return false
	}
	_, ok = c.Fields[field]
	return ok && b.namer.UsableField(collection, field)
}

// addRelationField exposes related records of target under owner.field; many
// marks the one-to-many side.
func (b *builder) addRelationField(owner, field, target string, many bool) {
	switch b.action {
	case relschema.ActionCreate, relschema.ActionUpdate:
		var t graphql.Input = b.out.Inputs[target]
		if many {
			t = graphql.NewList(t)
		}
		b.inputFields[owner][field] = &graphql.InputObjectFieldConfig{Type: t}
		return
	}

	var t graphql.Output = b.out.Objects[target]
	if many {
		t = graphql.NewList(t)
	}
	relField := &graphql.Field{Type: t, Description: b.fieldNote(owner, field), Resolve: resolveByPath(field)}
	if b.action == relschema.ActionRead {
		relField.Args = b.relationArgs(target)
		b.versionFields[owner][field] = &graphql.Field{
			Type:        b.graph.Shared.JSON,
			Description: relField.Description,
			Resolve:     resolveByPath(field),
		}
		b.filterFields[owner][field] = &graphql.InputObjectFieldConfig{Type: b.out.Filters[target]}
	}
	b.fields[owner][field] = relField
}

// relationArgs are the query arguments accepted by a relation field on read.
func (b *builder) relationArgs(target string) graphql.FieldConfigArgument {
	return graphql.FieldConfigArgument{
		"filter": &graphql.ArgumentConfig{Type: b.out.Filters[target]},
		"sort":   &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
		"limit":  &graphql.ArgumentConfig{Type: graphql.Int},
		"offset": &graphql.ArgumentConfig{Type: graphql.Int},
		"page":   &graphql.ArgumentConfig{Type: graphql.Int},
		"search": &graphql.ArgumentConfig{Type: graphql.String},
	}
}

// addPolymorphic exposes a many-to-any relation as a union over the allowed
// collections that have a read type. It is read-only because GraphQL has no
// union input types.
func (b *builder) addPolymorphic(rel *relschema.Relation) {
	if !b.out.Has(rel.Collection) || !b.hasField(rel.Collection, rel.Field) {
		return
	}
	var types []*graphql.Object
	branches := map[string]*graphql.Object{}
	for _, allowed := range rel.OneAllowedCollections {
		obj, ok := b.out.Objects[allowed]
		if !ok {
			continue
		}
		if _, seen := branches[allowed]; seen {
			continue
		}
		types = append(types, obj)
		branches[allowed] = obj
	}
	if len(types) == 0 {
		return
	}

	union := graphql.NewUnion(graphql.UnionConfig{
		Name:        naming.UnionType(rel.Collection, rel.Field),
		Types:       types,
		ResolveType: resolveUnionType(branches),
	})
	b.out.Unions[rel.Collection+"."+rel.Field] = union

	b.fields[rel.Collection][rel.Field] = &graphql.Field{
		Type:        union,
		Description: b.fieldNote(rel.Collection, rel.Field),
		Resolve:     resolveUnionItem(rel.Field, rel.OneCollectionField),
	}
	b.versionFields[rel.Collection][rel.Field] = &graphql.Field{
		Type:    b.graph.Shared.JSON,
		Resolve: resolveByPath(rel.Field),
	}

	filter := b.filterFields[rel.Collection]
	delete(filter, rel.Field)
	for _, allowed := range rel.OneAllowedCollections {
		if target, ok := b.out.Filters[allowed]; ok {
			filter[naming.PolymorphicFilterField(rel.Field, allowed)] = &graphql.InputObjectFieldConfig{Type: target}
		}
	}
}

func (b *builder) fieldNote(collection, field string) string {
	c, ok := b.schema.Collection(collection)
	if !ok {
		return ""
	}
	if f, ok := c.Fields[field]; ok {
		return f.Note
	}
	return ""
}
