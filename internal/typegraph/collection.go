package typegraph

import (
	"github.com/graphql-go/graphql"

	"collections-graphql/internal/fieldtype"
	"collections-graphql/internal/naming"
	"collections-graphql/internal/relschema"
)

// NonNull reports whether a field is required in the type derived for an action.
// Updates never require a field because an omitted value is not an invalid one.
func NonNull(field *relschema.Field, action relschema.Action, inconsistent bool) bool {
	return !field.Nullable &&
		!field.HasDefault &&
		!field.Generated() &&
		!inconsistent &&
		action != relschema.ActionUpdate
}

// PrimaryKeyType returns the ID type for a collection's primary key field.
func PrimaryKeyType(field *relschema.Field, action relschema.Action, legacyID bool) graphql.Type {
	switch {
	case legacyID:
		return graphql.ID
	case action == relschema.ActionCreate && !field.HasDefault && !field.Generated():
		return graphql.NewNonNull(graphql.ID)
	case action == relschema.ActionCreate || action == relschema.ActionUpdate:
		return graphql.ID
	default:
		return graphql.NewNonNull(graphql.ID)
	}
}

// fieldType resolves the declared GraphQL type of a scalar field.
func (b *builder) fieldType(collection *relschema.Collection, field *relschema.Field) graphql.Type {
	if field.Name == collection.Primary {
		_, legacy := b.legacyID[collection.Name]
		return PrimaryKeyType(field, b.action, legacy)
	}
	t := b.graph.Shared.Scalar(fieldtype.Map(field))
	if NonNull(field, b.action, b.inconsistent.Contains(collection.Name, field.Name)) {
		return graphql.NewNonNull(t)
	}
	return t
}

func (b *builder) addCollectionType(collection *relschema.Collection) {
	typeName := naming.CollectionType(b.action, collection.Name)

	if b.action == relschema.ActionCreate || b.action == relschema.ActionUpdate {
		fields := graphql.InputObjectConfigFieldMap{}
		for _, name := range collection.FieldNames() {
			if !b.namer.UsableField(collection.Name, name) {
				continue
			}
			field := collection.Fields[name]
			fields[name] = &graphql.InputObjectFieldConfig{
				Type:        b.fieldType(collection, field),
				Description: field.Note,
			}
		}
		b.inputFields[collection.Name] = fields
		b.out.Inputs[collection.Name] = graphql.NewInputObject(graphql.InputObjectConfig{
			Name:        typeName,
			Description: collection.Note,
			Fields:      fields,
		})
		return
	}

	fields := graphql.Fields{}
	for _, name := range collection.FieldNames() {
		if !b.namer.UsableField(collection.Name, name) {
			continue
		}
		field := collection.Fields[name]
		fields[name] = &graphql.Field{
			Type:        b.fieldType(collection, field),
			Description: field.Note,
			Resolve:     resolveByPath(name),
		}
		if b.action != relschema.ActionRead {
			continue
		}
		set := fieldtype.FunctionsFor(field)
		if set == fieldtype.FunctionsNone {
			continue
		}
		fields[naming.FuncField(name)] = &graphql.Field{
			Type:    b.graph.Shared.Functions[set],
			Resolve: resolveFunctions(name, set),
		}
	}
	b.fields[collection.Name] = fields
	b.out.Objects[collection.Name] = graphql.NewObject(graphql.ObjectConfig{
		Name:        typeName,
		Description: collection.Note,
		Fields:      fields,
	})

	if b.action != relschema.ActionRead {
		return
	}
	versionFields := make(graphql.Fields, len(fields))
	for name, field := range fields {
		copied := *field
		versionFields[name] = &copied
	}
	b.versionFields[collection.Name] = versionFields
	b.out.Versions[collection.Name] = graphql.NewObject(graphql.ObjectConfig{
		Name:        naming.VersionType(collection.Name),
		Description: collection.Note,
		Fields:      versionFields,
	})
}
