package typegraph

import (
	"github.com/graphql-go/graphql"

	"collections-graphql/internal/fieldtype"
	"collections-graphql/internal/naming"
	"collections-graphql/internal/relschema"
)

// addFilterType creates the filter input of a collection with one operator entry
// per field. Relation entries and _and/_or are added once all filters exist.
func (b *builder) addFilterType(collection *relschema.Collection) {
	fields := graphql.InputObjectConfigFieldMap{}
	for _, name := range collection.FieldNames() {
		if !b.namer.UsableField(collection.Name, name) {
			continue
		}
		field := collection.Fields[name]
		operators := b.graph.Shared.Operators[fieldtype.Map(field).FilterOperatorsName()]
		fields[name] = &graphql.InputObjectFieldConfig{Type: operators}

		set := fieldtype.FunctionsFor(field)
		if set == fieldtype.FunctionsNone {
			continue
		}
		fields[naming.FuncField(name)] = &graphql.InputObjectFieldConfig{Type: b.graph.Shared.FunctionFilters[set]}
	}
	b.filterFields[collection.Name] = fields
	b.out.Filters[collection.Name] = graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   naming.FilterType(collection.Name),
		Fields: fields,
	})
}
