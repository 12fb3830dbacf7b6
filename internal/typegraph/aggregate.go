package typegraph

import (
	"github.com/graphql-go/graphql"

	"collections-graphql/internal/fieldtype"
	"collections-graphql/internal/naming"
	"collections-graphql/internal/relschema"
)

var numericAggregates = []string{"avg", "sum", "avgDistinct", "sumDistinct", "min", "max"}

// addAggregateType builds <collection>_aggregated. Numeric aggregates are only
// offered when the collection has a numeric field to apply them to.
func (b *builder) addAggregateType(collection *relschema.Collection) {
	countFields := graphql.Fields{}
	numericFields := graphql.Fields{}
	for _, name := range collection.FieldNames() {
		if !b.namer.UsableField(collection.Name, name) {
			continue
		}
		countFields[name] = &graphql.Field{Type: graphql.Int}
		if fieldtype.Map(collection.Fields[name]).IsNumeric() {
			numericFields[name] = &graphql.Field{Type: graphql.Float}
		}
	}
	if len(countFields) == 0 {
		return
	}

	countType := graphql.NewObject(graphql.ObjectConfig{
		Name:   naming.AggregatedCountType(collection.Name),
		Fields: countFields,
	})
	fields := graphql.Fields{
		"group":         &graphql.Field{Type: b.graph.Shared.JSON},
		"countAll":      &graphql.Field{Type: graphql.Int},
		"count":         &graphql.Field{Type: countType},
		"countDistinct": &graphql.Field{Type: countType},
	}
	if len(numericFields) > 0 {
		numericType := graphql.NewObject(graphql.ObjectConfig{
			Name:   naming.AggregatedFieldsType(collection.Name),
			Fields: numericFields,
		})
		for _, method := range numericAggregates {
			fields[method] = &graphql.Field{Type: numericType}
		}
	}
	b.out.Aggregates[collection.Name] = graphql.NewObject(graphql.ObjectConfig{
		Name:   naming.AggregatedType(collection.Name),
		Fields: fields,
	})
}
