package typegraph

import (
	"github.com/graphql-go/graphql"

	"collections-graphql/internal/fieldtype"
	"collections-graphql/internal/naming"
	"collections-graphql/internal/scalars"
)

// Shared holds the types reused by every collection of a graph. graphql-go
// rejects two distinct types with the same name, so each graph creates them once.
type Shared struct {
	JSON          *graphql.Scalar
	GeoJSON       *graphql.Scalar
	BigInt        *graphql.Scalar
	Date          *graphql.Scalar
	Hash          *graphql.Scalar
	StringOrFloat *graphql.Scalar
	Void          *graphql.Scalar

	Functions       map[fieldtype.FunctionSet]*graphql.Object
	FunctionFilters map[fieldtype.FunctionSet]*graphql.InputObject
	// Operators is keyed by operator input name, e.g. string_filter_operators.
	Operators map[string]*graphql.InputObject

	EventEnum  *graphql.Enum
	DeleteMany *graphql.Object
	DeleteOne  *graphql.Object
}

var functionSets = []fieldtype.FunctionSet{
	fieldtype.FunctionsDate,
	fieldtype.FunctionsTime,
	fieldtype.FunctionsDateTime,
	fieldtype.FunctionsCount,
}

func newShared() *Shared {
	s := &Shared{
		JSON:            scalars.JSON(),
		GeoJSON:         scalars.GeoJSON(),
		BigInt:          scalars.BigInt(),
		Date:            scalars.Date(),
		Hash:            scalars.Hash(),
		StringOrFloat:   scalars.StringOrFloat(),
		Void:            scalars.Void(),
		Functions:       map[fieldtype.FunctionSet]*graphql.Object{},
		FunctionFilters: map[fieldtype.FunctionSet]*graphql.InputObject{},
		Operators:       map[string]*graphql.InputObject{},
	}
	s.buildOperators()

	for _, set := range functionSets {
		outFields := graphql.Fields{}
		filterFields := graphql.InputObjectConfigFieldMap{}
		for _, component := range set.Components() {
			outFields[component] = &graphql.Field{Type: graphql.Int}
			filterFields[component] = &graphql.InputObjectFieldConfig{Type: s.Operators["number_filter_operators"]}
		}
		s.Functions[set] = graphql.NewObject(graphql.ObjectConfig{Name: set.TypeName(), Fields: outFields})
		s.FunctionFilters[set] = graphql.NewInputObject(graphql.InputObjectConfig{Name: set.FilterTypeName(), Fields: filterFields})
	}

	s.EventEnum = graphql.NewEnum(graphql.EnumConfig{
		Name: naming.EventEnumType,
		Values: graphql.EnumValueConfigMap{
			"create": &graphql.EnumValueConfig{Value: "create"},
			"update": &graphql.EnumValueConfig{Value: "update"},
			"delete": &graphql.EnumValueConfig{Value: "delete"},
		},
	})
	s.DeleteMany = graphql.NewObject(graphql.ObjectConfig{
		Name: naming.DeleteManyType,
		Fields: graphql.Fields{
			"ids": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.ID))},
		},
	})
	s.DeleteOne = graphql.NewObject(graphql.ObjectConfig{
		Name: naming.DeleteOneType,
		Fields: graphql.Fields{
			"id": &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		},
	})
	return s
}

// Scalar returns the GraphQL type used for a field category. CSV fields are lists of strings.
func (s *Shared) Scalar(t fieldtype.GraphQLType) graphql.Type {
	switch t {
	case fieldtype.TypeInt:
		return graphql.Int
	case fieldtype.TypeBigInt:
		return s.BigInt
	case fieldtype.TypeFloat:
		return graphql.Float
	case fieldtype.TypeBoolean:
		return graphql.Boolean
	case fieldtype.TypeCSV:
		return graphql.NewList(graphql.String)
	case fieldtype.TypeJSON:
		return s.JSON
	case fieldtype.TypeGeoJSON:
		return s.GeoJSON
	case fieldtype.TypeDate:
		return s.Date
	case fieldtype.TypeHash:
		return s.Hash
	default:
		return graphql.String
	}
}

func (s *Shared) buildOperators() {
	str := func() *graphql.InputObjectFieldConfig { return &graphql.InputObjectFieldConfig{Type: graphql.String} }
	strList := func() *graphql.InputObjectFieldConfig {
		return &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.String)}
	}
	boolean := func() *graphql.InputObjectFieldConfig { return &graphql.InputObjectFieldConfig{Type: graphql.Boolean} }
	of := func(t graphql.Input) *graphql.InputObjectFieldConfig { return &graphql.InputObjectFieldConfig{Type: t} }
	listOf := func(t graphql.Input) *graphql.InputObjectFieldConfig {
		return &graphql.InputObjectFieldConfig{Type: graphql.NewList(t)}
	}

	s.Operators["string_filter_operators"] = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "string_filter_operators",
		Fields: graphql.InputObjectConfigFieldMap{
			"_eq":            str(),
			"_neq":           str(),
			"_contains":      str(),
			"_icontains":     str(),
			"_ncontains":     str(),
			"_starts_with":   str(),
			"_nstarts_with":  str(),
			"_istarts_with":  str(),
			"_nistarts_with": str(),
			"_ends_with":     str(),
			"_nends_with":    str(),
			"_iends_with":    str(),
			"_niends_with":   str(),
			"_in":            strList(),
			"_nin":           strList(),
			"_null":          boolean(),
			"_nnull":         boolean(),
			"_empty":         boolean(),
			"_nempty":        boolean(),
		},
	})

	s.Operators["boolean_filter_operators"] = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "boolean_filter_operators",
		Fields: graphql.InputObjectConfigFieldMap{
			"_eq":    boolean(),
			"_neq":   boolean(),
			"_null":  boolean(),
			"_nnull": boolean(),
		},
	})

	ordered := func(name string, t graphql.Input) {
		s.Operators[name] = graphql.NewInputObject(graphql.InputObjectConfig{
			Name: name,
			Fields: graphql.InputObjectConfigFieldMap{
				"_eq":       of(t),
				"_neq":      of(t),
				"_lt":       of(t),
				"_lte":      of(t),
				"_gt":       of(t),
				"_gte":      of(t),
				"_in":       listOf(t),
				"_nin":      listOf(t),
				"_between":  listOf(t),
				"_nbetween": listOf(t),
				"_null":     boolean(),
				"_nnull":    boolean(),
			},
		})
	}
	ordered("number_filter_operators", s.StringOrFloat)
	ordered("big_int_filter_operators", s.BigInt)
	ordered("date_filter_operators", graphql.String)

	s.Operators["geometry_filter_operators"] = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "geometry_filter_operators",
		Fields: graphql.InputObjectConfigFieldMap{
			"_eq":               of(s.GeoJSON),
			"_neq":              of(s.GeoJSON),
			"_intersects":       of(s.GeoJSON),
			"_nintersects":      of(s.GeoJSON),
			"_intersects_bbox":  of(s.GeoJSON),
			"_nintersects_bbox": of(s.GeoJSON),
			"_null":             boolean(),
			"_nnull":            boolean(),
		},
	})

	s.Operators["hash_filter_operators"] = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "hash_filter_operators",
		Fields: graphql.InputObjectConfigFieldMap{
			"_null":   boolean(),
			"_nnull":  boolean(),
			"_empty":  boolean(),
			"_nempty": boolean(),
		},
	})
}
