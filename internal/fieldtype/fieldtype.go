// Package fieldtype maps collection field types to GraphQL type categories.
// Schema generation, filter construction and aggregation all read from this
// mapping so they agree on how a field is exposed.
package fieldtype

import "collections-graphql/internal/relschema"

// GraphQLType represents the category of GraphQL type for a field.
type GraphQLType int

const (
	// TypeString is the default for text, uuid, decimal and unknown field types.
	TypeString GraphQLType = iota
	TypeInt
	TypeBigInt
	TypeFloat
	TypeBoolean
	// TypeCSV is a comma separated value exposed as a list of strings.
	TypeCSV
	TypeJSON
	TypeGeoJSON
	TypeDate
	// TypeHash is a write-only concealed value.
	TypeHash
)

// Map resolves a field to its GraphQL category. The conceal special flag wins over the declared type.
func Map(field *relschema.Field) GraphQLType {
	if field.HasSpecial(relschema.SpecialConceal) {
		return TypeHash
	}
	switch field.Type {
	case "boolean":
		return TypeBoolean
	case "bigInteger":
		return TypeBigInt
	case "integer":
		return TypeInt
	case "float":
		return TypeFloat
	case "decimal":
		return TypeString
	case "csv":
		return TypeCSV
	case "json":
		return TypeJSON
	case "geometry":
		return TypeGeoJSON
	case "timestamp", "dateTime", "date", "time":
		return TypeDate
	case "hash":
		return TypeHash
	default:
		return TypeString
	}
}

// String returns the GraphQL type name used in schema documents.
func (t GraphQLType) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeBigInt:
		return "GraphQLBigInt"
	case TypeFloat:
		return "Float"
	case TypeBoolean:
		return "Boolean"
	case TypeCSV:
		return "[String]"
	case TypeJSON:
		return "JSON"
	case TypeGeoJSON:
		return "GraphQLGeoJSON"
	case TypeDate:
		return "Date"
	case TypeHash:
		return "Hash"
	default:
		return "String"
	}
}

// IsNumeric reports whether the category supports numeric aggregates.
func (t GraphQLType) IsNumeric() bool {
	return t == TypeInt || t == TypeFloat || t == TypeBigInt
}

// FilterOperatorsName returns the filter operator input type used for the category.
func (t GraphQLType) FilterOperatorsName() string {
	switch t {
	case TypeBoolean:
		return "boolean_filter_operators"
	case TypeBigInt:
		return "big_int_filter_operators"
	case TypeInt, TypeFloat:
		return "number_filter_operators"
	case TypeDate:
		return "date_filter_operators"
	case TypeGeoJSON:
		return "geometry_filter_operators"
	case TypeHash:
		return "hash_filter_operators"
	default:
		return "string_filter_operators"
	}
}
