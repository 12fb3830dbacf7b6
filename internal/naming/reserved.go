package naming

import "strings"

// graphqlReservedTypeWords contains GraphQL keywords and built-in types
// that should not be used as type names.
var graphqlReservedTypeWords = map[string]bool{
	"query":        true,
	"mutation":     true,
	"subscription": true,
	"type":         true,
	"schema":       true,
	"scalar":       true,
	"enum":         true,
	"input":        true,
	"interface":    true,
	"union":        true,
	"fragment":     true,
	"directive":    true,
	"extend":       true,
	"implements":   true,
	"on":           true,

	// Built-in and generated scalars
	"int":                  true,
	"float":                true,
	"string":               true,
	"boolean":              true,
	"id":                   true,
	"json":                 true,
	"date":                 true,
	"hash":                 true,
	"void":                 true,
	"graphqlbigint":        true,
	"graphqlgeojson":       true,
	"graphqlstringorfloat": true,
	"eventenum":            true,
	"delete_many":          true,
	"delete_one":           true,

	"true":  true,
	"false": true,
	"null":  true,
}

// generatedSuffixes are appended to collection names for derived types; a
// collection already ending in one could shadow another collection's type.
var generatedSuffixes = []string{"_filter", "_aggregated", "_aggregated_count", "_aggregated_fields", "_mutated", "_union", "_input", "_filter_operators", "_functions"}

// isReservedTypeName checks if a type name is reserved.
func isReservedTypeName(name string) bool {
	lowerName := strings.ToLower(name)
	if strings.HasPrefix(lowerName, "__") {
		return true
	}
	if graphqlReservedTypeWords[lowerName] {
		return true
	}
	return isReservedPattern(lowerName)
}

// isReservedFieldName checks if a field name is reserved.
func isReservedFieldName(name string) bool {
	lowerName := strings.ToLower(name)
	if strings.HasPrefix(lowerName, "__") {
		return true
	}
	return strings.HasSuffix(lowerName, FuncSuffix)
}

// isReservedPattern checks if a name collides with a generated type name shape.
func isReservedPattern(name string) bool {
	for _, suffix := range generatedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
