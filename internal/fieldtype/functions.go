package fieldtype

import "collections-graphql/internal/relschema"

// FuncSuffix marks a function pseudo-field, e.g. published_on_func.
const FuncSuffix = "_func"

// FunctionSet is the family of derived components a field exposes.
type FunctionSet int

const (
	FunctionsNone FunctionSet = iota
	FunctionsDate
	FunctionsTime
	FunctionsDateTime
	FunctionsCount
)

var (
	dateComponents = []string{"year", "month", "week", "day", "weekday"}
	timeComponents = []string{"hour", "minute", "second"}
)

// Functions returns the function family for a field type.
func Functions(fieldType string) FunctionSet {
	switch fieldType {
	case "date":
		return FunctionsDate
	case "time":
		return FunctionsTime
	case "dateTime", "timestamp":
		return FunctionsDateTime
	case "json", "alias":
		return FunctionsCount
	default:
		return FunctionsNone
	}
}

// FunctionsFor is Functions applied to a schema field.
func FunctionsFor(field *relschema.Field) FunctionSet {
	return Functions(field.Type)
}

// Components lists the sub-component names in declaration order.
func (f FunctionSet) Components() []string {
	switch f {
	case FunctionsDate:
		return append([]string(nil), dateComponents...)
	case FunctionsTime:
		return append([]string(nil), timeComponents...)
	case FunctionsDateTime:
		out := append([]string(nil), dateComponents...)
		return append(out, timeComponents...)
	case FunctionsCount:
		return []string{"count"}
	default:
		return nil
	}
}

// TypeName is the output object exposing the components.
func (f FunctionSet) TypeName() string {
	switch f {
	case FunctionsDate:
		return "date_functions"
	case FunctionsTime:
		return "time_functions"
	case FunctionsDateTime:
		return "datetime_functions"
	case FunctionsCount:
		return "count_functions"
	default:
		return ""
	}
}

// FilterTypeName is the filter input exposing the components.
func (f FunctionSet) FilterTypeName() string {
	switch f {
	case FunctionsDate:
		return "date_function_filter_operators"
	case FunctionsTime:
		return "time_function_filter_operators"
	case FunctionsDateTime:
		return "datetime_function_filter_operators"
	case FunctionsCount:
		return "count_function_filter_operators"
	default:
		return ""
	}
}

// IsFunction reports whether name is a known scalar transform.
func IsFunction(name string) bool {
	for _, c := range FunctionsDateTime.Components() {
		if c == name {
			return true
		}
	}
	return name == "count"
}
