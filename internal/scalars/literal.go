package scalars

import (
	"strconv"

	"github.com/graphql-go/graphql/language/ast"
)

// LiteralValue converts a GraphQL AST value into plain Go values, substituting
// variables from vars. Object values become map[string]interface{} and lists
// become []interface{}; numbers keep integer form when they have no fraction.
func LiteralValue(value ast.Value, vars map[string]interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case *ast.Variable:
		if v.Name == nil || vars == nil {
			return nil
		}
		return vars[v.Name.Value]
	case *ast.IntValue:
		if parsed, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			if parsed >= -(1<<31) && parsed < 1<<31 {
				return int(parsed)
			}
			return parsed
		}
		return v.Value
	case *ast.FloatValue:
		if parsed, err := strconv.ParseFloat(v.Value, 64); err == nil {
			return parsed
		}
		return v.Value
	case *ast.StringValue:
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.EnumValue:
		return v.Value
	case *ast.ListValue:
		out := make([]interface{}, 0, len(v.Values))
		for _, item := range v.Values {
			out = append(out, LiteralValue(item, vars))
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(v.Fields))
		for _, field := range v.Fields {
			if field == nil || field.Name == nil {
				continue
			}
			out[field.Name.Value] = LiteralValue(field.Value, vars)
		}
		return out
	default:
		return nil
	}
}
