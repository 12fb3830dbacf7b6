package translate

import (
	"strings"

	"collections-graphql/internal/fieldtype"
)

// ReplaceFuncs rewrites function pseudo-field keys into call syntax:
// {"published_on_func": {"year": v}} becomes {"year(published_on)": v}. Keys whose
// value does not name exactly one recognized transform are left alone.
func ReplaceFuncs(tree map[string]interface{}) map[string]interface{} {
	if tree == nil {
		return nil
	}
	out := make(map[string]interface{}, len(tree))
	for key, value := range tree {
		if strings.HasSuffix(key, fieldtype.FuncSuffix) {
			if inner, ok := value.(map[string]interface{}); ok && len(inner) == 1 {
				var transform string
				var operand interface{}
				for k, v := range inner {
					transform, operand = k, v
				}
				if fieldtype.IsFunction(transform) {
					field := strings.TrimSuffix(key, fieldtype.FuncSuffix)
					out[transform+"("+field+")"] = replaceValue(operand)
					continue
				}
			}
		}
		out[key] = replaceValue(value)
	}
	return out
}

func replaceValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return ReplaceFuncs(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = replaceValue(item)
		}
		return out
	default:
		return v
	}
}
