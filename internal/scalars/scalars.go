// Package scalars defines the custom GraphQL scalars exposed by collection types.
package scalars

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// JSON passes structured values through unchanged. Raw JSON bytes from a store
// are decoded first; undecodable bytes serialize as null.
func JSON() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "JSON",
		Description: "The `JSON` scalar type represents JSON values as specified by ECMA-404",
		Serialize:   decodeRawJSON,
		ParseValue:  func(value interface{}) interface{} { return value },
		ParseLiteral: func(valueAST ast.Value) interface{} {
			return LiteralValue(valueAST, nil)
		},
	})
}

func decodeRawJSON(value interface{}) interface{} {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	default:
		return value
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		slog.Default().Debug("stored JSON value is not valid JSON", slog.String("error", err.Error()))
		return nil
	}
	return decoded
}

// GeoJSON carries geometry objects as structured values.
func GeoJSON() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "GraphQLGeoJSON",
		Description: "GeoJSON value",
		Serialize: func(value interface{}) interface{} {
			return value
		},
		ParseValue: func(value interface{}) interface{} {
			if _, ok := value.(map[string]interface{}); ok {
				return value
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if obj, ok := valueAST.(*ast.ObjectValue); ok {
				return LiteralValue(obj, nil)
			}
			return nil
		},
	})
}

// BigInt represents 64-bit integers, serialized as strings beyond the float-safe range.
func BigInt() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "GraphQLBigInt",
		Description: "BigInt value",
		Serialize: func(value interface{}) interface{} {
			n, ok := coerceInt64(value)
			switch {
			case !ok:
				return nil
			case n > maxSafeInteger || n < -maxSafeInteger:
				return strconv.FormatInt(n, 10)
			default:
				return n
			}
		},
		ParseValue: func(value interface{}) interface{} {
			return int64OrNil(coerceInt64(value))
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.IntValue:
				return int64OrNil(coerceInt64(v.Value))
			case *ast.StringValue:
				return int64OrNil(coerceInt64(v.Value))
			}
			return nil
		},
	})
}

func int64OrNil(n int64, ok bool) interface{} {
	if !ok {
		return nil
	}
	return n
}

const maxSafeInteger = 1<<53 - 1

// Date carries ISO-8601 date, time and datetime strings as stored.
func Date() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Date",
		Description: "ISO8601 Date values",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v.UTC().Format(time.RFC3339)
			case *time.Time:
				if v == nil {
					return nil
				}
				return v.UTC().Format(time.RFC3339)
			case string:
				return v
			case []byte:
				return string(v)
			default:
				return nil
			}
		},
		ParseValue:   stringValue,
		ParseLiteral: stringLiteral,
	})
}

// Hash is a concealed string. Values are accepted on write and echoed as stored.
func Hash() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Hash",
		Description: "Hashed string values",
		Serialize: func(value interface{}) interface{} {
			if value == nil {
				return nil
			}
			return fmt.Sprintf("%v", value)
		},
		ParseValue:   stringValue,
		ParseLiteral: stringLiteral,
	})
}

// StringOrFloat accepts numbers or numeric expressions such as "$NOW" in number filters.
func StringOrFloat() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "GraphQLStringOrFloat",
		Description: "A Float or a String",
		Serialize: func(value interface{}) interface{} {
			return value
		},
		ParseValue: func(value interface{}) interface{} {
			switch value.(type) {
			case string, float64, float32, int, int64, int32:
				return value
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.StringValue:
				return v.Value
			case *ast.IntValue:
				parsed, err := strconv.ParseFloat(v.Value, 64)
				if err != nil {
					return nil
				}
				return parsed
			case *ast.FloatValue:
				parsed, err := strconv.ParseFloat(v.Value, 64)
				if err != nil {
					return nil
				}
				return parsed
			default:
				return nil
			}
		},
	})
}

// Void is the return type of operations that produce no value.
func Void() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Void",
		Description: "Represents NULL values",
		Serialize: func(value interface{}) interface{} {
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			return nil
		},
	})
}

func stringValue(value interface{}) interface{} {
	if s, ok := value.(string); ok {
		return s
	}
	return nil
}

func stringLiteral(valueAST ast.Value) interface{} {
	if sv, ok := valueAST.(*ast.StringValue); ok {
		return sv.Value
	}
	return nil
}

// coerceInt64 accepts Go integers, integral floats and decimal strings.
func coerceInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), v <= math.MaxInt64
	case float64:
		if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, false
		}
		return int64(v), true
	case []byte:
		return coerceInt64(string(v))
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}
