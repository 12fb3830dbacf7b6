package scalars

import (
	"testing"
	"time"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBigIntScalar(t *testing.T) {
	scalar := BigInt()

	assert.Equal(t, int64(42), scalar.Serialize(42))
	assert.Equal(t, "9223372036854775807", scalar.Serialize(int64(9223372036854775807)))
	assert.Equal(t, "9007199254740993", scalar.Serialize("9007199254740993"))

	parsed := scalar.ParseValue("42")
	require.IsType(t, int64(0), parsed)
	assert.Equal(t, int64(42), parsed)

	assert.Nil(t, scalar.ParseValue("not-a-number"))
	assert.Nil(t, scalar.ParseValue(1.5))
	assert.Equal(t, int64(7), scalar.ParseLiteral(&ast.IntValue{Value: "7"}))
	assert.Equal(t, int64(8), scalar.ParseLiteral(&ast.StringValue{Value: "8"}))
	assert.Nil(t, scalar.ParseLiteral(&ast.BooleanValue{Value: true}))
}

func TestDateScalar(t *testing.T) {
	scalar := Date()

	assert.Equal(t, "2024-01-15", scalar.Serialize("2024-01-15"))
	assert.Equal(t, "2024-01-15T10:30:00Z", scalar.Serialize(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, "10:30:00", scalar.ParseValue("10:30:00"))
	assert.Nil(t, scalar.ParseValue(12))
	assert.Equal(t, "2024-01-02", scalar.ParseLiteral(&ast.StringValue{Value: "2024-01-02"}))
}

func TestJSONScalar(t *testing.T) {
	scalar := JSON()

	obj := map[string]interface{}{"a": 1}
	assert.Equal(t, obj, scalar.Serialize(obj))
	assert.Equal(t, map[string]interface{}{"b": true}, scalar.Serialize([]byte(`{"b":true}`)))
	assert.Nil(t, scalar.Serialize([]byte(`{`)))

	literal := &ast.ObjectValue{Fields: []*ast.ObjectField{
		{Name: &ast.Name{Value: "tags"}, Value: &ast.ListValue{Values: []ast.Value{&ast.StringValue{Value: "x"}}}},
		{Name: &ast.Name{Value: "n"}, Value: &ast.IntValue{Value: "3"}},
	}}
	assert.Equal(t, map[string]interface{}{"tags": []interface{}{"x"}, "n": 3}, scalar.ParseLiteral(literal))
}

func TestGeoJSONScalar(t *testing.T) {
	scalar := GeoJSON()
	point := map[string]interface{}{"type": "Point", "coordinates": []interface{}{1.0, 2.0}}
	assert.Equal(t, point, scalar.ParseValue(point))
	assert.Nil(t, scalar.ParseValue("POINT(1 2)"))
	assert.Nil(t, scalar.ParseLiteral(&ast.StringValue{Value: "POINT(1 2)"}))
}

func TestHashAndVoid(t *testing.T) {
	assert.Equal(t, "**********", Hash().Serialize("**********"))
	assert.Nil(t, Hash().Serialize(nil))
	assert.Nil(t, Void().Serialize("anything"))
}

func TestStringOrFloat(t *testing.T) {
	scalar := StringOrFloat()
	assert.Equal(t, "$NOW", scalar.ParseValue("$NOW"))
	assert.Equal(t, 2.5, scalar.ParseLiteral(&ast.FloatValue{Value: "2.5"}))
	assert.Equal(t, 3.0, scalar.ParseLiteral(&ast.IntValue{Value: "3"}))
	assert.Nil(t, scalar.ParseValue(true))
}

func TestLiteralValue(t *testing.T) {
	vars := map[string]interface{}{"limit": 5}
	value := &ast.ObjectValue{Fields: []*ast.ObjectField{
		{Name: &ast.Name{Value: "limit"}, Value: &ast.Variable{Name: &ast.Name{Value: "limit"}}},
		{Name: &ast.Name{Value: "sort"}, Value: &ast.EnumValue{Value: "ASC"}},
		{Name: &ast.Name{Value: "ratio"}, Value: &ast.FloatValue{Value: "0.5"}},
		{Name: &ast.Name{Value: "big"}, Value: &ast.IntValue{Value: "9000000000"}},
	}}

	assert.Equal(t, map[string]interface{}{
		"limit": 5,
		"sort":  "ASC",
		"ratio": 0.5,
		"big":   int64(9000000000),
	}, LiteralValue(value, vars))
	assert.Nil(t, LiteralValue(&ast.Variable{Name: &ast.Name{Value: "missing"}}, nil))
}
