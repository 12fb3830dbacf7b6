// Package sdl serializes an executable schema into GraphQL schema definition
// language. Output is deterministic: types, fields and arguments are sorted by name.
package sdl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

var builtinScalars = map[string]struct{}{
	"String": {}, "Int": {}, "Float": {}, "Boolean": {}, "ID": {},
}

// Print renders every user-defined type of schema. Introspection types and the
// built-in scalars are omitted.
func Print(schema *graphql.Schema) (string, error) {
	if schema == nil {
		return "", fmt.Errorf("schema is nil")
	}
	doc := ast.NewDocument(&ast.Document{Definitions: Definitions(schema)})
	printed, ok := printer.Print(doc).(string)
	if !ok {
		return "", fmt.Errorf("unexpected printer output %T", printer.Print(doc))
	}
	return printed, nil
}

// Definitions builds the type system definitions printed by Print.
func Definitions(schema *graphql.Schema) []ast.Node {
	defs := make([]ast.Node, 0, len(schema.TypeMap())+1)
	if def := schemaDefinition(schema); def != nil {
		defs = append(defs, def)
	}
	typeMap := schema.TypeMap()
	names := make([]string, 0, len(typeMap))
	for name := range typeMap {
		if strings.HasPrefix(name, "__") {
			continue
		}
		if _, ok := builtinScalars[name]; ok {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if def := typeDefinition(typeMap[name]); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

// schemaDefinition is only emitted when a root type has an unconventional name.
func schemaDefinition(schema *graphql.Schema) *ast.SchemaDefinition {
	roots := []struct {
		operation string
		object    *graphql.Object
		name      string
	}{
		{ast.OperationTypeQuery, schema.QueryType(), "Query"},
		{ast.OperationTypeMutation, schema.MutationType(), "Mutation"},
		{ast.OperationTypeSubscription, schema.SubscriptionType(), "Subscription"},
	}
	conventional := true
	var ops []*ast.OperationTypeDefinition
	for _, root := range roots {
		if root.object == nil {
			continue
		}
		if root.object.Name() != root.name {
			conventional = false
		}
		ops = append(ops, ast.NewOperationTypeDefinition(&ast.OperationTypeDefinition{
			Operation: root.operation,
			Type:      named(root.object.Name()),
		}))
	}
	if conventional {
		return nil
	}
	return ast.NewSchemaDefinition(&ast.SchemaDefinition{OperationTypes: ops})
}

func typeDefinition(t graphql.Type) ast.Node {
	switch t := t.(type) {
	case *graphql.Scalar:
		return ast.NewScalarDefinition(&ast.ScalarDefinition{
			Name:        name(t.Name()),
			Description: description(t.Description()),
		})
	case *graphql.Object:
		interfaces := make([]*ast.Named, 0, len(t.Interfaces()))
		for _, iface := range t.Interfaces() {
			interfaces = append(interfaces, named(iface.Name()))
		}
		return ast.NewObjectDefinition(&ast.ObjectDefinition{
			Name:        name(t.Name()),
			Description: description(t.Description()),
			Interfaces:  interfaces,
			Fields:      fieldDefinitions(t.Fields()),
		})
	case *graphql.Interface:
		return ast.NewInterfaceDefinition(&ast.InterfaceDefinition{
			Name:        name(t.Name()),
			Description: description(t.Description()),
			Fields:      fieldDefinitions(t.Fields()),
		})
	case *graphql.Union:
		members := make([]*ast.Named, 0, len(t.Types()))
		for _, member := range t.Types() {
			members = append(members, named(member.Name()))
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Name.Value < members[j].Name.Value })
		return ast.NewUnionDefinition(&ast.UnionDefinition{
			Name:        name(t.Name()),
			Description: description(t.Description()),
			Types:       members,
		})
	case *graphql.Enum:
		values := make([]*ast.EnumValueDefinition, 0, len(t.Values()))
		for _, v := range t.Values() {
			values = append(values, ast.NewEnumValueDefinition(&ast.EnumValueDefinition{
				Name:        name(v.Name),
				Description: description(v.Description),
			}))
		}
		sort.Slice(values, func(i, j int) bool { return values[i].Name.Value < values[j].Name.Value })
		return ast.NewEnumDefinition(&ast.EnumDefinition{
			Name:        name(t.Name()),
			Description: description(t.Description()),
			Values:      values,
		})
	case *graphql.InputObject:
		fields := t.Fields()
		inputs := make([]*ast.InputValueDefinition, 0, len(fields))
		for _, fieldName := range sortedKeys(fields) {
			field := fields[fieldName]
			inputs = append(inputs, inputValue(field.Name(), field.Description(), field.Type, field.DefaultValue))
		}
		return ast.NewInputObjectDefinition(&ast.InputObjectDefinition{
			Name:        name(t.Name()),
			Description: description(t.Description()),
			Fields:      inputs,
		})
	default:
		return nil
	}
}

func fieldDefinitions(fields graphql.FieldDefinitionMap) []*ast.FieldDefinition {
	out := make([]*ast.FieldDefinition, 0, len(fields))
	for _, fieldName := range sortedKeys(fields) {
		field := fields[fieldName]
		args := make([]*ast.InputValueDefinition, 0, len(field.Args))
		for _, arg := range field.Args {
			args = append(args, inputValue(arg.Name(), arg.Description(), arg.Type, arg.DefaultValue))
		}
		sort.Slice(args, func(i, j int) bool { return args[i].Name.Value < args[j].Name.Value })
		out = append(out, ast.NewFieldDefinition(&ast.FieldDefinition{
			Name:        name(field.Name),
			Description: description(field.Description),
			Arguments:   args,
			Type:        typeRef(field.Type),
		}))
	}
	return out
}

func inputValue(fieldName, desc string, t graphql.Type, defaultValue interface{}) *ast.InputValueDefinition {
	return ast.NewInputValueDefinition(&ast.InputValueDefinition{
		Name:         name(fieldName),
		Description:  description(desc),
		Type:         typeRef(t),
		DefaultValue: literal(defaultValue),
	})
}

// typeRef converts a wrapped runtime type into its AST reference.
func typeRef(t graphql.Type) ast.Type {
	switch t := t.(type) {
	case *graphql.NonNull:
		return ast.NewNonNull(&ast.NonNull{Type: typeRef(t.OfType)})
	case *graphql.List:
		return ast.NewList(&ast.List{Type: typeRef(t.OfType)})
	default:
		return named(t.Name())
	}
}

func literal(value interface{}) ast.Value {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return ast.NewStringValue(&ast.StringValue{Value: v})
	case bool:
		return ast.NewBooleanValue(&ast.BooleanValue{Value: v})
	case int, int32, int64:
		return ast.NewIntValue(&ast.IntValue{Value: fmt.Sprint(v)})
	case float32, float64:
		return ast.NewFloatValue(&ast.FloatValue{Value: fmt.Sprint(v)})
	default:
		return nil
	}
}

func name(value string) *ast.Name {
	return ast.NewName(&ast.Name{Value: value})
}

func named(value string) *ast.Named {
	return ast.NewNamed(&ast.Named{Name: name(value)})
}

func description(value string) *ast.StringValue {
	if value == "" {
		return nil
	}
	return ast.NewStringValue(&ast.StringValue{Value: value})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
