package typegraph

import (
	"github.com/graphql-go/graphql"

	"collections-graphql/internal/fieldtype"
)

// DiscriminatorKey tags a polymorphic item with the collection it belongs to.
// The union field resolver copies the discriminator from the parent record onto
// the item so type resolution never needs to look outside the value it is given.
const DiscriminatorKey = "__collection"

// responseKey is the key the value was requested under: the alias when one was
// given, otherwise the field name.
func responseKey(info graphql.ResolveInfo, fallback string) string {
	if info.Path != nil {
		if key, ok := info.Path.Key.(string); ok && key != "" {
			return key
		}
	}
	return fallback
}

func sourceMap(source interface{}) (map[string]interface{}, bool) {
	switch v := source.(type) {
	case map[string]interface{}:
		return v, true
	case *map[string]interface{}:
		if v == nil {
			return nil, false
		}
		return *v, true
	default:
		return nil, false
	}
}

// resolveByPath reads the value stored under the response key, so aliased
// selections resolve to the values the data layer produced for that alias.
func resolveByPath(name string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		obj, ok := sourceMap(p.Source)
		if !ok {
			return nil, nil
		}
		if value, ok := obj[responseKey(p.Info, name)]; ok {
			return value, nil
		}
		return obj[name], nil
	}
}

// resolveFunctions gathers the flattened <field>_<component> values into the
// function object.
func resolveFunctions(field string, set fieldtype.FunctionSet) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		obj, ok := sourceMap(p.Source)
		if !ok {
			return nil, nil
		}
		out := map[string]interface{}{}
		for _, component := range set.Components() {
			if value, ok := obj[field+"_"+component]; ok {
				out[component] = value
			}
		}
		return out, nil
	}
}

// resolveUnionItem returns the polymorphic item tagged with the parent's discriminator.
func resolveUnionItem(field, discriminator string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		obj, ok := sourceMap(p.Source)
		if !ok {
			return nil, nil
		}
		raw, ok := obj[responseKey(p.Info, field)]
		if !ok {
			raw = obj[field]
		}
		item, ok := sourceMap(raw)
		if !ok {
			return raw, nil
		}
		collection, _ := obj[discriminator].(string)
		tagged := make(map[string]interface{}, len(item)+1)
		for k, v := range item {
			tagged[k] = v
		}
		if collection != "" {
			tagged[DiscriminatorKey] = collection
		}
		return tagged, nil
	}
}

// resolveUnionType picks the branch named by the discriminator tag.
func resolveUnionType(branches map[string]*graphql.Object) graphql.ResolveTypeFn {
	return func(p graphql.ResolveTypeParams) *graphql.Object {
		item, ok := sourceMap(p.Value)
		if !ok {
			return nil
		}
		collection, _ := item[DiscriminatorKey].(string)
		return branches[collection]
	}
}
