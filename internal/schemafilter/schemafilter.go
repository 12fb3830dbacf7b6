// Package schemafilter narrows a relational schema, first by operator allow/deny
// globs and then per action by the caller's field visibility.
package schemafilter

import (
	"path"
	"slices"
	"strings"

	"collections-graphql/internal/relschema"
)

// Config controls operator-level allow/deny filters for collections and fields.
type Config struct {
	AllowCollections []string            `mapstructure:"allow_collections"`
	DenyCollections  []string            `mapstructure:"deny_collections"`
	DenyFields       map[string][]string `mapstructure:"deny_fields"`
}

// AllowList maps a collection to the glob patterns of its visible fields. The "*"
// collection key applies to every collection.
type AllowList map[string][]string

// ActionSchemas holds one independently filtered schema per action.
type ActionSchemas map[relschema.Action]*relschema.Schema

// Apply returns a copy of schema with operator filters applied.
// Missing allow lists default to allow-all; deny rules always win.
func Apply(schema *relschema.Schema, cfg Config) *relschema.Schema {
	out := schema.Clone()
	for name, collection := range out.Collections {
		if !collectionAllowed(name, cfg.AllowCollections, cfg.DenyCollections) {
			delete(out.Collections, name)
			continue
		}
		deny := mergePatterns(cfg.DenyFields, name)
		for fieldName := range collection.Fields {
			if fieldName == collection.Primary {
				continue
			}
			if matchesAny(fieldName, deny) {
				delete(collection.Fields, fieldName)
			}
		}
	}
	out.Relations = filterRelations(out)
	return out
}

// Intersect returns a copy of schema restricted to the fields in allowed.
// Collections left without any visible field are removed entirely.
func Intersect(schema *relschema.Schema, allowed AllowList) *relschema.Schema {
	out := relschema.New()
	for _, name := range schema.CollectionNames() {
		patterns := mergePatterns(allowed, name)
		if len(patterns) == 0 {
			continue
		}
		source := schema.Collections[name]
		visible := source.Clone()
		for fieldName := range visible.Fields {
			if !matchesAny(fieldName, patterns) {
				delete(visible.Fields, fieldName)
			}
		}
		if len(visible.Fields) == 0 {
			continue
		}
		out.Collections[name] = visible
	}
	for _, rel := range schema.Relations {
		r := *rel
		r.OneAllowedCollections = append([]string(nil), rel.OneAllowedCollections...)
		out.Relations = append(out.Relations, &r)
	}
	out.Relations = filterRelations(out)
	return out
}

// ForActions builds the per-action schemas from one allow-list per action.
func ForActions(schema *relschema.Schema, allowed map[relschema.Action]AllowList) ActionSchemas {
	out := make(ActionSchemas, len(relschema.Actions))
	for _, action := range relschema.Actions {
		out[action] = Intersect(schema, allowed[action])
	}
	return out
}

// filterRelations keeps relations whose owning field is still visible. The related
// side is left alone so graph building can skip dangling targets; a reverse field
// that is no longer visible is cleared, and polymorphic targets are narrowed.
func filterRelations(schema *relschema.Schema) []*relschema.Relation {
	kept := make([]*relschema.Relation, 0, len(schema.Relations))
	for _, rel := range schema.Relations {
		owner, ok := schema.Collections[rel.Collection]
		if !ok {
			continue
		}
		if _, ok := owner.Fields[rel.Field]; !ok {
			continue
		}
		if rel.OneField != "" {
			related, ok := schema.Collections[rel.RelatedCollection]
			if !ok {
				rel.OneField = ""
			} else if _, ok := related.Fields[rel.OneField]; !ok {
				rel.OneField = ""
			}
		}
		if len(rel.OneAllowedCollections) > 0 {
			targets := rel.OneAllowedCollections[:0]
			for _, target := range rel.OneAllowedCollections {
				if _, ok := schema.Collections[target]; ok {
					targets = append(targets, target)
				}
			}
			if len(targets) == 0 {
				continue
			}
			rel.OneAllowedCollections = targets
		}
		kept = append(kept, rel)
	}
	return kept
}

func collectionAllowed(collection string, allow, deny []string) bool {
	if matchesAny(collection, deny) {
		return false
	}
	if len(allow) == 0 {
		return true
	}
	return matchesAny(collection, allow)
}

func mergePatterns(patterns map[string][]string, collection string) []string {
	if patterns == nil {
		return nil
	}
	combined := append([]string{}, patterns["*"]...)
	combined = append(combined, patterns[collection]...)
	return slices.Compact(combined)
}

func matchesAny(value string, patterns []string) bool {
	value = strings.ToLower(value)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		// matching should be case-insensitive
		ok, err := path.Match(strings.ToLower(pattern), value)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// Matches reports whether value matches any of the glob patterns.
func Matches(value string, patterns []string) bool {
	return matchesAny(value, patterns)
}
