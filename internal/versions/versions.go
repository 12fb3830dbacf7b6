// Package versions overlays saved draft diffs onto a stored record.
package versions

import (
	"fmt"

	"collections-graphql/internal/query"
	"collections-graphql/internal/relschema"
)

// Mode selects how saves are applied.
type Mode string

const (
	// ModeRaw assigns each save field over the previous value.
	ModeRaw Mode = "raw"
	// ModeRecursive merges relational fields against the schema's relation shape.
	ModeRecursive Mode = "recursive"
)

// ParseMode maps a configured mode name, defaulting to recursive.
func ParseMode(name string) (Mode, error) {
	switch Mode(name) {
	case "", ModeRecursive:
		return ModeRecursive, nil
	case ModeRaw:
		return ModeRaw, nil
	default:
		return "", fmt.Errorf("unknown version merge mode %q", name)
	}
}

// Merge applies saves in order to a copy of base. A nil base starts from an
// empty record so versions of records that only exist as drafts still merge.
func Merge(base map[string]interface{}, saves []map[string]interface{}, collection string, schema *relschema.Schema, mode Mode) map[string]interface{} {
	out := map[string]interface{}{}
	if base != nil {
		out = query.DeepCopy(base).(map[string]interface{})
	}
	for _, save := range saves {
		if mode == ModeRaw {
			for key, value := range save {
				out[key] = query.DeepCopy(value)
			}
			continue
		}
		out = mergeRecord(out, save, collection, schema)
	}
	return out
}

func mergeRecord(current, save map[string]interface{}, collection string, schema *relschema.Schema) map[string]interface{} {
	out := make(map[string]interface{}, len(current)+len(save))
	for key, value := range current {
		out[key] = value
	}
	for field, value := range save {
		kind, rel, related := schema.FieldRelation(collection, field)
		switch kind {
		case relschema.RelationManyToOne:
			out[field] = mergeSingle(out[field], value, related, schema)
		case relschema.RelationManyToAny:
			target, _ := save[rel.OneCollectionField].(string)
			if target == "" {
				target, _ = current[rel.OneCollectionField].(string)
			}
			out[field] = mergeSingle(out[field], value, target, schema)
		case relschema.RelationOneToMany:
			out[field] = mergeMany(out[field], value, related, schema)
		default:
			out[field] = query.DeepCopy(value)
		}
	}
	return out
}

// mergeSingle merges a to-one value. A nested object for the same record is
// merged into the current one; anything else replaces it.
func mergeSingle(current, value interface{}, collection string, schema *relschema.Schema) interface{} {
	next, ok := value.(map[string]interface{})
	if !ok {
		return query.DeepCopy(value)
	}
	existing, ok := current.(map[string]interface{})
	target, known := schema.Collection(collection)
	if !ok || !known {
		return query.DeepCopy(next)
	}
	if key, has := next[target.Primary]; has && !sameKey(key, existing[target.Primary]) {
		return mergeRecord(map[string]interface{}{}, next, collection, schema)
	}
	return mergeRecord(existing, next, collection, schema)
}

// mergeMany merges a one-to-many value. An array is the new membership, with
// entries matched to current ones by primary key; the {create, update, delete}
// form edits the current list in place.
func mergeMany(current, value interface{}, collection string, schema *relschema.Schema) interface{} {
	target, known := schema.Collection(collection)
	if !known {
		return query.DeepCopy(value)
	}
	existing, _ := current.([]interface{})

	switch next := value.(type) {
	case []interface{}:
		out := make([]interface{}, 0, len(next))
		for _, entry := range next {
			out = append(out, mergeEntry(existing, entry, target, schema))
		}
		return out

	case map[string]interface{}:
		deleted, _ := next["delete"].([]interface{})
		updates, _ := next["update"].([]interface{})
		creates, _ := next["create"].([]interface{})
		out := make([]interface{}, 0, len(existing)+len(creates))
		for _, item := range existing {
			key := entryKey(item, target.Primary)
			if containsKey(deleted, key) {
				continue
			}
			for _, update := range updates {
				if patch, ok := update.(map[string]interface{}); ok && sameKey(patch[target.Primary], key) {
					item = mergeSingle(item, patch, collection, schema)
				}
			}
			out = append(out, item)
		}
		for _, create := range creates {
			out = append(out, query.DeepCopy(create))
		}
		return out

	default:
		return query.DeepCopy(value)
	}
}

func mergeEntry(existing []interface{}, entry interface{}, target *relschema.Collection, schema *relschema.Schema) interface{} {
	key := entryKey(entry, target.Primary)
	for _, item := range existing {
		if key == nil || !sameKey(entryKey(item, target.Primary), key) {
			continue
		}
		if _, isMap := entry.(map[string]interface{}); isMap {
			return mergeSingle(item, entry, target.Name, schema)
		}
		return query.DeepCopy(item)
	}
	return query.DeepCopy(entry)
}

// entryKey reads the primary key of a related entry, which is either a record
// or a bare key.
func entryKey(entry interface{}, primary string) interface{} {
	if record, ok := entry.(map[string]interface{}); ok {
		return record[primary]
	}
	return entry
}

func sameKey(a, b interface{}) bool {
	if a == nil || b == nil {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func containsKey(keys []interface{}, key interface{}) bool {
	for _, k := range keys {
		if sameKey(k, key) {
			return true
		}
	}
	return false
}
