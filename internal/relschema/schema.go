// Package relschema describes the relational schema the GraphQL layer is composed from:
// collections, their fields and primary keys, and the relations between them.
package relschema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Action is one of the four permission scopes a schema can be filtered for.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions lists every action in build order.
var Actions = []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

// Special flags that mark a field value as generated by the data layer.
const (
	SpecialUUID        = "uuid"
	SpecialDateCreated = "date-created"
	SpecialRoleCreated = "role-created"
	SpecialUserCreated = "user-created"
	SpecialConceal     = "conceal"
)

// GeneratedSpecials are the flags whose presence means the value is filled in on write.
var GeneratedSpecials = []string{SpecialUUID, SpecialDateCreated, SpecialRoleCreated, SpecialUserCreated}

// Field is a single column (or alias) of a collection.
type Field struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Nullable   bool     `yaml:"nullable"`
	HasDefault bool     `yaml:"has_default"`
	Special    []string `yaml:"special,omitempty"`
	Note       string   `yaml:"note,omitempty"`
}

// HasSpecial reports whether the field carries the given special flag.
func (f *Field) HasSpecial(flag string) bool {
	for _, s := range f.Special {
		if s == flag {
			return true
		}
	}
	return false
}

// Generated reports whether the field value is produced on write.
func (f *Field) Generated() bool {
	for _, flag := range GeneratedSpecials {
		if f.HasSpecial(flag) {
			return true
		}
	}
	return false
}

// Collection is a named set of fields with a single primary key.
type Collection struct {
	Name      string            `yaml:"-"`
	Primary   string            `yaml:"primary"`
	Singleton bool              `yaml:"singleton"`
	Note      string            `yaml:"note,omitempty"`
	Fields    map[string]*Field `yaml:"fields"`
}

// FieldNames returns the collection's field names in sorted order.
func (c *Collection) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Relation links a field of one collection to another collection. A relation with
// OneAllowedCollections instead of RelatedCollection is polymorphic (many-to-any).
type Relation struct {
	Collection            string   `yaml:"collection"`
	Field                 string   `yaml:"field"`
	RelatedCollection     string   `yaml:"related_collection,omitempty"`
	OneField              string   `yaml:"one_field,omitempty"`
	OneAllowedCollections []string `yaml:"one_allowed_collections,omitempty"`
	OneCollectionField    string   `yaml:"one_collection_field,omitempty"`
	JunctionField         string   `yaml:"junction_field,omitempty"`
}

// Polymorphic reports whether the relation targets more than one collection.
func (r *Relation) Polymorphic() bool {
	return r.RelatedCollection == "" && len(r.OneAllowedCollections) > 0
}

// Schema is the full relational description.
type Schema struct {
	Collections map[string]*Collection `yaml:"collections"`
	Relations   []*Relation            `yaml:"relations"`
}

// New returns an empty schema.
func New() *Schema {
	return &Schema{Collections: map[string]*Collection{}}
}

// CollectionNames returns collection names in sorted order.
func (s *Schema) CollectionNames() []string {
	names := make([]string, 0, len(s.Collections))
	for name := range s.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Collection looks up a collection by name.
func (s *Schema) Collection(name string) (*Collection, bool) {
	if s == nil {
		return nil, false
	}
	c, ok := s.Collections[name]
	return c, ok
}

// RelationsFor returns relations where the collection is either side of the link.
func (s *Schema) RelationsFor(collection string) []*Relation {
	var out []*Relation
	for _, rel := range s.Relations {
		if rel.Collection == collection || rel.RelatedCollection == collection {
			out = append(out, rel)
		}
	}
	return out
}

// RelationKind classifies how a field relates a record to other records.
type RelationKind int

const (
	RelationNone RelationKind = iota
	RelationManyToOne
	RelationOneToMany
	RelationManyToAny
)

// FieldRelation resolves the relation (if any) behind a field of a collection and
// returns the collection on the other side. Polymorphic relations have no single
// related collection.
func (s *Schema) FieldRelation(collection, field string) (RelationKind, *Relation, string) {
	for _, rel := range s.Relations {
		if rel.Collection == collection && rel.Field == field {
			if rel.Polymorphic() {
				return RelationManyToAny, rel, ""
			}
			if rel.RelatedCollection != "" {
				return RelationManyToOne, rel, rel.RelatedCollection
			}
		}
		if rel.RelatedCollection == collection && rel.OneField == field {
			return RelationOneToMany, rel, rel.Collection
		}
	}
	return RelationNone, nil, ""
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	out := New()
	for name, c := range s.Collections {
		out.Collections[name] = c.Clone()
	}
	out.Relations = make([]*Relation, 0, len(s.Relations))
	for _, rel := range s.Relations {
		r := *rel
		r.OneAllowedCollections = append([]string(nil), rel.OneAllowedCollections...)
		out.Relations = append(out.Relations, &r)
	}
	return out
}

// Clone returns a deep copy of the collection.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		Name:      c.Name,
		Primary:   c.Primary,
		Singleton: c.Singleton,
		Note:      c.Note,
		Fields:    make(map[string]*Field, len(c.Fields)),
	}
	for name, f := range c.Fields {
		field := *f
		field.Special = append([]string(nil), f.Special...)
		out.Fields[name] = &field
	}
	return out
}

// IsSystem reports whether a collection name belongs to the system namespace.
func IsSystem(name, prefix string) bool {
	return prefix != "" && strings.HasPrefix(name, prefix)
}

// Fingerprint returns a stable digest of the schema contents, independent of map order.
// Notes are included because they surface as type and field descriptions.
func (s *Schema) Fingerprint() string {
	hash := sha256.New()
	for _, name := range s.CollectionNames() {
		c := s.Collections[name]
		_, _ = fmt.Fprintf(hash, "c:%s|%s|%t|%d:%s|", name, c.Primary, c.Singleton, len(c.Note), c.Note)
		for _, fieldName := range c.FieldNames() {
			f := c.Fields[fieldName]
			_, _ = fmt.Fprintf(hash, "f:%s|%s|%t|%t|%s|%d:%s|", fieldName, f.Type, f.Nullable, f.HasDefault,
				strings.Join(f.Special, ","), len(f.Note), f.Note)
		}
	}
	rels := make([]string, 0, len(s.Relations))
	for _, rel := range s.Relations {
		rels = append(rels, fmt.Sprintf("r:%s.%s>%s|%s|%s|%s|%s", rel.Collection, rel.Field, rel.RelatedCollection,
			rel.OneField, strings.Join(rel.OneAllowedCollections, ","), rel.OneCollectionField, rel.JunctionField))
	}
	sort.Strings(rels)
	for _, rel := range rels {
		_, _ = fmt.Fprintf(hash, "%d:%s|", len(rel), rel)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
