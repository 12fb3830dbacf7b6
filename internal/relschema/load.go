package relschema

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a schema document from a YAML file.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML schema document and normalizes it. Relations that point at
// unknown collections are kept but reported, since graph building skips them.
func Load(r io.Reader) (*Schema, error) {
	schema := New()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(schema); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if schema.Collections == nil {
		schema.Collections = map[string]*Collection{}
	}
	if err := schema.normalize(); err != nil {
		return nil, err
	}
	for _, rel := range schema.Relations {
		for _, target := range append([]string{rel.Collection, rel.RelatedCollection}, rel.OneAllowedCollections...) {
			if target == "" {
				continue
			}
			if _, ok := schema.Collections[target]; !ok {
				slog.Default().Warn("relation references unknown collection",
					slog.String("collection", rel.Collection),
					slog.String("field", rel.Field),
					slog.String("target", target),
				)
			}
		}
	}
	return schema, nil
}

func (s *Schema) normalize() error {
	for name, c := range s.Collections {
		if c == nil {
			c = &Collection{}
			s.Collections[name] = c
		}
		c.Name = name
		if c.Fields == nil {
			c.Fields = map[string]*Field{}
		}
		for fieldName, f := range c.Fields {
			if f == nil {
				f = &Field{Type: "string", Nullable: true}
				c.Fields[fieldName] = f
			}
			f.Name = fieldName
			if f.Type == "" {
				f.Type = "string"
			}
		}
		if c.Primary == "" {
			if _, ok := c.Fields["id"]; ok {
				c.Primary = "id"
			}
		}
		if c.Primary == "" {
			return fmt.Errorf("collection %q has no primary key field", name)
		}
		if _, ok := c.Fields[c.Primary]; !ok {
			return fmt.Errorf("collection %q primary key %q is not a field", name, c.Primary)
		}
	}
	for i, rel := range s.Relations {
		if rel == nil || rel.Collection == "" || rel.Field == "" {
			return fmt.Errorf("relation %d must name a collection and a field", i)
		}
	}
	return nil
}
