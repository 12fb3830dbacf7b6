package dataaccess

import (
	"context"
	"strings"

	"collections-graphql/internal/query"
	"collections-graphql/internal/relschema"
	"collections-graphql/internal/translate"
)

// ReadOne returns the record with key, or nil when it does not exist or is
// excluded by the query filter.
func (m *Memory) ReadOne(ctx context.Context, collection string, key interface{}, q *query.Query) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	record := m.find(collection, key)
	if record == nil {
		return nil, nil
	}
	if q != nil && len(q.Filter) > 0 {
		ok, err := m.matches(c.Name, record, q.Filter)
		if err != nil || !ok {
			return nil, err
		}
	}
	return m.project(c, record, q)
}

// ReadMany returns the records with the given keys, in store order.
func (m *Memory) ReadMany(ctx context.Context, collection string, keys []interface{}, q *query.Query) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	var records []Item
	for _, record := range m.items[collection] {
		for _, key := range keys {
			if sameKey(record[c.Primary], key) {
				records = append(records, record)
				break
			}
		}
	}
	selected, err := m.selectRecords(c, records, q)
	if err != nil {
		return nil, err
	}
	return m.projectAll(c, selected, q)
}

// ReadByQuery returns the records matching q, or aggregate rows when q carries
// an aggregate request.
func (m *Memory) ReadByQuery(ctx context.Context, collection string, q *query.Query) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	if q != nil && len(q.Aggregate) > 0 {
		return m.aggregate(c, m.items[collection], q)
	}
	selected, err := m.selectRecords(c, m.items[collection], q)
	if err != nil {
		return nil, err
	}
	return m.projectAll(c, selected, q)
}

// ReadSingleton returns the single record of a singleton collection. An empty
// collection yields a record of empty values rather than nil.
func (m *Memory) ReadSingleton(ctx context.Context, collection string, q *query.Query) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	record := Item{}
	if records := m.items[collection]; len(records) > 0 {
		record = records[0]
	}
	return m.project(c, record, q)
}

func (m *Memory) projectAll(c *relschema.Collection, records []Item, q *query.Query) ([]Item, error) {
	out := make([]Item, 0, len(records))
	for _, record := range records {
		projected, err := m.project(c, record, q)
		if err != nil {
			return nil, err
		}
		out = append(out, projected)
	}
	return out, nil
}

// level is one node of the requested field tree.
type level struct {
	wildcard bool
	leaves   []string
	funcs    [][2]string // component, field
	children map[string]*child
	order    []string
}

type child struct {
	paths    []string
	branches map[string][]string
}

func parseLevel(fields []string) *level {
	l := &level{children: map[string]*child{}}
	for _, path := range fields {
		head, rest, nested := strings.Cut(path, ".")
		if !nested {
			switch {
			case head == "*":
				l.wildcard = true
			case strings.HasSuffix(head, ")") && strings.Contains(head, "("):
				open := strings.Index(head, "(")
				l.funcs = append(l.funcs, [2]string{head[:open], head[open+1 : len(head)-1]})
			case strings.Contains(head, ":"):
			default:
				l.leaves = append(l.leaves, head)
			}
			continue
		}
		name, branch, isBranch := strings.Cut(head, ":")
		c, ok := l.children[name]
		if !ok {
			c = &child{branches: map[string][]string{}}
			l.children[name] = c
			l.order = append(l.order, name)
		}
		if isBranch {
			c.branches[branch] = append(c.branches[branch], rest)
		} else {
			c.paths = append(c.paths, rest)
		}
	}
	return l
}

// realName maps a response segment back to the field it selects.
func realName(segment string, aliases map[string]string, deep map[string]interface{}) string {
	if name, ok := aliases[segment]; ok {
		return name
	}
	if node, ok := deep[segment].(map[string]interface{}); ok {
		if nodeAliases, ok := node["_alias"].(map[string]interface{}); ok {
			if name, ok := nodeAliases[segment].(string); ok {
				return name
			}
		}
	}
	return segment
}

func (m *Memory) project(c *relschema.Collection, record Item, q *query.Query) (Item, error) {
	var (
		fields  []string
		aliases map[string]string
		deep    map[string]interface{}
	)
	if q != nil {
		fields, aliases, deep = q.Fields, q.Alias, q.Deep
	}
	if len(fields) == 0 {
		fields = []string{"*"}
	}
	return m.projectLevel(c, record, fields, aliases, deep)
}

func (m *Memory) projectLevel(c *relschema.Collection, record Item, fields []string, aliases map[string]string, deep map[string]interface{}) (Item, error) {
	l := parseLevel(fields)
	out := Item{}

	if l.wildcard {
		for name, field := range c.Fields {
			if field.Type == "alias" {
				continue
			}
			out[name] = query.DeepCopy(record[name])
		}
	}
	for _, leaf := range l.leaves {
		out[leaf] = m.leafValue(c, record, leaf)
	}
	for alias, name := range aliases {
		if _, isChild := l.children[alias]; isChild {
			continue
		}
		if _, ok := c.Fields[name]; ok {
			out[alias] = m.leafValue(c, record, name)
		}
	}
	for _, fn := range l.funcs {
		out[fn[1]+"_"+fn[0]] = m.functionValue(c, record, fn[1], fn[0])
	}

	for _, segment := range l.order {
		sub := l.children[segment]
		name := realName(segment, aliases, deep)
		node, _ := deep[segment].(map[string]interface{})
		value, err := m.projectRelation(c, record, name, sub, node)
		if err != nil {
			return nil, err
		}
		out[segment] = value
		// Polymorphic items are typed from the discriminator on the parent.
		if kind, rel, _ := m.schema.FieldRelation(c.Name, name); kind == relschema.RelationManyToAny {
			if _, ok := out[rel.OneCollectionField]; !ok {
				out[rel.OneCollectionField] = record[rel.OneCollectionField]
			}
		}
	}
	return out, nil
}

// leafValue returns a stored value. One-to-many fields, which are not stored,
// yield the keys of the related records.
func (m *Memory) leafValue(c *relschema.Collection, record Item, name string) interface{} {
	kind, rel, related := m.schema.FieldRelation(c.Name, name)
	if kind == relschema.RelationOneToMany {
		keys := []interface{}{}
		relatedCollection, ok := m.schema.Collection(related)
		if !ok {
			return keys
		}
		for _, r := range m.relatedMany(rel, record[c.Primary]) {
			keys = append(keys, r[relatedCollection.Primary])
		}
		return keys
	}
	return query.DeepCopy(record[name])
}

func (m *Memory) relatedMany(rel *relschema.Relation, key interface{}) []Item {
	var out []Item
	for _, r := range m.items[rel.Collection] {
		if sameKey(r[rel.Field], key) {
			out = append(out, r)
		}
	}
	return out
}

func (m *Memory) projectRelation(c *relschema.Collection, record Item, name string, sub *child, node map[string]interface{}) (interface{}, error) {
	nested, err := deepQuery(node)
	if err != nil {
		return nil, err
	}
	kind, rel, related := m.schema.FieldRelation(c.Name, name)
	switch kind {
	case relschema.RelationManyToOne:
		target, ok := m.schema.Collection(related)
		if !ok {
			return query.DeepCopy(record[name]), nil
		}
		rec := m.find(related, record[name])
		if rec == nil {
			return nil, nil
		}
		if len(nested.Filter) > 0 {
			ok, err := m.matches(related, rec, nested.Filter)
			if err != nil || !ok {
				return nil, err
			}
		}
		return m.projectLevel(target, rec, sub.paths, nested.Alias, nested.Deep)

	case relschema.RelationOneToMany:
		target, ok := m.schema.Collection(related)
		if !ok {
			return []interface{}{}, nil
		}
		selected, err := m.selectRecords(target, m.relatedMany(rel, record[c.Primary]), nested)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, 0, len(selected))
		for _, rec := range selected {
			projected, err := m.projectLevel(target, rec, sub.paths, nested.Alias, nested.Deep)
			if err != nil {
				return nil, err
			}
			out = append(out, projected)
		}
		return out, nil

	case relschema.RelationManyToAny:
		discriminator, _ := record[rel.OneCollectionField].(string)
		target, ok := m.schema.Collection(discriminator)
		if !ok {
			return nil, nil
		}
		rec := m.find(discriminator, record[name])
		if rec == nil {
			return nil, nil
		}
		paths := sub.branches[discriminator]
		if len(paths) == 0 {
			paths = sub.paths
		}
		if len(paths) == 0 {
			paths = []string{target.Primary}
		}
		return m.projectLevel(target, rec, paths, nested.Alias, nested.Deep)

	default:
		return query.DeepCopy(record[name]), nil
	}
}

// deepQuery decodes the directives of a deep node; nested relation entries stay in Deep.
func deepQuery(node map[string]interface{}) (*query.Query, error) {
	if node == nil {
		return &query.Query{}, nil
	}
	q, err := translate.FromDeep(node)
	if err != nil {
		return nil, err
	}
	nested := map[string]interface{}{}
	for key, value := range node {
		if !strings.HasPrefix(key, "_") {
			nested[key] = value
		}
	}
	q.Deep = nested
	return q, nil
}
