package dataaccess

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"collections-graphql/internal/apierror"
	"collections-graphql/internal/query"
	"collections-graphql/internal/relschema"
)

// CreateOne inserts a record and returns its primary key. Nested many-to-one
// objects and one-to-many arrays are written in the same step.
func (m *Memory) CreateOne(ctx context.Context, collection string, data Item) (interface{}, error) {
	keys, err := m.CreateMany(ctx, collection, []Item{data})
	if err != nil {
		return nil, err
	}
	return keys[0], nil
}

// CreateMany inserts all records or none.
func (m *Memory) CreateMany(ctx context.Context, collection string, data []Item) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	keys := make([]interface{}, 0, len(data))
	err = m.atomically(func() error {
		for _, record := range data {
			key, err := m.insert(c, record)
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Debug("created items", slog.String("collection", collection), slog.Int("count", len(keys)))
	return keys, nil
}

// UpdateOne patches the record with key. A missing record is reported as
// FORBIDDEN so callers cannot probe for keys they cannot see.
func (m *Memory) UpdateOne(ctx context.Context, collection string, key interface{}, data Item) (interface{}, error) {
	keys, err := m.UpdateMany(ctx, collection, []interface{}{key}, data)
	if err != nil {
		return nil, err
	}
	return keys[0], nil
}

// UpdateMany applies the same patch to every listed record.
func (m *Memory) UpdateMany(ctx context.Context, collection string, keys []interface{}, data Item) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	err = m.atomically(func() error {
		for _, key := range keys {
			if err := m.patch(c, key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Debug("updated items", slog.String("collection", collection), slog.Int("count", len(keys)))
	return keys, nil
}

// UpdateBatch patches each record by the primary key it carries.
func (m *Memory) UpdateBatch(ctx context.Context, collection string, data []Item) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	keys := make([]interface{}, 0, len(data))
	err = m.atomically(func() error {
		for _, record := range data {
			key, ok := record[c.Primary]
			if !ok || key == nil {
				return apierror.New(apierror.CodeInvalidPayload, "batch update of %q requires %q on every item", collection, c.Primary)
			}
			if err := m.patch(c, key, record); err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// DeleteOne removes the record with key.
func (m *Memory) DeleteOne(ctx context.Context, collection string, key interface{}) (interface{}, error) {
	keys, err := m.DeleteMany(ctx, collection, []interface{}{key})
	if err != nil {
		return nil, err
	}
	return keys[0], nil
}

// DeleteMany removes every listed record. Children pointing at a removed record
// have their link cleared.
func (m *Memory) DeleteMany(ctx context.Context, collection string, keys []interface{}) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	err = m.atomically(func() error {
		for _, key := range keys {
			if err := m.remove(c, key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Debug("deleted items", slog.String("collection", collection), slog.Int("count", len(keys)))
	return keys, nil
}

// UpsertSingleton patches the singleton record, creating it on first write.
func (m *Memory) UpsertSingleton(ctx context.Context, collection string, data Item) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	var key interface{}
	err = m.atomically(func() error {
		if records := m.items[collection]; len(records) > 0 {
			key = records[0][c.Primary]
			return m.patch(c, key, data)
		}
		key, err = m.insert(c, data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// atomically restores the store when fn fails. Callers hold the write lock.
// Records are replaced rather than mutated, so copying the slices is enough.
func (m *Memory) atomically(fn func() error) error {
	items := make(map[string][]Item, len(m.items))
	for name, records := range m.items {
		items[name] = append([]Item(nil), records...)
	}
	sequence := make(map[string]int64, len(m.sequence))
	for name, n := range m.sequence {
		sequence[name] = n
	}
	if err := fn(); err != nil {
		m.items, m.sequence = items, sequence
		return err
	}
	return nil
}

func (m *Memory) checkFields(c *relschema.Collection, data Item) error {
	for name := range data {
		if _, ok := c.Fields[name]; !ok {
			return apierror.New(apierror.CodeInvalidPayload, "field %q does not exist in collection %q", name, c.Name)
		}
	}
	return nil
}

func (m *Memory) insert(c *relschema.Collection, data Item) (interface{}, error) {
	if err := m.checkFields(c, data); err != nil {
		return nil, err
	}
	record := Item{}
	var deferred []string
	for name, value := range data {
		kind, _, _ := m.schema.FieldRelation(c.Name, name)
		if kind == relschema.RelationOneToMany {
			deferred = append(deferred, name)
			continue
		}
		stored, err := m.storeValue(c, record, data, name, value)
		if err != nil {
			return nil, err
		}
		record[name] = stored
	}

	for name, field := range c.Fields {
		if _, ok := record[name]; ok {
			continue
		}
		switch {
		case field.HasSpecial(relschema.SpecialUUID) && name != c.Primary:
			record[name] = uuid.NewString()
		case field.HasSpecial(relschema.SpecialDateCreated):
			record[name] = m.now().UTC().Format(time.RFC3339)
		case name == c.Primary, field.Type == "alias", field.Nullable, field.HasDefault, field.Generated():
		default:
			return nil, apierror.New(apierror.CodeInvalidPayload, "%q is required for collection %q", name, c.Name)
		}
	}

	key, ok := record[c.Primary]
	if !ok || key == nil {
		generated, err := m.generateKey(c)
		if err != nil {
			return nil, err
		}
		key = generated
		record[c.Primary] = key
	} else if m.indexOf(c, key) >= 0 {
		return nil, apierror.New(apierror.CodeInvalidPayload, "%q %v already exists in collection %q", c.Primary, key, c.Name)
	}
	m.bumpSequence(c.Name, key)
	m.items[c.Name] = append(m.items[c.Name], record)

	for _, name := range deferred {
		if err := m.writeChildren(c, key, name, data[name]); err != nil {
			return nil, err
		}
	}
	return key, nil
}

func (m *Memory) patch(c *relschema.Collection, key interface{}, data Item) error {
	if err := m.checkFields(c, data); err != nil {
		return err
	}
	idx := m.indexOf(c, key)
	if idx < 0 {
		return apierror.New(apierror.CodeForbidden, "you don't have permission to access this")
	}
	if next, ok := data[c.Primary]; ok && !sameKey(next, key) {
		return apierror.New(apierror.CodeInvalidPayload, "primary key %q cannot be changed", c.Primary)
	}
	record := query.DeepCopy(m.items[c.Name][idx]).(map[string]interface{})
	for name, value := range data {
		if name == c.Primary {
			continue
		}
		kind, _, _ := m.schema.FieldRelation(c.Name, name)
		if kind == relschema.RelationOneToMany {
			if err := m.writeChildren(c, key, name, value); err != nil {
				return err
			}
			continue
		}
		stored, err := m.storeValue(c, record, data, name, value)
		if err != nil {
			return err
		}
		record[name] = stored
	}
	// writeChildren may have grown or shrunk other collections but never this slot.
	m.items[c.Name][m.indexOf(c, key)] = record
	return nil
}

// storeValue resolves nested relational payloads to the key that is stored.
func (m *Memory) storeValue(c *relschema.Collection, record, data Item, name string, value interface{}) (interface{}, error) {
	nested, isMap := value.(map[string]interface{})
	if !isMap {
		return query.DeepCopy(value), nil
	}
	kind, rel, related := m.schema.FieldRelation(c.Name, name)
	switch kind {
	case relschema.RelationManyToOne:
		return m.upsertRelated(related, nested)
	case relschema.RelationManyToAny:
		discriminator, _ := data[rel.OneCollectionField].(string)
		if discriminator == "" {
			discriminator, _ = record[rel.OneCollectionField].(string)
		}
		if discriminator == "" {
			return nil, apierror.New(apierror.CodeInvalidPayload, "%q requires %q to be set", name, rel.OneCollectionField)
		}
		return m.upsertRelated(discriminator, nested)
	default:
		return query.DeepCopy(value), nil
	}
}

// upsertRelated updates the related record when the payload names an existing
// key and creates it otherwise.
func (m *Memory) upsertRelated(collection string, data Item) (interface{}, error) {
	target, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	if key, ok := data[target.Primary]; ok && m.indexOf(target, key) >= 0 {
		return key, m.patch(target, key, data)
	}
	return m.insert(target, data)
}

// writeChildren applies a one-to-many payload. An array replaces the set of
// children; the {create, update, delete} form edits it in place.
func (m *Memory) writeChildren(c *relschema.Collection, key interface{}, name string, value interface{}) error {
	_, rel, related := m.schema.FieldRelation(c.Name, name)
	target, err := m.collection(related)
	if err != nil {
		return err
	}
	switch payload := value.(type) {
	case nil:
		return m.detachChildren(target, rel, key, nil)
	case []interface{}:
		keep := make([]interface{}, 0, len(payload))
		for _, entry := range payload {
			childKey, err := m.attachChild(target, rel, key, entry)
			if err != nil {
				return err
			}
			keep = append(keep, childKey)
		}
		return m.detachChildren(target, rel, key, keep)
	case map[string]interface{}:
		for _, op := range []string{"create", "update", "delete"} {
			raw, ok := payload[op]
			if !ok {
				continue
			}
			entries, ok := raw.([]interface{})
			if !ok {
				return apierror.New(apierror.CodeInvalidPayload, "%q.%s must be a list", name, op)
			}
			for _, entry := range entries {
				if op == "delete" {
					if err := m.remove(target, entry); err != nil {
						return err
					}
					continue
				}
				if _, err := m.attachChild(target, rel, key, entry); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return apierror.New(apierror.CodeInvalidPayload, "%q expects a list of related items", name)
	}
}

func (m *Memory) attachChild(target *relschema.Collection, rel *relschema.Relation, parent interface{}, entry interface{}) (interface{}, error) {
	data, isMap := entry.(map[string]interface{})
	if !isMap {
		data = Item{target.Primary: entry}
	} else {
		data = query.DeepCopy(data).(map[string]interface{})
	}
	data[rel.Field] = parent
	return m.upsertRelated(target.Name, data)
}

func (m *Memory) detachChildren(target *relschema.Collection, rel *relschema.Relation, parent interface{}, keep []interface{}) error {
	for i, record := range m.items[target.Name] {
		if !sameKey(record[rel.Field], parent) || containsKey(keep, record[target.Primary]) {
			continue
		}
		updated := query.DeepCopy(record).(map[string]interface{})
		updated[rel.Field] = nil
		m.items[target.Name][i] = updated
	}
	return nil
}

func (m *Memory) remove(c *relschema.Collection, key interface{}) error {
	idx := m.indexOf(c, key)
	if idx < 0 {
		return apierror.New(apierror.CodeForbidden, "you don't have permission to access this")
	}
	records := m.items[c.Name]
	m.items[c.Name] = append(records[:idx:idx], records[idx+1:]...)
	for _, rel := range m.schema.Relations {
		if rel.RelatedCollection != c.Name {
			continue
		}
		for i, record := range m.items[rel.Collection] {
			if sameKey(record[rel.Field], key) {
				updated := query.DeepCopy(record).(map[string]interface{})
				updated[rel.Field] = nil
				m.items[rel.Collection][i] = updated
			}
		}
	}
	return nil
}

func containsKey(keys []interface{}, key interface{}) bool {
	for _, k := range keys {
		if sameKey(k, key) {
			return true
		}
	}
	return false
}
