package dataaccess

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"collections-graphql/internal/apierror"
	"collections-graphql/internal/query"
	"collections-graphql/internal/relschema"
)

// DefaultLimit caps list reads that do not set a limit.
const DefaultLimit = 100

// Memory is an in-process ItemService and VersionSource over a relational
// schema. It backs tests and the schemagen demo; nothing is persisted.
type Memory struct {
	mu           sync.RWMutex
	schema       *relschema.Schema
	items        map[string][]Item
	sequence     map[string]int64
	saves        map[string][]Item
	logger       *slog.Logger
	defaultLimit int
	now          func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithLogger sets the logger used for write tracing.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(m *Memory) {
		m.logger = logger
	}
}

// WithDefaultLimit overrides DefaultLimit; -1 disables the cap.
func WithDefaultLimit(limit int) MemoryOption {
	return func(m *Memory) {
		m.defaultLimit = limit
	}
}

// WithClock sets the time source for date-created values.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty store for schema.
func NewMemory(schema *relschema.Schema, opts ...MemoryOption) *Memory {
	m := &Memory{
		schema:       schema,
		items:        map[string][]Item{},
		sequence:     map[string]int64{},
		saves:        map[string][]Item{},
		logger:       slog.Default(),
		defaultLimit: DefaultLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetSchema replaces the schema records are validated and projected against.
// Stored records are kept as they are.
func (m *Memory) SetSchema(schema *relschema.Schema) {
	if schema == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schema = schema
}

// Seed stores records as given, assigning primary keys only where missing.
// It skips payload validation so fixtures can describe any state.
func (m *Memory) Seed(collection string, records ...Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return err
	}
	for _, record := range records {
		copied := query.DeepCopy(record).(map[string]interface{})
		if _, ok := copied[c.Primary]; !ok {
			key, err := m.generateKey(c)
			if err != nil {
				return err
			}
			copied[c.Primary] = key
		}
		m.bumpSequence(collection, copied[c.Primary])
		m.items[collection] = append(m.items[collection], copied)
	}
	return nil
}

// SaveVersion appends a draft diff for a record; singletons pass a nil key.
func (m *Memory) SaveVersion(version, collection string, key interface{}, delta Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := versionID(version, collection, key)
	m.saves[id] = append(m.saves[id], query.DeepCopy(delta).(map[string]interface{}))
}

// VersionSaves implements VersionSource.
func (m *Memory) VersionSaves(ctx context.Context, version, collection string, key interface{}) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	saves := m.saves[versionID(version, collection, key)]
	out := make([]Item, len(saves))
	for i, save := range saves {
		out[i] = query.DeepCopy(save).(map[string]interface{})
	}
	return out, nil
}

// Count returns the number of stored records.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items[collection])
}

// Raw returns a copy of a stored record without projection.
func (m *Memory) Raw(collection string, key interface{}) (Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, false
	}
	idx := m.indexOf(c, key)
	if idx < 0 {
		return nil, false
	}
	return query.DeepCopy(m.items[collection][idx]).(map[string]interface{}), true
}

func versionID(version, collection string, key interface{}) string {
	if key == nil {
		return version + "|" + collection
	}
	return version + "|" + collection + "|" + keyString(key)
}

func keyString(v interface{}) string {
	return fmt.Sprint(v)
}

func sameKey(a, b interface{}) bool {
	if a == nil || b == nil {
		return false
	}
	return keyString(a) == keyString(b)
}

func (m *Memory) collection(name string) (*relschema.Collection, error) {
	c, ok := m.schema.Collection(name)
	if !ok {
		return nil, apierror.New(apierror.CodeNotFound, "collection %q does not exist", name)
	}
	return c, nil
}

func (m *Memory) indexOf(c *relschema.Collection, key interface{}) int {
	for i, record := range m.items[c.Name] {
		if sameKey(record[c.Primary], key) {
			return i
		}
	}
	return -1
}

func (m *Memory) find(collection string, key interface{}) Item {
	c, ok := m.schema.Collection(collection)
	if !ok || key == nil {
		return nil
	}
	if idx := m.indexOf(c, key); idx >= 0 {
		return m.items[collection][idx]
	}
	return nil
}

func (m *Memory) generateKey(c *relschema.Collection) (interface{}, error) {
	primary := c.Fields[c.Primary]
	switch {
	case primary != nil && primary.HasSpecial(relschema.SpecialUUID):
		return uuid.NewString(), nil
	case primary != nil && primary.HasDefault && (primary.Type == "integer" || primary.Type == "bigInteger"):
		m.sequence[c.Name]++
		return m.sequence[c.Name], nil
	default:
		return nil, apierror.New(apierror.CodeInvalidPayload, "%q is required for collection %q", c.Primary, c.Name)
	}
}

func (m *Memory) bumpSequence(collection string, key interface{}) {
	if n, ok := toFloat(key); ok && int64(n) > m.sequence[collection] {
		m.sequence[collection] = int64(n)
	}
}

// limitFor resolves the effective page size; -1 means unlimited.
func (m *Memory) limitFor(q *query.Query) int {
	if q != nil && q.Limit != nil {
		return *q.Limit
	}
	return m.defaultLimit
}
