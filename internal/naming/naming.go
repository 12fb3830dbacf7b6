// Package naming derives the GraphQL type and operation names generated for
// collections, and checks that collection and field names are usable in a schema.
package naming

import (
	"log/slog"
	"regexp"

	"collections-graphql/internal/relschema"
)

const (
	// FuncSuffix names a function pseudo-field, e.g. published_on_func.
	FuncSuffix = "_func"
	// DeleteManyType and DeleteOneType are the fixed delete mutation payloads.
	DeleteManyType = "delete_many"
	DeleteOneType  = "delete_one"
	// EventEnumType lists mutation events for subscriptions.
	EventEnumType = "EventEnum"
)

var nameRE = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// Namer checks names, records generated operation names and produces the
// human-readable nouns used in descriptions.
type Namer struct {
	config Config
	logger *slog.Logger
	ops    *registry
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config: cfg,
		logger: logger,
		ops:    newRegistry(logger),
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset forgets claimed operation names so the namer can serve another build.
func (n *Namer) Reset() {
	n.ops = newRegistry(n.logger)
}

// Valid reports whether name matches the GraphQL name grammar.
func Valid(name string) bool {
	return nameRE.MatchString(name)
}

// UsableCollection reports whether a collection can be exposed as a type. Invalid
// and reserved names are logged and skipped.
func (n *Namer) UsableCollection(name string) bool {
	if !Valid(name) {
		n.logger.Warn("collection name is not a valid GraphQL name, skipping", slog.String("collection", name))
		return false
	}
	if isReservedTypeName(name) {
		n.logger.Warn("collection name is reserved in GraphQL, skipping", slog.String("collection", name))
		return false
	}
	return true
}

// UsableField reports whether a field can be exposed on a collection type.
func (n *Namer) UsableField(collection, field string) bool {
	if !Valid(field) || isReservedFieldName(field) {
		n.logger.Warn("field name cannot be exposed in GraphQL, skipping",
			slog.String("collection", collection),
			slog.String("field", field),
		)
		return false
	}
	return true
}

// RegisterOperation records a root operation name and returns the name to use.
// A duplicate gets a numeric suffix rather than replacing the earlier operation.
func (n *Namer) RegisterOperation(root, name, collection string) string {
	return n.ops.claim(root, name, collection)
}

// FilterType is the filter input for a collection.
func FilterType(collection string) string { return collection + "_filter" }

// AggregatedType is the aggregate result object for a collection.
func AggregatedType(collection string) string { return collection + "_aggregated" }

// AggregatedCountType holds per-field counts.
func AggregatedCountType(collection string) string { return collection + "_aggregated_count" }

// AggregatedFieldsType holds per-field numeric aggregates.
func AggregatedFieldsType(collection string) string { return collection + "_aggregated_fields" }

// VersionType is the version shadow of a read type.
func VersionType(collection string) string { return "version_" + collection }

// UnionType is the union behind a polymorphic relation field.
func UnionType(collection, field string) string { return collection + "_" + field + "_union" }

// MutatedType is the subscription payload for a collection.
func MutatedType(collection string) string { return collection + "_mutated" }

// FuncField is the function pseudo-field of a field.
func FuncField(field string) string { return field + FuncSuffix }

// PolymorphicFilterField names the filter entry for one branch of a polymorphic relation.
func PolymorphicFilterField(field, collection string) string { return field + "__" + collection }

// CollectionType is the type name a collection gets under an action.
func CollectionType(action relschema.Action, collection string) string {
	switch action {
	case relschema.ActionCreate, relschema.ActionUpdate:
		return string(action) + "_" + collection + "_input"
	case relschema.ActionDelete:
		return "delete_" + collection
	default:
		return collection
	}
}

// ByID is the single-record read operation.
func ByID(collection string) string { return collection + "_by_id" }

// ByVersion is the draft-version read operation.
func ByVersion(collection string) string { return collection + "_by_version" }

// Aggregated is the aggregate read operation.
func Aggregated(collection string) string { return collection + "_aggregated" }

// Mutated is the subscription field for a collection.
func Mutated(collection string) string { return collection + "_mutated" }

// Mutation names the mutation operation for an action and cardinality suffix.
// An empty suffix is used for singleton updates.
func Mutation(action relschema.Action, collection, suffix string) string {
	name := string(action) + "_" + collection
	if suffix != "" {
		name += "_" + suffix
	}
	return name
}
