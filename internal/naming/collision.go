package naming

import (
	"log/slog"
	"strconv"
)

// registry records the operation names issued under each root type and the
// collection that claimed them.
type registry struct {
	claimed map[string]map[string]string
	logger  *slog.Logger
}

func newRegistry(logger *slog.Logger) *registry {
	return &registry{claimed: map[string]map[string]string{}, logger: logger}
}

// claim returns name if it is free under root, otherwise the first free
// name+N with N starting at 2.
func (r *registry) claim(root, name, collection string) string {
	names := r.claimed[root]
	if names == nil {
		names = map[string]string{}
		r.claimed[root] = names
	}
	owner, taken := names[name]
	if !taken {
		names[name] = collection
		return name
	}
	for i := 2; ; i++ {
		candidate := name + strconv.Itoa(i)
		if _, taken := names[candidate]; taken {
			continue
		}
		names[candidate] = collection
		r.logger.Warn("operation name collision, applying suffix",
			slog.String("root", root),
			slog.String("name", name),
			slog.String("claimed_by", owner),
			slog.String("collection", collection),
			slog.String("resolved", candidate),
		)
		return candidate
	}
}
