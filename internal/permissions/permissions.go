// Package permissions resolves which fields a role may see for each action.
package permissions

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"collections-graphql/internal/relschema"
	"collections-graphql/internal/schemafilter"
)

// PublicRole is used for callers without a role.
const PublicRole = "public"

// InconsistentFields maps a collection to fields whose requiredness cannot be trusted
// because visibility differs between the policies that apply to the caller.
type InconsistentFields map[string][]string

// Contains reports whether field of collection is in the set.
func (i InconsistentFields) Contains(collection, field string) bool {
	for _, f := range i[collection] {
		if f == field {
			return true
		}
	}
	return false
}

// Resolver supplies field visibility for a role.
type Resolver interface {
	AllowedFields(ctx context.Context, role string, action relschema.Action) (schemafilter.AllowList, error)
	InconsistentFields(ctx context.Context, role string, action relschema.Action) (InconsistentFields, error)
}

// RolePolicy is the visibility granted to one role.
type RolePolicy struct {
	Admin        bool                                    `yaml:"admin"`
	Read         schemafilter.AllowList                  `yaml:"read"`
	Create       schemafilter.AllowList                  `yaml:"create"`
	Update       schemafilter.AllowList                  `yaml:"update"`
	Delete       schemafilter.AllowList                  `yaml:"delete"`
	Inconsistent map[relschema.Action]InconsistentFields `yaml:"inconsistent"`
}

func (p *RolePolicy) forAction(action relschema.Action) schemafilter.AllowList {
	switch action {
	case relschema.ActionRead:
		return p.Read
	case relschema.ActionCreate:
		return p.Create
	case relschema.ActionUpdate:
		return p.Update
	case relschema.ActionDelete:
		return p.Delete
	default:
		return nil
	}
}

// Static is a Resolver backed by a fixed role table.
type Static struct {
	Roles map[string]*RolePolicy `yaml:"roles"`
}

// LoadFile reads a role table from a YAML file.
func LoadFile(path string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open permissions file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML role table.
func Load(r io.Reader) (*Static, error) {
	static := &Static{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(static); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	if static.Roles == nil {
		static.Roles = map[string]*RolePolicy{}
	}
	for name, policy := range static.Roles {
		if policy == nil {
			static.Roles[name] = &RolePolicy{}
		}
	}
	return static, nil
}

// AdminOnly returns a resolver where the given role sees everything.
func AdminOnly(role string) *Static {
	return &Static{Roles: map[string]*RolePolicy{role: {Admin: true}}}
}

func (s *Static) policy(role string) *RolePolicy {
	if role == "" {
		role = PublicRole
	}
	if policy, ok := s.Roles[role]; ok {
		return policy
	}
	return nil
}

// AllowedFields implements Resolver. Admin roles see every field; unknown roles see nothing.
func (s *Static) AllowedFields(_ context.Context, role string, action relschema.Action) (schemafilter.AllowList, error) {
	policy := s.policy(role)
	if policy == nil {
		return schemafilter.AllowList{}, nil
	}
	if policy.Admin {
		return schemafilter.AllowList{"*": {"*"}}, nil
	}
	allowed := policy.forAction(action)
	out := make(schemafilter.AllowList, len(allowed))
	for collection, fields := range allowed {
		out[collection] = append([]string(nil), fields...)
	}
	return out, nil
}

// InconsistentFields implements Resolver.
func (s *Static) InconsistentFields(_ context.Context, role string, action relschema.Action) (InconsistentFields, error) {
	policy := s.policy(role)
	if policy == nil || policy.Admin {
		return InconsistentFields{}, nil
	}
	out := InconsistentFields{}
	for collection, fields := range policy.Inconsistent[action] {
		out[collection] = append([]string(nil), fields...)
	}
	return out, nil
}
