// Package registry holds the catalog of relationship types and their
// reciprocal and symmetry rules.
package registry

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ersonp/famtree/internal/domain/entities"
)

// TypeConfig describes how a relationship type behaves.
type TypeConfig struct {
	Type          entities.RelationType `json:"type"`
	Label         string                `json:"label"`
	Bidirectional bool                  `json:"bidirectional"`
	Reciprocal    entities.RelationType `json:"reciprocal"`
	Icon          string                `json:"icon,omitempty"`
	Color         string                `json:"color,omitempty"`
}

// Registry is an immutable catalog of relationship types.
// Build it once at startup and pass it to the services that need it.
type Registry struct {
	order   []entities.RelationType
	configs map[entities.RelationType]TypeConfig
}

// DefaultTypes is the built-in relationship catalog.
var DefaultTypes = []TypeConfig{
	{Type: entities.RelationParent, Label: "Parent", Reciprocal: entities.RelationChild, Icon: "user-up", Color: "#2563eb"},
	{Type: entities.RelationChild, Label: "Child", Reciprocal: entities.RelationParent, Icon: "user-down", Color: "#16a34a"},
	{Type: entities.RelationPartner, Label: "Partner", Bidirectional: true, Reciprocal: entities.RelationPartner, Icon: "heart", Color: "#db2777"},
	{Type: entities.RelationSibling, Label: "Sibling", Bidirectional: true, Reciprocal: entities.RelationSibling, Icon: "users", Color: "#9333ea"},
	{Type: entities.RelationHalfSibling, Label: "Half sibling", Bidirectional: true, Reciprocal: entities.RelationHalfSibling, Icon: "users", Color: "#a855f7"},
	{Type: entities.RelationStepSibling, Label: "Step sibling", Bidirectional: true, Reciprocal: entities.RelationStepSibling, Icon: "users", Color: "#c084fc"},
	{Type: entities.RelationSpouse, Label: "Spouse", Bidirectional: true, Reciprocal: entities.RelationSpouse, Icon: "ring", Color: "#e11d48"},
	{Type: entities.RelationDonor, Label: "Donor", Reciprocal: entities.RelationChild, Icon: "gift", Color: "#f59e0b"},
	{Type: entities.RelationBiologicalParent, Label: "Biological parent", Reciprocal: entities.RelationChild, Icon: "dna", Color: "#0891b2"},
	{Type: entities.RelationSocialParent, Label: "Social parent", Reciprocal: entities.RelationChild, Icon: "home", Color: "#0d9488"},
	{Type: entities.RelationOther, Label: "Other", Bidirectional: true, Reciprocal: entities.RelationOther, Icon: "link", Color: "#6b7280"},
}

// New builds a registry from the given type configs and checks that the
// reciprocal rules are consistent:
//   - a bidirectional type is its own reciprocal;
//   - a directional type's reciprocal is a known directional type whose own
//     reciprocal maps back to the same role (parent→child→parent,
//     donor→child→parent).
func New(types ...TypeConfig) (*Registry, error) {
	r := &Registry{
		order:   make([]entities.RelationType, 0, len(types)),
		configs: make(map[entities.RelationType]TypeConfig, len(types)),
	}

	for _, tc := range types {
		if tc.Type == "" {
			return nil, fmt.Errorf("relationship type with label %q has no name", tc.Label)
		}
		if _, dup := r.configs[tc.Type]; dup {
			return nil, fmt.Errorf("duplicate relationship type %q", tc.Type)
		}
		r.order = append(r.order, tc.Type)
		r.configs[tc.Type] = tc
	}

	for _, t := range r.order {
		tc := r.configs[t]
		if tc.Bidirectional {
			if tc.Reciprocal != t {
				return nil, fmt.Errorf("bidirectional type %q must be its own reciprocal, got %q", t, tc.Reciprocal)
			}
			continue
		}

		rc, ok := r.configs[tc.Reciprocal]
		if !ok {
			return nil, fmt.Errorf("type %q has unknown reciprocal %q", t, tc.Reciprocal)
		}
		if rc.Bidirectional {
			return nil, fmt.Errorf("directional type %q has bidirectional reciprocal %q", t, tc.Reciprocal)
		}
		back, ok := r.configs[rc.Reciprocal]
		if !ok || back.Reciprocal != tc.Reciprocal {
			return nil, fmt.Errorf("reciprocal of %q does not round-trip through %q", t, tc.Reciprocal)
		}
	}

	return r, nil
}

// Default returns a registry holding DefaultTypes.
func Default() *Registry {
	r, err := New(DefaultTypes...)
	if err != nil {
		panic(fmt.Sprintf("registry: invalid default types: %v", err))
	}
	return r
}

// All returns every known type in catalog order.
func (r *Registry) All() []entities.RelationType {
	return slices.Clone(r.order)
}

// Lookup returns the config for t and whether t is known.
func (r *Registry) Lookup(t entities.RelationType) (TypeConfig, bool) {
	tc, ok := r.configs[t]
	return tc, ok
}

// Config returns the config for t. Unknown types are a programming error.
func (r *Registry) Config(t entities.RelationType) TypeConfig {
	tc, ok := r.configs[t]
	if !ok {
		panic(fmt.Sprintf("registry: unknown relationship type %q", t))
	}
	return tc
}

// IsKnown reports whether t is in the catalog.
func (r *Registry) IsKnown(t entities.RelationType) bool {
	_, ok := r.configs[t]
	return ok
}

// Reciprocal returns the type installed on the mirror edge of t.
func (r *Registry) Reciprocal(t entities.RelationType) entities.RelationType {
	return r.Config(t).Reciprocal
}

// IsBidirectional reports whether t applies symmetrically to both persons.
func (r *Registry) IsBidirectional(t entities.RelationType) bool {
	return r.Config(t).Bidirectional
}

// IsParentRole reports whether an edge of type t points from a parent to a
// child, i.e. its reciprocal is the child type.
func (r *Registry) IsParentRole(t entities.RelationType) bool {
	tc, ok := r.configs[t]
	return ok && !tc.Bidirectional && tc.Reciprocal == entities.RelationChild
}

// IsChildRole reports whether an edge of type t points from a child to a parent.
func (r *Registry) IsChildRole(t entities.RelationType) bool {
	return t == entities.RelationChild && r.IsKnown(t)
}

// Bidirectional returns the symmetric types in catalog order.
func (r *Registry) Bidirectional() []entities.RelationType {
	return r.filter(true)
}

// Directional returns the asymmetric types in catalog order.
func (r *Registry) Directional() []entities.RelationType {
	return r.filter(false)
}

func (r *Registry) filter(bidirectional bool) []entities.RelationType {
	out := make([]entities.RelationType, 0, len(r.order))
	for _, t := range r.order {
		if r.configs[t].Bidirectional == bidirectional {
			out = append(out, t)
		}
	}
	return out
}

// Parse validates and converts a string to a known RelationType.
func (r *Registry) Parse(s string) (entities.RelationType, error) {
	t := entities.RelationType(s)
	if !r.IsKnown(t) {
		return "", fmt.Errorf("invalid relationship type: %s (valid: %s)", s, r.Names())
	}
	return t, nil
}

// Names returns a comma-separated list of type names for messages.
func (r *Registry) Names() string {
	names := make([]string, len(r.order))
	for i, t := range r.order {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
