package services

import (
	"slices"
	"strings"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/registry"
)

// UnionOptions controls union derivation.
type UnionOptions struct {
	EnableUnions         bool
	MinSharedChildren    int
	IncludeSingleParents bool
	GroupSiblings        bool
}

// DefaultUnionOptions returns unions enabled with one shared child required.
func DefaultUnionOptions() UnionOptions {
	return UnionOptions{
		EnableUnions:      true,
		MinSharedChildren: 1,
	}
}

// Derivation is the render graph derived from persons and connections.
type Derivation struct {
	Unions              []entities.UnionNode          `json:"unions"`
	FamilyUnits         []entities.FamilyUnit         `json:"family_units"`
	SiblingGroups       []entities.SiblingGroup       `json:"sibling_groups"`
	Connections         []entities.EnhancedConnection `json:"connections"`
	OriginalConnections []entities.Connection         `json:"original_connections"`
}

// UnionDeriver groups co-parents into union nodes keyed by the exact set of
// parents their children share.
type UnionDeriver struct {
	registry *registry.Registry
}

// NewUnionDeriver creates a new UnionDeriver.
func NewUnionDeriver(reg *registry.Registry) *UnionDeriver {
	return &UnionDeriver{registry: reg}
}

// parentEdge is a parent→child relation resolved from one or more rows.
type parentEdge struct {
	parentID string
	childID  string
	types    []entities.RelationType
	rowIDs   []string
	// fromParentRole is set when at least one row points parent→child.
	fromParentRole bool
}

type parentGroup struct {
	key       string
	parentIDs []string
	childIDs  []string
}

// Derive builds unions, family units and the enhanced edge list. The input
// slices are not modified.
func (d *UnionDeriver) Derive(persons []entities.Person, conns []entities.Connection, opts UnionOptions) *Derivation {
	originals := slices.Clone(conns)
	result := &Derivation{
		Unions:              []entities.UnionNode{},
		FamilyUnits:         []entities.FamilyUnit{},
		SiblingGroups:       []entities.SiblingGroup{},
		Connections:         []entities.EnhancedConnection{},
		OriginalConnections: originals,
	}

	edges, edgeOrder := d.parentEdges(conns)

	if !opts.EnableUnions {
		result.Connections = d.directEdges(conns, nil, nil)
		return result
	}

	minShared := opts.MinSharedChildren
	if minShared < 1 {
		minShared = 1
	}

	byID := make(map[string]entities.Person, len(persons))
	for i := range persons {
		byID[persons[i].ID] = persons[i]
	}

	covered := make(map[string]bool)
	for _, g := range groupByParents(edges, edgeOrder) {
		single := len(g.parentIDs) == 1
		if single && !opts.IncludeSingleParents {
			continue
		}
		if !single && len(g.childIDs) < minShared {
			continue
		}

		union := entities.UnionNode{
			ID:        unionID(g.parentIDs),
			ParentIDs: g.parentIDs,
			Parents:   lookupPersons(byID, g.parentIDs),
			ChildIDs:  g.childIDs,
			Children:  lookupPersons(byID, g.childIDs),
		}
		union.UnionType, union.Notes = d.unionType(g, edges, conns)
		result.Unions = append(result.Unions, union)

		for _, p := range g.parentIDs {
			var sources []string
			for _, c := range g.childIDs {
				key := p + ">" + c
				covered[key] = true
				sources = append(sources, edges[key].rowIDs...)
			}
			result.Connections = append(result.Connections, entities.EnhancedConnection{
				ID:                  p + ">" + union.ID,
				FromID:              p,
				ToID:                union.ID,
				Kind:                entities.EdgeParentUnion,
				UnionID:             union.ID,
				SourceConnectionIDs: sources,
			})
		}
		for _, c := range g.childIDs {
			var sources []string
			var relType entities.RelationType
			for _, p := range g.parentIDs {
				e := edges[p+">"+c]
				sources = append(sources, e.rowIDs...)
				if relType == "" && len(e.types) > 0 {
					relType = e.types[0]
				}
			}
			result.Connections = append(result.Connections, entities.EnhancedConnection{
				ID:                  union.ID + ">" + c,
				FromID:              union.ID,
				ToID:                c,
				Kind:                entities.EdgeUnionChild,
				Type:                relType,
				UnionID:             union.ID,
				SourceConnectionIDs: sources,
			})
		}
	}

	result.Connections = append(result.Connections, d.directEdges(conns, edges, covered)...)

	for i := range result.Unions {
		u := &result.Unions[i]
		result.FamilyUnits = append(result.FamilyUnits, entities.FamilyUnit{
			Union:    u,
			ChildIDs: u.ChildIDs,
		})
		if opts.GroupSiblings && len(u.ChildIDs) > 1 {
			result.SiblingGroups = append(result.SiblingGroups, entities.SiblingGroup{
				UnionID:  u.ID,
				ChildIDs: u.ChildIDs,
			})
		}
	}

	return result
}

// parentEdges resolves parent→child relations from parent-role rows and
// inverted child rows, keyed "parent>child".
func (d *UnionDeriver) parentEdges(conns []entities.Connection) (map[string]*parentEdge, []string) {
	edges := make(map[string]*parentEdge)
	var order []string

	for i := range conns {
		c := &conns[i]
		var parentID, childID string
		parentRole := d.registry.IsParentRole(c.Type)
		switch {
		case parentRole:
			parentID, childID = c.FromPersonID, c.ToPersonID
		case d.registry.IsChildRole(c.Type):
			parentID, childID = c.ToPersonID, c.FromPersonID
		default:
			continue
		}
		if parentID == childID {
			continue
		}

		key := parentID + ">" + childID
		e, ok := edges[key]
		if !ok {
			e = &parentEdge{parentID: parentID, childID: childID}
			edges[key] = e
			order = append(order, key)
		}
		e.rowIDs = append(e.rowIDs, c.ID)
		if parentRole {
			e.fromParentRole = true
			e.types = append(e.types, c.Type)
		}
	}

	return edges, order
}

// groupByParents groups children by their exact, sorted parent set in order
// of first appearance.
func groupByParents(edges map[string]*parentEdge, order []string) []*parentGroup {
	parentsOf := make(map[string][]string)
	var children []string
	for _, key := range order {
		e := edges[key]
		if _, seen := parentsOf[e.childID]; !seen {
			children = append(children, e.childID)
		}
		parentsOf[e.childID] = append(parentsOf[e.childID], e.parentID)
	}

	groups := make(map[string]*parentGroup)
	var result []*parentGroup
	for _, child := range children {
		parents := slices.Clone(parentsOf[child])
		slices.Sort(parents)
		parents = slices.Compact(parents)

		key := strings.Join(parents, ",")
		g, ok := groups[key]
		if !ok {
			g = &parentGroup{key: key, parentIDs: parents}
			groups[key] = g
			result = append(result, g)
		}
		g.childIDs = append(g.childIDs, child)
	}
	return result
}

// unionType classifies a union from the rows between its parents, falling
// back to the types of the parent edges.
func (d *UnionDeriver) unionType(g *parentGroup, edges map[string]*parentEdge, conns []entities.Connection) (entities.UnionType, string) {
	var partnership *entities.Connection
	for i := range conns {
		c := &conns[i]
		if !slices.Contains(g.parentIDs, c.FromPersonID) || !slices.Contains(g.parentIDs, c.ToPersonID) {
			continue
		}
		switch c.Type {
		case entities.RelationSpouse:
			return entities.UnionMarriage, c.Notes
		case entities.RelationPartner:
			if partnership == nil {
				partnership = c
			}
		}
	}
	if partnership != nil {
		return entities.UnionPartnership, partnership.Notes
	}

	for _, p := range g.parentIDs {
		for _, child := range g.childIDs {
			if e, ok := edges[p+">"+child]; ok && slices.Contains(e.types, entities.RelationDonor) {
				return entities.UnionDonorRelationship, ""
			}
		}
	}
	return entities.UnionOther, ""
}

// directEdges passes through every row not covered by a union. A child row
// whose parent row is also present is dropped so the pair renders once.
func (d *UnionDeriver) directEdges(conns []entities.Connection, edges map[string]*parentEdge, covered map[string]bool) []entities.EnhancedConnection {
	result := make([]entities.EnhancedConnection, 0, len(conns))
	for i := range conns {
		c := &conns[i]
		switch {
		case d.registry.IsParentRole(c.Type):
			if covered[c.FromPersonID+">"+c.ToPersonID] {
				continue
			}
		case d.registry.IsChildRole(c.Type):
			key := c.ToPersonID + ">" + c.FromPersonID
			if covered[key] {
				continue
			}
			if e, ok := edges[key]; ok && e.fromParentRole {
				continue
			}
		}
		result = append(result, entities.EnhancedConnection{
			ID:                  c.ID,
			FromID:              c.FromPersonID,
			ToID:                c.ToPersonID,
			Kind:                entities.EdgeDirect,
			Type:                c.Type,
			SourceConnectionIDs: []string{c.ID},
		})
	}
	return result
}

func unionID(parentIDs []string) string {
	return "union:" + strings.Join(parentIDs, "+")
}

func lookupPersons(byID map[string]entities.Person, ids []string) []entities.Person {
	result := make([]entities.Person, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			result = append(result, p)
		}
	}
	return result
}
