package entities

import "time"

// UnionType classifies an inferred co-parenting union.
type UnionType string

const (
	UnionMarriage          UnionType = "marriage"
	UnionPartnership       UnionType = "partnership"
	UnionDonorRelationship UnionType = "donor_relationship"
	UnionOther             UnionType = "other"
)

// UnionNode is a derived node joining one or more parents to the children
// they share. It is never persisted.
type UnionNode struct {
	ID        string     `json:"id"`
	ParentIDs []string   `json:"parent_ids"`
	Parents   []Person   `json:"parents"`
	UnionType UnionType  `json:"union_type"`
	ChildIDs  []string   `json:"child_ids"`
	Children  []Person   `json:"children"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// FamilyUnit is a union together with its children, positioned by generation.
type FamilyUnit struct {
	Union      *UnionNode `json:"union"`
	ChildIDs   []string   `json:"child_ids"`
	Generation float64    `json:"generation"`
}

// SiblingGroup lists the children that share exactly the same parents.
type SiblingGroup struct {
	UnionID  string   `json:"union_id"`
	ChildIDs []string `json:"child_ids"`
}

// EdgeKind distinguishes edges of the derived render graph.
type EdgeKind string

const (
	EdgeParentUnion EdgeKind = "parent_union"
	EdgeUnionChild  EdgeKind = "union_child"
	EdgeDirect      EdgeKind = "direct"
)

// EnhancedConnection is an edge of the derived graph. Parent→child rows
// covered by a union become a parent→union edge and a union→child edge.
type EnhancedConnection struct {
	ID                  string       `json:"id"`
	FromID              string       `json:"from_id"`
	ToID                string       `json:"to_id"`
	Kind                EdgeKind     `json:"kind"`
	Type                RelationType `json:"relationship_type,omitempty"`
	UnionID             string       `json:"union_id,omitempty"`
	SourceConnectionIDs []string     `json:"source_connection_ids,omitempty"`
}
