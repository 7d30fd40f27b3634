// Package entities contains core domain data structures.
package entities

import "time"

// RelationType defines the kind of relationship a connection records.
// The set is closed; see the registry package for each type's behavior.
type RelationType string

const (
	RelationParent           RelationType = "parent"
	RelationChild            RelationType = "child"
	RelationPartner          RelationType = "partner"
	RelationSibling          RelationType = "sibling"
	RelationHalfSibling      RelationType = "half_sibling"
	RelationStepSibling      RelationType = "step_sibling"
	RelationSpouse           RelationType = "spouse"
	RelationDonor            RelationType = "donor"
	RelationBiologicalParent RelationType = "biological_parent"
	RelationSocialParent     RelationType = "social_parent"
	RelationOther            RelationType = "other"
)

// Connection represents a directed, typed edge between two persons.
// Directional types are stored as a forward row plus a reciprocal row;
// bidirectional types are stored once with the smaller person ID first.
type Connection struct {
	ID             string       `json:"id"`
	FromPersonID   string       `json:"from_person_id"`
	ToPersonID     string       `json:"to_person_id"`
	Type           RelationType `json:"relationship_type"`
	FamilyTreeID   string       `json:"family_tree_id,omitempty"`
	OrganizationID string       `json:"organization_id,omitempty"`
	GroupID        string       `json:"group_id,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	Metadata       Metadata     `json:"metadata"`
	CreatedBy      string       `json:"created_by,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Involves reports whether the person is either endpoint of the connection.
func (c *Connection) Involves(personID string) bool {
	return c.FromPersonID == personID || c.ToPersonID == personID
}

// Other returns the endpoint opposite to personID.
// It returns an empty string if personID is not an endpoint.
func (c *Connection) Other(personID string) string {
	switch personID {
	case c.FromPersonID:
		return c.ToPersonID
	case c.ToPersonID:
		return c.FromPersonID
	default:
		return ""
	}
}

// PairKey returns an order-independent key for the two endpoints.
func (c *Connection) PairKey() string {
	return PairKey(c.FromPersonID, c.ToPersonID)
}

// PairKey builds an order-independent key for two person IDs.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// Direction tells which way a connection points relative to a given person.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// PersonConnection is a connection seen from one person's side.
type PersonConnection struct {
	Connection      Connection `json:"connection"`
	Direction       Direction  `json:"direction"`
	OtherPersonID   string     `json:"other_person_id"`
	OtherPersonName string     `json:"other_person_name,omitempty"`
}
