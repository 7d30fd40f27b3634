// Package ports defines interfaces for external service communication.
package ports

import (
	"context"

	"github.com/ersonp/famtree/internal/domain/entities"
)

// PersonStore persists persons.
type PersonStore interface {
	// SavePerson saves or updates a person.
	SavePerson(ctx context.Context, person *entities.Person) error

	// FindPersonByID finds a person by ID. Returns nil if not found.
	FindPersonByID(ctx context.Context, id string) (*entities.Person, error)

	// FindPersonByName finds a person by normalized name within an owner's records.
	// Returns nil if not found.
	FindPersonByName(ctx context.Context, ownerID, name string) (*entities.Person, error)

	// FindPersonsByIDs finds multiple persons in a single query.
	FindPersonsByIDs(ctx context.Context, ids []string) ([]*entities.Person, error)

	// ListPersons lists an owner's persons with pagination, ordered by name.
	ListPersons(ctx context.Context, ownerID string, limit, offset int) ([]*entities.Person, error)

	// FindSelf returns the owner's person marked as self, or nil.
	FindSelf(ctx context.Context, ownerID string) (*entities.Person, error)

	// DeletePerson deletes a person by ID. Returns ErrNotFound if missing.
	DeletePerson(ctx context.Context, id string) error

	// CountPersons returns the number of persons an owner has.
	CountPersons(ctx context.Context, ownerID string) (int, error)
}

// ConnectionStore persists connection rows. Inserting a row that repeats
// (from_person_id, to_person_id, relationship_type) fails with a StoreError
// carrying CodeUniqueViolation.
type ConnectionStore interface {
	// InsertConnection stores a new connection.
	InsertConnection(ctx context.Context, conn *entities.Connection) error

	// UpdateConnection replaces the mutable fields of an existing connection.
	// Returns ErrNotFound if missing.
	UpdateConnection(ctx context.Context, conn *entities.Connection) error

	// DeleteConnection deletes a connection by ID. Returns ErrNotFound if missing.
	DeleteConnection(ctx context.Context, id string) error

	// FindConnectionByID finds a connection by ID. Returns nil if not found.
	FindConnectionByID(ctx context.Context, id string) (*entities.Connection, error)

	// FindConnection finds the row with the exact endpoints and type.
	// An empty treeID matches any tree. Returns nil if not found.
	FindConnection(ctx context.Context, fromID, toID string, relType entities.RelationType, treeID string) (*entities.Connection, error)

	// FindConnectionsBetween returns every row pointing from fromID to toID.
	FindConnectionsBetween(ctx context.Context, fromID, toID string) ([]entities.Connection, error)

	// FindConnectionsByPerson returns every row with the person at either end.
	FindConnectionsByPerson(ctx context.Context, personID string) ([]entities.Connection, error)

	// FindConnectionsByTree returns rows tagged with the tree ID.
	FindConnectionsByTree(ctx context.Context, treeID string) ([]entities.Connection, error)

	// FindConnectionsAmong returns rows whose endpoints are both in personIDs.
	FindConnectionsAmong(ctx context.Context, personIDs []string) ([]entities.Connection, error)

	// ListConnections returns every row ordered by creation time.
	ListConnections(ctx context.Context) ([]entities.Connection, error)

	// DeleteConnectionsByPerson deletes every row touching the person and
	// returns how many were removed.
	DeleteConnectionsByPerson(ctx context.Context, personID string) (int, error)

	// CountConnections returns the total number of rows.
	CountConnections(ctx context.Context) (int, error)
}

// MembershipLookup resolves family tree membership.
type MembershipLookup interface {
	// TreeMemberIDs returns the IDs of persons that are members of the tree.
	TreeMemberIDs(ctx context.Context, treeID string) ([]string, error)
}

// FamilyTreeStore persists family trees and their members.
type FamilyTreeStore interface {
	MembershipLookup

	// SaveFamilyTree saves or updates a family tree.
	SaveFamilyTree(ctx context.Context, tree *entities.FamilyTree) error

	// FindFamilyTree finds a tree by ID. Returns nil if not found.
	FindFamilyTree(ctx context.Context, id string) (*entities.FamilyTree, error)

	// FindFamilyTreeByName finds an owner's tree by name. Returns nil if not found.
	FindFamilyTreeByName(ctx context.Context, ownerID, name string) (*entities.FamilyTree, error)

	// ListFamilyTrees lists an owner's trees ordered by name.
	ListFamilyTrees(ctx context.Context, ownerID string) ([]entities.FamilyTree, error)

	// AddTreeMember adds a person to a tree. Adding twice is a no-op.
	AddTreeMember(ctx context.Context, treeID, personID string) error

	// RemoveTreeMember removes a person from a tree.
	RemoveTreeMember(ctx context.Context, treeID, personID string) error
}

// AuditLog records connection actions.
type AuditLog interface {
	// LogAction logs an action to the audit log.
	LogAction(ctx context.Context, action, connectionID string, details map[string]any) error

	// FindAuditLogByAction finds audit log entries by action type, newest first.
	FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error)
}

// Transactor is implemented by stores that can run several writes atomically.
// Store calls made with the context passed to fn join the transaction. A call
// made inside a transaction runs fn in a savepoint: when fn fails only its
// writes are rolled back and the outer transaction stays usable.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RelationalDB is the full persistence collaborator.
type RelationalDB interface {
	PersonStore
	ConnectionStore
	FamilyTreeStore
	AuditLog

	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
