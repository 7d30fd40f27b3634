package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ersonp/famtree/internal/domain/entities"
)

const connectionColumns = `id, from_person_id, to_person_id, relationship_type, family_tree_id,
	organization_id, group_id, notes, metadata, created_by, created_at, updated_at`

// InsertConnection stores a new connection. A repeated
// (from, to, type) triple fails with a unique violation.
func (r *Repository) InsertConnection(ctx context.Context, c *entities.Connection) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	now := timeNow()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	query := `INSERT INTO connections (` + connectionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.conn(ctx).ExecContext(ctx, query,
		c.ID,
		c.FromPersonID,
		c.ToPersonID,
		string(c.Type),
		c.FamilyTreeID,
		c.OrganizationID,
		c.GroupID,
		c.Notes,
		string(metadata),
		c.CreatedBy,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return storeError("inserting connection", err)
	}
	return nil
}

// UpdateConnection replaces the mutable fields of a connection.
func (r *Repository) UpdateConnection(ctx context.Context, c *entities.Connection) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = timeNow()
	}

	query := `
		UPDATE connections SET
			from_person_id = ?,
			to_person_id = ?,
			relationship_type = ?,
			family_tree_id = ?,
			organization_id = ?,
			group_id = ?,
			notes = ?,
			metadata = ?,
			updated_at = ?
		WHERE id = ?
	`
	result, err := r.conn(ctx).ExecContext(ctx, query,
		c.FromPersonID,
		c.ToPersonID,
		string(c.Type),
		c.FamilyTreeID,
		c.OrganizationID,
		c.GroupID,
		c.Notes,
		string(metadata),
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return storeError("updating connection", err)
	}
	return expectAffected(result, "connection", c.ID)
}

// DeleteConnection deletes a connection by ID.
func (r *Repository) DeleteConnection(ctx context.Context, id string) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id)
	if err != nil {
		return storeError("deleting connection", err)
	}
	return expectAffected(result, "connection", id)
}

// FindConnectionByID finds a connection by ID.
func (r *Repository) FindConnectionByID(ctx context.Context, id string) (*entities.Connection, error) {
	conns, err := r.queryConnections(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id)
	if err != nil || len(conns) == 0 {
		return nil, err
	}
	return &conns[0], nil
}

// FindConnection finds the row with the exact endpoints and type. An empty
// treeID matches any tree.
func (r *Repository) FindConnection(ctx context.Context, fromID, toID string, relType entities.RelationType, treeID string) (*entities.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE from_person_id = ? AND to_person_id = ? AND relationship_type = ?
			AND (? = '' OR family_tree_id = ?)
		LIMIT 1
	`
	conns, err := r.queryConnections(ctx, query, fromID, toID, string(relType), treeID, treeID)
	if err != nil || len(conns) == 0 {
		return nil, err
	}
	return &conns[0], nil
}

// FindConnectionsBetween returns every row pointing from fromID to toID.
func (r *Repository) FindConnectionsBetween(ctx context.Context, fromID, toID string) ([]entities.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE from_person_id = ? AND to_person_id = ?
		ORDER BY rowid
	`
	return r.queryConnections(ctx, query, fromID, toID)
}

// FindConnectionsByPerson returns every row with the person at either end.
func (r *Repository) FindConnectionsByPerson(ctx context.Context, personID string) ([]entities.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE from_person_id = ? OR to_person_id = ?
		ORDER BY rowid
	`
	return r.queryConnections(ctx, query, personID, personID)
}

// FindConnectionsByTree returns rows tagged with the tree.
func (r *Repository) FindConnectionsByTree(ctx context.Context, treeID string) ([]entities.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE family_tree_id = ?
		ORDER BY rowid
	`
	return r.queryConnections(ctx, query, treeID)
}

// FindConnectionsAmong returns rows whose endpoints are both in personIDs.
func (r *Repository) FindConnectionsAmong(ctx context.Context, personIDs []string) ([]entities.Connection, error) {
	if len(personIDs) == 0 {
		return []entities.Connection{}, nil
	}
	marks, args := placeholders(personIDs)
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE from_person_id IN (` + marks + `) AND to_person_id IN (` + marks + `)
		ORDER BY rowid
	`
	return r.queryConnections(ctx, query, append(args, args...)...)
}

// ListConnections returns every row in insertion order.
func (r *Repository) ListConnections(ctx context.Context) ([]entities.Connection, error) {
	return r.queryConnections(ctx, `SELECT `+connectionColumns+` FROM connections ORDER BY rowid`)
}

// DeleteConnectionsByPerson deletes every row touching the person.
func (r *Repository) DeleteConnectionsByPerson(ctx context.Context, personID string) (int, error) {
	result, err := r.conn(ctx).ExecContext(ctx,
		`DELETE FROM connections WHERE from_person_id = ? OR to_person_id = ?`, personID, personID)
	if err != nil {
		return 0, storeError("deleting connections", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking affected rows: %w", err)
	}
	return int(n), nil
}

// CountConnections returns the total number of rows.
func (r *Repository) CountConnections(ctx context.Context) (int, error) {
	var count int
	if err := r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM connections`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting connections: %w", err)
	}
	return count, nil
}

// queryConnections is a helper to execute connection queries.
func (r *Repository) queryConnections(ctx context.Context, query string, args ...any) ([]entities.Connection, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close()

	result := make([]entities.Connection, 0)
	for rows.Next() {
		var c entities.Connection
		var relType, metadata string
		if err := rows.Scan(
			&c.ID,
			&c.FromPersonID,
			&c.ToPersonID,
			&relType,
			&c.FamilyTreeID,
			&c.OrganizationID,
			&c.GroupID,
			&c.Notes,
			&metadata,
			&c.CreatedBy,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		c.Type = entities.RelationType(relType)
		if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of connection %s: %w", c.ID, err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
