package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ersonp/famtree/internal/domain/entities"
)

const connectionColumns = `id, from_person_id, to_person_id, relationship_type, family_tree_id,
	organization_id, group_id, notes, metadata, created_by, created_at, updated_at`

// InsertConnection stores a new connection. A repeated
// (from, to, type) triple fails with SQLSTATE 23505.
func (r *Repository) InsertConnection(ctx context.Context, c *entities.Connection) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = timeNow()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	query := `INSERT INTO connections (` + connectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = r.conn(ctx).Exec(ctx, query,
		c.ID,
		c.FromPersonID,
		c.ToPersonID,
		string(c.Type),
		c.FamilyTreeID,
		c.OrganizationID,
		c.GroupID,
		c.Notes,
		metadata,
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
			from_person_id = $1,
			to_person_id = $2,
			relationship_type = $3,
			family_tree_id = $4,
			organization_id = $5,
			group_id = $6,
			notes = $7,
			metadata = $8,
			updated_at = $9
		WHERE id = $10
	`
	tag, err := r.conn(ctx).Exec(ctx, query,
		c.FromPersonID,
		c.ToPersonID,
		string(c.Type),
		c.FamilyTreeID,
		c.OrganizationID,
		c.GroupID,
		c.Notes,
		metadata,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return storeError("updating connection", err)
	}
	return expectAffected(tag, "connection", c.ID)
}

// DeleteConnection deletes a connection by ID.
func (r *Repository) DeleteConnection(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return storeError("deleting connection", err)
	}
	return expectAffected(tag, "connection", id)
}

// FindConnectionByID finds a connection by ID.
func (r *Repository) FindConnectionByID(ctx context.Context, id string) (*entities.Connection, error) {
	conns, err := r.queryConnections(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id)
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
		WHERE from_person_id = $1 AND to_person_id = $2 AND relationship_type = $3
			AND ($4 = '' OR family_tree_id = $4)
		LIMIT 1
	`
	conns, err := r.queryConnections(ctx, query, fromID, toID, string(relType), treeID)
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
		WHERE from_person_id = $1 AND to_person_id = $2
		ORDER BY seq
	`
	return r.queryConnections(ctx, query, fromID, toID)
}

// FindConnectionsByPerson returns every row with the person at either end.
func (r *Repository) FindConnectionsByPerson(ctx context.Context, personID string) ([]entities.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE from_person_id = $1 OR to_person_id = $1
		ORDER BY seq
	`
	return r.queryConnections(ctx, query, personID)
}

// FindConnectionsByTree returns rows tagged with the tree.
func (r *Repository) FindConnectionsByTree(ctx context.Context, treeID string) ([]entities.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE family_tree_id = $1 ORDER BY seq`
	return r.queryConnections(ctx, query, treeID)
}

// FindConnectionsAmong returns rows whose endpoints are both in personIDs.
func (r *Repository) FindConnectionsAmong(ctx context.Context, personIDs []string) ([]entities.Connection, error) {
	if len(personIDs) == 0 {
		return []entities.Connection{}, nil
	}
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE from_person_id = ANY($1) AND to_person_id = ANY($1)
		ORDER BY seq
	`
	return r.queryConnections(ctx, query, personIDs)
}

// ListConnections returns every row in insertion order.
func (r *Repository) ListConnections(ctx context.Context) ([]entities.Connection, error) {
	return r.queryConnections(ctx, `SELECT `+connectionColumns+` FROM connections ORDER BY seq`)
}

// DeleteConnectionsByPerson deletes every row touching the person.
func (r *Repository) DeleteConnectionsByPerson(ctx context.Context, personID string) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM connections WHERE from_person_id = $1 OR to_person_id = $1`, personID)
	if err != nil {
		return 0, storeError("deleting connections", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountConnections returns the total number of rows.
func (r *Repository) CountConnections(ctx context.Context) (int, error) {
	var count int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM connections`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting connections: %w", err)
	}
	return count, nil
}

func (r *Repository) queryConnections(ctx context.Context, query string, args ...any) ([]entities.Connection, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close()

	result := make([]entities.Connection, 0)
	for rows.Next() {
		var c entities.Connection
		var relType string
		var metadata []byte
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
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of connection %s: %w", c.ID, err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
