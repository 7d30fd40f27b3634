// Package postgres provides a PostgreSQL implementation of the RelationalDB interface.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/ports"
	"github.com/ersonp/famtree/internal/infrastructure/config"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.RelationalDB and ports.Transactor on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// querier is the subset of *pgxpool.Pool and pgx.Tx the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// NewRepository connects to the database and verifies the connection.
func NewRepository(ctx context.Context, cfg config.PostgresConfig) (*Repository, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres URL is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 10
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Repository{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.pool
}

// WithinTx runs fn in a transaction. Calls made with the context passed to
// fn join it; a nested call runs in a savepoint of the outer transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var (
		tx  pgx.Tx
		err error
	)
	outer, nested := ctx.Value(txKey{}).(pgx.Tx)
	if nested {
		tx, err = outer.Begin(ctx)
	} else {
		tx, err = r.pool.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if nested {
			return fmt.Errorf("releasing savepoint: %w", err)
		}
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS persons (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		normalized_name TEXT NOT NULL,
		gender TEXT NOT NULL DEFAULT '',
		date_of_birth TIMESTAMPTZ,
		status TEXT NOT NULL DEFAULT 'living',
		is_self BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_persons_owner_name ON persons(owner_id, normalized_name);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_self ON persons(owner_id) WHERE is_self;

	CREATE TABLE IF NOT EXISTS connections (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		from_person_id TEXT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		to_person_id TEXT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		relationship_type TEXT NOT NULL,
		family_tree_id TEXT NOT NULL DEFAULT '',
		organization_id TEXT NOT NULL DEFAULT '',
		group_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		metadata JSONB NOT NULL DEFAULT '{"version":1,"attributes":[]}',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE(from_person_id, to_person_id, relationship_type),
		CHECK(from_person_id <> to_person_id)
	);
	CREATE INDEX IF NOT EXISTS idx_connections_from ON connections(from_person_id);
	CREATE INDEX IF NOT EXISTS idx_connections_to ON connections(to_person_id);
	CREATE INDEX IF NOT EXISTS idx_connections_tree ON connections(family_tree_id);

	CREATE TABLE IF NOT EXISTS family_trees (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE(owner_id, name)
	);
	CREATE TABLE IF NOT EXISTS tree_members (
		seq BIGSERIAL,
		tree_id TEXT NOT NULL REFERENCES family_trees(id) ON DELETE CASCADE,
		person_id TEXT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		PRIMARY KEY (tree_id, person_id)
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		action TEXT NOT NULL,
		connection_id TEXT,
		details JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_connection ON audit_log(connection_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`

	if _, err := r.conn(ctx).Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// storeError maps PostgreSQL errors to ports.StoreError, keeping the
// SQLSTATE code.
func storeError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &ports.StoreError{Code: pgErr.Code, Message: op + ": " + pgErr.Message, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func expectAffected(tag pgconn.CommandTag, what, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ports.ErrNotFound)
	}
	return nil
}

// limitArg turns a non-positive limit into NULL, which Postgres reads as no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// Person methods.

const personColumns = `id, owner_id, name, normalized_name, gender, date_of_birth, status, is_self, created_at, updated_at`

// SavePerson saves or updates a person.
func (r *Repository) SavePerson(ctx context.Context, p *entities.Person) error {
	query := `
		INSERT INTO persons (` + personColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			normalized_name = EXCLUDED.normalized_name,
			gender = EXCLUDED.gender,
			date_of_birth = EXCLUDED.date_of_birth,
			status = EXCLUDED.status,
			is_self = EXCLUDED.is_self,
			updated_at = EXCLUDED.updated_at
	`
	createdAt, updatedAt := p.CreatedAt, p.UpdatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := r.conn(ctx).Exec(ctx, query,
		p.ID,
		p.OwnerID,
		p.Name,
		entities.NormalizeName(p.Name),
		p.Gender,
		p.DateOfBirth,
		string(p.Status),
		p.IsSelf,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return storeError("saving person", err)
	}
	return nil
}

// FindPersonByID finds a person by ID.
func (r *Repository) FindPersonByID(ctx context.Context, id string) (*entities.Person, error) {
	return r.queryPerson(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id)
}

// FindPersonByName finds a person by normalized name (case-insensitive).
func (r *Repository) FindPersonByName(ctx context.Context, ownerID, name string) (*entities.Person, error) {
	query := `
		SELECT ` + personColumns + `
		FROM persons
		WHERE owner_id = $1 AND normalized_name = $2
		ORDER BY name, id
		LIMIT 1
	`
	return r.queryPerson(ctx, query, ownerID, entities.NormalizeName(name))
}

// FindSelf returns the owner's self person.
func (r *Repository) FindSelf(ctx context.Context, ownerID string) (*entities.Person, error) {
	return r.queryPerson(ctx, `SELECT `+personColumns+` FROM persons WHERE owner_id = $1 AND is_self`, ownerID)
}

// FindPersonsByIDs finds multiple persons by their IDs in a single query.
func (r *Repository) FindPersonsByIDs(ctx context.Context, ids []string) ([]*entities.Person, error) {
	if len(ids) == 0 {
		return []*entities.Person{}, nil
	}
	return r.queryPersons(ctx, `SELECT `+personColumns+` FROM persons WHERE id = ANY($1) ORDER BY name, id`, ids)
}

// ListPersons lists an owner's persons with pagination. A limit of 0
// returns every person.
func (r *Repository) ListPersons(ctx context.Context, ownerID string, limit, offset int) ([]*entities.Person, error) {
	query := `
		SELECT ` + personColumns + `
		FROM persons
		WHERE owner_id = $1
		ORDER BY name, id
		LIMIT $2 OFFSET $3
	`
	return r.queryPersons(ctx, query, ownerID, limitArg(limit), offset)
}

// DeletePerson deletes a person by ID. Tree memberships go with it.
func (r *Repository) DeletePerson(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return storeError("deleting person", err)
	}
	return expectAffected(tag, "person", id)
}

// CountPersons returns the number of persons an owner has.
func (r *Repository) CountPersons(ctx context.Context, ownerID string) (int, error) {
	var count int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM persons WHERE owner_id = $1`, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting persons: %w", err)
	}
	return count, nil
}

func (r *Repository) queryPerson(ctx context.Context, query string, args ...any) (*entities.Person, error) {
	persons, err := r.queryPersons(ctx, query, args...)
	if err != nil || len(persons) == 0 {
		return nil, err
	}
	return persons[0], nil
}

func (r *Repository) queryPersons(ctx context.Context, query string, args ...any) ([]*entities.Person, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying persons: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.Person, 0)
	for rows.Next() {
		var p entities.Person
		var status string
		if err := rows.Scan(
			&p.ID,
			&p.OwnerID,
			&p.Name,
			&p.NormalizedName,
			&p.Gender,
			&p.DateOfBirth,
			&status,
			&p.IsSelf,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning person: %w", err)
		}
		p.Status = entities.PersonStatus(status)
		result = append(result, &p)
	}
	return result, rows.Err()
}

// Family tree methods.

const treeColumns = `id, owner_id, name, description, created_at`

// SaveFamilyTree saves or updates a family tree.
func (r *Repository) SaveFamilyTree(ctx context.Context, tree *entities.FamilyTree) error {
	query := `
		INSERT INTO family_trees (` + treeColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description
	`
	createdAt := tree.CreatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}
	if _, err := r.conn(ctx).Exec(ctx, query, tree.ID, tree.OwnerID, tree.Name, tree.Description, createdAt); err != nil {
		return storeError("saving family tree", err)
	}
	return nil
}

// FindFamilyTree finds a tree by ID.
func (r *Repository) FindFamilyTree(ctx context.Context, id string) (*entities.FamilyTree, error) {
	trees, err := r.queryTrees(ctx, `SELECT `+treeColumns+` FROM family_trees WHERE id = $1`, id)
	if err != nil || len(trees) == 0 {
		return nil, err
	}
	return &trees[0], nil
}

// FindFamilyTreeByName finds an owner's tree by name.
func (r *Repository) FindFamilyTreeByName(ctx context.Context, ownerID, name string) (*entities.FamilyTree, error) {
	trees, err := r.queryTrees(ctx, `SELECT `+treeColumns+` FROM family_trees WHERE owner_id = $1 AND name = $2`, ownerID, name)
	if err != nil || len(trees) == 0 {
		return nil, err
	}
	return &trees[0], nil
}

// ListFamilyTrees lists an owner's trees ordered by name.
func (r *Repository) ListFamilyTrees(ctx context.Context, ownerID string) ([]entities.FamilyTree, error) {
	return r.queryTrees(ctx, `SELECT `+treeColumns+` FROM family_trees WHERE owner_id = $1 ORDER BY name`, ownerID)
}

func (r *Repository) queryTrees(ctx context.Context, query string, args ...any) ([]entities.FamilyTree, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying family trees: %w", err)
	}
	defer rows.Close()

	result := make([]entities.FamilyTree, 0)
	for rows.Next() {
		var tree entities.FamilyTree
		if err := rows.Scan(&tree.ID, &tree.OwnerID, &tree.Name, &tree.Description, &tree.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning family tree: %w", err)
		}
		result = append(result, tree)
	}
	return result, rows.Err()
}

// AddTreeMember adds a person to a tree. Adding twice is a no-op.
func (r *Repository) AddTreeMember(ctx context.Context, treeID, personID string) error {
	query := `INSERT INTO tree_members (tree_id, person_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.conn(ctx).Exec(ctx, query, treeID, personID); err != nil {
		return storeError("adding tree member", err)
	}
	return nil
}

// RemoveTreeMember removes a person from a tree.
func (r *Repository) RemoveTreeMember(ctx context.Context, treeID, personID string) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM tree_members WHERE tree_id = $1 AND person_id = $2`, treeID, personID); err != nil {
		return storeError("removing tree member", err)
	}
	return nil
}

// TreeMemberIDs returns the tree's member IDs in the order they were added.
func (r *Repository) TreeMemberIDs(ctx context.Context, treeID string) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT person_id FROM tree_members WHERE tree_id = $1 ORDER BY seq`, treeID)
	if err != nil {
		return nil, fmt.Errorf("querying tree members: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning tree members: %w", err)
	}
	return ids, nil
}

// Audit log methods.

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, action, connectionID string, details map[string]any) error {
	var detailsJSON []byte
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = data
	}
	var connID *string
	if connectionID != "" {
		connID = &connectionID
	}

	query := `INSERT INTO audit_log (action, connection_id, details) VALUES ($1, $2, $3)`
	if _, err := r.conn(ctx).Exec(ctx, query, action, connID, detailsJSON); err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLogByAction finds audit log entries by action type, newest
// first. A limit of 0 returns every entry.
func (r *Repository) FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, action, connection_id, details, created_at
		FROM audit_log
		WHERE action = $1
		ORDER BY id DESC
		LIMIT $2
	`
	rows, err := r.conn(ctx).Query(ctx, query, action, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []entities.AuditEntry
	for rows.Next() {
		var entry entities.AuditEntry
		var connID *string
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.Action, &connID, &details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if connID != nil {
			entry.ConnectionID = *connID
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

var (
	_ ports.RelationalDB = (*Repository)(nil)
	_ ports.Transactor   = (*Repository)(nil)
)
