// Package sqlite provides a SQLite implementation of the RelationalDB interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite" // Pure Go SQLite driver
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/ports"
	"github.com/ersonp/famtree/internal/infrastructure/config"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.RelationalDB and ports.Transactor using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// querier is the subset of *sql.DB and *sql.Tx the repository uses.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// One connection: PRAGMAs are per connection, an in-memory database
	// lives and dies with its connection, and SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA foreign_keys = ON", "enabling foreign keys"},
		{"PRAGMA journal_mode = WAL", "enabling WAL mode"},
		{"PRAGMA busy_timeout = 5000", "setting busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p.what, err)
		}
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// conn returns the transaction carried by ctx, or the database.
func (r *Repository) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return r.db
}

// WithinTx runs fn in a transaction. Calls made with the context passed to
// fn join it; a nested call runs in a savepoint of the outer transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return savepoint(ctx, tx, fn)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type savepointKey struct{}

// savepoint runs fn between SAVEPOINT and RELEASE, rolling back to the
// savepoint when fn fails.
func savepoint(ctx context.Context, tx *sql.Tx, fn func(ctx context.Context) error) error {
	depth, _ := ctx.Value(savepointKey{}).(int)
	depth++
	name := fmt.Sprintf("sp_%d", depth)

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("creating savepoint: %w", err)
	}
	if err := fn(context.WithValue(ctx, savepointKey{}, depth)); err != nil {
		_, _ = tx.ExecContext(ctx, "ROLLBACK TO "+name)
		_, _ = tx.ExecContext(ctx, "RELEASE "+name)
		return err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("releasing savepoint: %w", err)
	}
	return nil
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Persons (the individuals connections point at)
	CREATE TABLE IF NOT EXISTS persons (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		normalized_name TEXT NOT NULL,
		gender TEXT NOT NULL DEFAULT '',
		date_of_birth TIMESTAMP,
		status TEXT NOT NULL DEFAULT 'living',
		is_self INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_persons_owner_name ON persons(owner_id, normalized_name);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_self ON persons(owner_id) WHERE is_self = 1;

	-- Connections (one row per direction for directional types)
	CREATE TABLE IF NOT EXISTS connections (
		id TEXT PRIMARY KEY,
		from_person_id TEXT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		to_person_id TEXT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		relationship_type TEXT NOT NULL,
		family_tree_id TEXT NOT NULL DEFAULT '',
		organization_id TEXT NOT NULL DEFAULT '',
		group_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{"version":1,"attributes":[]}',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(from_person_id, to_person_id, relationship_type),
		CHECK(from_person_id <> to_person_id)
	);
	CREATE INDEX IF NOT EXISTS idx_connections_from ON connections(from_person_id);
	CREATE INDEX IF NOT EXISTS idx_connections_to ON connections(to_person_id);
	CREATE INDEX IF NOT EXISTS idx_connections_tree ON connections(family_tree_id);

	-- Family trees and their members
	CREATE TABLE IF NOT EXISTS family_trees (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		UNIQUE(owner_id, name)
	);
	CREATE TABLE IF NOT EXISTS tree_members (
		tree_id TEXT NOT NULL REFERENCES family_trees(id) ON DELETE CASCADE,
		person_id TEXT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		PRIMARY KEY (tree_id, person_id)
	);

	-- Audit log (tracks connection actions)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		connection_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_connection ON audit_log(connection_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`

	_, err := r.conn(ctx).ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// storeError maps constraint failures to ports.StoreError codes and wraps
// everything else with the operation name.
func storeError(op string, err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return &ports.StoreError{Code: ports.CodeUniqueViolation, Message: op + ": " + se.Error(), Err: err}
		}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &ports.StoreError{Code: ports.CodeUniqueViolation, Message: op + ": " + err.Error(), Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// expectAffected turns a zero-row write into ports.ErrNotFound.
func expectAffected(result sql.Result, what, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ports.ErrNotFound)
	}
	return nil
}

// placeholders returns "?,?,..." and the ids as arguments.
func placeholders(ids []string) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ","), args
}

// Person methods.

const personColumns = `id, owner_id, name, normalized_name, gender, date_of_birth, status, is_self, created_at, updated_at`

// SavePerson saves or updates a person.
func (r *Repository) SavePerson(ctx context.Context, p *entities.Person) error {
	query := `
		INSERT INTO persons (` + personColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			normalized_name = excluded.normalized_name,
			gender = excluded.gender,
			date_of_birth = excluded.date_of_birth,
			status = excluded.status,
			is_self = excluded.is_self,
			updated_at = excluded.updated_at
	`
	var dob sql.NullTime
	if p.DateOfBirth != nil {
		dob = sql.NullTime{Time: *p.DateOfBirth, Valid: true}
	}
	createdAt, updatedAt := p.CreatedAt, p.UpdatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := r.conn(ctx).ExecContext(ctx, query,
		p.ID,
		p.OwnerID,
		p.Name,
		entities.NormalizeName(p.Name),
		p.Gender,
		dob,
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
	query := `SELECT ` + personColumns + ` FROM persons WHERE id = ?`
	return r.queryPerson(ctx, query, id)
}

// FindPersonByName finds a person by normalized name (case-insensitive).
func (r *Repository) FindPersonByName(ctx context.Context, ownerID, name string) (*entities.Person, error) {
	query := `
		SELECT ` + personColumns + `
		FROM persons
		WHERE owner_id = ? AND normalized_name = ?
		ORDER BY name, id
		LIMIT 1
	`
	return r.queryPerson(ctx, query, ownerID, entities.NormalizeName(name))
}

// FindSelf returns the owner's self person.
func (r *Repository) FindSelf(ctx context.Context, ownerID string) (*entities.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE owner_id = ? AND is_self = 1`
	return r.queryPerson(ctx, query, ownerID)
}

// FindPersonsByIDs finds multiple persons by their IDs in a single query.
func (r *Repository) FindPersonsByIDs(ctx context.Context, ids []string) ([]*entities.Person, error) {
	if len(ids) == 0 {
		return []*entities.Person{}, nil
	}
	marks, args := placeholders(ids)
	query := `SELECT ` + personColumns + ` FROM persons WHERE id IN (` + marks + `) ORDER BY name, id`
	return r.queryPersons(ctx, query, args...)
}

// ListPersons lists an owner's persons with pagination. A limit of 0
// returns every person.
func (r *Repository) ListPersons(ctx context.Context, ownerID string, limit, offset int) ([]*entities.Person, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT ` + personColumns + `
		FROM persons
		WHERE owner_id = ?
		ORDER BY name, id
		LIMIT ? OFFSET ?
	`
	return r.queryPersons(ctx, query, ownerID, limit, offset)
}

// DeletePerson deletes a person by ID. Tree memberships go with it.
func (r *Repository) DeletePerson(ctx context.Context, id string) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id)
	if err != nil {
		return storeError("deleting person", err)
	}
	return expectAffected(result, "person", id)
}

// CountPersons returns the number of persons an owner has.
func (r *Repository) CountPersons(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM persons WHERE owner_id = ?`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting persons: %w", err)
	}
	return count, nil
}

func (r *Repository) queryPerson(ctx context.Context, query string, args ...any) (*entities.Person, error) {
	persons, err := r.queryPersons(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(persons) == 0 {
		return nil, nil
	}
	return persons[0], nil
}

func (r *Repository) queryPersons(ctx context.Context, query string, args ...any) ([]*entities.Person, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying persons: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.Person, 0)
	for rows.Next() {
		var p entities.Person
		var dob sql.NullTime
		var status string
		if err := rows.Scan(
			&p.ID,
			&p.OwnerID,
			&p.Name,
			&p.NormalizedName,
			&p.Gender,
			&dob,
			&status,
			&p.IsSelf,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning person: %w", err)
		}
		p.Status = entities.PersonStatus(status)
		if dob.Valid {
			t := dob.Time
			p.DateOfBirth = &t
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

// Family tree methods.

// SaveFamilyTree saves or updates a family tree.
func (r *Repository) SaveFamilyTree(ctx context.Context, tree *entities.FamilyTree) error {
	query := `
		INSERT INTO family_trees (id, owner_id, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description
	`
	createdAt := tree.CreatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}
	_, err := r.conn(ctx).ExecContext(ctx, query, tree.ID, tree.OwnerID, tree.Name, tree.Description, createdAt)
	if err != nil {
		return storeError("saving family tree", err)
	}
	return nil
}

// FindFamilyTree finds a tree by ID.
func (r *Repository) FindFamilyTree(ctx context.Context, id string) (*entities.FamilyTree, error) {
	trees, err := r.queryTrees(ctx, `SELECT id, owner_id, name, description, created_at FROM family_trees WHERE id = ?`, id)
	if err != nil || len(trees) == 0 {
		return nil, err
	}
	return &trees[0], nil
}

// FindFamilyTreeByName finds an owner's tree by name.
func (r *Repository) FindFamilyTreeByName(ctx context.Context, ownerID, name string) (*entities.FamilyTree, error) {
	query := `SELECT id, owner_id, name, description, created_at FROM family_trees WHERE owner_id = ? AND name = ?`
	trees, err := r.queryTrees(ctx, query, ownerID, name)
	if err != nil || len(trees) == 0 {
		return nil, err
	}
	return &trees[0], nil
}

// ListFamilyTrees lists an owner's trees ordered by name.
func (r *Repository) ListFamilyTrees(ctx context.Context, ownerID string) ([]entities.FamilyTree, error) {
	query := `SELECT id, owner_id, name, description, created_at FROM family_trees WHERE owner_id = ? ORDER BY name`
	return r.queryTrees(ctx, query, ownerID)
}

func (r *Repository) queryTrees(ctx context.Context, query string, args ...any) ([]entities.FamilyTree, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
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
	query := `INSERT OR IGNORE INTO tree_members (tree_id, person_id) VALUES (?, ?)`
	if _, err := r.conn(ctx).ExecContext(ctx, query, treeID, personID); err != nil {
		return storeError("adding tree member", err)
	}
	return nil
}

// RemoveTreeMember removes a person from a tree.
func (r *Repository) RemoveTreeMember(ctx context.Context, treeID, personID string) error {
	query := `DELETE FROM tree_members WHERE tree_id = ? AND person_id = ?`
	if _, err := r.conn(ctx).ExecContext(ctx, query, treeID, personID); err != nil {
		return storeError("removing tree member", err)
	}
	return nil
}

// TreeMemberIDs returns the tree's member IDs in the order they were added.
func (r *Repository) TreeMemberIDs(ctx context.Context, treeID string) ([]string, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, `SELECT person_id FROM tree_members WHERE tree_id = ? ORDER BY rowid`, treeID)
	if err != nil {
		return nil, fmt.Errorf("querying tree members: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning tree member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Audit log methods.

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, action, connectionID string, details map[string]any) error {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	var connID sql.NullString
	if connectionID != "" {
		connID = sql.NullString{String: connectionID, Valid: true}
	}

	query := `INSERT INTO audit_log (action, connection_id, details) VALUES (?, ?, ?)`
	if _, err := r.conn(ctx).ExecContext(ctx, query, action, connID, detailsJSON); err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLogByAction finds audit log entries by action type, newest
// first. A limit of 0 returns every entry.
func (r *Repository) FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, action, connection_id, details, created_at
		FROM audit_log
		WHERE action = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.conn(ctx).QueryContext(ctx, query, action, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []entities.AuditEntry
	for rows.Next() {
		var entry entities.AuditEntry
		var connID, details sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&connID,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.ConnectionID = connID.String

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
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
