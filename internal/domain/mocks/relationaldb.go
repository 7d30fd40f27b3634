package mocks

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/ports"
)

// RelationalDB is an in-memory implementation of ports.RelationalDB.
// It enforces the (from, to, type) uniqueness rule like the real stores.
type RelationalDB struct {
	mu sync.Mutex

	Persons     map[string]*entities.Person
	Connections map[string]*entities.Connection
	Trees       map[string]*entities.FamilyTree
	Members     map[string][]string
	Audit       []entities.AuditEntry

	// connOrder keeps connection IDs in insertion order.
	connOrder []string

	// Err is returned by every method when set.
	Err error
	// InsertErr, UpdateErr and DeleteErr let tests fail individual writes.
	InsertErr func(conn *entities.Connection) error
	UpdateErr func(conn *entities.Connection) error
	DeleteErr func(id string) error

	// txDepth and aborted back TxRelationalDB.AbortOnError.
	txDepth      int
	abortOnError bool
	aborted      bool
}

// ErrTxAborted is returned while a transaction in AbortOnError mode is
// aborted.
var ErrTxAborted = errors.New("current transaction is aborted")

// check returns the error every method fails with, if any.
func (m *RelationalDB) check() error {
	if m.aborted {
		return ErrTxAborted
	}
	return m.Err
}

// fail marks the open transaction aborted when AbortOnError is set.
func (m *RelationalDB) fail(err error) error {
	if err != nil && m.abortOnError && m.txDepth > 0 {
		m.aborted = true
	}
	return err
}

// NewRelationalDB creates a new empty mock RelationalDB.
func NewRelationalDB() *RelationalDB {
	return &RelationalDB{
		Persons:     make(map[string]*entities.Person),
		Connections: make(map[string]*entities.Connection),
		Trees:       make(map[string]*entities.FamilyTree),
		Members:     make(map[string][]string),
	}
}

// TxRelationalDB adds ports.Transactor to the mock. Writes are applied
// immediately and never rolled back; transactions count calls and, with
// AbortOnError, follow PostgreSQL's failed-statement rule.
type TxRelationalDB struct {
	*RelationalDB
	TxCalls    int
	Savepoints int
}

// WithTransactions wraps db so that it implements ports.Transactor.
func WithTransactions(db *RelationalDB) *TxRelationalDB {
	return &TxRelationalDB{RelationalDB: db}
}

// AbortOnError makes a failed write abort the open transaction: every later
// call fails with ErrTxAborted until the enclosing savepoint is rolled back,
// and committing an aborted transaction fails.
func (m *TxRelationalDB) AbortOnError() *TxRelationalDB {
	m.abortOnError = true
	return m
}

// WithinTx runs fn with the given context. A nested call acts as a
// savepoint.
func (m *TxRelationalDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	nested := m.txDepth > 0
	if nested {
		m.Savepoints++
	} else {
		m.TxCalls++
	}
	m.txDepth++
	m.mu.Unlock()

	err := fn(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.txDepth--
	if err == nil && m.aborted {
		err = ErrTxAborted
	}
	if nested {
		if err != nil {
			m.aborted = false
		}
		return err
	}
	m.aborted = false
	return err
}

// EnsureSchema creates the database schema if it doesn't exist.
func (m *RelationalDB) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close closes the database connection.
func (m *RelationalDB) Close() error {
	return nil
}

// Person methods.

// SavePerson saves or updates a person.
func (m *RelationalDB) SavePerson(_ context.Context, p *entities.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	cp := *p
	m.Persons[p.ID] = &cp
	return nil
}

// FindPersonByID finds a person by ID.
func (m *RelationalDB) FindPersonByID(_ context.Context, id string) (*entities.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	p, ok := m.Persons[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// FindPersonByName finds a person by normalized name.
func (m *RelationalDB) FindPersonByName(_ context.Context, ownerID, name string) (*entities.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	normalized := entities.NormalizeName(name)
	for _, p := range m.sortedPersons() {
		if p.OwnerID == ownerID && p.NormalizedName == normalized {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

// FindPersonsByIDs finds multiple persons.
func (m *RelationalDB) FindPersonsByIDs(_ context.Context, ids []string) ([]*entities.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	result := make([]*entities.Person, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.Persons[id]; ok {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result, nil
}

// ListPersons lists an owner's persons ordered by name.
func (m *RelationalDB) ListPersons(_ context.Context, ownerID string, limit, offset int) ([]*entities.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	var result []*entities.Person
	for _, p := range m.sortedPersons() {
		if p.OwnerID == ownerID {
			cp := *p
			result = append(result, &cp)
		}
	}
	if offset >= len(result) {
		return []*entities.Person{}, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// FindSelf returns the owner's self person.
func (m *RelationalDB) FindSelf(_ context.Context, ownerID string) (*entities.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	for _, p := range m.sortedPersons() {
		if p.OwnerID == ownerID && p.IsSelf {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

// DeletePerson deletes a person by ID.
func (m *RelationalDB) DeletePerson(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if _, ok := m.Persons[id]; !ok {
		return ports.ErrNotFound
	}
	delete(m.Persons, id)
	for treeID, members := range m.Members {
		m.Members[treeID] = slices.DeleteFunc(members, func(pid string) bool { return pid == id })
	}
	return nil
}

// CountPersons returns the number of persons an owner has.
func (m *RelationalDB) CountPersons(_ context.Context, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	count := 0
	for _, p := range m.Persons {
		if p.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (m *RelationalDB) sortedPersons() []*entities.Person {
	result := make([]*entities.Person, 0, len(m.Persons))
	for _, p := range m.Persons {
		result = append(result, p)
	}
	// Sort by name for deterministic test results
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].ID < result[j].ID
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// Connection methods.

// InsertConnection stores a new connection.
func (m *RelationalDB) InsertConnection(_ context.Context, conn *entities.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if m.InsertErr != nil {
		if err := m.InsertErr(conn); err != nil {
			return m.fail(err)
		}
	}
	for _, id := range m.connOrder {
		c := m.Connections[id]
		if c.FromPersonID == conn.FromPersonID && c.ToPersonID == conn.ToPersonID && c.Type == conn.Type {
			return m.fail(&ports.StoreError{Code: ports.CodeUniqueViolation, Message: "duplicate connection"})
		}
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now()
	}
	cp := *conn
	m.Connections[conn.ID] = &cp
	m.connOrder = append(m.connOrder, conn.ID)
	return nil
}

// UpdateConnection replaces the mutable fields of a connection.
func (m *RelationalDB) UpdateConnection(_ context.Context, conn *entities.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if m.UpdateErr != nil {
		if err := m.UpdateErr(conn); err != nil {
			return m.fail(err)
		}
	}
	existing, ok := m.Connections[conn.ID]
	if !ok {
		return m.fail(ports.ErrNotFound)
	}
	for _, id := range m.connOrder {
		c := m.Connections[id]
		if c.ID != conn.ID && c.FromPersonID == conn.FromPersonID && c.ToPersonID == conn.ToPersonID && c.Type == conn.Type {
			return m.fail(&ports.StoreError{Code: ports.CodeUniqueViolation, Message: "duplicate connection"})
		}
	}
	cp := *conn
	cp.CreatedAt = existing.CreatedAt
	m.Connections[conn.ID] = &cp
	return nil
}

// DeleteConnection deletes a connection by ID.
func (m *RelationalDB) DeleteConnection(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if m.DeleteErr != nil {
		if err := m.DeleteErr(id); err != nil {
			return m.fail(err)
		}
	}
	if _, ok := m.Connections[id]; !ok {
		return m.fail(ports.ErrNotFound)
	}
	m.removeConnection(id)
	return nil
}

// FindConnectionByID finds a connection by ID.
func (m *RelationalDB) FindConnectionByID(_ context.Context, id string) (*entities.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	c, ok := m.Connections[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// FindConnection finds the row with the exact endpoints and type.
func (m *RelationalDB) FindConnection(_ context.Context, fromID, toID string, relType entities.RelationType, treeID string) (*entities.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	for _, c := range m.ordered() {
		if c.FromPersonID == fromID && c.ToPersonID == toID && c.Type == relType &&
			(treeID == "" || c.FamilyTreeID == treeID) {
			return &c, nil
		}
	}
	return nil, nil
}

// FindConnectionsBetween returns every row pointing from fromID to toID.
func (m *RelationalDB) FindConnectionsBetween(_ context.Context, fromID, toID string) ([]entities.Connection, error) {
	return m.filter(func(c *entities.Connection) bool {
		return c.FromPersonID == fromID && c.ToPersonID == toID
	})
}

// FindConnectionsByPerson returns every row touching the person.
func (m *RelationalDB) FindConnectionsByPerson(_ context.Context, personID string) ([]entities.Connection, error) {
	return m.filter(func(c *entities.Connection) bool { return c.Involves(personID) })
}

// FindConnectionsByTree returns rows tagged with the tree.
func (m *RelationalDB) FindConnectionsByTree(_ context.Context, treeID string) ([]entities.Connection, error) {
	return m.filter(func(c *entities.Connection) bool { return c.FamilyTreeID == treeID })
}

// FindConnectionsAmong returns rows with both endpoints in personIDs.
func (m *RelationalDB) FindConnectionsAmong(_ context.Context, personIDs []string) ([]entities.Connection, error) {
	return m.filter(func(c *entities.Connection) bool {
		return slices.Contains(personIDs, c.FromPersonID) && slices.Contains(personIDs, c.ToPersonID)
	})
}

// ListConnections returns every row in insertion order.
func (m *RelationalDB) ListConnections(_ context.Context) ([]entities.Connection, error) {
	return m.filter(func(*entities.Connection) bool { return true })
}

// DeleteConnectionsByPerson deletes every row touching the person.
func (m *RelationalDB) DeleteConnectionsByPerson(_ context.Context, personID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	removed := 0
	for _, c := range m.ordered() {
		if c.Involves(personID) {
			m.removeConnection(c.ID)
			removed++
		}
	}
	return removed, nil
}

// CountConnections returns the total number of rows.
func (m *RelationalDB) CountConnections(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	return len(m.Connections), nil
}

func (m *RelationalDB) filter(keep func(c *entities.Connection) bool) ([]entities.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	result := make([]entities.Connection, 0)
	for _, c := range m.ordered() {
		if keep(&c) {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *RelationalDB) ordered() []entities.Connection {
	result := make([]entities.Connection, 0, len(m.connOrder))
	for _, id := range m.connOrder {
		result = append(result, *m.Connections[id])
	}
	return result
}

func (m *RelationalDB) removeConnection(id string) {
	delete(m.Connections, id)
	m.connOrder = slices.DeleteFunc(m.connOrder, func(cid string) bool { return cid == id })
}

// Family tree methods.

// SaveFamilyTree saves or updates a family tree.
func (m *RelationalDB) SaveFamilyTree(_ context.Context, tree *entities.FamilyTree) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	cp := *tree
	m.Trees[tree.ID] = &cp
	return nil
}

// FindFamilyTree finds a tree by ID.
func (m *RelationalDB) FindFamilyTree(_ context.Context, id string) (*entities.FamilyTree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	tree, ok := m.Trees[id]
	if !ok {
		return nil, nil
	}
	cp := *tree
	return &cp, nil
}

// FindFamilyTreeByName finds an owner's tree by name.
func (m *RelationalDB) FindFamilyTreeByName(_ context.Context, ownerID, name string) (*entities.FamilyTree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	for _, tree := range m.Trees {
		if tree.OwnerID == ownerID && tree.Name == name {
			cp := *tree
			return &cp, nil
		}
	}
	return nil, nil
}

// ListFamilyTrees lists an owner's trees ordered by name.
func (m *RelationalDB) ListFamilyTrees(_ context.Context, ownerID string) ([]entities.FamilyTree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	result := make([]entities.FamilyTree, 0, len(m.Trees))
	for _, tree := range m.Trees {
		if tree.OwnerID == ownerID {
			result = append(result, *tree)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// AddTreeMember adds a person to a tree.
func (m *RelationalDB) AddTreeMember(_ context.Context, treeID, personID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if !slices.Contains(m.Members[treeID], personID) {
		m.Members[treeID] = append(m.Members[treeID], personID)
	}
	return nil
}

// RemoveTreeMember removes a person from a tree.
func (m *RelationalDB) RemoveTreeMember(_ context.Context, treeID, personID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	m.Members[treeID] = slices.DeleteFunc(m.Members[treeID], func(pid string) bool { return pid == personID })
	return nil
}

// TreeMemberIDs returns the tree's member IDs.
func (m *RelationalDB) TreeMemberIDs(_ context.Context, treeID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	return slices.Clone(m.Members[treeID]), nil
}

// Audit log methods.

// LogAction logs an action to the audit log.
func (m *RelationalDB) LogAction(_ context.Context, action, connectionID string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	m.Audit = append(m.Audit, entities.AuditEntry{
		ID:           int64(len(m.Audit) + 1),
		Action:       action,
		ConnectionID: connectionID,
		Details:      details,
		CreatedAt:    time.Now(),
	})
	return nil
}

// FindAuditLogByAction finds audit log entries by action type, newest first.
func (m *RelationalDB) FindAuditLogByAction(_ context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	var result []entities.AuditEntry
	for i := len(m.Audit) - 1; i >= 0; i-- {
		if m.Audit[i].Action == action {
			result = append(result, m.Audit[i])
		}
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

var (
	_ ports.RelationalDB = (*RelationalDB)(nil)
	_ ports.Transactor   = (*TxRelationalDB)(nil)
)
