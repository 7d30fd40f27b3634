package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/mocks"
	"github.com/ersonp/famtree/internal/domain/ports"
	"github.com/ersonp/famtree/internal/domain/registry"
)

const testUserID = "user-1"

// fixture wires the services over an in-memory store.
type fixture struct {
	db      *mocks.RelationalDB
	reg     *registry.Registry
	conns   *ConnectionService
	engine  *ConsistencyEngine
	persons *PersonService
	trees   *FamilyTreeService
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, mocks.NewRelationalDB(), nil)
}

// newFixtureWithStore wires the services over store, which must wrap db.
// A nil store uses db directly.
func newFixtureWithStore(t *testing.T, db *mocks.RelationalDB, store ports.RelationalDB) *fixture {
	t.Helper()
	if store == nil {
		store = db
	}

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	auth := ports.StaticAuth{UserID: testUserID}
	reg := registry.Default()

	conns := NewConnectionService(store, store, store, auth, logger)
	return &fixture{
		db:      db,
		reg:     reg,
		conns:   conns,
		engine:  NewConsistencyEngine(reg, conns, store, store, logger),
		persons: NewPersonService(store, auth),
		trees:   NewFamilyTreeService(store, store, auth),
		logs:    logs,
	}
}

// addPerson stores a person with a fixed ID so tests control ID ordering.
func (f *fixture) addPerson(t *testing.T, id, name string) *entities.Person {
	t.Helper()
	return f.addPersonBorn(t, id, name, nil)
}

func (f *fixture) addPersonBorn(t *testing.T, id, name string, born *time.Time) *entities.Person {
	t.Helper()
	p := &entities.Person{
		ID:             id,
		OwnerID:        testUserID,
		Name:           name,
		NormalizedName: entities.NormalizeName(name),
		DateOfBirth:    born,
		Status:         entities.StatusLiving,
	}
	require.NoError(t, f.db.SavePerson(context.Background(), p))
	return p
}

// connect creates a connection through the engine and fails the test on error.
func (f *fixture) connect(t *testing.T, from string, relType entities.RelationType, to string) *CreateResult {
	t.Helper()
	result, err := f.engine.CreateWithReciprocal(context.Background(), ConnectionInput{
		FromPersonID: from,
		ToPersonID:   to,
		Type:         relType,
	})
	require.NoError(t, err)
	return result
}

// rows returns every stored row.
func (f *fixture) rows(t *testing.T) []entities.Connection {
	t.Helper()
	conns, err := f.db.ListConnections(context.Background())
	require.NoError(t, err)
	return conns
}

// triples renders rows as from/type/to strings for compact assertions.
func triples(conns []entities.Connection) []string {
	out := make([]string, len(conns))
	for i := range conns {
		out[i] = conns[i].FromPersonID + " " + string(conns[i].Type) + " " + conns[i].ToPersonID
	}
	return out
}

func date(year int) *time.Time {
	d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &d
}

// conn builds an unsaved connection for pure-function tests.
func conn(id, from string, relType entities.RelationType, to string) entities.Connection {
	return entities.Connection{ID: id, FromPersonID: from, ToPersonID: to, Type: relType}
}
