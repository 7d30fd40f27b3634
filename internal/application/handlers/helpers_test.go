package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/mocks"
	"github.com/ersonp/famtree/internal/domain/ports"
	"github.com/ersonp/famtree/internal/domain/registry"
	"github.com/ersonp/famtree/internal/domain/services"
)

// testEnv wires every handler over one in-memory store.
type testEnv struct {
	db          *mocks.RelationalDB
	persons     *PersonHandler
	trees       *FamilyTreeHandler
	connections *ConnectionHandler
	graph       *GraphHandler
	repair      *RepairHandler
	imports     *ImportHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := mocks.NewRelationalDB()
	auth := ports.StaticAuth{UserID: "user-1"}
	reg := registry.Default()

	personSvc := services.NewPersonService(db, auth)
	treeSvc := services.NewFamilyTreeService(db, db, auth)
	connSvc := services.NewConnectionService(db, db, db, auth, nil)
	engine := services.NewConsistencyEngine(reg, connSvc, db, db, nil)

	return &testEnv{
		db:          db,
		persons:     NewPersonHandler(personSvc, connSvc, engine),
		trees:       NewFamilyTreeHandler(treeSvc, personSvc),
		connections: NewConnectionHandler(reg, personSvc, treeSvc, connSvc, engine),
		graph: NewGraphHandler(personSvc, treeSvc, connSvc, engine,
			services.NewUnionDeriver(reg), services.NewLayoutAssigner(reg)),
		repair:  NewRepairHandler(connSvc, engine),
		imports: NewImportHandler(services.NewImportService(reg, personSvc, treeSvc, engine, nil)),
	}
}

func (e *testEnv) person(t *testing.T, name string) *entities.Person {
	t.Helper()
	p, err := e.persons.HandleAdd(context.Background(), services.PersonInput{Name: name})
	require.NoError(t, err)
	return p
}

func (e *testEnv) connect(t *testing.T, from, relType, to string) *services.CreateResult {
	t.Helper()
	result, err := e.connections.HandleConnect(context.Background(), ConnectRequest{From: from, Type: relType, To: to})
	require.NoError(t, err)
	return result
}
