package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/ports"
	"github.com/ersonp/famtree/internal/domain/registry"
	"github.com/ersonp/famtree/internal/domain/services"
	"github.com/ersonp/famtree/internal/infrastructure/config"
)

func TestStoreError(t *testing.T) {
	t.Run("unique violation keeps the code", func(t *testing.T) {
		err := storeError("inserting connection", &pgconn.PgError{Code: "23505", Message: "duplicate key"})

		assert.True(t, ports.IsUniqueViolation(err))
		assert.Contains(t, err.Error(), "inserting connection: duplicate key")
	})

	t.Run("other sqlstate", func(t *testing.T) {
		err := storeError("inserting connection", &pgconn.PgError{Code: "23503", Message: "fk"})

		var se *ports.StoreError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "23503", se.Code)
		assert.False(t, ports.IsUniqueViolation(err))
	})

	t.Run("plain error is wrapped", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := storeError("deleting person", cause)

		assert.ErrorIs(t, err, cause)
		assert.False(t, ports.IsUniqueViolation(err))
	})
}

func TestLimitArg(t *testing.T) {
	assert.Nil(t, limitArg(0))
	assert.Nil(t, limitArg(-3))
	assert.Equal(t, 5, limitArg(5))
}

func TestNewRepository_RequiresURL(t *testing.T) {
	_, err := NewRepository(context.Background(), config.PostgresConfig{})
	require.Error(t, err)
}

// setupTestRepo connects to FAMTREE_TEST_DATABASE_URL and empties the tables.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("FAMTREE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FAMTREE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	repo, err := NewRepository(ctx, config.PostgresConfig{URL: url, MaxConnections: 2})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.EnsureSchema(ctx))
	_, err = repo.pool.Exec(ctx, `TRUNCATE audit_log, tree_members, family_trees, connections, persons`)
	require.NoError(t, err)
	return repo
}

func savePersons(t *testing.T, repo *Repository, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, repo.SavePerson(context.Background(), &entities.Person{
			ID: id, OwnerID: "owner-1", Name: id, Status: entities.StatusLiving,
		}))
	}
}

func TestRepository_Connections(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	savePersons(t, repo, "a", "b")

	conn := &entities.Connection{
		ID: "c1", FromPersonID: "a", ToPersonID: "b", Type: entities.RelationParent,
		Metadata: entities.NewMetadata(entities.AttrAdoptive),
	}
	require.NoError(t, repo.InsertConnection(ctx, conn))

	got, err := repo.FindConnection(ctx, "a", "b", entities.RelationParent, "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Metadata.Has(entities.AttrAdoptive))

	err = repo.InsertConnection(ctx, &entities.Connection{
		ID: "c2", FromPersonID: "a", ToPersonID: "b", Type: entities.RelationParent,
	})
	assert.True(t, ports.IsUniqueViolation(err))

	among, err := repo.FindConnectionsAmong(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, among, 1)

	n, err := repo.DeleteConnectionsByPerson(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepository_WithinTxRollsBack(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	savePersons(t, repo, "a", "b")

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.InsertConnection(ctx, &entities.Connection{
			ID: "c1", FromPersonID: "a", ToPersonID: "b", Type: entities.RelationSpouse,
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := repo.CountConnections(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepository_NestedTxIsSavepoint(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	savePersons(t, repo, "a", "b")

	err := repo.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.InsertConnection(ctx, &entities.Connection{
			ID: "c1", FromPersonID: "a", ToPersonID: "b", Type: entities.RelationParent,
		}))
		nestedErr := repo.WithinTx(ctx, func(ctx context.Context) error {
			return repo.InsertConnection(ctx, &entities.Connection{
				ID: "c2", FromPersonID: "a", ToPersonID: "b", Type: entities.RelationParent,
			})
		})
		assert.True(t, ports.IsUniqueViolation(nestedErr))

		// The outer transaction is still usable after the failed statement.
		return repo.InsertConnection(ctx, &entities.Connection{
			ID: "c3", FromPersonID: "b", ToPersonID: "a", Type: entities.RelationChild,
		})
	})
	require.NoError(t, err)

	n, err := repo.CountConnections(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEngineOverPostgres_AdoptsExistingMirror(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	savePersons(t, repo, "a", "b")

	auth := ports.StaticAuth{UserID: "owner-1"}
	conns := services.NewConnectionService(repo, repo, repo, auth, nil)
	engine := services.NewConsistencyEngine(registry.Default(), conns, repo, repo, nil)

	donor, err := engine.CreateWithReciprocal(ctx, services.ConnectionInput{FromPersonID: "a", ToPersonID: "b", Type: entities.RelationDonor})
	require.NoError(t, err)
	require.NotNil(t, donor.Reciprocal)

	parent, err := engine.CreateWithReciprocal(ctx, services.ConnectionInput{FromPersonID: "a", ToPersonID: "b", Type: entities.RelationParent})
	require.NoError(t, err)
	assert.NoError(t, parent.ReciprocalErr)
	require.NotNil(t, parent.Reciprocal)
	assert.Equal(t, donor.Reciprocal.ID, parent.Reciprocal.ID)

	n, err := repo.CountConnections(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRepository_AuditLog(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.LogAction(ctx, entities.AuditConnectionCreated, "c1", map[string]any{"type": "parent"}))
	require.NoError(t, repo.LogAction(ctx, entities.AuditConnectionCreated, "c2", nil))

	entries, err := repo.FindAuditLogByAction(ctx, entities.AuditConnectionCreated, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c2", entries[0].ConnectionID)
	assert.Equal(t, "parent", entries[1].Details["type"])
}
