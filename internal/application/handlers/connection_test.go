package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/famtree/internal/domain/apperrors"
	"github.com/ersonp/famtree/internal/domain/entities"
)

func TestConnectionHandler_Connect(t *testing.T) {
	env := newTestEnv(t)
	env.person(t, "David")
	elena := env.person(t, "Elena")

	result, err := env.connections.HandleConnect(context.Background(), ConnectRequest{
		From:       "david",
		Type:       "parent",
		To:         elena.ID,
		Notes:      "first child",
		Attributes: []string{"biological"},
	})

	require.NoError(t, err)
	assert.Equal(t, entities.RelationParent, result.Main.Type)
	require.NotNil(t, result.Reciprocal)
	assert.Equal(t, entities.RelationChild, result.Reciprocal.Type)
	assert.Equal(t, elena.ID, result.Reciprocal.FromPersonID)
	assert.True(t, result.Reciprocal.Metadata.Has(entities.AttrBiological))
	assert.Len(t, env.db.Connections, 2)
}

func TestConnectionHandler_Connect_Tree(t *testing.T) {
	env := newTestEnv(t)
	env.person(t, "Ann")
	env.person(t, "Ben")
	tree, err := env.trees.HandleCreate(context.Background(), "Smith", "")
	require.NoError(t, err)

	result, err := env.connections.HandleConnect(context.Background(), ConnectRequest{
		From: "Ann", Type: "parent", To: "Ben", Tree: "Smith",
	})

	require.NoError(t, err)
	assert.Equal(t, tree.ID, result.Main.FamilyTreeID)
	assert.Equal(t, tree.ID, result.Reciprocal.FamilyTreeID)
}

func TestConnectionHandler_Connect_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     ConnectRequest
		wantErr error
		wantMsg string
	}{
		{
			name:    "unknown type",
			req:     ConnectRequest{From: "Ann", Type: "cousin", To: "Ben"},
			wantMsg: "invalid relationship type",
		},
		{
			name:    "unknown attribute",
			req:     ConnectRequest{From: "Ann", Type: "parent", To: "Ben", Attributes: []string{"distant"}},
			wantMsg: "unknown attribute",
		},
		{
			name:    "unknown person",
			req:     ConnectRequest{From: "Ann", Type: "parent", To: "Zed"},
			wantErr: apperrors.ErrNotFound,
		},
		{
			name:    "unknown tree",
			req:     ConnectRequest{From: "Ann", Type: "parent", To: "Ben", Tree: "Nowhere"},
			wantErr: apperrors.ErrNotFound,
		},
		{
			name:    "self connection",
			req:     ConnectRequest{From: "Ann", Type: "sibling", To: "Ann"},
			wantErr: apperrors.ErrValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.person(t, "Ann")
			env.person(t, "Ben")

			_, err := env.connections.HandleConnect(context.Background(), tt.req)

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			assert.Empty(t, env.db.Connections)
		})
	}
}

func TestConnectionHandler_Update(t *testing.T) {
	t.Run("retype to bidirectional drops the mirror", func(t *testing.T) {
		env := newTestEnv(t)
		env.person(t, "Ann")
		env.person(t, "Ben")
		created := env.connect(t, "Ann", "parent", "Ben")

		result, err := env.connections.HandleUpdate(context.Background(), created.Main.ID, UpdateRequest{Type: "spouse"})

		require.NoError(t, err)
		assert.Equal(t, entities.RelationSpouse, result.Main.Type)
		assert.Len(t, env.db.Connections, 1)
	})

	t.Run("attributes follow to the mirror", func(t *testing.T) {
		env := newTestEnv(t)
		env.person(t, "Ann")
		env.person(t, "Ben")
		created := env.connect(t, "Ann", "parent", "Ben")
		attrs := []string{"adoptive"}

		result, err := env.connections.HandleUpdate(context.Background(), created.Main.ID, UpdateRequest{Attributes: &attrs})

		require.NoError(t, err)
		require.NotNil(t, result.Mirror)
		assert.Equal(t, entities.RelationChild, result.Mirror.Type)
		assert.True(t, result.Mirror.Metadata.Has(entities.AttrAdoptive))
	})

	t.Run("invalid type", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.connections.HandleUpdate(context.Background(), "any", UpdateRequest{Type: "nemesis"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid relationship type")
	})
}

func TestConnectionHandler_Delete(t *testing.T) {
	env := newTestEnv(t)
	env.person(t, "Ann")
	env.person(t, "Ben")
	created := env.connect(t, "Ann", "parent", "Ben")

	result, err := env.connections.HandleDelete(context.Background(), created.Main.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, result.MirrorsDeleted)
	assert.Empty(t, env.db.Connections)
}

func TestConnectionHandler_List(t *testing.T) {
	setup := func(t *testing.T) *testEnv {
		env := newTestEnv(t)
		env.person(t, "Ann")
		env.person(t, "Ben")
		env.person(t, "Cal")
		_, err := env.trees.HandleCreate(context.Background(), "Smith", "")
		require.NoError(t, err)

		_, err = env.connections.HandleConnect(context.Background(), ConnectRequest{
			From: "Ann", Type: "parent", To: "Ben", Tree: "Smith",
		})
		require.NoError(t, err)
		env.connect(t, "Ann", "spouse", "Cal")
		return env
	}

	t.Run("all", func(t *testing.T) {
		env := setup(t)

		result, err := env.connections.HandleList(context.Background(), ListRequest{All: true})

		require.NoError(t, err)
		assert.Len(t, result.Connections, 3)
		assert.Len(t, result.Names, 3)
	})

	t.Run("person sees each relative once", func(t *testing.T) {
		env := setup(t)

		result, err := env.connections.HandleList(context.Background(), ListRequest{Person: "Ann"})

		require.NoError(t, err)
		assert.Len(t, result.Connections, 2)
		assert.ElementsMatch(t,
			[]entities.RelationType{entities.RelationParent, entities.RelationSpouse},
			[]entities.RelationType{result.Connections[0].Type, result.Connections[1].Type})
	})

	t.Run("tree", func(t *testing.T) {
		env := setup(t)

		result, err := env.connections.HandleList(context.Background(), ListRequest{Tree: "Smith"})

		require.NoError(t, err)
		assert.Len(t, result.Connections, 2)
		for _, c := range result.Connections {
			assert.NotEqual(t, entities.RelationSpouse, c.Type)
		}
	})

	t.Run("nothing selected", func(t *testing.T) {
		env := setup(t)

		_, err := env.connections.HandleList(context.Background(), ListRequest{})

		require.Error(t, err)
	})
}
