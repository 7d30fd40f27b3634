package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/famtree/internal/domain/apperrors"
)

func TestFamilyTreeService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tree, err := f.trees.Create(ctx, " Smith ", "paternal side")
	require.NoError(t, err)
	assert.Equal(t, "Smith", tree.Name)
	assert.Equal(t, testUserID, tree.OwnerID)

	_, err = f.trees.Create(ctx, "Smith", "")
	require.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = f.trees.Create(ctx, "", "")
	require.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestFamilyTreeService_ResolveAndFindOrCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.trees.FindOrCreate(ctx, "Jones")
	require.NoError(t, err)
	again, err := f.trees.FindOrCreate(ctx, "Jones")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	byID, err := f.trees.Resolve(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jones", byID.Name)

	_, err = f.trees.Resolve(ctx, "Nope")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFamilyTreeService_Members(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPerson(t, "a", "Ann")
	f.addPerson(t, "b", "Ben")
	tree, err := f.trees.Create(ctx, "Smith", "")
	require.NoError(t, err)

	require.NoError(t, f.trees.AddMember(ctx, tree.ID, "a"))
	require.NoError(t, f.trees.AddMember(ctx, tree.ID, "b"))
	require.NoError(t, f.trees.AddMember(ctx, tree.ID, "a"))

	members, err := f.trees.Members(ctx, tree.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	require.NoError(t, f.trees.RemoveMember(ctx, tree.ID, "a"))
	members, err = f.trees.Members(ctx, tree.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "b", members[0].ID)

	err = f.trees.AddMember(ctx, tree.ID, "ghost")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	empty, err := f.trees.Members(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
