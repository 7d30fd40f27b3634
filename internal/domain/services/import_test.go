package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/famtree/internal/domain/apperrors"
	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/infrastructure/parsers"
)

func newImportService(f *fixture) *ImportService {
	return NewImportService(f.reg, f.persons, f.trees, f.engine, nil)
}

func TestImportService_Import_ValidRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := []parsers.RawConnection{
		{From: "Alice", Type: "parent", To: "Bob", Tree: "Smith", Attributes: []string{"adoptive"}, LineNum: 2},
		{From: "Bob", Type: "sibling", To: "Carol", LineNum: 3},
	}

	result, err := newImportService(f).Import(ctx, rows, ImportOptions{OnConflict: ConflictSkip})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 3, result.PersonsCreated)
	assert.Empty(t, result.Errors)

	// parent + mirror, one canonical sibling row
	stored := f.rows(t)
	assert.Len(t, stored, 3)
	assert.True(t, stored[0].Metadata.Has(entities.AttrAdoptive))

	tree, err := f.trees.Resolve(ctx, "Smith")
	require.NoError(t, err)
	assert.Equal(t, tree.ID, stored[0].FamilyTreeID)
	members, err := f.trees.Members(ctx, tree.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestImportService_Import_ReusesExistingPersons(t *testing.T) {
	f := newFixture(t)
	f.addPerson(t, "p-alice", "Alice")

	result, err := newImportService(f).Import(context.Background(), []parsers.RawConnection{
		{From: "alice", Type: "spouse", To: "Bob"},
	}, ImportOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.PersonsCreated)
	stored := f.rows(t)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Involves("p-alice"))
}

func TestImportService_Import_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		row     parsers.RawConnection
		field   string
		message string
	}{
		{name: "missing from", row: parsers.RawConnection{Type: "parent", To: "Bob"}, field: "from", message: "missing required field: from"},
		{name: "missing to", row: parsers.RawConnection{From: "Alice", Type: "parent"}, field: "to", message: "missing required field: to"},
		{name: "missing type", row: parsers.RawConnection{From: "Alice", To: "Bob"}, field: "type", message: "missing required field: type"},
		{name: "invalid type", row: parsers.RawConnection{From: "Alice", Type: "cousin", To: "Bob"}, field: "type", message: "invalid relationship type"},
		{name: "unknown attribute", row: parsers.RawConnection{From: "Alice", Type: "parent", To: "Bob", Attributes: []string{"magic"}}, field: "attributes", message: "unknown attribute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.row.LineNum = 7

			result, err := newImportService(f).Import(context.Background(), []parsers.RawConnection{tt.row}, ImportOptions{})

			require.NoError(t, err)
			assert.Equal(t, 0, result.Imported)
			require.Len(t, result.Errors, 1)
			assert.Equal(t, 7, result.Errors[0].Line)
			assert.Equal(t, tt.field, result.Errors[0].Field)
			assert.Contains(t, result.Errors[0].Message, tt.message)
			assert.Empty(t, f.db.Persons)
		})
	}
}

func TestImportService_Import_DryRun(t *testing.T) {
	f := newFixture(t)
	rows := []parsers.RawConnection{
		{From: "Alice", Type: "parent", To: "Bob"},
		{From: "Alice", Type: "nope", To: "Bob"},
	}

	result, err := newImportService(f).Import(context.Background(), rows, ImportOptions{DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Len(t, result.Errors, 1)
	assert.Empty(t, f.db.Persons)
	assert.Empty(t, f.db.Connections)
}

func TestImportService_Import_Duplicates(t *testing.T) {
	rows := []parsers.RawConnection{
		{From: "Alice", Type: "parent", To: "Bob", LineNum: 2},
		{From: "Alice", Type: "parent", To: "Bob", LineNum: 3},
		// Same pair in the other direction converges on one row.
		{From: "Carol", Type: "sibling", To: "Bob", LineNum: 4},
		{From: "Bob", Type: "sibling", To: "Carol", LineNum: 5},
	}

	t.Run("skip", func(t *testing.T) {
		f := newFixture(t)

		result, err := newImportService(f).Import(context.Background(), rows, ImportOptions{OnConflict: ConflictSkip})

		require.NoError(t, err)
		assert.Equal(t, 2, result.Imported)
		assert.Equal(t, 2, result.Skipped)
		assert.Empty(t, result.Errors)
		assert.Len(t, f.rows(t), 3)
	})

	t.Run("fail", func(t *testing.T) {
		f := newFixture(t)

		result, err := newImportService(f).Import(context.Background(), rows, ImportOptions{OnConflict: ConflictFail})

		require.NoError(t, err)
		assert.Equal(t, 2, result.Imported)
		assert.Equal(t, 0, result.Skipped)
		require.Len(t, result.Errors, 2)
		assert.Equal(t, 3, result.Errors[0].Line)
		assert.Contains(t, result.Errors[0].Message, "already exists")
		assert.Equal(t, 5, result.Errors[1].Line)
	})
}

func TestImportService_Import_RuleViolationContinues(t *testing.T) {
	f := newFixture(t)
	rows := []parsers.RawConnection{
		{From: "Alice", Type: "parent", To: "alice", LineNum: 2},
		{From: "Alice", Type: "parent", To: "Bob", LineNum: 3},
	}

	result, err := newImportService(f).Import(context.Background(), rows, ImportOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Line)
	assert.Contains(t, result.Errors[0].Message, "validation failed")
}

func TestImportService_Import_DefaultTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := []parsers.RawConnection{
		{From: "Alice", Type: "parent", To: "Bob"},
		{From: "Carol", Type: "parent", To: "Dan", Tree: "Jones"},
	}

	_, err := newImportService(f).Import(ctx, rows, ImportOptions{Tree: "Smith"})
	require.NoError(t, err)

	trees, err := f.trees.List(ctx)
	require.NoError(t, err)
	require.Len(t, trees, 2)
	assert.Equal(t, "Jones", trees[0].Name)
	assert.Equal(t, "Smith", trees[1].Name)
}

func TestImportService_Import_StorageErrorAborts(t *testing.T) {
	f := newFixture(t)
	f.db.InsertErr = func(*entities.Connection) error { return errors.New("disk full") }
	rows := []parsers.RawConnection{
		{From: "Alice", Type: "parent", To: "Bob", LineNum: 2},
		{From: "Carol", Type: "parent", To: "Dan", LineNum: 3},
	}

	result, err := newImportService(f).Import(context.Background(), rows, ImportOptions{})

	require.ErrorIs(t, err, apperrors.ErrStorage)
	assert.Contains(t, err.Error(), "line 2")
	assert.Nil(t, result)
}

func TestImportError_Error(t *testing.T) {
	assert.Equal(t, "line 4: bad", ImportError{Line: 4, Message: "bad"}.Error())
	assert.Equal(t, "bad", ImportError{Message: "bad"}.Error())
}
