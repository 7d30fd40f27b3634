package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/registry"
)

func TestTypesHandler_HandleList(t *testing.T) {
	handler := NewTypesHandler(registry.Default())

	tests := []struct {
		filter        string
		wantLen       int
		bidirectional *bool
	}{
		{filter: "", wantLen: len(registry.DefaultTypes)},
		{filter: TypesAll, wantLen: len(registry.DefaultTypes)},
		{filter: TypesDirectional, wantLen: 5, bidirectional: new(bool)},
		{filter: TypesBidirectional, wantLen: 6, bidirectional: func() *bool { b := true; return &b }()},
	}

	for _, tt := range tests {
		t.Run("filter "+tt.filter, func(t *testing.T) {
			result, err := handler.HandleList(tt.filter)

			require.NoError(t, err)
			assert.Len(t, result.Types, tt.wantLen)
			assert.Equal(t, entities.KnownAttributes(), result.Attributes)
			if tt.bidirectional != nil {
				for _, tc := range result.Types {
					assert.Equal(t, *tt.bidirectional, tc.Bidirectional, tc.Type)
				}
			}
		})
	}
}

func TestTypesHandler_CatalogOrder(t *testing.T) {
	result, err := NewTypesHandler(registry.Default()).HandleList(TypesAll)

	require.NoError(t, err)
	assert.Equal(t, entities.RelationParent, result.Types[0].Type)
	assert.Equal(t, entities.RelationChild, result.Types[0].Reciprocal)
}

func TestTypesHandler_InvalidFilter(t *testing.T) {
	_, err := NewTypesHandler(registry.Default()).HandleList("sideways")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter")
}
