package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/famtree/internal/application/handlers"
	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/services"
	"github.com/ersonp/famtree/internal/infrastructure/config"
)

func changedSet(names ...string) func(string) bool {
	return func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}
}

func TestGraphRequest(t *testing.T) {
	base := config.Default().Graph

	tests := []struct {
		name    string
		cfg     config.GraphConfig
		flags   treeFlags
		changed []string
		check   func(t *testing.T, req handlers.GraphRequest)
	}{
		{
			name: "config defaults",
			cfg:  base,
			check: func(t *testing.T, req handlers.GraphRequest) {
				assert.True(t, req.Unions.EnableUnions)
				assert.Equal(t, 1, req.Unions.MinSharedChildren)
				assert.Equal(t, services.CountFromRoots, req.Layout.Counting)
				assert.Equal(t, 200.0, req.Layout.NodeWidth)
			},
		},
		{
			name: "config disables unions",
			cfg: func() config.GraphConfig {
				c := base
				c.DisableUnions = true
				c.CountFrom = "leaves"
				return c
			}(),
			check: func(t *testing.T, req handlers.GraphRequest) {
				assert.False(t, req.Unions.EnableUnions)
				assert.Equal(t, services.CountFromLeaves, req.Layout.Counting)
			},
		},
		{
			name:    "flags override config",
			cfg:     base,
			flags:   treeFlags{tree: "Garcia", noUnions: true, minShared: 2, singleParents: true, countFrom: "leaves"},
			changed: []string{"no-unions", "min-shared", "single-parents", "count-from"},
			check: func(t *testing.T, req handlers.GraphRequest) {
				assert.Equal(t, "Garcia", req.Tree)
				assert.False(t, req.Unions.EnableUnions)
				assert.Equal(t, 2, req.Unions.MinSharedChildren)
				assert.True(t, req.Unions.IncludeSingleParents)
				assert.Equal(t, services.CountFromLeaves, req.Layout.Counting)
			},
		},
		{
			name:  "unchanged flags are ignored",
			cfg:   base,
			flags: treeFlags{minShared: 5, countFrom: "leaves"},
			check: func(t *testing.T, req handlers.GraphRequest) {
				assert.Equal(t, 1, req.Unions.MinSharedChildren)
				assert.Equal(t, services.CountFromRoots, req.Layout.Counting)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := graphRequest(tt.cfg, tt.flags, changedSet(tt.changed...))
			require.NoError(t, err)
			tt.check(t, req)
		})
	}
}

func TestGraphRequest_InvalidCountFrom(t *testing.T) {
	_, err := graphRequest(config.Default().Graph, treeFlags{countFrom: "middle"}, changedSet("count-from"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid generation counting")
}

func TestDisplayGraph(t *testing.T) {
	union := &entities.UnionNode{ID: "u1", ParentIDs: []string{"p1", "p2"}, ChildIDs: []string{"p3"}, UnionType: entities.UnionMarriage}
	result := &handlers.GraphResult{
		Persons: []entities.Person{{ID: "p1", Name: "David"}, {ID: "p2", Name: "Maria"}, {ID: "p3", Name: "Leo"}},
		Derivation: &services.Derivation{
			Unions:      []entities.UnionNode{*union},
			FamilyUnits: []entities.FamilyUnit{{Union: union, ChildIDs: []string{"p3"}, Generation: 0.5}},
		},
		Layout: &services.Layout{
			Counting: services.CountFromRoots,
			Nodes: []services.NodePosition{
				{ID: "p3", Generation: 1},
				{ID: "p2", Generation: 0, Slot: 1},
				{ID: "u1", Union: true, Generation: 0.5},
				{ID: "p1", Generation: 0},
			},
			Warnings: []services.LayoutWarning{{Kind: services.WarningCycle, PersonIDs: []string{"p1"}, Message: "cycle"}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, displayGraph(&buf, result))

	out := buf.String()
	assert.Contains(t, out, "Generations (counted from roots):")
	assert.Contains(t, out, "  0: David, Maria\n")
	assert.Contains(t, out, "  1: Leo\n")
	assert.Contains(t, out, "[marriage] David + Maria => Leo (generation 0.5)")
	assert.Contains(t, out, "cycle: cycle (David)")
}

func TestDisplayGraph_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, displayGraph(&buf, &handlers.GraphResult{
		Tree:       &entities.FamilyTree{Name: "Empty"},
		Derivation: &services.Derivation{},
		Layout:     &services.Layout{},
	}))

	assert.Equal(t, "Family tree: Empty\n\nNo persons found.\n", buf.String())
}
