package handlers

import (
	"context"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/services"
)

// GraphHandler builds the render graph: rows are deduplicated, unions are
// derived, and generations and positions are assigned.
type GraphHandler struct {
	persons  *services.PersonService
	trees    *services.FamilyTreeService
	conns    *services.ConnectionService
	engine   *services.ConsistencyEngine
	deriver  *services.UnionDeriver
	assigner *services.LayoutAssigner
}

// NewGraphHandler creates a new GraphHandler.
func NewGraphHandler(
	persons *services.PersonService,
	trees *services.FamilyTreeService,
	conns *services.ConnectionService,
	engine *services.ConsistencyEngine,
	deriver *services.UnionDeriver,
	assigner *services.LayoutAssigner,
) *GraphHandler {
	return &GraphHandler{
		persons:  persons,
		trees:    trees,
		conns:    conns,
		engine:   engine,
		deriver:  deriver,
		assigner: assigner,
	}
}

// GraphRequest selects the persons to lay out and how.
// An empty Tree means every person the current user has.
type GraphRequest struct {
	Tree   string
	Unions services.UnionOptions
	Layout services.LayoutOptions
}

// GraphResult is the derived graph of one tree or of all persons.
type GraphResult struct {
	Tree       *entities.FamilyTree `json:"tree,omitempty"`
	Persons    []entities.Person    `json:"persons"`
	Derivation *services.Derivation `json:"derivation"`
	Layout     *services.Layout     `json:"layout"`
}

// Handle loads persons and rows and derives the graph.
func (h *GraphHandler) Handle(ctx context.Context, req GraphRequest) (*GraphResult, error) {
	result := &GraphResult{}

	var persons []*entities.Person
	var rows []entities.Connection
	if req.Tree != "" {
		tree, err := h.trees.Resolve(ctx, req.Tree)
		if err != nil {
			return nil, err
		}
		result.Tree = tree

		if persons, err = h.trees.Members(ctx, tree.ID); err != nil {
			return nil, err
		}
		if rows, err = h.conns.GetForFamilyTree(ctx, tree.ID); err != nil {
			return nil, err
		}
	} else {
		var err error
		if persons, err = h.persons.List(ctx, 0, 0); err != nil {
			return nil, err
		}
		if rows, err = h.conns.GetAll(ctx); err != nil {
			return nil, err
		}
	}

	result.Persons = make([]entities.Person, len(persons))
	for i, p := range persons {
		result.Persons[i] = *p
	}

	rows = h.engine.Deduplicate(rows)
	result.Derivation = h.deriver.Derive(result.Persons, rows, req.Unions)
	result.Layout = h.assigner.Assign(result.Persons, rows, result.Derivation.Unions, req.Layout)

	for i := range result.Derivation.FamilyUnits {
		unit := &result.Derivation.FamilyUnits[i]
		if unit.Union != nil {
			unit.Generation = result.Layout.Unions[unit.Union.ID]
		}
	}
	return result, nil
}
