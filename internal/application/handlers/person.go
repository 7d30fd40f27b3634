package handlers

import (
	"context"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/services"
)

// PersonHandler handles person operations at the application layer.
type PersonHandler struct {
	persons *services.PersonService
	conns   *services.ConnectionService
	engine  *services.ConsistencyEngine
}

// NewPersonHandler creates a new PersonHandler.
func NewPersonHandler(persons *services.PersonService, conns *services.ConnectionService, engine *services.ConsistencyEngine) *PersonHandler {
	return &PersonHandler{
		persons: persons,
		conns:   conns,
		engine:  engine,
	}
}

// PersonListResult contains the result of listing persons.
type PersonListResult struct {
	Persons []*entities.Person `json:"persons"`
	Total   int                `json:"total"`
}

// PersonDetail is a person with the connections seen from their side.
type PersonDetail struct {
	Person      *entities.Person            `json:"person"`
	Connections []entities.PersonConnection `json:"connections"`
}

// HandleAdd creates a person.
func (h *PersonHandler) HandleAdd(ctx context.Context, in services.PersonInput) (*entities.Person, error) {
	return h.persons.Create(ctx, in)
}

// HandleList returns the current user's persons with pagination.
func (h *PersonHandler) HandleList(ctx context.Context, limit, offset int) (*PersonListResult, error) {
	persons, err := h.persons.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := h.persons.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &PersonListResult{Persons: persons, Total: total}, nil
}

// HandleShow resolves a person by ID or name and returns their connections.
// Each other person appears through one direction only.
func (h *PersonHandler) HandleShow(ctx context.Context, ref string) (*PersonDetail, error) {
	person, err := h.persons.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	tagged, err := h.conns.GetForPerson(ctx, person.ID)
	if err != nil {
		return nil, err
	}

	rows := make([]entities.Connection, len(tagged))
	for i := range tagged {
		rows[i] = tagged[i].Connection
	}
	keep := make(map[string]bool, len(rows))
	for _, c := range h.engine.ForPerspective(person.ID, rows) {
		keep[c.ID] = true
	}

	visible := make([]entities.PersonConnection, 0, len(keep))
	for i := range tagged {
		if keep[tagged[i].Connection.ID] {
			visible = append(visible, tagged[i])
		}
	}
	return &PersonDetail{Person: person, Connections: visible}, nil
}

// HandleDelete removes a person and every connection touching them.
// It returns the number of connections removed.
func (h *PersonHandler) HandleDelete(ctx context.Context, ref string) (*entities.Person, int, error) {
	person, err := h.persons.Resolve(ctx, ref)
	if err != nil {
		return nil, 0, err
	}
	removed, err := h.engine.DeletePerson(ctx, person.ID)
	if err != nil {
		return nil, 0, err
	}
	return person, removed, nil
}

// HandleSetSelf marks a person as the current user.
func (h *PersonHandler) HandleSetSelf(ctx context.Context, ref string) (*entities.Person, error) {
	person, err := h.persons.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return h.persons.MarkSelf(ctx, person.ID)
}

// HandleSelf returns the current user's self person, or nil.
func (h *PersonHandler) HandleSelf(ctx context.Context) (*entities.Person, error) {
	return h.persons.Self(ctx)
}
