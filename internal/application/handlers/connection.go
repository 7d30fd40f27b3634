package handlers

import (
	"context"
	"errors"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/registry"
	"github.com/ersonp/famtree/internal/domain/services"
)

// ConnectionHandler handles connection operations. Persons and trees are
// referenced by ID or name.
type ConnectionHandler struct {
	registry *registry.Registry
	persons  *services.PersonService
	trees    *services.FamilyTreeService
	conns    *services.ConnectionService
	engine   *services.ConsistencyEngine
}

// NewConnectionHandler creates a new ConnectionHandler.
func NewConnectionHandler(
	reg *registry.Registry,
	persons *services.PersonService,
	trees *services.FamilyTreeService,
	conns *services.ConnectionService,
	engine *services.ConsistencyEngine,
) *ConnectionHandler {
	return &ConnectionHandler{
		registry: reg,
		persons:  persons,
		trees:    trees,
		conns:    conns,
		engine:   engine,
	}
}

// ConnectRequest describes a connection to create.
type ConnectRequest struct {
	From           string
	Type           string
	To             string
	Tree           string
	OrganizationID string
	GroupID        string
	Notes          string
	Attributes     []string
}

// UpdateRequest describes an edit. Nil fields are left unchanged.
type UpdateRequest struct {
	Type       string
	Notes      *string
	Attributes *[]string
}

// ListRequest selects which connections to list. Exactly one of Person,
// Tree and All is expected; All wins over Tree, Tree over Person.
type ListRequest struct {
	Person string
	Tree   string
	All    bool
}

// ConnectionListResult contains the result of listing connections.
type ConnectionListResult struct {
	Connections []entities.Connection `json:"connections"`
	Names       map[string]string     `json:"names"`
}

// HandleConnect creates a connection and its reciprocal row.
func (h *ConnectionHandler) HandleConnect(ctx context.Context, req ConnectRequest) (*services.CreateResult, error) {
	relType, err := h.registry.Parse(req.Type)
	if err != nil {
		return nil, err
	}
	metadata, err := parseMetadata(req.Attributes)
	if err != nil {
		return nil, err
	}

	from, err := h.persons.Resolve(ctx, req.From)
	if err != nil {
		return nil, err
	}
	to, err := h.persons.Resolve(ctx, req.To)
	if err != nil {
		return nil, err
	}

	in := services.ConnectionInput{
		FromPersonID:   from.ID,
		ToPersonID:     to.ID,
		Type:           relType,
		OrganizationID: req.OrganizationID,
		GroupID:        req.GroupID,
		Notes:          req.Notes,
		Metadata:       metadata,
	}
	if req.Tree != "" {
		tree, err := h.trees.Resolve(ctx, req.Tree)
		if err != nil {
			return nil, err
		}
		in.FamilyTreeID = tree.ID
	}

	return h.engine.CreateWithReciprocal(ctx, in)
}

// HandleUpdate edits a connection and keeps its mirror in step.
func (h *ConnectionHandler) HandleUpdate(ctx context.Context, id string, req UpdateRequest) (*services.UpdateResult, error) {
	upd := services.ConnectionUpdate{ID: id, Notes: req.Notes}
	if req.Type != "" {
		relType, err := h.registry.Parse(req.Type)
		if err != nil {
			return nil, err
		}
		upd.Type = relType
	}
	if req.Attributes != nil {
		metadata, err := parseMetadata(*req.Attributes)
		if err != nil {
			return nil, err
		}
		upd.Metadata = &metadata
	}
	return h.engine.UpdateWithReciprocal(ctx, upd)
}

// HandleDelete deletes a connection and the rows pointing back.
func (h *ConnectionHandler) HandleDelete(ctx context.Context, id string) (*services.DeleteResult, error) {
	return h.engine.DeleteWithReciprocal(ctx, id)
}

// HandleList returns connections for a person, a tree, or everything.
// Bidirectional rows appear once and a person's view shows each other
// person through one direction.
func (h *ConnectionHandler) HandleList(ctx context.Context, req ListRequest) (*ConnectionListResult, error) {
	var conns []entities.Connection
	switch {
	case req.All:
		all, err := h.conns.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		conns = h.engine.Deduplicate(all)
	case req.Tree != "":
		tree, err := h.trees.Resolve(ctx, req.Tree)
		if err != nil {
			return nil, err
		}
		rows, err := h.conns.GetForFamilyTree(ctx, tree.ID)
		if err != nil {
			return nil, err
		}
		conns = h.engine.Deduplicate(rows)
	case req.Person != "":
		person, err := h.persons.Resolve(ctx, req.Person)
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
		conns = h.engine.ForPerspective(person.ID, rows)
	default:
		return nil, errors.New("a person, a tree or all connections must be selected")
	}

	names, err := h.names(ctx, conns)
	if err != nil {
		return nil, err
	}
	return &ConnectionListResult{Connections: conns, Names: names}, nil
}

// names maps every endpoint ID in conns to the person's name.
func (h *ConnectionHandler) names(ctx context.Context, conns []entities.Connection) (map[string]string, error) {
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for i := range conns {
		for _, id := range []string{conns[i].FromPersonID, conns[i].ToPersonID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	persons, err := h.persons.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(persons))
	for _, p := range persons {
		names[p.ID] = p.Name
	}
	return names, nil
}

func parseMetadata(attrs []string) (entities.Metadata, error) {
	parsed := make([]entities.Attribute, 0, len(attrs))
	for _, s := range attrs {
		a, err := entities.ParseAttribute(s)
		if err != nil {
			return entities.Metadata{}, err
		}
		parsed = append(parsed, a)
	}
	return entities.NewMetadata(parsed...), nil
}
