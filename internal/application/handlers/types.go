package handlers

import (
	"fmt"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/registry"
)

// Type filters accepted by TypesHandler.
const (
	TypesAll           = "all"
	TypesDirectional   = "directional"
	TypesBidirectional = "bidirectional"
)

// TypesHandler lists the relationship type catalog.
type TypesHandler struct {
	registry *registry.Registry
}

// NewTypesHandler creates a new TypesHandler.
func NewTypesHandler(reg *registry.Registry) *TypesHandler {
	return &TypesHandler{registry: reg}
}

// TypesResult is the catalog plus the attribute names connections accept.
type TypesResult struct {
	Types      []registry.TypeConfig `json:"types"`
	Attributes []entities.Attribute  `json:"attributes"`
}

// HandleList returns the type configs matching filter, in catalog order.
func (h *TypesHandler) HandleList(filter string) (*TypesResult, error) {
	var types []entities.RelationType
	switch filter {
	case "", TypesAll:
		types = h.registry.All()
	case TypesDirectional:
		types = h.registry.Directional()
	case TypesBidirectional:
		types = h.registry.Bidirectional()
	default:
		return nil, fmt.Errorf("invalid filter %q (valid: all, directional, bidirectional)", filter)
	}

	configs := make([]registry.TypeConfig, len(types))
	for i, t := range types {
		configs[i] = h.registry.Config(t)
	}
	return &TypesResult{Types: configs, Attributes: entities.KnownAttributes()}, nil
}
