package handlers

import (
	"context"

	"github.com/ersonp/famtree/internal/domain/services"
)

// RepairHandler finds, and optionally recreates, missing reciprocal rows.
type RepairHandler struct {
	conns  *services.ConnectionService
	engine *services.ConsistencyEngine
}

// NewRepairHandler creates a new RepairHandler.
func NewRepairHandler(conns *services.ConnectionService, engine *services.ConsistencyEngine) *RepairHandler {
	return &RepairHandler{conns: conns, engine: engine}
}

// Handle checks every row. With heal set the missing mirrors are created.
func (h *RepairHandler) Handle(ctx context.Context, heal bool) (*services.RepairReport, error) {
	conns, err := h.conns.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return h.engine.Reconcile(ctx, conns, heal)
}
