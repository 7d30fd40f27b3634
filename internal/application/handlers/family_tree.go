package handlers

import (
	"context"

	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/services"
)

// FamilyTreeHandler handles family tree operations.
type FamilyTreeHandler struct {
	trees   *services.FamilyTreeService
	persons *services.PersonService
}

// NewFamilyTreeHandler creates a new FamilyTreeHandler.
func NewFamilyTreeHandler(trees *services.FamilyTreeService, persons *services.PersonService) *FamilyTreeHandler {
	return &FamilyTreeHandler{trees: trees, persons: persons}
}

// TreeSummary is a tree with its member count.
type TreeSummary struct {
	Tree    entities.FamilyTree `json:"tree"`
	Members int                 `json:"members"`
}

// TreeMembersResult lists the members of one tree.
type TreeMembersResult struct {
	Tree    *entities.FamilyTree `json:"tree"`
	Members []*entities.Person   `json:"members"`
}

// HandleCreate creates a tree.
func (h *FamilyTreeHandler) HandleCreate(ctx context.Context, name, description string) (*entities.FamilyTree, error) {
	return h.trees.Create(ctx, name, description)
}

// HandleList returns the current user's trees with member counts.
func (h *FamilyTreeHandler) HandleList(ctx context.Context) ([]TreeSummary, error) {
	trees, err := h.trees.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]TreeSummary, 0, len(trees))
	for i := range trees {
		members, err := h.trees.Members(ctx, trees[i].ID)
		if err != nil {
			return nil, err
		}
		result = append(result, TreeSummary{Tree: trees[i], Members: len(members)})
	}
	return result, nil
}

// HandleMembers returns a tree and its members.
func (h *FamilyTreeHandler) HandleMembers(ctx context.Context, treeRef string) (*TreeMembersResult, error) {
	tree, err := h.trees.Resolve(ctx, treeRef)
	if err != nil {
		return nil, err
	}
	members, err := h.trees.Members(ctx, tree.ID)
	if err != nil {
		return nil, err
	}
	return &TreeMembersResult{Tree: tree, Members: members}, nil
}

// HandleAddMember adds persons, by ID or name, to a tree.
func (h *FamilyTreeHandler) HandleAddMember(ctx context.Context, treeRef string, personRefs ...string) (*entities.FamilyTree, error) {
	return h.eachMember(ctx, treeRef, personRefs, h.trees.AddMember)
}

// HandleRemoveMember removes persons, by ID or name, from a tree.
func (h *FamilyTreeHandler) HandleRemoveMember(ctx context.Context, treeRef string, personRefs ...string) (*entities.FamilyTree, error) {
	return h.eachMember(ctx, treeRef, personRefs, h.trees.RemoveMember)
}

func (h *FamilyTreeHandler) eachMember(
	ctx context.Context,
	treeRef string,
	personRefs []string,
	apply func(ctx context.Context, treeID, personID string) error,
) (*entities.FamilyTree, error) {
	tree, err := h.trees.Resolve(ctx, treeRef)
	if err != nil {
		return nil, err
	}
	for _, ref := range personRefs {
		person, err := h.persons.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		if err := apply(ctx, tree.ID, person.ID); err != nil {
			return nil, err
		}
	}
	return tree, nil
}
