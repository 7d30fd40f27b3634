package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ersonp/famtree/internal/domain/apperrors"
	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/ports"
)

// FamilyTreeService manages family trees and their members.
type FamilyTreeService struct {
	store   ports.FamilyTreeStore
	persons ports.PersonStore
	auth    ports.AuthContext
}

// NewFamilyTreeService creates a new FamilyTreeService.
func NewFamilyTreeService(store ports.FamilyTreeStore, persons ports.PersonStore, auth ports.AuthContext) *FamilyTreeService {
	return &FamilyTreeService{
		store:   store,
		persons: persons,
		auth:    auth,
	}
}

// Create creates a tree owned by the current user. Names are unique per owner.
func (s *FamilyTreeService) Create(ctx context.Context, name, description string) (*entities.FamilyTree, error) {
	ownerID, ok := s.auth.CurrentUserID(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthenticated
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError([]apperrors.Violation{
			{Rule: apperrors.RuleMissingName, Message: "tree name is required"},
		})
	}

	existing, err := s.store.FindFamilyTreeByName(ctx, ownerID, name)
	if err != nil {
		return nil, translateStoreError("finding tree", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("tree %q already exists: %w", name, apperrors.ErrValidationFailed)
	}

	tree := &entities.FamilyTree{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		CreatedAt:   timeNow(),
	}
	if err := s.store.SaveFamilyTree(ctx, tree); err != nil {
		return nil, translateStoreError("saving tree", err)
	}
	return tree, nil
}

// List returns the current user's trees.
func (s *FamilyTreeService) List(ctx context.Context) ([]entities.FamilyTree, error) {
	ownerID, ok := s.auth.CurrentUserID(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthenticated
	}
	trees, err := s.store.ListFamilyTrees(ctx, ownerID)
	if err != nil {
		return nil, translateStoreError("listing trees", err)
	}
	return trees, nil
}

// Resolve finds a tree by ID or by name.
func (s *FamilyTreeService) Resolve(ctx context.Context, ref string) (*entities.FamilyTree, error) {
	ownerID, ok := s.auth.CurrentUserID(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthenticated
	}

	tree, err := s.store.FindFamilyTree(ctx, ref)
	if err != nil {
		return nil, translateStoreError("finding tree", err)
	}
	if tree == nil {
		tree, err = s.store.FindFamilyTreeByName(ctx, ownerID, ref)
		if err != nil {
			return nil, translateStoreError("finding tree by name", err)
		}
	}
	if tree == nil {
		return nil, fmt.Errorf("tree %q: %w", ref, apperrors.ErrNotFound)
	}
	return tree, nil
}

// FindOrCreate finds a tree by name or creates it.
func (s *FamilyTreeService) FindOrCreate(ctx context.Context, name string) (*entities.FamilyTree, error) {
	ownerID, ok := s.auth.CurrentUserID(ctx)
	if !ok {
		return nil, apperrors.ErrUnauthenticated
	}
	tree, err := s.store.FindFamilyTreeByName(ctx, ownerID, strings.TrimSpace(name))
	if err != nil {
		return nil, translateStoreError("finding tree", err)
	}
	if tree != nil {
		return tree, nil
	}
	return s.Create(ctx, name, "")
}

// AddMember adds a person to a tree.
func (s *FamilyTreeService) AddMember(ctx context.Context, treeID, personID string) error {
	person, err := s.persons.FindPersonByID(ctx, personID)
	if err != nil {
		return translateStoreError("finding person", err)
	}
	if person == nil {
		return fmt.Errorf("person %s: %w", personID, apperrors.ErrNotFound)
	}
	if err := s.store.AddTreeMember(ctx, treeID, personID); err != nil {
		return translateStoreError("adding tree member", err)
	}
	return nil
}

// RemoveMember removes a person from a tree.
func (s *FamilyTreeService) RemoveMember(ctx context.Context, treeID, personID string) error {
	if err := s.store.RemoveTreeMember(ctx, treeID, personID); err != nil {
		return translateStoreError("removing tree member", err)
	}
	return nil
}

// Members returns the persons that belong to a tree.
func (s *FamilyTreeService) Members(ctx context.Context, treeID string) ([]*entities.Person, error) {
	ids, err := s.store.TreeMemberIDs(ctx, treeID)
	if err != nil {
		return nil, translateStoreError("finding tree members", err)
	}
	if len(ids) == 0 {
		return []*entities.Person{}, nil
	}
	persons, err := s.persons.FindPersonsByIDs(ctx, ids)
	if err != nil {
		return nil, translateStoreError("finding persons", err)
	}
	return persons, nil
}
