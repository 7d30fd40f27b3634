package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/famtree/internal/domain/apperrors"
	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/ports"
)

// PersonInput describes a person to create.
type PersonInput struct {
	Name        string
	Gender      string
	DateOfBirth *time.Time
	Status      entities.PersonStatus
	IsSelf      bool
}

// PersonService manages the current user's persons.
type PersonService struct {
	store ports.PersonStore
	auth  ports.AuthContext
}

// NewPersonService creates a new PersonService.
func NewPersonService(store ports.PersonStore, auth ports.AuthContext) *PersonService {
	return &PersonService{
		store: store,
		auth:  auth,
	}
}

func (s *PersonService) owner(ctx context.Context) (string, error) {
	userID, ok := s.auth.CurrentUserID(ctx)
	if !ok {
		return "", apperrors.ErrUnauthenticated
	}
	return userID, nil
}

// Create validates and stores a new person owned by the current user.
func (s *PersonService) Create(ctx context.Context, in PersonInput) (*entities.Person, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}

	var violations []apperrors.Violation
	name := strings.TrimSpace(in.Name)
	if name == "" {
		violations = append(violations, apperrors.Violation{Rule: apperrors.RuleMissingName, Message: "name is required"})
	}
	status := in.Status
	if status == "" {
		status = entities.StatusLiving
	}
	if !status.IsValid() {
		violations = append(violations, apperrors.Violation{
			Rule:    apperrors.RuleInvalidStatus,
			Message: fmt.Sprintf("invalid status %q (valid: living, deceased)", in.Status),
		})
	}
	if in.IsSelf {
		self, err := s.store.FindSelf(ctx, ownerID)
		if err != nil {
			return nil, translateStoreError("finding self", err)
		}
		if self != nil {
			violations = append(violations, apperrors.Violation{
				Rule:    apperrors.RuleSelfAlreadySet,
				Message: fmt.Sprintf("%s is already marked as you", self.Name),
			})
		}
	}
	if err := apperrors.NewValidationError(violations); err != nil {
		return nil, err
	}

	now := timeNow()
	person := &entities.Person{
		ID:             uuid.New().String(),
		OwnerID:        ownerID,
		Name:           name,
		NormalizedName: entities.NormalizeName(name),
		Gender:         in.Gender,
		DateOfBirth:    in.DateOfBirth,
		Status:         status,
		IsSelf:         in.IsSelf,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SavePerson(ctx, person); err != nil {
		return nil, translateStoreError("saving person", err)
	}
	return person, nil
}

// Get returns a person by ID, or ErrNotFound.
func (s *PersonService) Get(ctx context.Context, id string) (*entities.Person, error) {
	person, err := s.store.FindPersonByID(ctx, id)
	if err != nil {
		return nil, translateStoreError("finding person", err)
	}
	if person == nil {
		return nil, fmt.Errorf("person %s: %w", id, apperrors.ErrNotFound)
	}
	return person, nil
}

// Resolve finds a person by ID or, failing that, by name (case-insensitive).
func (s *PersonService) Resolve(ctx context.Context, ref string) (*entities.Person, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}

	person, err := s.store.FindPersonByID(ctx, ref)
	if err != nil {
		return nil, translateStoreError("finding person", err)
	}
	if person != nil {
		return person, nil
	}

	person, err = s.store.FindPersonByName(ctx, ownerID, ref)
	if err != nil {
		return nil, translateStoreError("finding person by name", err)
	}
	if person == nil {
		return nil, fmt.Errorf("person %q: %w", ref, apperrors.ErrNotFound)
	}
	return person, nil
}

// FindOrCreate finds a person by name or creates a living person with
// that name.
func (s *PersonService) FindOrCreate(ctx context.Context, name string) (*entities.Person, bool, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return nil, false, err
	}
	person, err := s.store.FindPersonByName(ctx, ownerID, name)
	if err != nil {
		return nil, false, translateStoreError("finding person by name", err)
	}
	if person != nil {
		return person, false, nil
	}
	person, err = s.Create(ctx, PersonInput{Name: name})
	if err != nil {
		return nil, false, err
	}
	return person, true, nil
}

// List returns the current user's persons with pagination.
func (s *PersonService) List(ctx context.Context, limit, offset int) ([]*entities.Person, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	persons, err := s.store.ListPersons(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, translateStoreError("listing persons", err)
	}
	return persons, nil
}

// FindByIDs returns the persons with the given IDs. Missing IDs are skipped.
func (s *PersonService) FindByIDs(ctx context.Context, ids []string) ([]*entities.Person, error) {
	if len(ids) == 0 {
		return []*entities.Person{}, nil
	}
	persons, err := s.store.FindPersonsByIDs(ctx, ids)
	if err != nil {
		return nil, translateStoreError("finding persons", err)
	}
	return persons, nil
}

// Self returns the current user's self person, or nil.
func (s *PersonService) Self(ctx context.Context) (*entities.Person, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	self, err := s.store.FindSelf(ctx, ownerID)
	if err != nil {
		return nil, translateStoreError("finding self", err)
	}
	return self, nil
}

// MarkSelf marks the person as the current user, clearing the flag on
// whichever person held it before.
func (s *PersonService) MarkSelf(ctx context.Context, id string) (*entities.Person, error) {
	person, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous, err := s.Self(ctx)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	if previous != nil && previous.ID != person.ID {
		previous.IsSelf = false
		previous.UpdatedAt = now
		if err := s.store.SavePerson(ctx, previous); err != nil {
			return nil, translateStoreError("clearing self", err)
		}
	}

	person.IsSelf = true
	person.UpdatedAt = now
	if err := s.store.SavePerson(ctx, person); err != nil {
		return nil, translateStoreError("saving person", err)
	}
	return person, nil
}

// Count returns the number of persons the current user has.
func (s *PersonService) Count(ctx context.Context) (int, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.store.CountPersons(ctx, ownerID)
	if err != nil {
		return 0, translateStoreError("counting persons", err)
	}
	return n, nil
}
