package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ersonp/famtree/internal/domain/apperrors"
	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/ports"
)

// timeNow is a variable for testing purposes.
var timeNow = time.Now

// ConnectionService is the adapter between the domain and the connection
// store. It stamps ids and audit fields and translates store errors into
// the apperrors taxonomy. It does not create reciprocal rows; use
// ConsistencyEngine for that.
type ConnectionService struct {
	store   ports.ConnectionStore
	persons ports.PersonStore
	members ports.MembershipLookup
	auth    ports.AuthContext
	logger  *zap.Logger
}

// NewConnectionService creates a new ConnectionService.
func NewConnectionService(
	store ports.ConnectionStore,
	persons ports.PersonStore,
	members ports.MembershipLookup,
	auth ports.AuthContext,
	logger *zap.Logger,
) *ConnectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionService{
		store:   store,
		persons: persons,
		members: members,
		auth:    auth,
		logger:  logger.Named("connections"),
	}
}

// Create persists a new connection row. The current user is recorded as
// CreatedBy; without one the call fails with ErrUnauthenticated.
func (s *ConnectionService) Create(ctx context.Context, conn *entities.Connection) error {
	userID, ok := s.auth.CurrentUserID(ctx)
	if !ok {
		return apperrors.ErrUnauthenticated
	}

	now := timeNow()
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	conn.CreatedBy = userID
	conn.CreatedAt = now
	conn.UpdatedAt = now
	conn.Metadata.Version = entities.MetadataVersion

	if err := s.store.InsertConnection(ctx, conn); err != nil {
		return translateStoreError("creating connection", err)
	}

	s.logger.Debug("connection created",
		zap.String("id", conn.ID),
		zap.String("from", conn.FromPersonID),
		zap.String("to", conn.ToPersonID),
		zap.String("type", string(conn.Type)))
	return nil
}

// Update replaces the mutable fields of an existing row.
func (s *ConnectionService) Update(ctx context.Context, conn *entities.Connection) error {
	conn.UpdatedAt = timeNow()
	conn.Metadata.Version = entities.MetadataVersion
	if err := s.store.UpdateConnection(ctx, conn); err != nil {
		return translateStoreError("updating connection", err)
	}
	return nil
}

// Delete removes a row by id.
func (s *ConnectionService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteConnection(ctx, id); err != nil {
		return translateStoreError("deleting connection", err)
	}
	return nil
}

// Get returns a row by id, or ErrNotFound.
func (s *ConnectionService) Get(ctx context.Context, id string) (*entities.Connection, error) {
	conn, err := s.store.FindConnectionByID(ctx, id)
	if err != nil {
		return nil, translateStoreError("finding connection", err)
	}
	if conn == nil {
		return nil, fmt.Errorf("connection %s: %w", id, apperrors.ErrNotFound)
	}
	return conn, nil
}

// Find returns the row with the exact endpoints and type, or nil.
// An empty treeID matches any tree.
func (s *ConnectionService) Find(ctx context.Context, fromID, toID string, relType entities.RelationType, treeID string) (*entities.Connection, error) {
	conn, err := s.store.FindConnection(ctx, fromID, toID, relType, treeID)
	if err != nil {
		return nil, translateStoreError("finding connection", err)
	}
	return conn, nil
}

// Exists reports whether a row with the exact endpoints and type exists.
func (s *ConnectionService) Exists(ctx context.Context, fromID, toID string, relType entities.RelationType, treeID string) (bool, error) {
	conn, err := s.Find(ctx, fromID, toID, relType, treeID)
	if err != nil {
		return false, err
	}
	return conn != nil, nil
}

// Between returns every row pointing from fromID to toID.
func (s *ConnectionService) Between(ctx context.Context, fromID, toID string) ([]entities.Connection, error) {
	conns, err := s.store.FindConnectionsBetween(ctx, fromID, toID)
	if err != nil {
		return nil, translateStoreError("finding connections between persons", err)
	}
	return conns, nil
}

// FindMirror returns the first row pointing back from toID to fromID, or nil.
func (s *ConnectionService) FindMirror(ctx context.Context, fromID, toID string) (*entities.Connection, error) {
	conns, err := s.Between(ctx, toID, fromID)
	if err != nil {
		return nil, err
	}
	if len(conns) == 0 {
		return nil, nil
	}
	return &conns[0], nil
}

// GetForPerson returns the rows touching a person, each tagged with its
// direction and the other person's id and name.
func (s *ConnectionService) GetForPerson(ctx context.Context, personID string) ([]entities.PersonConnection, error) {
	conns, err := s.store.FindConnectionsByPerson(ctx, personID)
	if err != nil {
		return nil, translateStoreError("finding connections for person", err)
	}

	otherIDs := make([]string, 0, len(conns))
	for i := range conns {
		if other := conns[i].Other(personID); !slices.Contains(otherIDs, other) {
			otherIDs = append(otherIDs, other)
		}
	}

	names := make(map[string]string, len(otherIDs))
	if len(otherIDs) > 0 {
		persons, err := s.persons.FindPersonsByIDs(ctx, otherIDs)
		if err != nil {
			return nil, translateStoreError("resolving connected persons", err)
		}
		for _, p := range persons {
			names[p.ID] = p.Name
		}
	}

	result := make([]entities.PersonConnection, 0, len(conns))
	for i := range conns {
		direction := entities.DirectionIncoming
		if conns[i].FromPersonID == personID {
			direction = entities.DirectionOutgoing
		}
		other := conns[i].Other(personID)
		result = append(result, entities.PersonConnection{
			Connection:      conns[i],
			Direction:       direction,
			OtherPersonID:   other,
			OtherPersonName: names[other],
		})
	}
	return result, nil
}

// GetForFamilyTree returns the rows tagged with the tree together with the
// rows between two members of the tree. Both reads run concurrently and the
// result holds each row once, tagged rows first.
func (s *ConnectionService) GetForFamilyTree(ctx context.Context, treeID string) ([]entities.Connection, error) {
	var tagged, among []entities.Connection

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		conns, err := s.store.FindConnectionsByTree(gctx, treeID)
		if err != nil {
			return translateStoreError("finding tree connections", err)
		}
		tagged = conns
		return nil
	})
	g.Go(func() error {
		memberIDs, err := s.members.TreeMemberIDs(gctx, treeID)
		if err != nil {
			return translateStoreError("finding tree members", err)
		}
		if len(memberIDs) < 2 {
			return nil
		}
		conns, err := s.store.FindConnectionsAmong(gctx, memberIDs)
		if err != nil {
			return translateStoreError("finding member connections", err)
		}
		among = conns
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(tagged)+len(among))
	result := make([]entities.Connection, 0, len(tagged)+len(among))
	for _, batch := range [][]entities.Connection{tagged, among} {
		for i := range batch {
			if seen[batch[i].ID] {
				continue
			}
			seen[batch[i].ID] = true
			result = append(result, batch[i])
		}
	}
	return result, nil
}

// GetAll returns every row.
func (s *ConnectionService) GetAll(ctx context.Context) ([]entities.Connection, error) {
	conns, err := s.store.ListConnections(ctx)
	if err != nil {
		return nil, translateStoreError("listing connections", err)
	}
	return conns, nil
}

// DeleteForPerson removes every row touching a person.
func (s *ConnectionService) DeleteForPerson(ctx context.Context, personID string) (int, error) {
	n, err := s.store.DeleteConnectionsByPerson(ctx, personID)
	if err != nil {
		return 0, translateStoreError("deleting connections for person", err)
	}
	return n, nil
}

// Count returns the total number of rows.
func (s *ConnectionService) Count(ctx context.Context) (int, error) {
	n, err := s.store.CountConnections(ctx)
	if err != nil {
		return 0, translateStoreError("counting connections", err)
	}
	return n, nil
}

// WithinTx runs fn in a store transaction when the store supports them,
// otherwise it runs fn directly.
func (s *ConnectionService) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := s.store.(ports.Transactor); ok {
		return tx.WithinTx(ctx, fn)
	}
	return fn(ctx)
}

// translateStoreError maps store failures onto the apperrors taxonomy.
// Errors already in the taxonomy pass through.
func translateStoreError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case ports.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, apperrors.ErrDuplicateConnection)
	case errors.Is(err, ports.ErrNotFound):
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	case isDomainError(err):
		return err
	default:
		return apperrors.NewStorageError(op, err)
	}
}

func isDomainError(err error) bool {
	for _, target := range []error{
		apperrors.ErrValidationFailed,
		apperrors.ErrDuplicateConnection,
		apperrors.ErrUnauthenticated,
		apperrors.ErrStorage,
		apperrors.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
