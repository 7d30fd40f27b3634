package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ersonp/famtree/internal/domain/apperrors"
	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/ports"
	"github.com/ersonp/famtree/internal/domain/registry"
)

// ConnectionInput describes a connection to create.
type ConnectionInput struct {
	FromPersonID   string
	ToPersonID     string
	Type           entities.RelationType
	FamilyTreeID   string
	OrganizationID string
	GroupID        string
	Notes          string
	Metadata       entities.Metadata
}

// ConnectionUpdate describes an edit to an existing connection.
// Zero fields are left unchanged.
type ConnectionUpdate struct {
	ID       string
	Type     entities.RelationType
	Notes    *string
	Metadata *entities.Metadata
}

// CreateResult is the outcome of CreateWithReciprocal.
// Reciprocal is nil for bidirectional types and when the mirror write failed;
// ReciprocalErr then holds the logged failure.
type CreateResult struct {
	Main          *entities.Connection `json:"main"`
	Reciprocal    *entities.Connection `json:"reciprocal,omitempty"`
	ReciprocalErr error                `json:"-"`
}

// UpdateResult is the outcome of UpdateWithReciprocal.
type UpdateResult struct {
	Main          *entities.Connection `json:"main"`
	Mirror        *entities.Connection `json:"mirror,omitempty"`
	ReciprocalErr error                `json:"-"`
}

// DeleteResult is the outcome of DeleteWithReciprocal.
type DeleteResult struct {
	Deleted        *entities.Connection `json:"deleted"`
	MirrorsDeleted int                  `json:"mirrors_deleted"`
	ReciprocalErr  error                `json:"-"`
}

// MissingMirror is a directional row whose reciprocal row is absent.
type MissingMirror struct {
	Connection   entities.Connection   `json:"connection"`
	ExpectedType entities.RelationType `json:"expected_type"`
	Healed       bool                  `json:"healed"`
	Error        string                `json:"error,omitempty"`
}

// RepairReport summarizes a Reconcile pass.
type RepairReport struct {
	Checked int             `json:"checked"`
	Missing []MissingMirror `json:"missing"`
	Healed  int             `json:"healed"`
	Failed  int             `json:"failed"`
}

// ConsistencyEngine owns the rules that keep connection rows coherent:
// validation, canonical direction of bidirectional types, and the reciprocal
// row that accompanies every directional type.
type ConsistencyEngine struct {
	registry *registry.Registry
	conns    *ConnectionService
	persons  ports.PersonStore
	audit    ports.AuditLog
	logger   *zap.Logger
}

// NewConsistencyEngine creates a new ConsistencyEngine. audit may be nil.
func NewConsistencyEngine(
	reg *registry.Registry,
	conns *ConnectionService,
	persons ports.PersonStore,
	audit ports.AuditLog,
	logger *zap.Logger,
) *ConsistencyEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsistencyEngine{
		registry: reg,
		conns:    conns,
		persons:  persons,
		audit:    audit,
		logger:   logger.Named("consistency"),
	}
}

// Validate checks an input against every connection rule and returns a
// *apperrors.ValidationError listing all violations, or nil.
func (e *ConsistencyEngine) Validate(ctx context.Context, in ConnectionInput) error {
	return e.validate(ctx, in, "")
}

// validate skips edges between the pair identified by ignorePair when
// walking ancestry, so that an edge being retyped is not its own cycle.
func (e *ConsistencyEngine) validate(ctx context.Context, in ConnectionInput, ignorePair string) error {
	var violations []apperrors.Violation
	add := func(rule, format string, args ...any) {
		violations = append(violations, apperrors.Violation{Rule: rule, Message: fmt.Sprintf(format, args...)})
	}

	if in.FromPersonID == "" {
		add(apperrors.RuleMissingFrom, "from person is required")
	}
	if in.ToPersonID == "" {
		add(apperrors.RuleMissingTo, "to person is required")
	}
	if in.FromPersonID != "" && in.FromPersonID == in.ToPersonID {
		add(apperrors.RuleSelfConnection, "a person cannot be connected to themselves")
	}
	knownType := e.registry.IsKnown(in.Type)
	if !knownType {
		add(apperrors.RuleUnknownType, "unknown relationship type %q", in.Type)
	}
	for _, a := range in.Metadata.Invalid() {
		add(apperrors.RuleUnknownAttribute, "unknown attribute %q", a)
	}

	if in.FromPersonID == "" || in.ToPersonID == "" || in.FromPersonID == in.ToPersonID {
		return apperrors.NewValidationError(violations)
	}

	persons, err := e.persons.FindPersonsByIDs(ctx, []string{in.FromPersonID, in.ToPersonID})
	if err != nil {
		return translateStoreError("resolving persons", err)
	}
	byID := make(map[string]*entities.Person, len(persons))
	for _, p := range persons {
		byID[p.ID] = p
	}
	for _, id := range []string{in.FromPersonID, in.ToPersonID} {
		if byID[id] == nil {
			add(apperrors.RulePersonNotFound, "person %s not found", id)
		}
	}

	if knownType && len(byID) == 2 {
		parentID, childID, ok := e.parentChild(in.FromPersonID, in.ToPersonID, in.Type)
		if ok {
			parent, child := byID[parentID], byID[childID]
			if parent.DateOfBirth != nil && child.DateOfBirth != nil && parent.DateOfBirth.After(*child.DateOfBirth) {
				add(apperrors.RuleAgeOrder, "%s is born after %s and cannot be their parent", parent.Name, child.Name)
			}

			cyclic, err := e.isAncestor(ctx, childID, parentID, ignorePair)
			if err != nil {
				return err
			}
			if cyclic {
				add(apperrors.RuleAncestryCycle, "%s is already an ancestor of %s", child.Name, parent.Name)
			}
		}
	}

	return apperrors.NewValidationError(violations)
}

// parentChild resolves which endpoint is the parent for parent-role and
// child-role types.
func (e *ConsistencyEngine) parentChild(fromID, toID string, t entities.RelationType) (parentID, childID string, ok bool) {
	switch {
	case e.registry.IsParentRole(t):
		return fromID, toID, true
	case e.registry.IsChildRole(t):
		return toID, fromID, true
	default:
		return "", "", false
	}
}

// isAncestor walks the parents of personID breadth first and reports
// whether candidateID is among them.
func (e *ConsistencyEngine) isAncestor(ctx context.Context, candidateID, personID, ignorePair string) (bool, error) {
	visited := map[string]bool{personID: true}
	queue := []string{personID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		conns, err := e.conns.store.FindConnectionsByPerson(ctx, current)
		if err != nil {
			return false, translateStoreError("walking ancestry", err)
		}
		for i := range conns {
			if ignorePair != "" && conns[i].PairKey() == ignorePair {
				continue
			}
			parentID, childID, ok := e.parentChild(conns[i].FromPersonID, conns[i].ToPersonID, conns[i].Type)
			if !ok || childID != current {
				continue
			}
			if parentID == candidateID {
				return true, nil
			}
			if !visited[parentID] {
				visited[parentID] = true
				queue = append(queue, parentID)
			}
		}
	}
	return false, nil
}

// Canonicalize orders the endpoints of a bidirectional connection so that
// the lexicographically smaller person ID comes first. Directional inputs
// are returned unchanged.
func (e *ConsistencyEngine) Canonicalize(in ConnectionInput) ConnectionInput {
	if e.registry.IsKnown(in.Type) && e.registry.IsBidirectional(in.Type) && in.ToPersonID < in.FromPersonID {
		in.FromPersonID, in.ToPersonID = in.ToPersonID, in.FromPersonID
	}
	return in
}

// CreateWithReciprocal validates and canonicalizes the input, persists the
// connection and, for directional types, its reciprocal row. A failed
// reciprocal write is logged and audited but does not fail the call.
func (e *ConsistencyEngine) CreateWithReciprocal(ctx context.Context, in ConnectionInput) (*CreateResult, error) {
	if err := e.Validate(ctx, in); err != nil {
		return nil, err
	}
	in = e.Canonicalize(in)

	exists, err := e.conns.Exists(ctx, in.FromPersonID, in.ToPersonID, in.Type, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%s %s %s: %w", in.FromPersonID, in.Type, in.ToPersonID, apperrors.ErrDuplicateConnection)
	}

	main := &entities.Connection{
		FromPersonID:   in.FromPersonID,
		ToPersonID:     in.ToPersonID,
		Type:           in.Type,
		FamilyTreeID:   in.FamilyTreeID,
		OrganizationID: in.OrganizationID,
		GroupID:        in.GroupID,
		Notes:          in.Notes,
		Metadata:       in.Metadata,
	}
	result := &CreateResult{Main: main}

	err = e.conns.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.conns.Create(ctx, main); err != nil {
			return err
		}
		e.record(ctx, entities.AuditConnectionCreated, main.ID, map[string]any{
			"from": main.FromPersonID,
			"to":   main.ToPersonID,
			"type": string(main.Type),
		})

		if e.registry.IsBidirectional(main.Type) {
			return nil
		}

		result.ReciprocalErr = e.mirrorStep(ctx, "create", main, func(ctx context.Context) error {
			rec, err := e.createMirror(ctx, main)
			result.Reciprocal = rec
			return err
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// createMirror persists the reciprocal row of main. A mirror that already
// exists (e.g. the child row was entered first) is adopted as is.
func (e *ConsistencyEngine) createMirror(ctx context.Context, main *entities.Connection) (*entities.Connection, error) {
	rec := mirrorOf(main, e.registry.Reciprocal(main.Type))
	err := e.conns.WithinTx(ctx, func(ctx context.Context) error {
		return e.conns.Create(ctx, rec)
	})
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, apperrors.ErrDuplicateConnection) {
		return nil, err
	}

	existing, findErr := e.conns.Find(ctx, rec.FromPersonID, rec.ToPersonID, rec.Type, "")
	if findErr != nil {
		return nil, findErr
	}
	if existing == nil {
		return nil, err
	}
	return existing, nil
}

func mirrorOf(conn *entities.Connection, relType entities.RelationType) *entities.Connection {
	return &entities.Connection{
		FromPersonID:   conn.ToPersonID,
		ToPersonID:     conn.FromPersonID,
		Type:           relType,
		FamilyTreeID:   conn.FamilyTreeID,
		OrganizationID: conn.OrganizationID,
		GroupID:        conn.GroupID,
		Notes:          conn.Notes,
		Metadata:       conn.Metadata,
	}
}

// UpdateWithReciprocal applies an edit to a connection and keeps its mirror
// row in step. Retyping to a bidirectional type removes the old mirror and
// canonicalizes the remaining row.
func (e *ConsistencyEngine) UpdateWithReciprocal(ctx context.Context, upd ConnectionUpdate) (*UpdateResult, error) {
	main, err := e.conns.Get(ctx, upd.ID)
	if err != nil {
		return nil, err
	}
	oldType := main.Type

	newType := oldType
	if upd.Type != "" {
		newType = upd.Type
	}
	in := ConnectionInput{
		FromPersonID: main.FromPersonID,
		ToPersonID:   main.ToPersonID,
		Type:         newType,
		Metadata:     main.Metadata,
	}
	if upd.Metadata != nil {
		in.Metadata = *upd.Metadata
	}
	if err := e.validate(ctx, in, main.PairKey()); err != nil {
		return nil, err
	}

	main.Type = newType
	if upd.Notes != nil {
		main.Notes = *upd.Notes
	}
	main.Metadata = in.Metadata

	result := &UpdateResult{Main: main}
	err = e.conns.WithinTx(ctx, func(ctx context.Context) error {
		if e.registry.IsBidirectional(newType) {
			return e.updateBidirectional(ctx, main, oldType, result)
		}

		if err := e.conns.Update(ctx, main); err != nil {
			return err
		}
		e.record(ctx, entities.AuditConnectionUpdated, main.ID, map[string]any{
			"old_type": string(oldType),
			"new_type": string(newType),
		})

		result.ReciprocalErr = e.mirrorStep(ctx, "update", main, func(ctx context.Context) error {
			mirror, err := e.syncMirror(ctx, main, oldType)
			result.Mirror = mirror
			return err
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *ConsistencyEngine) updateBidirectional(ctx context.Context, main *entities.Connection, oldType entities.RelationType, result *UpdateResult) error {
	result.ReciprocalErr = e.mirrorStep(ctx, "delete", main, func(ctx context.Context) error {
		mirror, err := e.findMirror(ctx, main, oldType)
		if err != nil || mirror == nil {
			return err
		}
		return e.conns.Delete(ctx, mirror.ID)
	})

	if main.ToPersonID < main.FromPersonID {
		main.FromPersonID, main.ToPersonID = main.ToPersonID, main.FromPersonID
	}
	if err := e.conns.Update(ctx, main); err != nil {
		return err
	}
	e.record(ctx, entities.AuditConnectionUpdated, main.ID, map[string]any{"new_type": string(main.Type)})
	return nil
}

// syncMirror updates the row that mirrored main under its old type, or
// creates one when none exists. A mirror that still pairs with the new type
// keeps its own type.
func (e *ConsistencyEngine) syncMirror(ctx context.Context, main *entities.Connection, oldType entities.RelationType) (*entities.Connection, error) {
	mirror, err := e.findMirror(ctx, main, oldType)
	if err != nil {
		return nil, err
	}
	if mirror == nil {
		return e.createMirror(ctx, main)
	}

	if !e.pairs(main.Type, mirror.Type) {
		mirror.Type = e.registry.Reciprocal(main.Type)
	}
	mirror.Notes = main.Notes
	mirror.Metadata = main.Metadata
	if err := e.conns.Update(ctx, mirror); err != nil {
		return nil, err
	}
	return mirror, nil
}

// DeleteWithReciprocal deletes a connection and every row pointing back
// between the same persons, whatever its type.
func (e *ConsistencyEngine) DeleteWithReciprocal(ctx context.Context, id string) (*DeleteResult, error) {
	main, err := e.conns.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{Deleted: main}
	err = e.conns.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.conns.Delete(ctx, main.ID); err != nil {
			return err
		}
		e.record(ctx, entities.AuditConnectionDeleted, main.ID, map[string]any{
			"from": main.FromPersonID,
			"to":   main.ToPersonID,
			"type": string(main.Type),
		})

		result.ReciprocalErr = e.mirrorStep(ctx, "delete", main, func(ctx context.Context) error {
			mirrors, err := e.conns.Between(ctx, main.ToPersonID, main.FromPersonID)
			if err != nil {
				return err
			}
			for i := range mirrors {
				if err := e.conns.Delete(ctx, mirrors[i].ID); err != nil {
					return err
				}
			}
			result.MirrorsDeleted = len(mirrors)
			return nil
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeletePerson removes every connection touching a person, then the person.
// It returns the number of connections removed.
func (e *ConsistencyEngine) DeletePerson(ctx context.Context, personID string) (int, error) {
	person, err := e.persons.FindPersonByID(ctx, personID)
	if err != nil {
		return 0, translateStoreError("finding person", err)
	}
	if person == nil {
		return 0, fmt.Errorf("person %s: %w", personID, apperrors.ErrNotFound)
	}

	var removed int
	err = e.conns.WithinTx(ctx, func(ctx context.Context) error {
		n, err := e.conns.DeleteForPerson(ctx, personID)
		if err != nil {
			return err
		}
		removed = n
		if err := e.persons.DeletePerson(ctx, personID); err != nil {
			return translateStoreError("deleting person", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("person deleted", zap.String("person_id", personID), zap.Int("connections_removed", removed))
	return removed, nil
}

// Deduplicate collapses rows of a bidirectional type that repeat the same
// unordered pair, keeping the first. Directional rows are never collapsed.
func (e *ConsistencyEngine) Deduplicate(conns []entities.Connection) []entities.Connection {
	seen := make(map[string]bool, len(conns))
	result := make([]entities.Connection, 0, len(conns))
	for i := range conns {
		c := &conns[i]
		if e.registry.IsKnown(c.Type) && e.registry.IsBidirectional(c.Type) {
			key := c.PairKey() + "|" + string(c.Type)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		result = append(result, *c)
	}
	return result
}

// ForPerspective returns the rows touching personID as seen from that
// person: every outgoing row, and the incoming rows that are not the mirror
// of an outgoing one.
func (e *ConsistencyEngine) ForPerspective(personID string, conns []entities.Connection) []entities.Connection {
	outgoing := make(map[string][]entities.RelationType)
	for i := range conns {
		if conns[i].FromPersonID == personID && conns[i].ToPersonID != personID {
			outgoing[conns[i].ToPersonID] = append(outgoing[conns[i].ToPersonID], conns[i].Type)
		}
	}

	result := make([]entities.Connection, 0, len(conns))
	for i := range conns {
		c := &conns[i]
		if !c.Involves(personID) {
			continue
		}
		if c.ToPersonID == personID && e.hasMirror(c, outgoing[c.FromPersonID]) {
			continue
		}
		result = append(result, *c)
	}
	return e.Deduplicate(result)
}

// Reconcile finds directional rows whose reciprocal row is missing. With
// heal set the missing rows are created.
func (e *ConsistencyEngine) Reconcile(ctx context.Context, conns []entities.Connection, heal bool) (*RepairReport, error) {
	byPair := make(map[string][]entities.RelationType, len(conns))
	for i := range conns {
		key := conns[i].FromPersonID + ">" + conns[i].ToPersonID
		byPair[key] = append(byPair[key], conns[i].Type)
	}

	report := &RepairReport{Missing: []MissingMirror{}}
	for i := range conns {
		c := &conns[i]
		if !e.registry.IsKnown(c.Type) || e.registry.IsBidirectional(c.Type) {
			continue
		}
		report.Checked++

		if e.hasMirror(c, byPair[c.ToPersonID+">"+c.FromPersonID]) {
			continue
		}

		missing := MissingMirror{Connection: *c, ExpectedType: e.registry.Reciprocal(c.Type)}
		if heal {
			rec, err := e.createMirror(ctx, c)
			if err != nil {
				missing.Error = err.Error()
				report.Failed++
				e.logger.Warn("healing reciprocal failed", zap.String("connection_id", c.ID), zap.Error(err))
			} else {
				missing.Healed = true
				report.Healed++
				e.record(ctx, entities.AuditReciprocalHealed, c.ID, map[string]any{"mirror_id": rec.ID})
				key := rec.FromPersonID + ">" + rec.ToPersonID
				byPair[key] = append(byPair[key], rec.Type)
			}
		}
		report.Missing = append(report.Missing, missing)
	}

	return report, nil
}

// hasMirror reports whether any of the reverse-direction types pairs with c.
func (e *ConsistencyEngine) hasMirror(c *entities.Connection, reverse []entities.RelationType) bool {
	for _, t := range reverse {
		if e.pairs(c.Type, t) {
			return true
		}
	}
	return false
}

// pairs reports whether a reverse row of type back mirrors a row of type t:
// either back is t's reciprocal, or t is back's (child mirrors donor).
func (e *ConsistencyEngine) pairs(t, back entities.RelationType) bool {
	if back == e.registry.Reciprocal(t) {
		return true
	}
	tc, ok := e.registry.Lookup(back)
	return ok && !tc.Bidirectional && tc.Reciprocal == t
}

// findMirror returns the row pointing back from main's target to its source
// that mirrors a row of type t, preferring t's exact reciprocal. Bidirectional
// types have no mirror.
func (e *ConsistencyEngine) findMirror(ctx context.Context, main *entities.Connection, t entities.RelationType) (*entities.Connection, error) {
	if !e.registry.IsKnown(t) || e.registry.IsBidirectional(t) {
		return nil, nil
	}
	back, err := e.conns.Between(ctx, main.ToPersonID, main.FromPersonID)
	if err != nil {
		return nil, err
	}

	var match *entities.Connection
	for i := range back {
		switch {
		case back[i].Type == e.registry.Reciprocal(t):
			return &back[i], nil
		case match == nil && e.pairs(t, back[i].Type):
			match = &back[i]
		}
	}
	return match, nil
}

// mirrorStep runs fn in a savepoint. A failure rolls back fn's writes only
// and comes back as a logged *apperrors.ReciprocalError.
func (e *ConsistencyEngine) mirrorStep(ctx context.Context, op string, main *entities.Connection, fn func(ctx context.Context) error) error {
	if err := e.conns.WithinTx(ctx, fn); err != nil {
		return e.reciprocalFailed(ctx, op, main, err)
	}
	return nil
}

func (e *ConsistencyEngine) reciprocalFailed(ctx context.Context, op string, main *entities.Connection, err error) error {
	rerr := &apperrors.ReciprocalError{Op: op, ConnectionID: main.ID, Err: err}
	e.logger.Warn("reciprocal operation failed",
		zap.String("op", op),
		zap.String("connection_id", main.ID),
		zap.String("from", main.FromPersonID),
		zap.String("to", main.ToPersonID),
		zap.Error(err))
	e.record(ctx, entities.AuditReciprocalFailed, main.ID, map[string]any{
		"op":    op,
		"error": err.Error(),
	})
	return rerr
}

// record writes an audit entry. Audit failures are logged only.
func (e *ConsistencyEngine) record(ctx context.Context, action, connectionID string, details map[string]any) {
	if e.audit == nil {
		return
	}
	err := e.conns.WithinTx(ctx, func(ctx context.Context) error {
		return e.audit.LogAction(ctx, action, connectionID, details)
	})
	if err != nil {
		e.logger.Warn("writing audit entry failed", zap.String("action", action), zap.Error(err))
	}
}
