package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ersonp/famtree/internal/domain/apperrors"
	"github.com/ersonp/famtree/internal/domain/entities"
	"github.com/ersonp/famtree/internal/domain/registry"
	"github.com/ersonp/famtree/internal/infrastructure/parsers"
)

// ConflictStrategy defines how to handle connections that already exist.
type ConflictStrategy string

const (
	// ConflictSkip skips connections that already exist.
	ConflictSkip ConflictStrategy = "skip"
	// ConflictFail records existing connections as errors.
	ConflictFail ConflictStrategy = "fail"
)

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun     bool             // Validate without saving
	OnConflict ConflictStrategy // How to handle existing connections
	Tree       string           // Default tree name for rows without one
}

// ImportError represents an error for a specific row during import.
type ImportError struct {
	Line    int    // Line number (1-indexed, 0 if unknown)
	Field   string // Which field has the error
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported       int
	Skipped        int
	PersonsCreated int
	Errors         []ImportError
}

// ImportService creates connections, and the persons and trees they name,
// from parsed rows.
type ImportService struct {
	registry *registry.Registry
	persons  *PersonService
	trees    *FamilyTreeService
	engine   *ConsistencyEngine
	logger   *zap.Logger
}

// NewImportService creates a new import service.
func NewImportService(
	reg *registry.Registry,
	persons *PersonService,
	trees *FamilyTreeService,
	engine *ConsistencyEngine,
	logger *zap.Logger,
) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		registry: reg,
		persons:  persons,
		trees:    trees,
		engine:   engine,
		logger:   logger.Named("import"),
	}
}

// validRow is a raw row whose type and attributes parsed.
type validRow struct {
	raw      parsers.RawConnection
	line     int
	relType  entities.RelationType
	metadata entities.Metadata
}

// Import validates every row first, then creates the valid ones in order.
// Row failures are collected in the result; only unexpected storage errors
// abort the import.
func (s *ImportService) Import(ctx context.Context, rows []parsers.RawConnection, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{}

	valid, validationErrors := s.validateRows(rows)
	result.Errors = validationErrors

	if opts.DryRun || len(valid) == 0 {
		if opts.DryRun {
			result.Imported = len(valid)
		}
		return result, nil
	}

	for i := range valid {
		if err := s.importRow(ctx, &valid[i], opts, result); err != nil {
			return nil, err
		}
	}

	s.logger.Info("import finished",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// validateRows validates raw rows and returns valid ones with any errors.
func (s *ImportService) validateRows(rows []parsers.RawConnection) ([]validRow, []ImportError) {
	valid := make([]validRow, 0, len(rows))
	var errs []ImportError

	for i := range rows {
		raw := &rows[i]
		line := raw.LineNum
		if line == 0 {
			line = i + 1
		}

		row, err := s.validateRow(raw, line)
		if err != nil {
			errs = append(errs, *err)
			continue
		}
		valid = append(valid, row)
	}

	return valid, errs
}

func (s *ImportService) validateRow(raw *parsers.RawConnection, line int) (validRow, *ImportError) {
	if raw.From == "" {
		return validRow{}, &ImportError{Line: line, Field: "from", Message: "missing required field: from"}
	}
	if raw.To == "" {
		return validRow{}, &ImportError{Line: line, Field: "to", Message: "missing required field: to"}
	}
	if raw.Type == "" {
		return validRow{}, &ImportError{Line: line, Field: "type", Message: "missing required field: type"}
	}

	relType, err := s.registry.Parse(raw.Type)
	if err != nil {
		return validRow{}, &ImportError{Line: line, Field: "type", Value: raw.Type, Message: err.Error()}
	}

	attrs := make([]entities.Attribute, 0, len(raw.Attributes))
	for _, a := range raw.Attributes {
		attr, err := entities.ParseAttribute(a)
		if err != nil {
			return validRow{}, &ImportError{Line: line, Field: "attributes", Value: a, Message: err.Error()}
		}
		attrs = append(attrs, attr)
	}

	return validRow{
		raw:      *raw,
		line:     line,
		relType:  relType,
		metadata: entities.NewMetadata(attrs...),
	}, nil
}

// importRow resolves the row's persons and tree and creates the connection.
func (s *ImportService) importRow(ctx context.Context, row *validRow, opts ImportOptions, result *ImportResult) error {
	from, created, err := s.persons.FindOrCreate(ctx, row.raw.From)
	if err != nil {
		return s.rowFailure(row, "from", err, result)
	}
	if created {
		result.PersonsCreated++
	}
	to, created, err := s.persons.FindOrCreate(ctx, row.raw.To)
	if err != nil {
		return s.rowFailure(row, "to", err, result)
	}
	if created {
		result.PersonsCreated++
	}

	var treeID string
	if name := firstNonEmpty(row.raw.Tree, opts.Tree); name != "" {
		tree, err := s.trees.FindOrCreate(ctx, name)
		if err != nil {
			return s.rowFailure(row, "tree", err, result)
		}
		treeID = tree.ID
		for _, p := range []string{from.ID, to.ID} {
			if err := s.trees.AddMember(ctx, treeID, p); err != nil {
				return err
			}
		}
	}

	_, err = s.engine.CreateWithReciprocal(ctx, ConnectionInput{
		FromPersonID: from.ID,
		ToPersonID:   to.ID,
		Type:         row.relType,
		FamilyTreeID: treeID,
		Notes:        row.raw.Notes,
		Metadata:     row.metadata,
	})
	switch {
	case err == nil:
		result.Imported++
	case errors.Is(err, apperrors.ErrDuplicateConnection) && opts.OnConflict != ConflictFail:
		result.Skipped++
	default:
		return s.rowFailure(row, "", err, result)
	}
	return nil
}

// rowFailure records domain errors against the row and returns anything
// else so the import stops.
func (s *ImportService) rowFailure(row *validRow, field string, err error, result *ImportResult) error {
	if errors.Is(err, apperrors.ErrStorage) || errors.Is(err, apperrors.ErrUnauthenticated) {
		return fmt.Errorf("line %d: %w", row.line, err)
	}
	result.Errors = append(result.Errors, ImportError{
		Line:    row.line,
		Field:   field,
		Message: err.Error(),
	})
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
