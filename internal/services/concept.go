package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studypath-backend/internal/data/graph"
	learningrepos "github.com/yungbote/studypath-backend/internal/data/repos/learning"
	materialrepos "github.com/yungbote/studypath-backend/internal/data/repos/materials"
	"github.com/yungbote/studypath-backend/internal/domain/learning"
	"github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/modules/learning/steps"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/neo4jdb"
)

// ConceptList is one file's concepts, with edges when the caller asked for
// them.
type ConceptList struct {
	Concepts []*learning.Concept     `json:"concepts"`
	Edges    []*learning.ConceptEdge `json:"edges,omitempty"`
}

// CreateConceptInput is a user-authored concept. The locator is optional;
// when present it must match the file's source kind, a page for documents or
// a time window for video.
type CreateConceptInput struct {
	FileID      uuid.UUID
	Title       string
	Explanation string
	Page        *int
	StartSec    *float64
	EndSec      *float64
}

// UpdateConceptInput patches a concept. Nil fields are left alone; providing
// any locator field replaces the whole locator.
type UpdateConceptInput struct {
	Title       *string
	Explanation *string
	Page        *int
	StartSec    *float64
	EndSec      *float64
}

type ConceptService interface {
	List(ctx context.Context, ownerUserID, fileID uuid.UUID, includeEdges bool) (*ConceptList, error)
	CreateCustom(ctx context.Context, ownerUserID uuid.UUID, in CreateConceptInput) (*learning.Concept, error)
	Update(ctx context.Context, ownerUserID, conceptID uuid.UUID, in UpdateConceptInput) (*learning.Concept, error)
	Delete(ctx context.Context, ownerUserID, conceptID uuid.UUID) error
}

type conceptService struct {
	db       *gorm.DB
	log      *logger.Logger
	graph    *neo4jdb.Client
	files    materialrepos.FileRepo
	concepts learningrepos.ConceptRepo
}

var _ ConceptService = (*conceptService)(nil)

func NewConceptService(
	db *gorm.DB,
	baseLog *logger.Logger,
	graphClient *neo4jdb.Client,
	files materialrepos.FileRepo,
	concepts learningrepos.ConceptRepo,
) ConceptService {
	return &conceptService{
		db:       db,
		log:      baseLog.With("service", "ConceptService"),
		graph:    graphClient,
		files:    files,
		concepts: concepts,
	}
}

func (s *conceptService) List(ctx context.Context, ownerUserID, fileID uuid.UUID, includeEdges bool) (*ConceptList, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.files.GetByID(dbc, ownerUserID, fileID); err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
	}
	concepts, err := s.concepts.ListByFile(dbc, fileID)
	if err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
	}
	out := &ConceptList{Concepts: concepts}
	if includeEdges {
		edges, err := s.concepts.ListEdgesByFile(dbc, fileID)
		if err != nil {
			return nil, fmt.Errorf("list concept edges: %w", err)
		}
		out.Edges = edges
	}
	return out, nil
}

// CreateCustom adds a user-authored concept under the same per-file ceiling
// generation respects. Custom concepts survive reprocessing.
func (s *conceptService) CreateCustom(ctx context.Context, ownerUserID uuid.UUID, in CreateConceptInput) (*learning.Concept, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("create concept: missing owner: %w", apperrors.ErrUnauthorized)
	}
	title := strings.TrimSpace(in.Title)
	explanation := strings.TrimSpace(in.Explanation)
	if title == "" || explanation == "" {
		return nil, fmt.Errorf("create concept: title and explanation are required: %w", apperrors.ErrInvalidArgument)
	}

	dbc := dbctx.Context{Ctx: ctx}
	file, err := s.files.GetByID(dbc, ownerUserID, in.FileID)
	if err != nil {
		return nil, fmt.Errorf("create concept: %w", err)
	}
	if err := validateConceptLocator(file.SourceKind, in.Page, in.StartSec, in.EndSec); err != nil {
		return nil, fmt.Errorf("create concept: %w", err)
	}

	count, err := s.concepts.CountByFile(dbc, in.FileID)
	if err != nil {
		return nil, fmt.Errorf("create concept: %w", err)
	}
	if count >= int64(steps.ConceptCap(file.SourceKind)) {
		return nil, fmt.Errorf("create concept: file %s is at its concept limit: %w", in.FileID, apperrors.ErrConflict)
	}

	row := &learning.Concept{
		ID:          uuid.New(),
		FileID:      in.FileID,
		OwnerUserID: ownerUserID,
		Title:       title,
		Explanation: explanation,
		Page:        in.Page,
		StartSec:    in.StartSec,
		EndSec:      in.EndSec,
		IsCustom:    true,
		SortIndex:   int(count),
	}
	created, err := s.concepts.CreateBatch(dbc, []*learning.Concept{row})
	if err != nil {
		s.log.Error("custom concept create failed", "file_id", in.FileID, "error", err.Error())
		return nil, fmt.Errorf("create concept: %w", err)
	}
	s.log.Info("custom concept created", "file_id", in.FileID, "concept_id", created[0].ID)
	return created[0], nil
}

// Update patches a concept and marks it custom, which shields it from the
// wipe a reprocess performs on generated rows.
func (s *conceptService) Update(ctx context.Context, ownerUserID, conceptID uuid.UUID, in UpdateConceptInput) (*learning.Concept, error) {
	dbc := dbctx.Context{Ctx: ctx}
	concept, err := s.concepts.GetByID(dbc, ownerUserID, conceptID)
	if err != nil {
		return nil, fmt.Errorf("update concept: %w", err)
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("update concept: title cannot be blank: %w", apperrors.ErrInvalidArgument)
		}
		updates["title"] = title
	}
	if in.Explanation != nil {
		explanation := strings.TrimSpace(*in.Explanation)
		if explanation == "" {
			return nil, fmt.Errorf("update concept: explanation cannot be blank: %w", apperrors.ErrInvalidArgument)
		}
		updates["explanation"] = explanation
	}
	if in.Page != nil || in.StartSec != nil || in.EndSec != nil {
		file, err := s.files.GetByID(dbc, ownerUserID, concept.FileID)
		if err != nil {
			return nil, fmt.Errorf("update concept: %w", err)
		}
		if err := validateConceptLocator(file.SourceKind, in.Page, in.StartSec, in.EndSec); err != nil {
			return nil, fmt.Errorf("update concept: %w", err)
		}
		updates["page"] = in.Page
		updates["start_sec"] = in.StartSec
		updates["end_sec"] = in.EndSec
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("update concept: nothing to update: %w", apperrors.ErrInvalidArgument)
	}
	updates["is_custom"] = true

	if err := s.concepts.UpdateFields(dbc, ownerUserID, conceptID, updates); err != nil {
		s.log.Error("concept update failed", "concept_id", conceptID, "error", err.Error())
		return nil, fmt.Errorf("update concept: %w", err)
	}
	updated, err := s.concepts.GetByID(dbc, ownerUserID, conceptID)
	if err != nil {
		return nil, fmt.Errorf("update concept: reload: %w", err)
	}
	return updated, nil
}

// Delete removes a concept along with every edge touching it, then drops its
// graph node. Works on generated and custom concepts alike.
func (s *conceptService) Delete(ctx context.Context, ownerUserID, conceptID uuid.UUID) error {
	read := dbctx.Context{Ctx: ctx}
	if _, err := s.concepts.GetByID(read, ownerUserID, conceptID); err != nil {
		return fmt.Errorf("delete concept: %w", err)
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.concepts.DeleteEdgesByConcept(dbc, conceptID); err != nil {
			return err
		}
		return s.concepts.Delete(dbc, ownerUserID, conceptID)
	})
	if txErr != nil {
		s.log.Error("concept delete failed", "concept_id", conceptID, "error", txErr.Error())
		return fmt.Errorf("delete concept: %w", txErr)
	}

	if err := graph.DeleteConceptNode(ctx, s.graph, s.log, conceptID); err != nil {
		s.log.Warn("graph node cleanup failed", "concept_id", conceptID, "error", err.Error())
	}
	s.log.Info("concept deleted", "concept_id", conceptID)
	return nil
}

// validateConceptLocator checks a locator against the file's source kind.
// Documents take a page, time-coded sources take a start/end window, never
// both, and a window needs both ends in order.
func validateConceptLocator(kind materials.SourceKind, page *int, startSec, endSec *float64) error {
	hasPage := page != nil
	hasTime := startSec != nil || endSec != nil
	if hasPage && hasTime {
		return fmt.Errorf("locator cannot carry both a page and a time window: %w", apperrors.ErrInvalidArgument)
	}
	if hasPage {
		if kind.IsTimeCoded() {
			return fmt.Errorf("page locator on a time-coded source: %w", apperrors.ErrInvalidArgument)
		}
		if *page < 1 {
			return fmt.Errorf("page must be positive: %w", apperrors.ErrInvalidArgument)
		}
	}
	if hasTime {
		if !kind.IsTimeCoded() {
			return fmt.Errorf("time window locator on a paged source: %w", apperrors.ErrInvalidArgument)
		}
		if startSec == nil || endSec == nil {
			return fmt.Errorf("time window needs both start and end: %w", apperrors.ErrInvalidArgument)
		}
		if *startSec < 0 || *endSec < *startSec {
			return fmt.Errorf("time window out of order: %w", apperrors.ErrInvalidArgument)
		}
	}
	return nil
}
