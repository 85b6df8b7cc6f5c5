package learning

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studypath-backend/internal/data/repos/repoerr"
	types "github.com/yungbote/studypath-backend/internal/domain/learning"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

type ConceptRepo interface {
	CreateBatch(dbc dbctx.Context, concepts []*types.Concept) ([]*types.Concept, error)
	GetByID(dbc dbctx.Context, ownerUserID, id uuid.UUID) (*types.Concept, error)
	ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.Concept, error)
	CountByFile(dbc dbctx.Context, fileID uuid.UUID) (int64, error)
	UpdateFields(dbc dbctx.Context, ownerUserID, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, ownerUserID, id uuid.UUID) error
	DeleteGeneratedByFile(dbc dbctx.Context, fileID uuid.UUID) error
	DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) error

	CreateEdges(dbc dbctx.Context, edges []*types.ConceptEdge) error
	ListEdgesByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.ConceptEdge, error)
	DeleteEdgesByFile(dbc dbctx.Context, fileID uuid.UUID) error
	DeleteEdgesByConcept(dbc dbctx.Context, conceptID uuid.UUID) error
}

type conceptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRepo {
	return &conceptRepo{
		db:  db,
		log: baseLog.With("repo", "ConceptRepo"),
	}
}

func (r *conceptRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *conceptRepo) CreateBatch(dbc dbctx.Context, concepts []*types.Concept) ([]*types.Concept, error) {
	if len(concepts) == 0 {
		return []*types.Concept{}, nil
	}
	for _, c := range concepts {
		if c == nil || c.FileID == uuid.Nil {
			return nil, fmt.Errorf("concept repo create: missing file id: %w", apperrors.ErrInvalidArgument)
		}
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).CreateInBatches(&concepts, 100).Error; err != nil {
		return nil, repoerr.Map("concept repo create", err)
	}
	return concepts, nil
}

func (r *conceptRepo) GetByID(dbc dbctx.Context, ownerUserID, id uuid.UUID) (*types.Concept, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("concept repo get: %w", apperrors.ErrInvalidArgument)
	}
	var c types.Concept
	q := r.handle(dbc).WithContext(dbc.Ctx).Where("id = ?", id)
	if ownerUserID != uuid.Nil {
		q = q.Where("owner_user_id = ?", ownerUserID)
	}
	if err := q.Limit(1).Find(&c).Error; err != nil {
		return nil, repoerr.Map("concept repo get", err)
	}
	if c.ID == uuid.Nil {
		return nil, fmt.Errorf("concept repo get: %w", apperrors.ErrNotFound)
	}
	return &c, nil
}

func (r *conceptRepo) ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.Concept, error) {
	if fileID == uuid.Nil {
		return nil, fmt.Errorf("concept repo list: %w", apperrors.ErrInvalidArgument)
	}
	var out []*types.Concept
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("file_id = ?", fileID).
		Order("sort_index ASC, created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, repoerr.Map("concept repo list", err)
	}
	return out, nil
}

func (r *conceptRepo) CountByFile(dbc dbctx.Context, fileID uuid.UUID) (int64, error) {
	if fileID == uuid.Nil {
		return 0, nil
	}
	var count int64
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.Concept{}).
		Where("file_id = ?", fileID).
		Count(&count).Error
	if err != nil {
		return 0, repoerr.Map("concept repo count", err)
	}
	return count, nil
}

func (r *conceptRepo) UpdateFields(dbc dbctx.Context, ownerUserID, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	q := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.Concept{}).
		Where("id = ?", id)
	if ownerUserID != uuid.Nil {
		q = q.Where("owner_user_id = ?", ownerUserID)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return repoerr.Map("concept repo update", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("concept repo update: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *conceptRepo) Delete(dbc dbctx.Context, ownerUserID, id uuid.UUID) error {
	if ownerUserID == uuid.Nil || id == uuid.Nil {
		return fmt.Errorf("concept repo delete: %w", apperrors.ErrInvalidArgument)
	}
	res := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		Delete(&types.Concept{})
	if res.Error != nil {
		return repoerr.Map("concept repo delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("concept repo delete: %w", apperrors.ErrNotFound)
	}
	return nil
}

// DeleteGeneratedByFile clears pipeline output ahead of a reprocess while
// leaving user-authored concepts in place.
func (r *conceptRepo) DeleteGeneratedByFile(dbc dbctx.Context, fileID uuid.UUID) error {
	if fileID == uuid.Nil {
		return nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("file_id = ? AND is_custom = ?", fileID, false).
		Delete(&types.Concept{}).Error
	return repoerr.Map("concept repo delete generated", err)
}

// DeleteByFile removes every concept of a file, user-authored included.
// Only file deletion goes through here; reprocess uses DeleteGeneratedByFile.
func (r *conceptRepo) DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) error {
	if fileID == uuid.Nil {
		return nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("file_id = ?", fileID).
		Delete(&types.Concept{}).Error
	return repoerr.Map("concept repo delete by file", err)
}

func (r *conceptRepo) CreateEdges(dbc dbctx.Context, edges []*types.ConceptEdge) error {
	if len(edges) == 0 {
		return nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).CreateInBatches(&edges, 200).Error
	return repoerr.Map("concept repo create edges", err)
}

func (r *conceptRepo) ListEdgesByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.ConceptEdge, error) {
	if fileID == uuid.Nil {
		return nil, nil
	}
	var out []*types.ConceptEdge
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("file_id = ?", fileID).
		Find(&out).Error
	if err != nil {
		return nil, repoerr.Map("concept repo list edges", err)
	}
	return out, nil
}

func (r *conceptRepo) DeleteEdgesByFile(dbc dbctx.Context, fileID uuid.UUID) error {
	if fileID == uuid.Nil {
		return nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("file_id = ?", fileID).
		Delete(&types.ConceptEdge{}).Error
	return repoerr.Map("concept repo delete edges", err)
}

// DeleteEdgesByConcept removes edges touching one concept from either end,
// so deleting a concept never leaves dangling references.
func (r *conceptRepo) DeleteEdgesByConcept(dbc dbctx.Context, conceptID uuid.UUID) error {
	if conceptID == uuid.Nil {
		return nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("from_concept_id = ? OR to_concept_id = ?", conceptID, conceptID).
		Delete(&types.ConceptEdge{}).Error
	return repoerr.Map("concept repo delete edges by concept", err)
}
