package materials

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/data/repos/repoerr"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

type SegmentRepo interface {
	CreateBatch(dbc dbctx.Context, segments []*types.Segment) ([]*types.Segment, error)
	ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.Segment, error)
	DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) error
}

type segmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSegmentRepo(db *gorm.DB, baseLog *logger.Logger) SegmentRepo {
	return &segmentRepo{
		db:  db,
		log: baseLog.With("repo", "SegmentRepo"),
	}
}

func (r *segmentRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *segmentRepo) CreateBatch(dbc dbctx.Context, segments []*types.Segment) ([]*types.Segment, error) {
	if len(segments) == 0 {
		return []*types.Segment{}, nil
	}
	for _, seg := range segments {
		if seg == nil || seg.FileID == uuid.Nil {
			return nil, fmt.Errorf("segment repo create: missing file id: %w", apperrors.ErrInvalidArgument)
		}
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).CreateInBatches(&segments, 200).Error; err != nil {
		return nil, repoerr.Map("segment repo create", err)
	}
	return segments, nil
}

func (r *segmentRepo) ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.Segment, error) {
	if fileID == uuid.Nil {
		return nil, fmt.Errorf("segment repo list: %w", apperrors.ErrInvalidArgument)
	}
	var out []*types.Segment
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("file_id = ?", fileID).
		Order("ordinal ASC").
		Find(&out).Error
	if err != nil {
		return nil, repoerr.Map("segment repo list", err)
	}
	return out, nil
}

func (r *segmentRepo) DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) error {
	if fileID == uuid.Nil {
		return nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("file_id = ?", fileID).
		Delete(&types.Segment{}).Error
	return repoerr.Map("segment repo delete by file", err)
}
