package materials

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/data/repos/repoerr"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

type FileRepo interface {
	Create(dbc dbctx.Context, file *types.File) (*types.File, error)
	GetByID(dbc dbctx.Context, ownerUserID, id uuid.UUID) (*types.File, error)
	GetByIDs(dbc dbctx.Context, ownerUserID uuid.UUID, ids []uuid.UUID) ([]*types.File, error)
	ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*types.File, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, to types.Status) error
	MarkFailed(dbc dbctx.Context, id uuid.UUID, stage, reason string) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, ownerUserID, id uuid.UUID) error
}

type fileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileRepo(db *gorm.DB, baseLog *logger.Logger) FileRepo {
	return &fileRepo{
		db:  db,
		log: baseLog.With("repo", "FileRepo"),
	}
}

func (r *fileRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *fileRepo) Create(dbc dbctx.Context, file *types.File) (*types.File, error) {
	if file == nil {
		return nil, fmt.Errorf("file repo create: %w", apperrors.ErrInvalidArgument)
	}
	if file.Status == "" {
		file.Status = types.StatusUploaded
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(file).Error; err != nil {
		return nil, repoerr.Map("file repo create", err)
	}
	return file, nil
}

func (r *fileRepo) GetByID(dbc dbctx.Context, ownerUserID, id uuid.UUID) (*types.File, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("file repo get: %w", apperrors.ErrInvalidArgument)
	}
	var file types.File
	q := r.handle(dbc).WithContext(dbc.Ctx).Where("id = ?", id)
	if ownerUserID != uuid.Nil {
		q = q.Where("owner_user_id = ?", ownerUserID)
	}
	err := q.Limit(1).Find(&file).Error
	if err != nil {
		return nil, repoerr.Map("file repo get", err)
	}
	if file.ID == uuid.Nil {
		return nil, fmt.Errorf("file repo get: %w", apperrors.ErrNotFound)
	}
	return &file, nil
}

func (r *fileRepo) GetByIDs(dbc dbctx.Context, ownerUserID uuid.UUID, ids []uuid.UUID) ([]*types.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []*types.File
	q := r.handle(dbc).WithContext(dbc.Ctx).Where("id IN ?", ids)
	if ownerUserID != uuid.Nil {
		q = q.Where("owner_user_id = ?", ownerUserID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, repoerr.Map("file repo get by ids", err)
	}
	return out, nil
}

func (r *fileRepo) ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*types.File, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("file repo list: %w", apperrors.ErrInvalidArgument)
	}
	var out []*types.File
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("owner_user_id = ?", ownerUserID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, repoerr.Map("file repo list", err)
	}
	return out, nil
}

// UpdateStatus performs a validated, compare-and-set move. It reads the
// current status, checks the transition table, and updates with the old
// status in the WHERE clause so a concurrent writer cannot slip a regression
// through. Illegal transitions return ErrConflict.
func (r *fileRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, to types.Status) error {
	if id == uuid.Nil || !to.Valid() {
		return fmt.Errorf("file repo update status: %w", apperrors.ErrInvalidArgument)
	}
	h := r.handle(dbc).WithContext(dbc.Ctx)
	return h.Transaction(func(txx *gorm.DB) error {
		var cur types.File
		if err := txx.Select("id", "status").Where("id = ?", id).Limit(1).Find(&cur).Error; err != nil {
			return repoerr.Map("file repo update status", err)
		}
		if cur.ID == uuid.Nil {
			return fmt.Errorf("file repo update status: %w", apperrors.ErrNotFound)
		}
		if !types.CanTransition(cur.Status, to) {
			return fmt.Errorf("file repo update status: %q -> %q: %w", cur.Status, to, apperrors.ErrConflict)
		}
		updates := map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		}
		if to == types.StatusExtracting {
			// Reprocess entry point: clear the previous failure record.
			updates["failure_stage"] = ""
			updates["failure_reason"] = ""
		}
		res := txx.Model(&types.File{}).
			Where("id = ? AND status = ?", id, cur.Status).
			Updates(updates)
		if res.Error != nil {
			return repoerr.Map("file repo update status", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("file repo update status: lost race on %q: %w", cur.Status, apperrors.ErrConflict)
		}
		return nil
	})
}

// MarkFailed jumps the file to the terminal failed state and records where
// and why. Already-terminal files are left alone.
func (r *fileRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, stage, reason string) error {
	if id == uuid.Nil {
		return fmt.Errorf("file repo mark failed: %w", apperrors.ErrInvalidArgument)
	}
	if len(reason) > 2000 {
		reason = reason[:2000]
	}
	res := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.File{}).
		Where("id = ? AND status NOT IN ?", id, []types.Status{types.StatusProcessed, types.StatusFailed}).
		Updates(map[string]interface{}{
			"status":         types.StatusFailed,
			"failure_stage":  stage,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return repoerr.Map("file repo mark failed", res.Error)
	}
	return nil
}

func (r *fileRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	if _, ok := updates["status"]; ok {
		return fmt.Errorf("file repo update fields: status goes through UpdateStatus: %w", apperrors.ErrInvalidArgument)
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&types.File{}).
		Where("id = ?", id).
		Updates(updates).Error
	return repoerr.Map("file repo update fields", err)
}

func (r *fileRepo) Delete(dbc dbctx.Context, ownerUserID, id uuid.UUID) error {
	if ownerUserID == uuid.Nil || id == uuid.Nil {
		return fmt.Errorf("file repo delete: %w", apperrors.ErrInvalidArgument)
	}
	res := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		Delete(&types.File{})
	if res.Error != nil {
		return repoerr.Map("file repo delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("file repo delete: %w", apperrors.ErrNotFound)
	}
	return nil
}
