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

type FlashcardRepo interface {
	CreateBatch(dbc dbctx.Context, cards []*types.Flashcard) ([]*types.Flashcard, error)
	ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.Flashcard, error)
	Delete(dbc dbctx.Context, ownerUserID, id uuid.UUID) error
	DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) error
}

type flashcardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlashcardRepo(db *gorm.DB, baseLog *logger.Logger) FlashcardRepo {
	return &flashcardRepo{
		db:  db,
		log: baseLog.With("repo", "FlashcardRepo"),
	}
}

func (r *flashcardRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *flashcardRepo) CreateBatch(dbc dbctx.Context, cards []*types.Flashcard) ([]*types.Flashcard, error) {
	if len(cards) == 0 {
		return []*types.Flashcard{}, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).CreateInBatches(&cards, 100).Error; err != nil {
		return nil, repoerr.Map("flashcard repo create", err)
	}
	return cards, nil
}

func (r *flashcardRepo) ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.Flashcard, error) {
	if fileID == uuid.Nil {
		return nil, fmt.Errorf("flashcard repo list: %w", apperrors.ErrInvalidArgument)
	}
	var out []*types.Flashcard
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("file_id = ?", fileID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, repoerr.Map("flashcard repo list", err)
	}
	return out, nil
}

func (r *flashcardRepo) Delete(dbc dbctx.Context, ownerUserID, id uuid.UUID) error {
	if ownerUserID == uuid.Nil || id == uuid.Nil {
		return fmt.Errorf("flashcard repo delete: %w", apperrors.ErrInvalidArgument)
	}
	res := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		Delete(&types.Flashcard{})
	if res.Error != nil {
		return repoerr.Map("flashcard repo delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("flashcard repo delete: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *flashcardRepo) DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) error {
	if fileID == uuid.Nil {
		return nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("file_id = ?", fileID).
		Delete(&types.Flashcard{}).Error
	return repoerr.Map("flashcard repo delete by file", err)
}

type QuizQuestionRepo interface {
	CreateBatch(dbc dbctx.Context, questions []*types.QuizQuestion) ([]*types.QuizQuestion, error)
	ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.QuizQuestion, error)
	Delete(dbc dbctx.Context, ownerUserID, id uuid.UUID) error
	DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) error
}

type quizQuestionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuizQuestionRepo {
	return &quizQuestionRepo{
		db:  db,
		log: baseLog.With("repo", "QuizQuestionRepo"),
	}
}

func (r *quizQuestionRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *quizQuestionRepo) CreateBatch(dbc dbctx.Context, questions []*types.QuizQuestion) ([]*types.QuizQuestion, error) {
	if len(questions) == 0 {
		return []*types.QuizQuestion{}, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).CreateInBatches(&questions, 100).Error; err != nil {
		return nil, repoerr.Map("quiz repo create", err)
	}
	return questions, nil
}

func (r *quizQuestionRepo) ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.QuizQuestion, error) {
	if fileID == uuid.Nil {
		return nil, fmt.Errorf("quiz repo list: %w", apperrors.ErrInvalidArgument)
	}
	var out []*types.QuizQuestion
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("file_id = ?", fileID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, repoerr.Map("quiz repo list", err)
	}
	return out, nil
}

func (r *quizQuestionRepo) Delete(dbc dbctx.Context, ownerUserID, id uuid.UUID) error {
	if ownerUserID == uuid.Nil || id == uuid.Nil {
		return fmt.Errorf("quiz repo delete: %w", apperrors.ErrInvalidArgument)
	}
	res := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		Delete(&types.QuizQuestion{})
	if res.Error != nil {
		return repoerr.Map("quiz repo delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("quiz repo delete: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *quizQuestionRepo) DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) error {
	if fileID == uuid.Nil {
		return nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("file_id = ?", fileID).
		Delete(&types.QuizQuestion{}).Error
	return repoerr.Map("quiz repo delete by file", err)
}
