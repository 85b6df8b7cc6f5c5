package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	learningrepos "github.com/yungbote/studypath-backend/internal/data/repos/learning"
	materialrepos "github.com/yungbote/studypath-backend/internal/data/repos/materials"
	"github.com/yungbote/studypath-backend/internal/domain/learning"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

// ProductsService reads the study products a file's ingest run generated.
type ProductsService interface {
	ListFlashcards(ctx context.Context, ownerUserID, fileID uuid.UUID) ([]*learning.Flashcard, error)
	ListQuizQuestions(ctx context.Context, ownerUserID, fileID uuid.UUID) ([]*learning.QuizQuestion, error)
}

type productsService struct {
	log        *logger.Logger
	files      materialrepos.FileRepo
	flashcards learningrepos.FlashcardRepo
	quiz       learningrepos.QuizQuestionRepo
}

var _ ProductsService = (*productsService)(nil)

func NewProductsService(
	baseLog *logger.Logger,
	files materialrepos.FileRepo,
	flashcards learningrepos.FlashcardRepo,
	quiz learningrepos.QuizQuestionRepo,
) ProductsService {
	return &productsService{
		log:        baseLog.With("service", "ProductsService"),
		files:      files,
		flashcards: flashcards,
		quiz:       quiz,
	}
}

func (s *productsService) ListFlashcards(ctx context.Context, ownerUserID, fileID uuid.UUID) ([]*learning.Flashcard, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.files.GetByID(dbc, ownerUserID, fileID); err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}
	cards, err := s.flashcards.ListByFile(dbc, fileID)
	if err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}
	return cards, nil
}

func (s *productsService) ListQuizQuestions(ctx context.Context, ownerUserID, fileID uuid.UUID) ([]*learning.QuizQuestion, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.files.GetByID(dbc, ownerUserID, fileID); err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}
	questions, err := s.quiz.ListByFile(dbc, fileID)
	if err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}
	return questions, nil
}
