package app

import (
	"gorm.io/gorm"

	jobrepos "github.com/yungbote/studypath-backend/internal/data/repos/jobs"
	learningrepos "github.com/yungbote/studypath-backend/internal/data/repos/learning"
	materialrepos "github.com/yungbote/studypath-backend/internal/data/repos/materials"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

type Repos struct {
	Files    materialrepos.FileRepo
	Segments materialrepos.SegmentRepo
	Chunks   materialrepos.ChunkRepo

	Concepts   learningrepos.ConceptRepo
	Flashcards learningrepos.FlashcardRepo
	Quiz       learningrepos.QuizQuestionRepo

	Jobs jobrepos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Files:      materialrepos.NewFileRepo(db, log),
		Segments:   materialrepos.NewSegmentRepo(db, log),
		Chunks:     materialrepos.NewChunkRepo(db, log),
		Concepts:   learningrepos.NewConceptRepo(db, log),
		Flashcards: learningrepos.NewFlashcardRepo(db, log),
		Quiz:       learningrepos.NewQuizQuestionRepo(db, log),
		Jobs:       jobrepos.NewJobRunRepo(db, log),
	}
}
