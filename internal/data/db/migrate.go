package db

import (
	"fmt"

	jobstypes "github.com/yungbote/studypath-backend/internal/domain/jobs"
	"github.com/yungbote/studypath-backend/internal/domain/learning"
	"github.com/yungbote/studypath-backend/internal/domain/materials"
)

// AutoMigrateAll migrates every table the pipeline and API touch.
func (s *Service) AutoMigrateAll() error {
	if err := s.db.AutoMigrate(
		&materials.File{},
		&materials.Segment{},
		&materials.Chunk{},

		&learning.Concept{},
		&learning.ConceptEdge{},
		&learning.Flashcard{},
		&learning.QuizQuestion{},

		&jobstypes.JobRun{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return s.ensureIndexes()
}

// ensureIndexes adds the text-search index gorm tags cannot express.
// Postgres only; sqlite dev mode skips it and lexical search degrades.
func (s *Service) ensureIndexes() error {
	if s.db.Dialector.Name() != "postgres" {
		return nil
	}
	stmt := `CREATE INDEX IF NOT EXISTS idx_material_chunk_text_fts
		ON material_chunk USING GIN (to_tsvector('english', text));`
	if err := s.db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("fts index: %w", err)
	}
	return nil
}
