package ingest_file

import (
	"gorm.io/gorm"

	learningrepos "github.com/yungbote/studypath-backend/internal/data/repos/learning"
	materialrepos "github.com/yungbote/studypath-backend/internal/data/repos/materials"
	jobtypes "github.com/yungbote/studypath-backend/internal/domain/jobs"
	"github.com/yungbote/studypath-backend/internal/ingestion/extractor"
	"github.com/yungbote/studypath-backend/internal/jobs/runtime"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/neo4jdb"
	"github.com/yungbote/studypath-backend/internal/platform/openai"
	"github.com/yungbote/studypath-backend/internal/platform/qdrant"
)

// Pipeline drives one file through extraction, chunking, embedding, storage
// and generation. Stages run strictly in order; the file's status row is the
// single source of truth for where a run stands.
type Pipeline struct {
	db         *gorm.DB
	log        *logger.Logger
	files      materialrepos.FileRepo
	segments   materialrepos.SegmentRepo
	chunks     materialrepos.ChunkRepo
	concepts   learningrepos.ConceptRepo
	flashcards learningrepos.FlashcardRepo
	quiz       learningrepos.QuizQuestionRepo
	extract    extractor.Deps
	ai         openai.Client
	vec        qdrant.VectorStore
	graph      *neo4jdb.Client
	notify     runtime.Notifier
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	files materialrepos.FileRepo,
	segments materialrepos.SegmentRepo,
	chunks materialrepos.ChunkRepo,
	concepts learningrepos.ConceptRepo,
	flashcards learningrepos.FlashcardRepo,
	quiz learningrepos.QuizQuestionRepo,
	extract extractor.Deps,
	ai openai.Client,
	vec qdrant.VectorStore,
	graph *neo4jdb.Client,
	notify runtime.Notifier,
) *Pipeline {
	return &Pipeline{
		db:         db,
		log:        baseLog.With("job", jobtypes.JobTypeIngestFile),
		files:      files,
		segments:   segments,
		chunks:     chunks,
		concepts:   concepts,
		flashcards: flashcards,
		quiz:       quiz,
		extract:    extract,
		ai:         ai,
		vec:        vec,
		graph:      graph,
		notify:     notify,
	}
}

func (p *Pipeline) Type() string { return jobtypes.JobTypeIngestFile }
