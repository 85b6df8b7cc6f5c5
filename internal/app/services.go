package app

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/studypath-backend/internal/ingestion/extractor"
	"github.com/yungbote/studypath-backend/internal/jobs/pipeline/ingest_file"
	jobruntime "github.com/yungbote/studypath-backend/internal/jobs/runtime"
	"github.com/yungbote/studypath-backend/internal/jobs/worker"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/services"
)

type Services struct {
	File     services.FileService
	Concept  services.ConceptService
	Products services.ProductsService
	Answer   services.AnswerService

	Notifier *services.Notifier

	JobRegistry *jobruntime.Registry
	JobWorker   *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	notifier := services.NewNotifier(log, clients.Bus)

	fileService := services.NewFileService(
		db, log,
		clients.Bucket,
		clients.Vec,
		clients.Graph,
		repos.Files,
		repos.Segments,
		repos.Chunks,
		repos.Concepts,
		repos.Flashcards,
		repos.Quiz,
		repos.Jobs,
	)
	conceptService := services.NewConceptService(db, log, clients.Graph, repos.Files, repos.Concepts)
	productsService := services.NewProductsService(log, repos.Files, repos.Flashcards, repos.Quiz)
	answerService := services.NewAnswerService(log, clients.OpenAI, clients.Vec, clients.Web, repos.Chunks, repos.Files)

	extractDeps := extractor.Deps{
		Log:            log,
		Bucket:         clients.Bucket,
		DocAI:          clients.DocAI,
		Vision:         clients.Vision,
		Speech:         clients.Speech,
		Video:          clients.Video,
		YouTube:        clients.YouTube,
		Media:          clients.Media,
		ASRTimeout:     envutil.Seconds("ASR_TIMEOUT_SECONDS", 300*time.Second),
		MaxOCRPages:    envutil.Int("OCR_MAX_PAGES", 25),
		MaxObjectBytes: int64(envutil.Int("EXTRACT_MAX_OBJECT_MB", 50)) << 20,
	}

	registry := jobruntime.NewRegistry()
	ingest := ingest_file.New(
		db, log,
		repos.Files,
		repos.Segments,
		repos.Chunks,
		repos.Concepts,
		repos.Flashcards,
		repos.Quiz,
		extractDeps,
		clients.OpenAI,
		clients.Vec,
		clients.Graph,
		notifier,
	)
	if err := registry.Register(ingest); err != nil {
		return Services{}, err
	}

	jobWorker := worker.NewWorker(db, log, repos.Jobs, registry, notifier)

	return Services{
		File:        fileService,
		Concept:     conceptService,
		Products:    productsService,
		Answer:      answerService,
		Notifier:    notifier,
		JobRegistry: registry,
		JobWorker:   jobWorker,
	}, nil
}
