package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studypath-backend/internal/data/graph"
	jobrepos "github.com/yungbote/studypath-backend/internal/data/repos/jobs"
	learningrepos "github.com/yungbote/studypath-backend/internal/data/repos/learning"
	materialrepos "github.com/yungbote/studypath-backend/internal/data/repos/materials"
	jobtypes "github.com/yungbote/studypath-backend/internal/domain/jobs"
	"github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/ingestion/extractor"
	"github.com/yungbote/studypath-backend/internal/modules/learning/steps"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/gcp"
	"github.com/yungbote/studypath-backend/internal/platform/neo4jdb"
	"github.com/yungbote/studypath-backend/internal/platform/qdrant"
	"github.com/yungbote/studypath-backend/internal/platform/youtube"
)

// IngestInput registers one material. Exactly one of SourceURI (link
// registration) or Content (upload) must be set.
type IngestInput struct {
	OwnerUserID        uuid.UUID
	DisplayName        string
	SourceURI          string
	MimeType           string
	SizeBytes          int64
	Language           string
	ComprehensionLevel string
	Content            io.Reader
}

// IngestResult is the registered file plus the queued run that will
// process it.
type IngestResult struct {
	File *materials.File  `json:"file"`
	Job  *jobtypes.JobRun `json:"job"`
}

// FileDetail pairs a file with its most recent ingest run, when one exists.
type FileDetail struct {
	File *materials.File  `json:"file"`
	Job  *jobtypes.JobRun `json:"job,omitempty"`
}

type FileService interface {
	Ingest(ctx context.Context, in IngestInput) (*IngestResult, error)
	Reprocess(ctx context.Context, ownerUserID, fileID uuid.UUID) (*IngestResult, error)
	Get(ctx context.Context, ownerUserID, fileID uuid.UUID) (*FileDetail, error)
	List(ctx context.Context, ownerUserID uuid.UUID) ([]*materials.File, error)
	Delete(ctx context.Context, ownerUserID, fileID uuid.UUID) error
}

type fileService struct {
	db         *gorm.DB
	log        *logger.Logger
	bucket     gcp.BucketService
	vec        qdrant.VectorStore
	graph      *neo4jdb.Client
	files      materialrepos.FileRepo
	segments   materialrepos.SegmentRepo
	chunks     materialrepos.ChunkRepo
	concepts   learningrepos.ConceptRepo
	flashcards learningrepos.FlashcardRepo
	quiz       learningrepos.QuizQuestionRepo
	jobs       jobrepos.JobRunRepo
}

var _ FileService = (*fileService)(nil)

func NewFileService(
	db *gorm.DB,
	baseLog *logger.Logger,
	bucket gcp.BucketService,
	vec qdrant.VectorStore,
	graphClient *neo4jdb.Client,
	files materialrepos.FileRepo,
	segments materialrepos.SegmentRepo,
	chunks materialrepos.ChunkRepo,
	concepts learningrepos.ConceptRepo,
	flashcards learningrepos.FlashcardRepo,
	quiz learningrepos.QuizQuestionRepo,
	jobs jobrepos.JobRunRepo,
) FileService {
	return &fileService{
		db:         db,
		log:        baseLog.With("service", "FileService"),
		bucket:     bucket,
		vec:        vec,
		graph:      graphClient,
		files:      files,
		segments:   segments,
		chunks:     chunks,
		concepts:   concepts,
		flashcards: flashcards,
		quiz:       quiz,
		jobs:       jobs,
	}
}

// Ingest registers the material and queues its ingest run in one
// transaction, so a visible file always has a run coming. Uploads land in
// object storage before the row exists; the object is removed again if the
// transaction fails.
func (s *fileService) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if in.OwnerUserID == uuid.Nil {
		s.log.Warn("ingest without owner")
		return nil, fmt.Errorf("ingest: missing owner: %w", apperrors.ErrUnauthorized)
	}

	file := &materials.File{
		ID:                 uuid.New(),
		OwnerUserID:        in.OwnerUserID,
		DisplayName:        strings.TrimSpace(in.DisplayName),
		Status:             materials.StatusUploaded,
		Language:           strings.TrimSpace(in.Language),
		ComprehensionLevel: strings.TrimSpace(in.ComprehensionLevel),
	}
	if file.Language == "" {
		file.Language = "en"
	}
	if file.ComprehensionLevel == "" {
		file.ComprehensionLevel = "intermediate"
	}

	switch {
	case strings.TrimSpace(in.SourceURI) != "":
		videoID, err := youtube.ParseVideoID(in.SourceURI)
		if err != nil {
			s.log.Warn("unsupported source uri", "uri", in.SourceURI, "error", err.Error())
			return nil, fmt.Errorf("ingest: %v: %w", err, apperrors.ErrInvalidArgument)
		}
		file.SourceKind = materials.SourceKindYouTube
		file.SourceURI = strings.TrimSpace(in.SourceURI)
		if file.DisplayName == "" {
			file.DisplayName = "YouTube " + videoID
		}

	case in.Content != nil:
		br := bufio.NewReader(in.Content)
		head, _ := br.Peek(512)
		kind, err := extractor.ClassifyKind(in.DisplayName, in.MimeType, head)
		if err != nil {
			s.log.Warn("unsupported upload", "name", in.DisplayName, "mime", in.MimeType, "error", err.Error())
			return nil, err
		}
		file.SourceKind = kind
		file.MimeType = strings.TrimSpace(in.MimeType)
		file.SizeBytes = in.SizeBytes
		if file.DisplayName == "" {
			file.DisplayName = "upload"
		}
		file.StorageKey = fmt.Sprintf("materials/%s/%s/%s", in.OwnerUserID, file.ID, safeObjectName(in.DisplayName))
		if err := s.bucket.Upload(ctx, gcp.BucketCategoryMaterial, file.StorageKey, br); err != nil {
			s.log.Error("upload to object storage failed", "file_id", file.ID, "error", err.Error())
			return nil, fmt.Errorf("ingest: store upload: %w", err)
		}

	default:
		return nil, fmt.Errorf("ingest: neither upload content nor source uri given: %w", apperrors.ErrInvalidArgument)
	}

	var job *jobtypes.JobRun
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		created, err := s.files.Create(dbc, file)
		if err != nil {
			return err
		}
		file = created
		job, err = s.enqueueIngest(dbc, file)
		return err
	})
	if txErr != nil {
		if file.StorageKey != "" {
			if dErr := s.bucket.Delete(ctx, gcp.BucketCategoryMaterial, file.StorageKey); dErr != nil {
				s.log.Warn("orphaned upload cleanup failed", "storage_key", file.StorageKey, "error", dErr.Error())
			}
		}
		s.log.Error("ingest registration failed", "file_id", file.ID, "error", txErr.Error())
		return nil, fmt.Errorf("ingest: register file: %w", txErr)
	}

	s.log.Info("file registered", "file_id", file.ID, "kind", file.SourceKind, "job_id", job.ID)
	return &IngestResult{File: file, Job: job}, nil
}

// Reprocess wipes everything a previous run derived from the file, except
// concepts the user authored or edited, and queues a fresh run. Files with a
// run still queued or live are rejected, as are files a run currently holds
// mid-stage.
func (s *fileService) Reprocess(ctx context.Context, ownerUserID, fileID uuid.UUID) (*IngestResult, error) {
	read := dbctx.Context{Ctx: ctx}
	file, err := s.files.GetByID(read, ownerUserID, fileID)
	if err != nil {
		return nil, fmt.Errorf("reprocess: load file: %w", err)
	}

	runnable, err := s.jobs.HasRunnableForEntity(read, ownerUserID, jobtypes.EntityTypeFile, fileID, jobtypes.JobTypeIngestFile)
	if err != nil {
		return nil, fmt.Errorf("reprocess: check runs: %w", err)
	}
	if runnable {
		return nil, fmt.Errorf("reprocess: a run is already queued or live for file %s: %w", fileID, apperrors.ErrConflict)
	}
	if !materials.CanTransition(file.Status, materials.StatusExtracting) {
		return nil, fmt.Errorf("reprocess: file %s is mid-run in status %s: %w", fileID, file.Status, apperrors.ErrConflict)
	}

	var vectorIDs []string
	var job *jobtypes.JobRun
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		var err error
		vectorIDs, err = s.collectVectorIDs(dbc, fileID)
		if err != nil {
			return err
		}
		if err := s.flashcards.DeleteByFile(dbc, fileID); err != nil {
			return err
		}
		if err := s.quiz.DeleteByFile(dbc, fileID); err != nil {
			return err
		}
		if err := s.concepts.DeleteEdgesByFile(dbc, fileID); err != nil {
			return err
		}
		if err := s.concepts.DeleteGeneratedByFile(dbc, fileID); err != nil {
			return err
		}
		if err := s.chunks.DeleteByFile(dbc, fileID); err != nil {
			return err
		}
		if err := s.segments.DeleteByFile(dbc, fileID); err != nil {
			return err
		}
		if err := s.files.UpdateStatus(dbc, fileID, materials.StatusExtracting); err != nil {
			return err
		}
		job, err = s.enqueueIngest(dbc, file)
		return err
	})
	if txErr != nil {
		s.log.Error("reprocess reset failed", "file_id", fileID, "error", txErr.Error())
		return nil, fmt.Errorf("reprocess: reset file: %w", txErr)
	}

	s.cleanupDerivedStores(ctx, ownerUserID, fileID, vectorIDs)

	reloaded, err := s.files.GetByID(read, ownerUserID, fileID)
	if err != nil {
		reloaded = file
	}
	s.log.Info("file reprocess queued", "file_id", fileID, "job_id", job.ID)
	return &IngestResult{File: reloaded, Job: job}, nil
}

func (s *fileService) Get(ctx context.Context, ownerUserID, fileID uuid.UUID) (*FileDetail, error) {
	read := dbctx.Context{Ctx: ctx}
	file, err := s.files.GetByID(read, ownerUserID, fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	job, err := s.jobs.GetLatestByEntity(read, ownerUserID, jobtypes.EntityTypeFile, fileID, jobtypes.JobTypeIngestFile)
	if err != nil {
		s.log.Warn("latest run lookup failed", "file_id", fileID, "error", err.Error())
		job = nil
	}
	return &FileDetail{File: file, Job: job}, nil
}

func (s *fileService) List(ctx context.Context, ownerUserID uuid.UUID) ([]*materials.File, error) {
	files, err := s.files.ListByOwner(dbctx.Context{Ctx: ctx}, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// Delete removes the file and everything derived from it, custom concepts
// included. Object storage, vectors and the graph are cleaned up after the
// commit; failures there are logged, not surfaced, since the rows are gone.
func (s *fileService) Delete(ctx context.Context, ownerUserID, fileID uuid.UUID) error {
	read := dbctx.Context{Ctx: ctx}
	file, err := s.files.GetByID(read, ownerUserID, fileID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}

	runnable, err := s.jobs.HasRunnableForEntity(read, ownerUserID, jobtypes.EntityTypeFile, fileID, jobtypes.JobTypeIngestFile)
	if err != nil {
		return fmt.Errorf("delete file: check runs: %w", err)
	}
	if runnable {
		return fmt.Errorf("delete file: a run is queued or live for file %s: %w", fileID, apperrors.ErrConflict)
	}

	var vectorIDs []string
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		var err error
		vectorIDs, err = s.collectVectorIDs(dbc, fileID)
		if err != nil {
			return err
		}
		if err := s.flashcards.DeleteByFile(dbc, fileID); err != nil {
			return err
		}
		if err := s.quiz.DeleteByFile(dbc, fileID); err != nil {
			return err
		}
		if err := s.concepts.DeleteEdgesByFile(dbc, fileID); err != nil {
			return err
		}
		if err := s.concepts.DeleteByFile(dbc, fileID); err != nil {
			return err
		}
		if err := s.chunks.DeleteByFile(dbc, fileID); err != nil {
			return err
		}
		if err := s.segments.DeleteByFile(dbc, fileID); err != nil {
			return err
		}
		return s.files.Delete(dbc, ownerUserID, fileID)
	})
	if txErr != nil {
		s.log.Error("file delete failed", "file_id", fileID, "error", txErr.Error())
		return fmt.Errorf("delete file: %w", txErr)
	}

	if file.StorageKey != "" {
		prefix := fmt.Sprintf("materials/%s/%s/", ownerUserID, fileID)
		if dErr := s.bucket.DeletePrefix(ctx, gcp.BucketCategoryMaterial, prefix); dErr != nil {
			s.log.Warn("object storage cleanup failed", "file_id", fileID, "error", dErr.Error())
		}
	}
	s.cleanupDerivedStores(ctx, ownerUserID, fileID, vectorIDs)

	s.log.Info("file deleted", "file_id", fileID)
	return nil
}

func (s *fileService) enqueueIngest(dbc dbctx.Context, file *materials.File) (*jobtypes.JobRun, error) {
	payload, err := json.Marshal(map[string]any{"file_id": file.ID.String()})
	if err != nil {
		return nil, err
	}
	entityID := file.ID
	rows, err := s.jobs.Create(dbc, []*jobtypes.JobRun{{
		OwnerUserID: file.OwnerUserID,
		JobType:     jobtypes.JobTypeIngestFile,
		EntityType:  jobtypes.EntityTypeFile,
		EntityID:    &entityID,
		Status:      jobtypes.JobStatusQueued,
		Payload:     datatypes.JSON(payload),
	}})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

func (s *fileService) collectVectorIDs(dbc dbctx.Context, fileID uuid.UUID) ([]string, error) {
	chunks, err := s.chunks.ListByFile(dbc, fileID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		if ch.VectorID != "" {
			ids = append(ids, ch.VectorID)
		}
	}
	return ids, nil
}

// cleanupDerivedStores drops the file's vector points and graph nodes after
// the owning rows are gone. The graph upsert only merges, so without this a
// reprocess would leave stale generated nodes behind.
func (s *fileService) cleanupDerivedStores(ctx context.Context, ownerUserID, fileID uuid.UUID, vectorIDs []string) {
	if s.vec != nil && len(vectorIDs) > 0 {
		ns := steps.ChunksNamespace(ownerUserID)
		if err := s.vec.DeleteIDs(ctx, ns, vectorIDs); err != nil {
			s.log.Warn("vector cleanup failed", "file_id", fileID, "count", len(vectorIDs), "error", err.Error())
		}
	}
	if err := graph.DeleteFileConceptGraph(ctx, s.graph, s.log, fileID); err != nil {
		s.log.Warn("graph cleanup failed", "file_id", fileID, "error", err.Error())
	}
}

// safeObjectName flattens a user-supplied name into one storage-safe path
// segment.
func safeObjectName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		return "source"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "source"
	}
	return out
}
