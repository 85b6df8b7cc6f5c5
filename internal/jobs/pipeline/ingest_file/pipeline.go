package ingest_file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/ingestion/chunker"
	"github.com/yungbote/studypath-backend/internal/ingestion/extractor"
	jobrt "github.com/yungbote/studypath-backend/internal/jobs/runtime"
	"github.com/yungbote/studypath-backend/internal/modules/learning/steps"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/realtime"
)

// progressFrame is what the heartbeat ticker re-emits between stage
// boundaries, so long provider calls keep the row's heartbeat fresh.
type progressFrame struct {
	mu    sync.Mutex
	stage string
	pct   int
	msg   string
}

func (f *progressFrame) set(stage string, pct int, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stage, f.pct, f.msg = stage, pct, msg
}

func (f *progressFrame) get() (string, int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stage, f.pct, f.msg
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	fileID, ok := jc.PayloadUUID("file_id")
	if !ok || fileID == uuid.Nil {
		jc.FailTerminal("validate", fmt.Errorf("missing file_id"))
		return nil
	}

	jobCtx := jc.Ctx
	cancel := func() {}
	if timeoutMin := envutil.Int("INGEST_JOB_TIMEOUT_MINUTES", 30); timeoutMin > 0 {
		jobCtx, cancel = context.WithTimeout(jc.Ctx, time.Duration(timeoutMin)*time.Minute)
	}
	defer cancel()
	dbc := dbctx.Context{Ctx: jobCtx}

	file, err := p.files.GetByID(dbc, jc.Job.OwnerUserID, fileID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			jc.FailTerminal("validate", err)
		} else {
			jc.Fail("validate", err)
		}
		return nil
	}

	frame := &progressFrame{}
	stop := make(chan struct{})
	var wg sync.WaitGroup
	var stopOnce sync.Once
	stopTicker := func() {
		stopOnce.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		hb := envutil.Seconds("INGEST_HEARTBEAT_SECONDS", 5*time.Second)
		if hb < time.Second {
			hb = time.Second
		}
		if hb > 10*time.Second {
			hb = 10 * time.Second
		}
		t := time.NewTicker(hb)
		defer t.Stop()
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-stop:
				return
			case <-t.C:
				stage, pct, msg := frame.get()
				if stage != "" {
					jc.Progress(stage, pct, msg)
				}
			}
		}
	}()
	defer stopTicker()

	fail := func(stage string, err error) {
		stopTicker()
		if mErr := p.files.MarkFailed(dbc, file.ID, stage, err.Error()); mErr != nil {
			p.log.Warn("mark failed write lost", "file_id", file.ID, "error", mErr)
		}
		p.notifyStatus(jobCtx, jc, file.ID, materials.StatusFailed)
		if terminalStage(err) {
			jc.FailTerminal(stage, err)
			return
		}
		jc.Fail(stage, err)
	}

	report := func(stage string, pct int, msg string) {
		frame.set(stage, pct, msg)
		jc.Progress(stage, pct, msg)
	}

	runStart := time.Now()
	stageStart := runStart
	prevStage := string(materials.StatusExtracting)
	advance := func(to materials.Status, pct int, msg string) error {
		if err := p.files.UpdateStatus(dbc, file.ID, to); err != nil {
			return err
		}
		p.log.Info("stage done",
			"file_id", file.ID,
			"stage", prevStage,
			"elapsed_ms", time.Since(stageStart).Milliseconds(),
		)
		prevStage = string(to)
		stageStart = time.Now()
		file.Status = to
		p.notifyStatus(jobCtx, jc, file.ID, to)
		report(string(to), pct, msg)
		return nil
	}

	// A claimed run owns the file from here. Fresh files move off uploaded;
	// a retry or reprocess restarts from a terminal state; a file a lost run
	// left mid-stage is routed through failed so the transition table stays
	// authoritative.
	switch file.Status {
	case materials.StatusExtracting:
	case materials.StatusUploaded, materials.StatusFailed, materials.StatusProcessed:
		if err := p.files.UpdateStatus(dbc, file.ID, materials.StatusExtracting); err != nil {
			fail("extracting", err)
			return nil
		}
	default:
		if err := p.files.MarkFailed(dbc, file.ID, string(file.Status), "previous run interrupted"); err != nil {
			fail("extracting", err)
			return nil
		}
		if err := p.files.UpdateStatus(dbc, file.ID, materials.StatusExtracting); err != nil {
			fail("extracting", err)
			return nil
		}
	}
	file.Status = materials.StatusExtracting
	p.notifyStatus(jobCtx, jc, file.ID, materials.StatusExtracting)
	report(string(materials.StatusExtracting), 5, "Extracting content")

	ex, err := extractor.ForFile(file.SourceKind, file.SourceURI, p.extract)
	if err != nil {
		fail("extracting", err)
		return nil
	}
	res, err := ex.Extract(jobCtx, extractor.Input{
		FileID:      file.ID,
		OwnerUserID: file.OwnerUserID,
		Name:        file.DisplayName,
		MimeType:    file.MimeType,
		SourceURI:   file.SourceURI,
		StorageKey:  file.StorageKey,
		Language:    file.Language,
	})
	if err != nil {
		fail("extracting", err)
		return nil
	}
	if len(res.Segments) == 0 {
		fail("extracting", fmt.Errorf("no extractable content: %w", apperrors.ErrExtractionFailed))
		return nil
	}

	updates := map[string]interface{}{"extracted_at": time.Now()}
	if res.DurationSec != nil {
		updates["duration_sec"] = *res.DurationSec
	}
	if len(res.Warnings) > 0 {
		if b, mErr := json.Marshal(res.Warnings); mErr == nil {
			updates["extraction_warnings"] = datatypes.JSON(b)
		}
	}
	if err := p.files.UpdateFields(dbc, file.ID, updates); err != nil {
		fail("extracting", err)
		return nil
	}
	if err := advance(materials.StatusExtracted, 25, "Content extracted"); err != nil {
		fail("extracted", err)
		return nil
	}

	if err := advance(materials.StatusEmbedding, 35, "Embedding chunks"); err != nil {
		fail("embedding", err)
		return nil
	}
	pieces := chunker.ChunkSegments(res.Segments, envutil.Int("CHUNK_TOKENS", chunker.DefaultTargetTokens))
	if len(pieces) == 0 {
		fail("embedding", fmt.Errorf("no chunkable text: %w", apperrors.ErrExtractionFailed))
		return nil
	}
	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}
	embOut, err := steps.EmbedChunks(jobCtx, steps.EmbedChunksDeps{
		Log: p.log, AI: p.ai,
	}, steps.EmbedChunksInput{Texts: texts})
	if err != nil {
		fail("embedding", err)
		return nil
	}

	if err := advance(materials.StatusStoring, 55, "Storing content"); err != nil {
		fail("storing", err)
		return nil
	}
	storeOut, err := steps.StoreContent(jobCtx, steps.StoreContentDeps{
		DB: p.db, Log: p.log, Segments: p.segments, Chunks: p.chunks, Vec: p.vec,
	}, steps.StoreContentInput{
		OwnerUserID: file.OwnerUserID,
		FileID:      file.ID,
		Segments:    res.Segments,
		Pieces:      pieces,
		Vectors:     embOut.Vectors,
	})
	if err != nil {
		fail("storing", err)
		return nil
	}

	if err := advance(materials.StatusGeneratingConcepts, 70, "Identifying key concepts"); err != nil {
		fail("generating_concepts", err)
		return nil
	}
	gcOut, err := steps.GenerateConcepts(jobCtx, steps.GenerateConceptsDeps{
		DB: p.db, Log: p.log, Concepts: p.concepts, AI: p.ai,
	}, steps.GenerateConceptsInput{
		OwnerUserID: file.OwnerUserID,
		FileID:      file.ID,
		Kind:        file.SourceKind,
		Language:    file.Language,
		Segments:    res.Segments,
	})
	if err != nil {
		fail("generating_concepts", err)
		return nil
	}
	conceptRows, err := p.concepts.ListByFile(dbc, file.ID)
	if err != nil {
		fail("generating_concepts", err)
		return nil
	}

	report("generating_concepts", 80, "Generating study materials")
	gmOut, err := steps.GenerateMaterials(jobCtx, steps.GenerateMaterialsDeps{
		Log: p.log, Flashcards: p.flashcards, Quiz: p.quiz, AI: p.ai,
	}, steps.GenerateMaterialsInput{
		OwnerUserID:        file.OwnerUserID,
		FileID:             file.ID,
		Language:           file.Language,
		ComprehensionLevel: file.ComprehensionLevel,
		Concepts:           conceptRows,
	})
	if err != nil {
		fail("generating_concepts", err)
		return nil
	}
	if p.notify != nil {
		p.notify.Notify(jobCtx, file.OwnerUserID, realtime.EventMaterialsSummary, map[string]any{
			"file_id":    file.ID.String(),
			"processed":  gmOut.Processed,
			"successful": gmOut.Successful,
			"failed":     gmOut.Failed,
		})
	}

	report("generating_concepts", 90, "Linking concepts")
	edgeOut, err := steps.ConceptEdges(jobCtx, steps.ConceptEdgesDeps{
		Log: p.log, Concepts: p.concepts, AI: p.ai, Graph: p.graph,
	}, steps.ConceptEdgesInput{
		OwnerUserID: file.OwnerUserID,
		FileID:      file.ID,
		Concepts:    conceptRows,
	})
	if err != nil {
		fail("generating_concepts", err)
		return nil
	}

	if err := advance(materials.StatusProcessed, 99, "Processed"); err != nil {
		fail("processed", err)
		return nil
	}

	stopTicker()
	p.log.Info("ingest complete",
		"file_id", file.ID,
		"total_ms", time.Since(runStart).Milliseconds(),
	)
	jc.Succeed("done", map[string]any{
		"file_id":              file.ID.String(),
		"segments":             storeOut.SegmentRows,
		"chunks":               storeOut.ChunkRows,
		"vector_upserts":       storeOut.VectorUpserts,
		"concepts":             gcOut.ConceptsMade,
		"concepts_dropped":     gcOut.Dropped,
		"materials_successful": gmOut.Successful,
		"materials_failed":     gmOut.Failed,
		"edges":                edgeOut.EdgesMade,
	})
	return nil
}

func (p *Pipeline) notifyStatus(ctx context.Context, jc *jobrt.Context, fileID uuid.UUID, status materials.Status) {
	if p.notify == nil || jc == nil || jc.Job == nil {
		return
	}
	p.notify.Notify(ctx, jc.Job.OwnerUserID, realtime.EventFileStatus, map[string]any{
		"file_id": fileID.String(),
		"status":  string(status),
	})
}

// terminalStage classifies a stage error: taxonomy sentinels describe the
// source material or model output and no retry can fix them, everything else
// is infrastructure and goes back to the retry pool.
func terminalStage(err error) bool {
	for _, sentinel := range []error{
		apperrors.ErrExtractionFailed,
		apperrors.ErrDurationLimit,
		apperrors.ErrEmbeddingMismatch,
		apperrors.ErrConceptGeneration,
		apperrors.ErrInvalidArgument,
		apperrors.ErrNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
