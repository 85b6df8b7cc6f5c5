package worker

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	jobrepos "github.com/yungbote/studypath-backend/internal/data/repos/jobs"
	"github.com/yungbote/studypath-backend/internal/jobs/runtime"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
)

const (
	pollInterval = 1 * time.Second
	maxAttempts  = 5
	retryDelay   = 30 * time.Second
	staleRunning = 30 * time.Minute
)

// Worker polls for runnable job runs and dispatches them to registered
// handlers. Each loop goroutine claims at most one run at a time, so the
// pool processes up to WORKER_CONCURRENCY runs concurrently and the poll
// itself never blocks on handler work.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     jobrepos.JobRunRepo
	registry *runtime.Registry
	notify   runtime.Notifier
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo jobrepos.JobRunRepo, registry *runtime.Registry, notify runtime.Notifier) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
	}
}

func (w *Worker) Start(ctx context.Context) {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 4)
	if concurrency < 1 {
		concurrency = 1
	}
	w.log.Info("starting job worker pool", "concurrency", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.runLoop(ctx, i+1)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, maxAttempts, retryDelay, staleRunning)
			if err != nil {
				w.log.Warn("claim failed", "worker_id", workerID, "error", err)
				continue
			}
			if job == nil {
				continue
			}

			jc := runtime.NewContext(ctx, w.db, job, w.repo, w.notify)
			h, ok := w.registry.Get(job.JobType)
			if !ok {
				w.log.Warn("no handler registered",
					"worker_id", workerID,
					"job_type", job.JobType,
					"job_id", job.ID,
				)
				jc.FailTerminal("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType))
				continue
			}

			w.dispatch(jc, h, workerID)
		}
	}
}

// dispatch runs one handler with panic containment. A panic is treated as a
// retryable failure: the attempt cap bounds a deterministic crasher.
func (w *Worker) dispatch(jc *runtime.Context, h runtime.Handler, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("job handler panic",
				"worker_id", workerID,
				"job_id", jc.Job.ID,
				"job_type", jc.Job.JobType,
				"panic", r,
			)
			jc.Fail("panic", fmt.Errorf("handler panic: %v", r))
		}
	}()

	if err := h.Run(jc); err != nil {
		// Handlers report their own failures; this is the safety net for
		// ones that return instead.
		jc.Fail("run", err)
	}
}
