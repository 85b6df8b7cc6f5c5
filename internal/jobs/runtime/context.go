package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	jobrepos "github.com/yungbote/studypath-backend/internal/data/repos/jobs"
	types "github.com/yungbote/studypath-backend/internal/domain/jobs"
	"github.com/yungbote/studypath-backend/internal/pkg/ctxutil"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
)

// Notifier is the slice of the notification fan-out the job system needs.
// services.Notifier satisfies it; tests pass fakes. Implementations must not
// block: a run never waits on delivery.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, payload map[string]any)
}

// Context is the execution handle for one claimed job run. It wraps the
// job_run row, the transaction-capable DB handle, and the only sanctioned
// ways to report progress or terminate: Progress, Fail, FailTerminal,
// Succeed. Pipelines never write job_run directly.
//
// Every lifecycle write goes through UpdateFieldsUnlessStatus guarded by the
// terminal job statuses, so a run that lost its claim to another worker
// cannot overwrite the outcome the new owner already recorded.
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    jobrepos.JobRunRepo
	Notify  Notifier
	payload map[string]any
}

// Job statuses no lifecycle write may overwrite.
var protectedStatuses = []string{
	types.JobStatusCanceled,
	types.JobStatusSucceeded,
	types.JobStatusDoneFailed,
}

// NewContext builds the handle for a claimed run. The payload JSON is
// decoded eagerly; a malformed payload leaves an empty map and handlers
// fail on their own missing-field checks. A request_id carried in the
// payload is re-stamped onto the context so job logs correlate with the
// request that enqueued the run.
func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo jobrepos.JobRunRepo, notify Notifier) *Context {
	c := &Context{
		Ctx:    ctxutil.Default(ctx),
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
	}
	c.decodePayload()
	if rid := strings.TrimSpace(stringAt(c.Payload(), "request_id")); rid != "" {
		c.Ctx = ctxutil.WithRequestID(c.Ctx, rid)
	}
	return c
}

func (c *Context) decodePayload() {
	c.payload = map[string]any{}
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		return
	}
	c.payload = m
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// PayloadUUID reads a payload field and parses it as a UUID. Missing or
// malformed values return (uuid.Nil, false).
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Progress publishes a non-terminal update: stage, percent and heartbeat
// onto the row, and an <entity>.progress event to the notifier. Rejected
// writes (the run lost its claim) emit nothing.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now()
	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, protectedStatuses, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now

	c.notify(".progress", map[string]any{
		"job_id":   c.Job.ID.String(),
		"stage":    stage,
		"progress": pct,
		"message":  msg,
	})
}

// Fail records a retryable failure: the run goes back to the pool and is
// claimed again after the retry delay, until attempts run out.
func (c *Context) Fail(stage string, err error) {
	c.fail(stage, err, types.JobStatusFailed, false)
}

// FailTerminal records a failure no retry can fix. The run is finished.
func (c *Context) FailTerminal(stage string, err error) {
	c.fail(stage, err, types.JobStatusDoneFailed, true)
}

func (c *Context) fail(stage string, err error, status string, terminal bool) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, protectedStatuses, map[string]interface{}{
			"status":        status,
			"stage":         stage,
			"error":         msg,
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		})
		if !ok {
			return
		}
	}
	c.Job.Status = status
	c.Job.Stage = stage
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.LockedAt = nil
	c.Job.UpdatedAt = now

	c.notify(".failed", map[string]any{
		"job_id":   c.Job.ID.String(),
		"stage":    stage,
		"error":    msg,
		"terminal": terminal,
		"attempts": c.Job.Attempts,
	})
}

// Succeed finishes the run: status succeeded, progress 100, the result
// serialized onto the row, and an <entity>.processed event.
func (c *Context) Succeed(finalStage string, result map[string]any) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now()
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}
	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, protectedStatuses, map[string]interface{}{
			"status":       types.JobStatusSucceeded,
			"stage":        finalStage,
			"progress":     100,
			"error":        "",
			"result":       res,
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}
	c.Job.Status = types.JobStatusSucceeded
	c.Job.Stage = finalStage
	c.Job.Progress = 100
	c.Job.Error = ""
	c.Job.Result = res
	c.Job.LockedAt = nil
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now

	payload := map[string]any{"job_id": c.Job.ID.String()}
	for k, v := range result {
		payload[k] = v
	}
	c.notify(".processed", payload)
}

// notify emits an event named after the job's entity type, so an ingest run
// over a file publishes file.progress / file.failed / file.processed. The
// entity id rides along under "<entity>_id".
func (c *Context) notify(verb string, payload map[string]any) {
	if c.Notify == nil || c.Job == nil {
		return
	}
	entity := c.Job.EntityType
	if entity == "" {
		entity = "job"
	}
	if c.Job.EntityID != nil && *c.Job.EntityID != uuid.Nil {
		payload[entity+"_id"] = c.Job.EntityID.String()
	}
	c.Notify.Notify(c.Ctx, c.Job.OwnerUserID, entity+verb, payload)
}

func stringAt(m map[string]any, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
