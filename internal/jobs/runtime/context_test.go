package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/studypath-backend/internal/domain/jobs"
	"github.com/yungbote/studypath-backend/internal/pkg/ctxutil"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
)

type recordedUpdate struct {
	id         uuid.UUID
	disallowed []string
	updates    map[string]interface{}
}

type fakeJobRepo struct {
	mu      sync.Mutex
	updates []recordedUpdate
	allow   bool
	err     error
}

func newFakeJobRepo() *fakeJobRepo { return &fakeJobRepo{allow: true} }

func (f *fakeJobRepo) Create(dbctx.Context, []*types.JobRun) ([]*types.JobRun, error) {
	return nil, nil
}
func (f *fakeJobRepo) GetByID(dbctx.Context, uuid.UUID) (*types.JobRun, error) { return nil, nil }
func (f *fakeJobRepo) GetLatestByEntity(dbctx.Context, uuid.UUID, string, uuid.UUID, string) (*types.JobRun, error) {
	return nil, nil
}
func (f *fakeJobRepo) ClaimNextRunnable(dbctx.Context, int, time.Duration, time.Duration) (*types.JobRun, error) {
	return nil, nil
}
func (f *fakeJobRepo) UpdateFields(dbctx.Context, uuid.UUID, map[string]interface{}) error {
	return nil
}
func (f *fakeJobRepo) UpdateFieldsUnlessStatus(_ dbctx.Context, id uuid.UUID, disallowed []string, updates map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if !f.allow {
		return false, nil
	}
	f.updates = append(f.updates, recordedUpdate{id: id, disallowed: disallowed, updates: updates})
	return true, nil
}
func (f *fakeJobRepo) Heartbeat(dbctx.Context, uuid.UUID) error { return nil }
func (f *fakeJobRepo) HasRunnableForEntity(dbctx.Context, uuid.UUID, string, uuid.UUID, string) (bool, error) {
	return false, nil
}

type notifiedEvent struct {
	userID    uuid.UUID
	eventType string
	payload   map[string]any
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifiedEvent
}

func (f *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, eventType string, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, notifiedEvent{userID: userID, eventType: eventType, payload: payload})
}

func (f *fakeNotifier) byType(eventType string) []notifiedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notifiedEvent
	for _, e := range f.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func testJob(t *testing.T, payload map[string]any) *types.JobRun {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	entityID := uuid.New()
	return &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: uuid.New(),
		JobType:     types.JobTypeIngestFile,
		EntityType:  "file",
		EntityID:    &entityID,
		Status:      types.JobStatusRunning,
		Attempts:    1,
		Payload:     datatypes.JSON(b),
	}
}

func TestContextPayloadAccess(t *testing.T) {
	fileID := uuid.New()
	job := testJob(t, map[string]any{"file_id": fileID.String(), "request_id": "req-123"})
	c := NewContext(context.Background(), nil, job, newFakeJobRepo(), nil)

	got, ok := c.PayloadUUID("file_id")
	if !ok || got != fileID {
		t.Fatalf("payload uuid: want=%s got=%s ok=%v", fileID, got, ok)
	}
	if _, ok := c.PayloadUUID("absent"); ok {
		t.Fatalf("absent key should not parse")
	}
	if rid := ctxutil.RequestID(c.Ctx); rid != "req-123" {
		t.Fatalf("request id not restamped: got %q", rid)
	}
}

func TestContextMalformedPayloadLeavesEmptyMap(t *testing.T) {
	job := &types.JobRun{ID: uuid.New(), Payload: datatypes.JSON(`{"file_id": `)}
	c := NewContext(context.Background(), nil, job, newFakeJobRepo(), nil)
	if len(c.Payload()) != 0 {
		t.Fatalf("malformed payload should decode to empty map, got %v", c.Payload())
	}
}

func TestContextProgressWritesRowAndNotifies(t *testing.T) {
	repo := newFakeJobRepo()
	notify := &fakeNotifier{}
	job := testJob(t, nil)
	c := NewContext(context.Background(), nil, job, repo, notify)

	c.Progress("embedding", 40, "Embedding chunks")

	if len(repo.updates) != 1 {
		t.Fatalf("row updates: want=1 got=%d", len(repo.updates))
	}
	up := repo.updates[0]
	if up.updates["stage"] != "embedding" || up.updates["progress"] != 40 {
		t.Fatalf("unexpected update fields: %v", up.updates)
	}
	if _, ok := up.updates["status"]; ok {
		t.Fatalf("progress must not touch status: %v", up.updates)
	}
	if _, ok := up.updates["heartbeat_at"]; !ok {
		t.Fatalf("progress must refresh heartbeat: %v", up.updates)
	}
	if job.Stage != "embedding" || job.Progress != 40 || job.HeartbeatAt == nil {
		t.Fatalf("in-memory job not updated: %+v", job)
	}

	events := notify.byType("file.progress")
	if len(events) != 1 {
		t.Fatalf("progress events: want=1 got=%d", len(events))
	}
	e := events[0]
	if e.userID != job.OwnerUserID {
		t.Fatalf("event owner: want=%s got=%s", job.OwnerUserID, e.userID)
	}
	if e.payload["file_id"] != job.EntityID.String() || e.payload["message"] != "Embedding chunks" {
		t.Fatalf("event payload: %v", e.payload)
	}
}

func TestContextFailRetryableAndTerminal(t *testing.T) {
	repo := newFakeJobRepo()
	notify := &fakeNotifier{}
	job := testJob(t, nil)
	c := NewContext(context.Background(), nil, job, repo, notify)

	c.Fail("embedding", errors.New("provider unavailable"))
	if job.Status != types.JobStatusFailed {
		t.Fatalf("retryable fail status: want=%s got=%s", types.JobStatusFailed, job.Status)
	}
	if job.Error != "provider unavailable" || job.LastErrorAt == nil || job.LockedAt != nil {
		t.Fatalf("fail bookkeeping wrong: %+v", job)
	}

	c.FailTerminal("extracting", errors.New("no extractable content"))
	if job.Status != types.JobStatusDoneFailed {
		t.Fatalf("terminal fail status: want=%s got=%s", types.JobStatusDoneFailed, job.Status)
	}

	events := notify.byType("file.failed")
	if len(events) != 2 {
		t.Fatalf("failed events: want=2 got=%d", len(events))
	}
	if events[0].payload["terminal"] != false || events[1].payload["terminal"] != true {
		t.Fatalf("terminal flags: first=%v second=%v", events[0].payload["terminal"], events[1].payload["terminal"])
	}
}

func TestContextSucceedSerializesResult(t *testing.T) {
	repo := newFakeJobRepo()
	notify := &fakeNotifier{}
	job := testJob(t, nil)
	c := NewContext(context.Background(), nil, job, repo, notify)

	c.Succeed("done", map[string]any{"chunks": 7})

	if job.Status != types.JobStatusSucceeded || job.Progress != 100 || job.Stage != "done" {
		t.Fatalf("succeed bookkeeping wrong: %+v", job)
	}
	var result map[string]any
	if err := json.Unmarshal(job.Result, &result); err != nil {
		t.Fatalf("result not json: %v", err)
	}
	if result["chunks"] != float64(7) {
		t.Fatalf("result payload: %v", result)
	}

	events := notify.byType("file.processed")
	if len(events) != 1 {
		t.Fatalf("processed events: want=1 got=%d", len(events))
	}
	if events[0].payload["chunks"] != 7 || events[0].payload["file_id"] != job.EntityID.String() {
		t.Fatalf("processed payload: %v", events[0].payload)
	}
}

func TestContextLostClaimWritesNothing(t *testing.T) {
	repo := newFakeJobRepo()
	repo.allow = false
	notify := &fakeNotifier{}
	job := testJob(t, nil)
	before := *job
	c := NewContext(context.Background(), nil, job, repo, notify)

	c.Progress("storing", 60, "msg")
	c.Fail("storing", errors.New("boom"))
	c.Succeed("done", nil)

	if job.Status != before.Status || job.Stage != before.Stage || job.Progress != before.Progress {
		t.Fatalf("lost claim must not mutate job: before=%+v after=%+v", before, job)
	}
	if len(notify.events) != 0 {
		t.Fatalf("lost claim must not notify: %v", notify.events)
	}
}

func TestContextGuardsTerminalStatuses(t *testing.T) {
	repo := newFakeJobRepo()
	job := testJob(t, nil)
	c := NewContext(context.Background(), nil, job, repo, nil)

	c.Progress("storing", 50, "msg")

	if len(repo.updates) != 1 {
		t.Fatalf("row updates: want=1 got=%d", len(repo.updates))
	}
	guard := map[string]bool{}
	for _, s := range repo.updates[0].disallowed {
		guard[s] = true
	}
	for _, want := range []string{types.JobStatusCanceled, types.JobStatusSucceeded, types.JobStatusDoneFailed} {
		if !guard[want] {
			t.Fatalf("status %q missing from write guard: %v", want, repo.updates[0].disallowed)
		}
	}
}
