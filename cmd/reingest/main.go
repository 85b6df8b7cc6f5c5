package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/studypath-backend/internal/app"
	jobtypes "github.com/yungbote/studypath-backend/internal/domain/jobs"
	"github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

// reingest re-enqueues ingestion for material files: specific ids, or every
// file stranded mid-pipeline longer than -stuck-minutes.
func main() {
	var fileIDs idList
	var stuck bool
	var stuckMinutes int
	var dryRun bool
	var limit int
	flag.Var(&fileIDs, "file", "material file id to reingest (repeatable)")
	flag.BoolVar(&stuck, "stuck", false, "select files stranded in a mid-pipeline status")
	flag.IntVar(&stuckMinutes, "stuck-minutes", 60, "minimum age of the last update for -stuck")
	flag.BoolVar(&dryRun, "dry-run", false, "print planned work without enqueueing")
	flag.IntVar(&limit, "limit", 0, "limit number of files processed")
	flag.Parse()

	if len(fileIDs) == 0 && !stuck {
		fmt.Println("nothing selected: pass -file <id> or -stuck")
		os.Exit(1)
	}

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()

	var rows []*materials.File
	if len(fileIDs) > 0 {
		ids := make([]uuid.UUID, 0, len(fileIDs))
		for _, s := range fileIDs {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err == nil && id != uuid.Nil {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			fmt.Println("no valid file id values provided")
			return
		}
		err = application.DB.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	} else {
		cutoff := time.Now().UTC().Add(-time.Duration(stuckMinutes) * time.Minute)
		err = application.DB.WithContext(ctx).
			Where("status NOT IN ?", []materials.Status{
				materials.StatusUploaded,
				materials.StatusProcessed,
				materials.StatusFailed,
			}).
			Where("updated_at < ?", cutoff).
			Find(&rows).Error
	}
	if err != nil {
		fmt.Printf("load files: %v\n", err)
		os.Exit(1)
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	dbc := dbctx.Context{Ctx: ctx}
	enqueued := 0
	for _, file := range rows {
		if file == nil || file.ID == uuid.Nil {
			continue
		}
		// Mid-run statuses cannot reset directly; they go through failed.
		// Never force a file whose run is still queued or heartbeating.
		midRun := !file.Status.Terminal() && file.Status != materials.StatusUploaded
		if midRun {
			busy, err := application.Repos.Jobs.HasRunnableForEntity(dbc, file.OwnerUserID, jobtypes.EntityTypeFile, file.ID, jobtypes.JobTypeIngestFile)
			if err != nil {
				fmt.Printf("job lookup failed for file %s: %v\n", file.ID.String(), err)
				continue
			}
			if busy {
				fmt.Printf("skipping file %s: a run is still queued or active\n", file.ID.String())
				continue
			}
		}
		if dryRun {
			fmt.Printf("[dry-run] reingest file_id=%s status=%s\n", file.ID.String(), file.Status)
			continue
		}
		if midRun {
			if err := application.Repos.Files.MarkFailed(dbc, file.ID, string(file.Status), "stranded run, forced reingest"); err != nil {
				fmt.Printf("reset failed for file %s: %v\n", file.ID.String(), err)
				continue
			}
		}
		res, err := application.Services.File.Reprocess(ctx, file.OwnerUserID, file.ID)
		if err != nil {
			fmt.Printf("reingest failed for file %s: %v\n", file.ID.String(), err)
			continue
		}
		enqueued++
		fmt.Printf("enqueued ingest_file for file_id=%s job_id=%s\n", file.ID.String(), res.Job.ID.String())
	}

	fmt.Printf("done; enqueued=%d\n", enqueued)
}
