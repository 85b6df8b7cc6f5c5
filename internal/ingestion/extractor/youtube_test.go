package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/gcp"
	"github.com/yungbote/studypath-backend/internal/platform/media"
)

func youtubeInput() Input {
	return Input{
		FileID:    uuid.New(),
		Name:      "Cell Biology Lecture",
		SourceURI: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Language:  "en",
	}
}

func captionSegments() []materials.SourceSegment {
	return []materials.SourceSegment{
		{Text: "Welcome to the lecture.", StartSec: materials.PtrFloat(0.5), EndSec: materials.PtrFloat(3.2)},
		{Text: "Today we cover the cell.", StartSec: materials.PtrFloat(3.2), EndSec: materials.PtrFloat(6.8)},
	}
}

func writeFetchedMedia(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("media-bytes"), 0o644); err != nil {
		t.Fatalf("write media file: %v", err)
	}
	return p
}

func TestYouTubeDurationGateRunsBeforeAnyFetch(t *testing.T) {
	yt := &fakeYouTube{duration: 9000}
	fetch := &fakeFetcher{}
	deps := Deps{Log: logger.NewNop(), YouTube: yt, Media: fetch, Bucket: newFakeBucket(gcp.ObjectStorageModeGCS)}

	ex, err := ForFile(materials.SourceKindYouTube, youtubeInput().SourceURI, deps)
	if err != nil {
		t.Fatalf("ForFile: %v", err)
	}
	_, err = ex.Extract(context.Background(), youtubeInput())
	if !errors.Is(err, apperrors.ErrDurationLimit) {
		t.Fatalf("err = %v, want ErrDurationLimit", err)
	}
	if yt.transcriptCalls != 0 {
		t.Fatalf("transcript fetched %d times despite duration gate", yt.transcriptCalls)
	}
	if fetch.calls != 0 {
		t.Fatalf("media fetched %d times despite duration gate", fetch.calls)
	}
}

func TestYouTubeTranscriptPath(t *testing.T) {
	yt := &fakeYouTube{duration: 600, transcript: captionSegments()}
	fetch := &fakeFetcher{}
	deps := Deps{Log: logger.NewNop(), YouTube: yt, Media: fetch, Bucket: newFakeBucket(gcp.ObjectStorageModeGCS)}

	ex, _ := ForFile(materials.SourceKindYouTube, youtubeInput().SourceURI, deps)
	res, err := ex.Extract(context.Background(), youtubeInput())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if res.DurationSec == nil || *res.DurationSec != 600 {
		t.Fatalf("duration = %v, want 600", res.DurationSec)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(res.Segments))
	}
	if res.Segments[0].StartSec == nil || *res.Segments[0].StartSec != 0.5 {
		t.Fatalf("segment 0 start = %v, want 0.5", res.Segments[0].StartSec)
	}
	if res.Diagnostics["path"] != "transcript" {
		t.Fatalf("path = %v, want transcript", res.Diagnostics["path"])
	}
	if fetch.calls != 0 {
		t.Fatalf("media fetched on the transcript path")
	}
}

func TestYouTubeASRFallbackAudio(t *testing.T) {
	in := youtubeInput()
	yt := &fakeYouTube{
		duration:      600,
		transcriptErr: fmt.Errorf("no captions: %w", apperrors.ErrTranscriptUnavailable),
	}
	fetch := &fakeFetcher{
		path: writeFetchedMedia(t, "media.m4a"),
		ext:  ".m4a",
		kind: media.FetchKindAudio,
	}
	bucket := newFakeBucket(gcp.ObjectStorageModeGCS)
	speech := &fakeSpeech{res: &gcp.SpeechResult{
		Segments: []materials.SourceSegment{
			{Text: "Recognized speech text.", StartSec: materials.PtrFloat(0), EndSec: materials.PtrFloat(9.5)},
		},
	}}
	video := &fakeVideo{}

	deps := Deps{Log: logger.NewNop(), YouTube: yt, Media: fetch, Bucket: bucket, Speech: speech, Video: video}
	ex, _ := ForFile(materials.SourceKindYouTube, in.SourceURI, deps)

	res, err := ex.Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	wantKey := fmt.Sprintf("asr/%s/source.m4a", in.FileID)
	if _, ok := bucket.get(gcp.BucketCategoryMedia, wantKey); !ok {
		t.Fatalf("fetched media was not staged at %s", wantKey)
	}
	if speech.calls != 1 {
		t.Fatalf("speech calls = %d, want 1", speech.calls)
	}
	if video.calls != 0 {
		t.Fatalf("video transcription used for an audio fetch")
	}
	if want := "gs://test-media/" + wantKey; speech.lastURI != want {
		t.Fatalf("speech uri = %q, want %q", speech.lastURI, want)
	}
	if speech.lastLang != "en-US" {
		t.Fatalf("speech lang = %q, want en-US", speech.lastLang)
	}
	if !speech.sawDeadline {
		t.Fatalf("speech call carried no deadline")
	}
	if !fetch.cleanupCalled {
		t.Fatalf("fetch cleanup never ran")
	}
	if res.Diagnostics["path"] != "asr" {
		t.Fatalf("path = %v, want asr", res.Diagnostics["path"])
	}
	if len(res.Segments) != 1 || res.Segments[0].Text != "Recognized speech text." {
		t.Fatalf("segments = %+v", res.Segments)
	}
}

func TestYouTubeASRFallbackVideoKind(t *testing.T) {
	in := youtubeInput()
	yt := &fakeYouTube{
		duration:      600,
		transcriptErr: fmt.Errorf("no captions: %w", apperrors.ErrTranscriptUnavailable),
	}
	fetch := &fakeFetcher{
		path: writeFetchedMedia(t, "media.webm"),
		ext:  ".webm",
		kind: media.FetchKindVideo,
	}
	speech := &fakeSpeech{}
	video := &fakeVideo{res: &gcp.VideoResult{
		Segments: []materials.SourceSegment{
			{Text: "Video track speech.", StartSec: materials.PtrFloat(0), EndSec: materials.PtrFloat(8)},
		},
	}}

	deps := Deps{Log: logger.NewNop(), YouTube: yt, Media: fetch, Bucket: newFakeBucket(gcp.ObjectStorageModeGCS), Speech: speech, Video: video}
	ex, _ := ForFile(materials.SourceKindYouTube, in.SourceURI, deps)

	res, err := ex.Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if video.calls != 1 || speech.calls != 0 {
		t.Fatalf("calls video=%d speech=%d, want 1/0", video.calls, speech.calls)
	}
	if len(res.Segments) != 1 || res.Segments[0].Text != "Video track speech." {
		t.Fatalf("segments = %+v", res.Segments)
	}
}

func TestYouTubeEmptyTranscriptFallsBack(t *testing.T) {
	in := youtubeInput()
	// Transcript call succeeds but every cue is blank.
	yt := &fakeYouTube{
		duration:   600,
		transcript: []materials.SourceSegment{{Text: "   "}},
	}
	fetch := &fakeFetcher{
		path: writeFetchedMedia(t, "media.mp3"),
		ext:  ".mp3",
		kind: media.FetchKindAudio,
	}
	speech := &fakeSpeech{res: &gcp.SpeechResult{
		Segments: []materials.SourceSegment{{Text: "Recovered by recognition."}},
	}}

	deps := Deps{Log: logger.NewNop(), YouTube: yt, Media: fetch, Bucket: newFakeBucket(gcp.ObjectStorageModeGCS), Speech: speech}
	ex, _ := ForFile(materials.SourceKindYouTube, in.SourceURI, deps)

	res, err := ex.Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fetch.calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", fetch.calls)
	}
	if res.Diagnostics["path"] != "asr" {
		t.Fatalf("path = %v, want asr", res.Diagnostics["path"])
	}
}

func TestYouTubeBothPathsFailing(t *testing.T) {
	in := youtubeInput()
	yt := &fakeYouTube{
		duration:      600,
		transcriptErr: fmt.Errorf("no captions: %w", apperrors.ErrTranscriptUnavailable),
	}
	fetch := &fakeFetcher{err: errors.New("yt-dlp exited 1")}

	deps := Deps{Log: logger.NewNop(), YouTube: yt, Media: fetch, Bucket: newFakeBucket(gcp.ObjectStorageModeGCS), Speech: &fakeSpeech{}}
	ex, _ := ForFile(materials.SourceKindYouTube, in.SourceURI, deps)

	_, err := ex.Extract(context.Background(), in)
	if !errors.Is(err, apperrors.ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
}
