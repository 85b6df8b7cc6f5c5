package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/platform/gcp"
	"github.com/yungbote/studypath-backend/internal/platform/media"
	"github.com/yungbote/studypath-backend/internal/platform/youtube"
)

// maxVideoDurationSec rejects over-long videos before any transcript or
// media work starts.
const maxVideoDurationSec = 7200

// youtubeExtractor tries the caption track first and only reaches for
// media download plus speech recognition when no usable track exists.
type youtubeExtractor struct {
	deps Deps
}

func (e *youtubeExtractor) Extract(ctx context.Context, in Input) (*Result, error) {
	log := e.deps.Log.With("extractor", "youtube", "file_id", in.FileID)

	videoID, err := youtube.ParseVideoID(in.SourceURI)
	if err != nil {
		return nil, fmt.Errorf("youtube extract: %w", err)
	}
	if e.deps.YouTube == nil {
		return nil, fmt.Errorf("youtube extract %s: youtube client unavailable", videoID)
	}

	res := &Result{
		Kind:        materials.SourceKindYouTube,
		Diagnostics: map[string]any{"pipeline": "youtube", "video_id": videoID},
	}

	dur, err := e.deps.YouTube.VideoDuration(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("youtube duration lookup %s: %w", videoID, err)
	}
	if dur > maxVideoDurationSec {
		return nil, fmt.Errorf("video %s runs %.0fs, limit %ds: %w", videoID, dur, maxVideoDurationSec, apperrors.ErrDurationLimit)
	}
	res.DurationSec = &dur
	res.Diagnostics["duration_sec"] = dur

	segs, terr := e.deps.YouTube.FetchTranscript(ctx, videoID, in.Language)
	if terr == nil {
		segs = NormalizeSegments(segs)
		if len(segs) > 0 {
			res.Diagnostics["path"] = "transcript"
			res.Segments = segs
			return res, nil
		}
		terr = fmt.Errorf("caption track parsed empty: %w", apperrors.ErrTranscriptUnavailable)
	}

	// Any transcript failure, definitive or exhausted-retries, lands here.
	log.Info("transcript unavailable; falling back to speech recognition", "video_id", videoID, "error", terr)
	res.Warnings = append(res.Warnings, "transcript unavailable: "+terr.Error())
	res.Diagnostics["transcript_error"] = terr.Error()

	asrSegs, aerr := e.transcribeMedia(ctx, in, videoID, res)
	if aerr != nil {
		return nil, fmt.Errorf("youtube %s: transcript and speech recognition both failed (%v): %w", videoID, aerr, apperrors.ErrExtractionFailed)
	}
	asrSegs = NormalizeSegments(asrSegs)
	if len(asrSegs) == 0 {
		return nil, fmt.Errorf("youtube %s: transcript and speech recognition both produced no text: %w", videoID, apperrors.ErrExtractionFailed)
	}

	res.Diagnostics["path"] = "asr"
	res.Segments = asrSegs
	return res, nil
}

// transcribeMedia downloads the source audio, parks it in the media
// bucket, and transcribes it from there. The ASRTimeout applies to the
// recognition call only, not the download.
func (e *youtubeExtractor) transcribeMedia(ctx context.Context, in Input, videoID string, res *Result) ([]materials.SourceSegment, error) {
	if e.deps.Media == nil || e.deps.Bucket == nil {
		return nil, fmt.Errorf("media fetch unavailable")
	}
	if err := e.deps.Media.AssertReady(ctx); err != nil {
		return nil, fmt.Errorf("media tools not ready: %w", err)
	}

	fetched, cleanup, err := e.deps.Media.FetchAudio(ctx, watchURL(videoID))
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer cleanup()

	key := fmt.Sprintf("asr/%s/source%s", in.FileID, fetched.Ext)
	f, err := os.Open(fetched.Path)
	if err != nil {
		return nil, fmt.Errorf("open fetched media: %w", err)
	}
	err = e.deps.Bucket.Upload(ctx, gcp.BucketCategoryMedia, key, f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("stage media for transcription: %w", err)
	}
	res.Diagnostics["media_key"] = key
	res.Diagnostics["media_kind"] = string(fetched.Kind)

	uri := e.deps.Bucket.ObjectURI(gcp.BucketCategoryMedia, key)
	lang := asrLanguageCode(in.Language)

	asrCtx, cancel := context.WithTimeout(ctx, e.deps.ASRTimeout)
	defer cancel()

	if fetched.Kind == media.FetchKindVideo {
		if e.deps.Video == nil {
			return nil, fmt.Errorf("video transcription unavailable")
		}
		vres, err := e.deps.Video.TranscribeVideoGCS(asrCtx, uri, lang)
		if err != nil {
			return nil, fmt.Errorf("video transcription: %w", err)
		}
		res.Warnings = append(res.Warnings, vres.Warnings...)
		return vres.Segments, nil
	}

	if e.deps.Speech == nil {
		return nil, fmt.Errorf("speech transcription unavailable")
	}
	sres, err := e.deps.Speech.TranscribeGCS(asrCtx, uri, lang)
	if err != nil {
		return nil, fmt.Errorf("speech transcription: %w", err)
	}
	res.Warnings = append(res.Warnings, sres.Warnings...)
	return sres.Segments, nil
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// asrLanguageCode widens a bare language subtag to the regional code the
// speech APIs expect. Codes already carrying a region pass through.
func asrLanguageCode(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "en-US"
	}
	if strings.Contains(lang, "-") {
		return lang
	}
	switch lang {
	case "en":
		return "en-US"
	case "es":
		return "es-ES"
	case "fr":
		return "fr-FR"
	case "de":
		return "de-DE"
	case "pt":
		return "pt-BR"
	case "it":
		return "it-IT"
	case "ja":
		return "ja-JP"
	case "ko":
		return "ko-KR"
	case "zh":
		return "zh-CN"
	case "hi":
		return "hi-IN"
	}
	return lang
}
