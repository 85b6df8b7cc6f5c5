package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	vipb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/pkg/ctxutil"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

// Video transcribes speech from a muxed video object in GCS. Used when a
// media fetch could only produce a combined audio+video file, so plain
// audio transcription is off the table.
type Video interface {
	TranscribeVideoGCS(ctx context.Context, gcsURI string, languageCode string) (*VideoResult, error)
	Close() error
}

type VideoResult struct {
	Provider    string                    `json:"provider"`
	SourceURI   string                    `json:"source_uri"`
	PrimaryText string                    `json:"primary_text"`
	Segments    []materials.SourceSegment `json:"segments,omitempty"`
	Warnings    []string                  `json:"warnings,omitempty"`
}

type videoService struct {
	log        *logger.Logger
	client     *videointelligence.Client
	maxRetries int
}

func NewVideo(log *logger.Logger) (Video, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.Video")

	c, err := videointelligence.NewClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("videointelligence client: %w", err)
	}

	return &videoService{log: slog, client: c, maxRetries: 4}, nil
}

func (s *videoService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *videoService) TranscribeVideoGCS(ctx context.Context, gcsURI string, languageCode string) (*VideoResult, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}
	if languageCode == "" {
		languageCode = "en-US"
	}

	req := &vipb.AnnotateVideoRequest{
		InputUri: gcsURI,
		Features: []vipb.Feature{vipb.Feature_SPEECH_TRANSCRIPTION},
		VideoContext: &vipb.VideoContext{
			SpeechTranscriptionConfig: &vipb.SpeechTranscriptionConfig{
				LanguageCode:               languageCode,
				EnableAutomaticPunctuation: true,
				EnableWordConfidence:       true,
			},
		},
	}

	resp, err := grpcRetry(ctx, s.maxRetries, func() (*vipb.AnnotateVideoResponse, error) {
		op, err := s.client.AnnotateVideo(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("videointelligence AnnotateVideo: %w", err)
	}

	out := &VideoResult{
		Provider:  "gcp_videointelligence",
		SourceURI: gcsURI,
	}
	if resp == nil || len(resp.AnnotationResults) == 0 || resp.AnnotationResults[0] == nil {
		out.Warnings = append(out.Warnings, "no annotation results")
		return out, nil
	}

	words := []timedWord{}
	var full strings.Builder
	for _, tr := range resp.AnnotationResults[0].SpeechTranscriptions {
		if tr == nil || len(tr.Alternatives) == 0 || tr.Alternatives[0] == nil {
			continue
		}
		alt := tr.Alternatives[0]
		if strings.TrimSpace(alt.Transcript) == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(strings.TrimSpace(alt.Transcript))

		for _, w := range alt.Words {
			if w == nil {
				continue
			}
			words = append(words, timedWord{
				w: w.Word,
				s: durToSec(w.StartTime),
				e: durToSec(w.EndTime),
				c: float64(w.Confidence),
			})
		}
	}

	out.PrimaryText = strings.TrimSpace(full.String())

	if len(words) > 0 {
		out.Segments = groupWordsByTime(words, 10.0, "gcp_videointelligence")
	} else if out.PrimaryText != "" {
		out.Warnings = append(out.Warnings, "no word offsets returned; emitted one untimed segment")
		out.Segments = []materials.SourceSegment{{
			Text:     out.PrimaryText,
			Metadata: map[string]any{"kind": "transcript", "provider": "gcp_videointelligence"},
		}}
	}
	return out, nil
}
