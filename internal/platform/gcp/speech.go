package gcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/pkg/ctxutil"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

// Speech transcribes an audio object already sitting in GCS. Word time
// offsets are always requested; the pipeline needs time-coded segments.
type Speech interface {
	TranscribeGCS(ctx context.Context, gcsURI string, languageCode string) (*SpeechResult, error)
	Close() error
}

type SpeechResult struct {
	Provider    string                    `json:"provider"`
	SourceURI   string                    `json:"source_uri,omitempty"`
	PrimaryText string                    `json:"primary_text"`
	Segments    []materials.SourceSegment `json:"segments,omitempty"`
	Warnings    []string                  `json:"warnings,omitempty"`
}

type speechService struct {
	log        *logger.Logger
	client     *speech.Client
	maxRetries int
}

func NewSpeech(log *logger.Logger) (Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.Speech")

	c, err := speech.NewClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	return &speechService{log: slog, client: c, maxRetries: 4}, nil
}

func (s *speechService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *speechService) TranscribeGCS(ctx context.Context, gcsURI string, languageCode string) (*SpeechResult, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}
	if languageCode == "" {
		languageCode = "en-US"
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               languageCode,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
			Encoding:                   inferSpeechEncoding(gcsURI),
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: gcsURI},
		},
	}

	resp, err := grpcRetry(ctx, s.maxRetries, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := s.client.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize: %w", err)
	}

	return parseSpeechResponse(gcsURI, resp), nil
}

func inferSpeechEncoding(gcsURI string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(filepath.Ext(gcsURI)) {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".mp3":
		return speechpb.RecognitionConfig_MP3
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

type timedWord struct {
	w string
	s float64
	e float64
	c float64
}

func parseSpeechResponse(sourceURI string, resp *speechpb.LongRunningRecognizeResponse) *SpeechResult {
	out := &SpeechResult{
		Provider:  "gcp_speech",
		SourceURI: sourceURI,
	}
	if resp == nil || len(resp.Results) == 0 {
		return out
	}

	words := []timedWord{}
	var full strings.Builder

	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		if strings.TrimSpace(alt.Transcript) == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(strings.TrimSpace(alt.Transcript))

		for _, ww := range alt.Words {
			if ww == nil {
				continue
			}
			words = append(words, timedWord{
				w: ww.Word,
				s: durToSec(ww.StartTime),
				e: durToSec(ww.EndTime),
				c: float64(ww.Confidence),
			})
		}
	}

	out.PrimaryText = strings.TrimSpace(full.String())

	if len(words) > 0 {
		out.Segments = groupWordsByTime(words, 10.0, "gcp_speech")
	} else if out.PrimaryText != "" {
		out.Warnings = append(out.Warnings, "no word offsets returned; emitted one untimed segment")
		out.Segments = []materials.SourceSegment{{
			Text:     out.PrimaryText,
			Metadata: map[string]any{"kind": "transcript", "provider": "gcp_speech"},
		}}
	}
	return out
}

// groupWordsByTime folds a word stream into transcript segments of roughly
// windowSec seconds, breaking only between words. Confidence is averaged
// over words that reported one.
func groupWordsByTime(words []timedWord, windowSec float64, provider string) []materials.SourceSegment {
	if len(words) == 0 {
		return nil
	}
	if windowSec <= 0 {
		windowSec = 10
	}

	segs := []materials.SourceSegment{}
	curStart := words[0].s
	curEnd := words[0].e
	var buf strings.Builder
	var confSum float64
	var confN int

	flush := func() {
		txt := strings.TrimSpace(buf.String())
		if txt == "" {
			return
		}
		seg := materials.SourceSegment{
			Text:     txt,
			StartSec: materials.PtrFloat(curStart),
			EndSec:   materials.PtrFloat(curEnd),
			Metadata: map[string]any{"kind": "transcript", "provider": provider},
		}
		if confN > 0 {
			seg.Confidence = materials.PtrFloat(confSum / float64(confN))
		}
		segs = append(segs, seg)
		buf.Reset()
		confSum = 0
		confN = 0
	}

	for _, w := range words {
		if (w.s-curStart) >= windowSec && buf.Len() > 0 {
			flush()
			curStart = w.s
			curEnd = w.e
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(w.w)
		if w.e > curEnd {
			curEnd = w.e
		}
		if w.c > 0 {
			confSum += w.c
			confN++
		}
	}
	flush()
	return segs
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}

// grpcRetry retries transient gRPC failures with capped exponential
// backoff. Anything other than Unavailable, ResourceExhausted, or
// DeadlineExceeded fails immediately.
func grpcRetry[T any](ctx context.Context, maxRetries int, fn func() (T, error)) (T, error) {
	var zero T
	backoff := 750 * time.Millisecond
	var last error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return zero, err
		}
		if attempt == maxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return zero, last
}
