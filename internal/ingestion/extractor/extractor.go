package extractor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/gcp"
	"github.com/yungbote/studypath-backend/internal/platform/media"
	"github.com/yungbote/studypath-backend/internal/platform/youtube"
)

// Extractor is one source-kind variant. Variants hold no per-file state;
// one instance serves any number of files.
type Extractor interface {
	Extract(ctx context.Context, in Input) (*Result, error)
}

// Input identifies the file and where its raw content lives: StorageKey
// for uploaded objects, SourceURI for youtube links.
type Input struct {
	FileID      uuid.UUID
	OwnerUserID uuid.UUID
	Name        string
	MimeType    string
	SourceURI   string
	StorageKey  string
	Language    string
}

// Result is what a variant hands back to the pipeline: ordered segments
// plus whatever the variant learned along the way.
type Result struct {
	Kind        materials.SourceKind
	Segments    []materials.SourceSegment
	DurationSec *float64
	Warnings    []string
	Diagnostics map[string]any
}

// Deps carries the providers the variants draw from. Nil providers degrade
// to warnings where a fallback exists and to errors where they do not.
type Deps struct {
	Log     *logger.Logger
	Bucket  gcp.BucketService
	DocAI   gcp.DocAI
	Vision  gcp.Vision
	Speech  gcp.Speech
	Video   gcp.Video
	YouTube youtube.Client
	Media   media.Fetcher

	// ASRTimeout bounds one speech-recognition call on the fallback path.
	ASRTimeout time.Duration
	// MaxOCRPages caps how many pdf pages the ocr fallback will touch.
	MaxOCRPages int
	// MaxObjectBytes caps in-memory downloads of uploaded objects.
	MaxObjectBytes int64
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	if d.ASRTimeout <= 0 {
		d.ASRTimeout = 300 * time.Second
	}
	if d.MaxOCRPages <= 0 {
		d.MaxOCRPages = 25
	}
	if d.MaxObjectBytes <= 0 {
		d.MaxObjectBytes = 50 << 20
	}
	return d
}

// ForFile selects the variant for a source kind. Youtube URIs are parsed
// here so an unusable link fails before any provider work starts.
func ForFile(kind materials.SourceKind, sourceURI string, deps Deps) (Extractor, error) {
	deps = deps.withDefaults()
	switch kind {
	case materials.SourceKindPDF:
		return &pdfExtractor{deps: deps}, nil
	case materials.SourceKindYouTube:
		if _, err := youtube.ParseVideoID(sourceURI); err != nil {
			return nil, fmt.Errorf("youtube source: %w", err)
		}
		return &youtubeExtractor{deps: deps}, nil
	case materials.SourceKindText:
		return &textExtractor{deps: deps}, nil
	case materials.SourceKindImage:
		return &imageExtractor{deps: deps}, nil
	default:
		return nil, fmt.Errorf("source kind %q: %w", kind, apperrors.ErrInvalidArgument)
	}
}

// downloadObject reads one stored object fully into memory, bounded by
// maxBytes. Extraction providers want whole buffers (Vision, native text),
// so streaming buys nothing here.
func downloadObject(ctx context.Context, bucket gcp.BucketService, category gcp.BucketCategory, key string, maxBytes int64) ([]byte, error) {
	if bucket == nil {
		return nil, fmt.Errorf("object storage unavailable")
	}
	if key == "" {
		return nil, fmt.Errorf("missing storage key: %w", apperrors.ErrInvalidArgument)
	}
	rc, err := bucket.Download(ctx, category, key)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if int64(len(b)) > maxBytes {
		return nil, fmt.Errorf("object %s exceeds %d byte limit", key, maxBytes)
	}
	return b, nil
}
