package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/platform/gcp"
)

// imageExtractor runs ocr over one uploaded image. There is no fallback
// path: empty ocr output fails the file.
type imageExtractor struct {
	deps Deps
}

func (e *imageExtractor) Extract(ctx context.Context, in Input) (*Result, error) {
	if e.deps.Vision == nil {
		return nil, fmt.Errorf("image extract: vision provider unavailable")
	}

	data, err := downloadObject(ctx, e.deps.Bucket, gcp.BucketCategoryMaterial, in.StorageKey, e.deps.MaxObjectBytes)
	if err != nil {
		return nil, fmt.Errorf("image extract: %w", err)
	}

	ocr, err := e.deps.Vision.OCRImageBytes(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("image extract %s: ocr: %v: %w", in.StorageKey, err, apperrors.ErrExtractionFailed)
	}

	text := strings.TrimSpace(ocr.PrimaryText)
	if text == "" {
		return nil, fmt.Errorf("image extract %s: ocr found no text: %w", in.StorageKey, apperrors.ErrExtractionFailed)
	}

	seg := materials.SourceSegment{
		Text:       text,
		Confidence: ocr.Confidence,
		Metadata: map[string]any{
			"kind":     "ocr_text",
			"provider": "gcp_vision",
		},
	}

	return &Result{
		Kind:     materials.SourceKindImage,
		Segments: NormalizeSegments([]materials.SourceSegment{seg}),
		Warnings: ocr.Warnings,
		Diagnostics: map[string]any{
			"pipeline": "image",
			"ocr_len":  len(text),
		},
	}, nil
}
