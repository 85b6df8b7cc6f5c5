package extractor

import (
	"context"
	"fmt"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/platform/gcp"
)

// textExtractor decodes txt/md/html uploads natively: one segment per
// blank-line block, whitespace collapsed.
type textExtractor struct {
	deps Deps
}

func (e *textExtractor) Extract(ctx context.Context, in Input) (*Result, error) {
	data, err := downloadObject(ctx, e.deps.Bucket, gcp.BucketCategoryMaterial, in.StorageKey, e.deps.MaxObjectBytes)
	if err != nil {
		return nil, fmt.Errorf("text extract: %w", err)
	}

	text, err := decodeNativeText(in.Name, in.MimeType, data)
	if err != nil {
		return nil, fmt.Errorf("text extract %s: %v: %w", in.StorageKey, err, apperrors.ErrExtractionFailed)
	}

	blocks := splitBlocks(text)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("text extract %s: decoded empty: %w", in.StorageKey, apperrors.ErrExtractionFailed)
	}

	segs := make([]materials.SourceSegment, 0, len(blocks))
	for _, b := range blocks {
		segs = append(segs, materials.SourceSegment{
			Text:     b,
			Metadata: map[string]any{"kind": "native_text"},
		})
	}

	return &Result{
		Kind:     materials.SourceKindText,
		Segments: NormalizeSegments(segs),
		Diagnostics: map[string]any{
			"pipeline": "text",
			"blocks":   len(blocks),
		},
	}, nil
}
