package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/platform/gcp"
)

// pdfExtractor reads the text layer page by page, then routes pages the
// text layer left empty through ocr. Scanned documents have no text layer
// at all, so a dead text layer falls back to ocr'ing the leading pages.
type pdfExtractor struct {
	deps Deps
}

func (e *pdfExtractor) Extract(ctx context.Context, in Input) (*Result, error) {
	log := e.deps.Log.With("extractor", "pdf", "file_id", in.FileID)
	if in.StorageKey == "" {
		return nil, fmt.Errorf("pdf extract: missing storage key: %w", apperrors.ErrInvalidArgument)
	}

	res := &Result{
		Kind:        materials.SourceKindPDF,
		Diagnostics: map[string]any{"pipeline": "pdf"},
	}

	var (
		docRes   *gcp.DocAIResult
		docErr   error
		pdfBytes []byte
	)
	switch {
	case e.deps.DocAI == nil:
		docErr = fmt.Errorf("document provider unavailable")
	case e.deps.Bucket != nil && e.deps.Bucket.Mode() == gcp.ObjectStorageModeGCS:
		uri := e.deps.Bucket.ObjectURI(gcp.BucketCategoryMaterial, in.StorageKey)
		docRes, docErr = e.deps.DocAI.ProcessGCSOnline(ctx, uri, "application/pdf")
	default:
		// Emulator-hosted objects are not reachable from Document AI, so
		// feed it bytes instead.
		pdfBytes, docErr = e.download(ctx, in.StorageKey)
		if docErr == nil {
			docRes, docErr = e.deps.DocAI.ProcessBytes(ctx, pdfBytes, "application/pdf")
		}
	}

	var segs []materials.SourceSegment
	var ocrPages []int
	if docErr != nil {
		log.Warn("text layer extraction failed", "error", docErr)
		res.Warnings = append(res.Warnings, "text layer extraction failed: "+docErr.Error())
		res.Diagnostics["text_layer_error"] = docErr.Error()
		for p := 1; p <= e.deps.MaxOCRPages; p++ {
			ocrPages = append(ocrPages, p)
		}
	} else {
		segs = append(segs, docRes.Segments...)
		res.Warnings = append(res.Warnings, docRes.Warnings...)
		res.Diagnostics["page_count"] = docRes.PageCount
		res.Diagnostics["text_layer_len"] = len(docRes.PrimaryText)
		ocrPages = docRes.EmptyPages()
	}

	if len(ocrPages) > e.deps.MaxOCRPages {
		res.Warnings = append(res.Warnings, fmt.Sprintf("ocr fallback truncated to %d of %d empty pages", e.deps.MaxOCRPages, len(ocrPages)))
		ocrPages = ocrPages[:e.deps.MaxOCRPages]
	}

	if len(ocrPages) > 0 {
		ocrSegs, warns := e.ocrPages(ctx, in, pdfBytes, ocrPages, res.Diagnostics)
		segs = append(segs, ocrSegs...)
		res.Warnings = append(res.Warnings, warns...)
	}

	segs = NormalizeSegments(segs)
	sortSegmentsByPage(segs)
	if len(segs) == 0 {
		if docErr != nil {
			return nil, fmt.Errorf("pdf %s: no text from text layer or ocr (%v): %w", in.StorageKey, docErr, apperrors.ErrExtractionFailed)
		}
		return nil, fmt.Errorf("pdf %s: no text from text layer or ocr: %w", in.StorageKey, apperrors.ErrExtractionFailed)
	}

	res.Segments = segs
	return res, nil
}

func (e *pdfExtractor) ocrPages(ctx context.Context, in Input, pdfBytes []byte, pages []int, diag map[string]any) ([]materials.SourceSegment, []string) {
	if e.deps.Vision == nil {
		return nil, []string{"ocr fallback skipped: vision provider unavailable"}
	}
	if pdfBytes == nil {
		var err error
		pdfBytes, err = e.download(ctx, in.StorageKey)
		if err != nil {
			return nil, []string{"ocr fallback skipped: " + err.Error()}
		}
	}

	pageText, err := e.deps.Vision.OCRPDFPages(ctx, pdfBytes, pages)
	if err != nil {
		diag["ocr_error"] = err.Error()
		return nil, []string{"ocr fallback failed: " + err.Error()}
	}
	diag["ocr_pages"] = len(pageText)

	segs := make([]materials.SourceSegment, 0, len(pageText))
	for page, txt := range pageText {
		if strings.TrimSpace(txt) == "" {
			continue
		}
		p := page
		segs = append(segs, materials.SourceSegment{
			Text: txt,
			Page: &p,
			Metadata: map[string]any{
				"kind":     "ocr_text",
				"provider": "gcp_vision",
			},
		})
	}
	return segs, nil
}

func (e *pdfExtractor) download(ctx context.Context, key string) ([]byte, error) {
	return downloadObject(ctx, e.deps.Bucket, gcp.BucketCategoryMaterial, key, e.deps.MaxObjectBytes)
}
