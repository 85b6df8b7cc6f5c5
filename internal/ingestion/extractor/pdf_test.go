package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/gcp"
)

func pdfInput() Input {
	return Input{
		FileID:     uuid.New(),
		Name:       "lecture.pdf",
		MimeType:   "application/pdf",
		StorageKey: "materials/u1/f1/lecture.pdf",
		Language:   "en",
	}
}

func pdfDeps(bucket *fakeBucket, docai *fakeDocAI, vision *fakeVision) Deps {
	return Deps{
		Log:    logger.NewNop(),
		Bucket: bucket,
		DocAI:  docai,
		Vision: vision,
	}
}

func threePageDocAIResult() *gcp.DocAIResult {
	return &gcp.DocAIResult{
		Provider:    "gcp_documentai",
		MimeType:    "application/pdf",
		PageCount:   3,
		PrimaryText: "Photosynthesis overview. Calvin cycle detail.",
		Segments: []materials.SourceSegment{
			{Text: "Photosynthesis overview.", Page: materials.PtrInt(1), Metadata: map[string]any{"kind": "page_text"}},
			{Text: "Calvin cycle detail.", Page: materials.PtrInt(3), Metadata: map[string]any{"kind": "page_text"}},
		},
	}
}

func TestPDFRoutesEmptyPagesThroughOCR(t *testing.T) {
	in := pdfInput()
	bucket := newFakeBucket(gcp.ObjectStorageModeGCS)
	bucket.put(gcp.BucketCategoryMaterial, in.StorageKey, []byte("%PDF-1.7 fake"))
	docai := &fakeDocAI{res: threePageDocAIResult()}
	vision := &fakeVision{pageText: map[int]string{2: "Light reactions diagram text."}}

	ex, err := ForFile(materials.SourceKindPDF, "", pdfDeps(bucket, docai, vision))
	if err != nil {
		t.Fatalf("ForFile: %v", err)
	}
	res, err := ex.Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if docai.gcsCalls != 1 || docai.byteCalls != 0 {
		t.Fatalf("docai calls gcs=%d bytes=%d, want 1/0", docai.gcsCalls, docai.byteCalls)
	}
	if want := "gs://test-material/" + in.StorageKey; docai.lastURI != want {
		t.Fatalf("docai uri = %q, want %q", docai.lastURI, want)
	}
	if len(vision.gotPages) != 1 || vision.gotPages[0] != 2 {
		t.Fatalf("ocr pages = %v, want [2]", vision.gotPages)
	}

	if len(res.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(res.Segments))
	}
	for i, want := range []int{1, 2, 3} {
		if res.Segments[i].Page == nil || *res.Segments[i].Page != want {
			t.Fatalf("segment %d page = %v, want %d", i, res.Segments[i].Page, want)
		}
	}
	if kind := res.Segments[1].Metadata["kind"]; kind != "ocr_text" {
		t.Fatalf("page 2 segment kind = %v, want ocr_text", kind)
	}
}

func TestPDFEmulatorModeFeedsBytes(t *testing.T) {
	in := pdfInput()
	bucket := newFakeBucket(gcp.ObjectStorageModeGCSEmulator)
	raw := []byte("%PDF-1.7 emulator copy")
	bucket.put(gcp.BucketCategoryMaterial, in.StorageKey, raw)
	docai := &fakeDocAI{res: &gcp.DocAIResult{
		PageCount: 1,
		Segments: []materials.SourceSegment{
			{Text: "Full page text.", Page: materials.PtrInt(1)},
		},
	}}

	ex, _ := ForFile(materials.SourceKindPDF, "", pdfDeps(bucket, docai, &fakeVision{}))
	if _, err := ex.Extract(context.Background(), in); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if docai.byteCalls != 1 || docai.gcsCalls != 0 {
		t.Fatalf("docai calls bytes=%d gcs=%d, want 1/0", docai.byteCalls, docai.gcsCalls)
	}
	if string(docai.lastBytes) != string(raw) {
		t.Fatalf("docai bytes = %q, want stored object", docai.lastBytes)
	}
}

func TestPDFDeadTextLayerProbesLeadingPages(t *testing.T) {
	in := pdfInput()
	bucket := newFakeBucket(gcp.ObjectStorageModeGCS)
	bucket.put(gcp.BucketCategoryMaterial, in.StorageKey, []byte("%PDF-1.4 scanned"))
	docai := &fakeDocAI{err: errors.New("processor rejected document")}
	vision := &fakeVision{pageText: map[int]string{1: "Scanned page one text.", 2: "Scanned page two text."}}

	deps := pdfDeps(bucket, docai, vision)
	deps.MaxOCRPages = 5
	ex, _ := ForFile(materials.SourceKindPDF, "", deps)

	res, err := ex.Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(vision.gotPages) != 5 {
		t.Fatalf("ocr probe pages = %v, want 1..5", vision.gotPages)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(res.Segments))
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a text-layer warning")
	}
}

func TestPDFNoTextAnywhereFails(t *testing.T) {
	in := pdfInput()
	bucket := newFakeBucket(gcp.ObjectStorageModeGCS)
	bucket.put(gcp.BucketCategoryMaterial, in.StorageKey, []byte("%PDF-1.4"))
	docai := &fakeDocAI{err: errors.New("processor unavailable")}
	vision := &fakeVision{pageText: map[int]string{}}

	ex, _ := ForFile(materials.SourceKindPDF, "", pdfDeps(bucket, docai, vision))
	_, err := ex.Extract(context.Background(), in)
	if !errors.Is(err, apperrors.ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
}

func TestPDFBlankOCRPagesDropped(t *testing.T) {
	in := pdfInput()
	bucket := newFakeBucket(gcp.ObjectStorageModeGCS)
	bucket.put(gcp.BucketCategoryMaterial, in.StorageKey, []byte("%PDF-1.7"))
	docai := &fakeDocAI{res: threePageDocAIResult()}
	vision := &fakeVision{pageText: map[int]string{2: "   "}}

	ex, _ := ForFile(materials.SourceKindPDF, "", pdfDeps(bucket, docai, vision))
	res, err := ex.Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	// Page 2 ocr'd blank: only the two text-layer pages remain.
	if len(res.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(res.Segments))
	}
}
