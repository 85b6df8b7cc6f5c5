package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/yungbote/studypath-backend/internal/pkg/ctxutil"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

// Vision OCRs content the text layer cannot cover: uploaded images, and
// individual PDF pages whose native text came back empty.
type Vision interface {
	OCRImageBytes(ctx context.Context, img []byte) (*VisionOCRResult, error)
	OCRPDFPages(ctx context.Context, pdf []byte, pages []int) (map[int]string, error)
	Close() error
}

type VisionOCRResult struct {
	Provider    string   `json:"provider"`
	PrimaryText string   `json:"primary_text"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Sync file annotation accepts at most five pages per request.
const visionPagesPerRequest = 5

type visionService struct {
	log    *logger.Logger
	client *vision.ImageAnnotatorClient
}

func NewVision(log *logger.Logger) (Vision, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.Vision")

	c, err := vision.NewImageAnnotatorClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}

	return &visionService{log: slog, client: c}, nil
}

func (s *visionService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *visionService) OCRImageBytes(ctx context.Context, img []byte) (*VisionOCRResult, error) {
	if len(img) == 0 {
		return &VisionOCRResult{Provider: "gcp_vision"}, nil
	}

	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	br := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: img},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}
	resp, err := s.client.BatchAnnotateImages(ctx, br)
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return &VisionOCRResult{Provider: "gcp_vision"}, nil
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}

	fta := r0.FullTextAnnotation
	if fta == nil || strings.TrimSpace(fta.Text) == "" {
		return &VisionOCRResult{Provider: "gcp_vision"}, nil
	}

	out := &VisionOCRResult{
		Provider:    "gcp_vision",
		PrimaryText: collapseWhitespace(fta.Text),
	}
	var sum float64
	var n int
	for _, pg := range fta.Pages {
		if pg == nil {
			continue
		}
		for _, b := range pg.Blocks {
			if b == nil {
				continue
			}
			sum += float64(b.Confidence)
			n++
		}
	}
	if n > 0 {
		out.Confidence = ptrFloat(sum / float64(n))
	}
	return out, nil
}

// OCRPDFPages runs document text detection over the named 1-based pages of
// an in-memory PDF and returns whatever text each produced. Pages absent
// from the result yielded nothing.
func (s *visionService) OCRPDFPages(ctx context.Context, pdf []byte, pages []int) (map[int]string, error) {
	out := map[int]string{}
	if len(pdf) == 0 || len(pages) == 0 {
		return out, nil
	}

	ctx = ctxutil.Default(ctx)

	for start := 0; start < len(pages); start += visionPagesPerRequest {
		end := start + visionPagesPerRequest
		if end > len(pages) {
			end = len(pages)
		}
		batch := make([]int32, 0, end-start)
		for _, p := range pages[start:end] {
			if p > 0 {
				batch = append(batch, int32(p))
			}
		}
		if len(batch) == 0 {
			continue
		}
		if err := s.ocrPDFBatch(ctx, pdf, batch, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *visionService) ocrPDFBatch(ctx context.Context, pdf []byte, pages []int32, out map[int]string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{
				Content:  pdf,
				MimeType: "application/pdf",
			},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			Pages:    pages,
		}},
	}

	resp, err := s.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return fmt.Errorf("vision BatchAnnotateFiles: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil
	}

	fr := resp.Responses[0]
	if fr.Error != nil && fr.Error.Message != "" {
		return fmt.Errorf("vision file annotate error: %s", fr.Error.Message)
	}

	for i, r := range fr.Responses {
		if r == nil {
			continue
		}
		if r.Error != nil && r.Error.Message != "" {
			s.log.Warn("vision page annotate error", "error", r.Error.Message)
			continue
		}
		pageNum := 0
		if r.Context != nil {
			pageNum = int(r.Context.PageNumber)
		}
		if pageNum == 0 && i < len(pages) {
			pageNum = int(pages[i])
		}
		if pageNum <= 0 || r.FullTextAnnotation == nil {
			continue
		}
		if t := collapseWhitespace(r.FullTextAnnotation.Text); t != "" {
			out[pageNum] = t
		}
	}
	return nil
}
