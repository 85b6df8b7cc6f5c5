package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/fieldmaskpb"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/pkg/ctxutil"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
)

// DocAI extracts the native text layer of a document through Google
// Document AI. One processor serves the whole deployment; its coordinates
// come from env at construction.
type DocAI interface {
	ProcessBytes(ctx context.Context, data []byte, mimeType string) (*DocAIResult, error)
	ProcessGCSOnline(ctx context.Context, gcsURI string, mimeType string) (*DocAIResult, error)
	Close() error
}

// DocAIResult carries one segment per page that yielded text. PageCount
// covers every page of the source, so callers can tell which pages came
// back empty and route those through OCR instead.
type DocAIResult struct {
	Provider    string                    `json:"provider"`
	Processor   string                    `json:"processor"`
	MimeType    string                    `json:"mime_type"`
	PageCount   int                       `json:"page_count"`
	PrimaryText string                    `json:"primary_text"`
	Segments    []materials.SourceSegment `json:"segments,omitempty"`
	Warnings    []string                  `json:"warnings,omitempty"`
}

// EmptyPages returns the 1-based numbers of pages that produced no text.
func (r *DocAIResult) EmptyPages() []int {
	if r == nil || r.PageCount <= 0 {
		return nil
	}
	seen := make(map[int]bool, len(r.Segments))
	for _, seg := range r.Segments {
		if seg.Page != nil {
			seen[*seg.Page] = true
		}
	}
	var out []int
	for p := 1; p <= r.PageCount; p++ {
		if !seen[p] {
			out = append(out, p)
		}
	}
	return out
}

type docAIService struct {
	log       *logger.Logger
	client    *documentai.DocumentProcessorClient
	processor string
}

func NewDocAI(log *logger.Logger) (DocAI, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.DocAI")

	projectID := strings.TrimSpace(envutil.String("DOCUMENTAI_PROJECT_ID", envutil.String("GOOGLE_CLOUD_PROJECT", "")))
	if projectID == "" {
		return nil, fmt.Errorf("missing env var DOCUMENTAI_PROJECT_ID")
	}
	processorID := strings.TrimSpace(envutil.String("DOCUMENTAI_PROCESSOR_ID", ""))
	if processorID == "" {
		return nil, fmt.Errorf("missing env var DOCUMENTAI_PROCESSOR_ID")
	}
	location := strings.TrimSpace(envutil.String("DOCUMENTAI_LOCATION", "us"))
	version := strings.TrimSpace(envutil.String("DOCUMENTAI_PROCESSOR_VERSION", ""))

	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, ClientOptionsFromEnv()...)

	c, err := documentai.NewDocumentProcessorClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}

	slog.Info("Document AI initialized", "endpoint", endpoint, "location", location)

	return &docAIService{
		log:       slog,
		client:    c,
		processor: processorName(projectID, location, processorID, version),
	}, nil
}

func (s *docAIService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *docAIService) ProcessBytes(ctx context.Context, data []byte, mimeType string) (*DocAIResult, error) {
	if len(data) == 0 {
		return &DocAIResult{Provider: "gcp_documentai", Processor: s.processor, MimeType: mimeType}, nil
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	return s.process(ctx, mimeType, &documentaipb.ProcessRequest{
		Name: s.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
	})
}

func (s *docAIService) ProcessGCSOnline(ctx context.Context, gcsURI string, mimeType string) (*DocAIResult, error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	return s.process(ctx, mimeType, &documentaipb.ProcessRequest{
		Name: s.processor,
		Source: &documentaipb.ProcessRequest_GcsDocument{
			GcsDocument: &documentaipb.GcsDocument{
				GcsUri:   gcsURI,
				MimeType: mimeType,
			},
		},
	})
}

func (s *docAIService) process(ctx context.Context, mimeType string, req *documentaipb.ProcessRequest) (*DocAIResult, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	// Text and page structure are all the pipeline reads back.
	req.FieldMask = &fieldmaskpb.FieldMask{Paths: []string{"text", "pages"}}

	resp, err := s.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	if resp == nil || resp.Document == nil {
		return &DocAIResult{Provider: "gcp_documentai", Processor: s.processor, MimeType: mimeType}, nil
	}
	return buildDocAIResult(resp.Document, s.processor, mimeType), nil
}

// buildDocAIResult flattens a Document AI response into per-page segments.
// Table text is rendered as markdown and appended after the page's prose so
// downstream chunking sees it in reading order. Pages with no text at all
// are left out of Segments but still counted in PageCount.
func buildDocAIResult(doc *documentaipb.Document, processor string, mimeType string) *DocAIResult {
	out := &DocAIResult{
		Provider:  "gcp_documentai",
		Processor: processor,
		MimeType:  mimeType,
	}
	if doc == nil {
		return out
	}

	out.PrimaryText = strings.TrimSpace(doc.Text)
	out.PageCount = len(doc.Pages)

	for _, p := range doc.Pages {
		if p == nil {
			continue
		}
		pageNum := int(p.PageNumber)

		var pageText strings.Builder
		for _, para := range p.Paragraphs {
			if para == nil || para.Layout == nil || para.Layout.TextAnchor == nil {
				continue
			}
			t := strings.TrimSpace(textFromAnchor(doc.Text, para.Layout.TextAnchor))
			if t == "" {
				continue
			}
			pageText.WriteString(t)
			pageText.WriteString("\n")
		}

		tables := 0
		for _, table := range p.Tables {
			md := strings.TrimSpace(tableToMarkdown(doc.Text, table))
			if md == "" {
				continue
			}
			pageText.WriteString("\n")
			pageText.WriteString(md)
			pageText.WriteString("\n")
			tables++
		}

		pt := strings.TrimSpace(pageText.String())
		if pt == "" {
			continue
		}
		pn := pageNum
		meta := map[string]any{"kind": "page_text", "provider": "gcp_documentai"}
		if tables > 0 {
			meta["tables"] = tables
		}
		out.Segments = append(out.Segments, materials.SourceSegment{
			Text:     pt,
			Page:     &pn,
			Metadata: meta,
		})
	}

	// Some processors populate doc.Text but omit structured page paragraphs.
	if len(out.Segments) == 0 && out.PrimaryText != "" {
		out.Segments = append(out.Segments, materials.SourceSegment{
			Text:     out.PrimaryText,
			Metadata: map[string]any{"kind": "primary_text", "provider": "gcp_documentai"},
		})
		out.Warnings = append(out.Warnings, "document text present but no page paragraphs; emitted one unpaged segment")
	}

	return out
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(anchor.TextSegments) == 0 || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func tableToMarkdown(full string, t *documentaipb.Document_Page_Table) string {
	if t == nil {
		return ""
	}

	header := []string{}
	if len(t.HeaderRows) > 0 && t.HeaderRows[0] != nil {
		header = tableRowToCells(full, t.HeaderRows[0])
	}
	bodyRows := append([]*documentaipb.Document_Page_Table_TableRow{}, t.BodyRows...)

	if len(header) == 0 && len(bodyRows) > 0 && bodyRows[0] != nil {
		header = tableRowToCells(full, bodyRows[0])
		bodyRows = bodyRows[1:]
	}
	if len(header) == 0 {
		return ""
	}

	rows := [][]string{header}
	for _, r := range bodyRows {
		if r == nil {
			continue
		}
		rows = append(rows, tableRowToCells(full, r))
	}

	maxCols := 0
	for _, r := range rows {
		if len(r) > maxCols {
			maxCols = len(r)
		}
	}
	if maxCols == 0 {
		return ""
	}
	for i := range rows {
		for len(rows[i]) < maxCols {
			rows[i] = append(rows[i], "")
		}
	}

	var out strings.Builder
	out.WriteString("| ")
	out.WriteString(strings.Join(escapePipes(rows[0]), " | "))
	out.WriteString(" |\n| ")
	sep := make([]string, maxCols)
	for i := 0; i < maxCols; i++ {
		sep[i] = "---"
	}
	out.WriteString(strings.Join(sep, " | "))
	out.WriteString(" |\n")

	for i := 1; i < len(rows); i++ {
		out.WriteString("| ")
		out.WriteString(strings.Join(escapePipes(rows[i]), " | "))
		out.WriteString(" |\n")
	}
	return out.String()
}

func tableRowToCells(full string, r *documentaipb.Document_Page_Table_TableRow) []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Cells))
	for _, c := range r.Cells {
		if c == nil || c.Layout == nil || c.Layout.TextAnchor == nil {
			out = append(out, "")
			continue
		}
		out = append(out, strings.TrimSpace(textFromAnchor(full, c.Layout.TextAnchor)))
	}
	return out
}

func escapePipes(row []string) []string {
	out := make([]string, len(row))
	for i, s := range row {
		out[i] = strings.ReplaceAll(s, "|", "\\|")
	}
	return out
}

func processorName(project, location, processorID, version string) string {
	base := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
	if version != "" {
		return base + "/processorVersions/" + version
	}
	return base
}
