package gcp

import (
	"strings"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
)

func anchor(start, end int) *documentaipb.Document_TextAnchor {
	return &documentaipb.Document_TextAnchor{
		TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{
			{StartIndex: int64(start), EndIndex: int64(end)},
		},
	}
}

func paragraph(start, end int) *documentaipb.Document_Page_Paragraph {
	return &documentaipb.Document_Page_Paragraph{
		Layout: &documentaipb.Document_Page_Layout{TextAnchor: anchor(start, end)},
	}
}

func TestBuildDocAIResultPageSegmentsAndEmptyPages(t *testing.T) {
	text := "Cell theory basics.Mitochondria produce ATP."
	doc := &documentaipb.Document{
		Text: text,
		Pages: []*documentaipb.Document_Page{
			{
				PageNumber: 1,
				Paragraphs: []*documentaipb.Document_Page_Paragraph{paragraph(0, 19)},
			},
			// Scanned page: no text layer at all.
			{PageNumber: 2},
			{
				PageNumber: 3,
				Paragraphs: []*documentaipb.Document_Page_Paragraph{paragraph(19, 44)},
			},
		},
	}

	res := buildDocAIResult(doc, "projects/p/locations/us/processors/x", "application/pdf")
	if res.PageCount != 3 {
		t.Fatalf("PageCount: want=3 got=%d", res.PageCount)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("Segments: want=2 got=%d", len(res.Segments))
	}
	if res.Segments[0].Page == nil || *res.Segments[0].Page != 1 {
		t.Fatalf("first segment page: want=1 got=%v", res.Segments[0].Page)
	}
	if res.Segments[0].Text != "Cell theory basics." {
		t.Fatalf("first segment text: got=%q", res.Segments[0].Text)
	}
	if res.Segments[1].Page == nil || *res.Segments[1].Page != 3 {
		t.Fatalf("second segment page: want=3 got=%v", res.Segments[1].Page)
	}

	empty := res.EmptyPages()
	if len(empty) != 1 || empty[0] != 2 {
		t.Fatalf("EmptyPages: want=[2] got=%v", empty)
	}
}

func TestBuildDocAIResultAppendsTableMarkdown(t *testing.T) {
	text := "IntroTermDefinitionOsmosisWater diffusion"
	doc := &documentaipb.Document{
		Text: text,
		Pages: []*documentaipb.Document_Page{
			{
				PageNumber: 1,
				Paragraphs: []*documentaipb.Document_Page_Paragraph{paragraph(0, 5)},
				Tables: []*documentaipb.Document_Page_Table{
					{
						HeaderRows: []*documentaipb.Document_Page_Table_TableRow{
							{Cells: []*documentaipb.Document_Page_Table_TableCell{
								{Layout: &documentaipb.Document_Page_Layout{TextAnchor: anchor(5, 9)}},
								{Layout: &documentaipb.Document_Page_Layout{TextAnchor: anchor(9, 19)}},
							}},
						},
						BodyRows: []*documentaipb.Document_Page_Table_TableRow{
							{Cells: []*documentaipb.Document_Page_Table_TableCell{
								{Layout: &documentaipb.Document_Page_Layout{TextAnchor: anchor(19, 26)}},
								{Layout: &documentaipb.Document_Page_Layout{TextAnchor: anchor(26, 41)}},
							}},
						},
					},
				},
			},
		},
	}

	res := buildDocAIResult(doc, "p", "application/pdf")
	if len(res.Segments) != 1 {
		t.Fatalf("Segments: want=1 got=%d", len(res.Segments))
	}
	got := res.Segments[0].Text
	if !strings.HasPrefix(got, "Intro") {
		t.Fatalf("segment should open with paragraph text: %q", got)
	}
	if !strings.Contains(got, "| Term | Definition |") {
		t.Fatalf("segment should contain table header row: %q", got)
	}
	if !strings.Contains(got, "| Osmosis | Water diffusion |") {
		t.Fatalf("segment should contain table body row: %q", got)
	}
	if res.Segments[0].Metadata["tables"] != 1 {
		t.Fatalf("tables metadata: want=1 got=%v", res.Segments[0].Metadata["tables"])
	}
}

func TestBuildDocAIResultFallsBackToPrimaryText(t *testing.T) {
	doc := &documentaipb.Document{Text: "Loose text with no page structure."}

	res := buildDocAIResult(doc, "p", "application/pdf")
	if res.PageCount != 0 {
		t.Fatalf("PageCount: want=0 got=%d", res.PageCount)
	}
	if len(res.Segments) != 1 {
		t.Fatalf("Segments: want=1 got=%d", len(res.Segments))
	}
	if res.Segments[0].Page != nil {
		t.Fatalf("fallback segment must be unpaged, got page=%v", *res.Segments[0].Page)
	}
	if res.Segments[0].Text != "Loose text with no page structure." {
		t.Fatalf("fallback segment text: got=%q", res.Segments[0].Text)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a warning about missing page paragraphs")
	}
}

func TestProcessorNameWithVersion(t *testing.T) {
	got := processorName("proj", "us", "abc123", "v2")
	want := "projects/proj/locations/us/processors/abc123/processorVersions/v2"
	if got != want {
		t.Fatalf("processorName: want=%q got=%q", want, got)
	}

	got = processorName("proj", "eu", "abc123", "")
	want = "projects/proj/locations/eu/processors/abc123"
	if got != want {
		t.Fatalf("processorName: want=%q got=%q", want, got)
	}
}
