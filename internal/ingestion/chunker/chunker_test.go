package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
)

func sentenceText(n int, marker string) string {
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, "This "+marker+" sentence carries enough words to cost about twelve tokens total.")
	}
	return strings.Join(parts, " ")
}

func TestSplitShortTextStaysWhole(t *testing.T) {
	got := Split("A short note about osmosis.", 200)
	if len(got) != 1 {
		t.Fatalf("pieces = %d, want 1", len(got))
	}
	if got[0] != "A short note about osmosis." {
		t.Fatalf("piece = %q", got[0])
	}
}

func TestSplitEmptyText(t *testing.T) {
	if got := Split("   \n\n  ", 200); got != nil {
		t.Fatalf("pieces = %v, want nil", got)
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	// Two paragraphs, each roughly 150 tokens: together they blow the
	// budget, so the split must land exactly on the blank line.
	p1 := sentenceText(8, "first")
	p2 := sentenceText(8, "second")
	got := Split(p1+"\n\n"+p2, 200)

	if len(got) != 2 {
		t.Fatalf("pieces = %d, want 2", len(got))
	}
	if got[0] != p1 {
		t.Fatalf("piece 0 is not the first paragraph:\n%q", got[0])
	}
	if got[1] != p2 {
		t.Fatalf("piece 1 is not the second paragraph:\n%q", got[1])
	}
}

func TestSplitPacksSmallParagraphsTogether(t *testing.T) {
	paras := []string{
		sentenceText(3, "alpha"),
		sentenceText(3, "beta"),
		sentenceText(3, "gamma"),
	}
	got := Split(strings.Join(paras, "\n\n"), 200)
	// Three small paragraphs fit one 200-token chunk.
	if len(got) != 1 {
		t.Fatalf("pieces = %d, want 1 (got %#v)", len(got), got)
	}
	for _, p := range paras {
		if !strings.Contains(got[0], p) {
			t.Fatalf("merged piece lost a paragraph: %q", p)
		}
	}
}

func TestSplitLongParagraphBreaksAtSentences(t *testing.T) {
	text := sentenceText(40, "long")
	got := Split(text, 200)
	if len(got) < 2 {
		t.Fatalf("pieces = %d, want >= 2", len(got))
	}
	for i, p := range got {
		if utf8.RuneCountInString(p) > 200*4 {
			t.Fatalf("piece %d over budget: %d runes", i, utf8.RuneCountInString(p))
		}
		if !strings.HasSuffix(p, "total.") {
			t.Fatalf("piece %d does not end on a sentence boundary: %q", i, p[len(p)-40:])
		}
	}
}

func TestSplitNeverCutsWordsOnWrap(t *testing.T) {
	// One sentence with no terminal punctuation until the very end, far
	// over budget: wrapping must land on spaces.
	word := "photosynthesis"
	text := strings.TrimSpace(strings.Repeat(word+" ", 400)) + "."
	got := Split(text, 50)
	if len(got) < 2 {
		t.Fatalf("pieces = %d, want >= 2", len(got))
	}
	for i, p := range got {
		for _, w := range strings.Fields(strings.TrimSuffix(p, ".")) {
			if w != word {
				t.Fatalf("piece %d contains a cut word %q", i, w)
			}
		}
	}
}

func TestSplitRuneSafe(t *testing.T) {
	text := strings.Repeat("細胞は生命の基本単位です。", 300)
	got := Split(text, 100)
	if len(got) < 2 {
		t.Fatalf("pieces = %d, want >= 2", len(got))
	}
	for i, p := range got {
		if !utf8.ValidString(p) {
			t.Fatalf("piece %d is not valid UTF-8", i)
		}
		if strings.TrimSpace(p) == "" {
			t.Fatalf("piece %d is blank", i)
		}
	}
}

func TestChunkSegmentsPageInheritance(t *testing.T) {
	segs := []materials.SourceSegment{
		{Text: sentenceText(3, "pageone"), Page: materials.PtrInt(1)},
		{Text: sentenceText(3, "pagetwo"), Page: materials.PtrInt(2)},
	}
	got := ChunkSegments(segs, 200)
	if len(got) != 2 {
		t.Fatalf("pieces = %d, want 2", len(got))
	}
	for i, p := range got {
		if p.Index != i {
			t.Fatalf("piece %d index = %d", i, p.Index)
		}
		if p.Page == nil || *p.Page != i+1 {
			t.Fatalf("piece %d page = %v, want %d", i, p.Page, i+1)
		}
		if p.StartSec != nil || p.EndSec != nil {
			t.Fatalf("piece %d carries a time window on a paged source", i)
		}
	}
}

func TestChunkSegmentsPageSplitKeepsPage(t *testing.T) {
	segs := []materials.SourceSegment{
		{Text: sentenceText(40, "dense"), Page: materials.PtrInt(7)},
	}
	got := ChunkSegments(segs, 200)
	if len(got) < 2 {
		t.Fatalf("pieces = %d, want >= 2", len(got))
	}
	for i, p := range got {
		if p.Page == nil || *p.Page != 7 {
			t.Fatalf("piece %d page = %v, want 7", i, p.Page)
		}
	}
}

func TestChunkSegmentsTimeWindowsFromNearestSegment(t *testing.T) {
	segs := []materials.SourceSegment{
		{Text: sentenceText(12, "opening"), StartSec: materials.PtrFloat(0), EndSec: materials.PtrFloat(10)},
		{Text: sentenceText(12, "middle"), StartSec: materials.PtrFloat(10), EndSec: materials.PtrFloat(20)},
		{Text: sentenceText(12, "closing"), StartSec: materials.PtrFloat(20), EndSec: materials.PtrFloat(30)},
	}
	got := ChunkSegments(segs, 200)
	if len(got) < 3 {
		t.Fatalf("pieces = %d, want >= 3", len(got))
	}

	windows := map[float64]float64{0: 10, 10: 20, 20: 30}
	var lastStart float64 = -1
	for i, p := range got {
		if p.StartSec == nil || p.EndSec == nil {
			t.Fatalf("piece %d missing window", i)
		}
		end, ok := windows[*p.StartSec]
		if !ok || end != *p.EndSec {
			t.Fatalf("piece %d window [%v,%v] is not a segment window", i, *p.StartSec, *p.EndSec)
		}
		if *p.StartSec < lastStart {
			t.Fatalf("piece %d window start went backwards: %v after %v", i, *p.StartSec, lastStart)
		}
		lastStart = *p.StartSec
	}
	if *got[0].StartSec != 0 {
		t.Fatalf("first piece window start = %v, want 0", *got[0].StartSec)
	}
	if *got[len(got)-1].EndSec != 30 {
		t.Fatalf("last piece window end = %v, want 30", *got[len(got)-1].EndSec)
	}
}
