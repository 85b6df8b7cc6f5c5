package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
)

// DefaultTargetTokens bounds one chunk at roughly a paragraph of prose.
// Token counts are estimated at four characters per token throughout the
// pipeline, so a chunk's rune budget is targetTokens*4.
const DefaultTargetTokens = 200

// EstimateTokens is the pipeline-wide token estimate: len/4.
func EstimateTokens(s string) int { return len(s) / 4 }

// Piece is one chunk of extracted text carrying the provenance it
// inherited from its source segment. Seg indexes into the segment slice
// the piece was chunked from.
type Piece struct {
	Index    int
	Seg      int
	Text     string
	Page     *int
	StartSec *float64
	EndSec   *float64
}

// ChunkSegments chunks ordered extraction segments. Page-coded segments are
// chunked one at a time so every piece keeps its page. Time-coded
// transcripts are joined and chunked as one text, each piece taking the
// window of the segment whose cumulative offset sits nearest the piece
// midpoint, ties toward the earlier segment.
func ChunkSegments(segs []materials.SourceSegment, targetTokens int) []Piece {
	for _, s := range segs {
		if s.StartSec != nil {
			return chunkTimeCoded(segs, targetTokens)
		}
	}
	return chunkPaged(segs, targetTokens)
}

func chunkPaged(segs []materials.SourceSegment, targetTokens int) []Piece {
	var out []Piece
	for si, s := range segs {
		for _, t := range Split(s.Text, targetTokens) {
			out = append(out, Piece{
				Index:    len(out),
				Seg:      si,
				Text:     t,
				Page:     s.Page,
				StartSec: s.StartSec,
				EndSec:   s.EndSec,
			})
		}
	}
	return out
}

func chunkTimeCoded(segs []materials.SourceSegment, targetTokens int) []Piece {
	joined, offsets := JoinWithOffsets(segs)
	pieces := splitWithOffsets(joined, targetTokens)
	out := make([]Piece, 0, len(pieces))
	for _, p := range pieces {
		i := NearestOffsetIndex(offsets, p.off+len(p.text)/2)
		if i < 0 {
			continue
		}
		out = append(out, Piece{
			Index:    len(out),
			Seg:      i,
			Text:     p.text,
			Page:     segs[i].Page,
			StartSec: segs[i].StartSec,
			EndSec:   segs[i].EndSec,
		})
	}
	return out
}

// Split breaks text into pieces of at most targetTokens estimated tokens,
// preferring paragraph boundaries, then sentence boundaries, then word
// boundaries. Never cuts inside a rune.
func Split(text string, targetTokens int) []string {
	pieces := splitWithOffsets(text, targetTokens)
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, p.text)
	}
	return out
}

// piecePos is a piece of text plus the byte offset of its first
// non-whitespace rune in the original input.
type piecePos struct {
	text string
	off  int
}

func splitWithOffsets(text string, targetTokens int) []piecePos {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if targetTokens <= 0 {
		targetTokens = DefaultTargetTokens
	}
	budget := targetTokens * 4

	paras := splitParagraphs(text)
	out := make([]piecePos, 0, len(paras))

	var cur strings.Builder
	curOff := 0
	curRunes := 0
	flush := func() {
		t := strings.TrimSpace(cur.String())
		if t != "" {
			out = append(out, piecePos{text: t, off: curOff})
		}
		cur.Reset()
		curRunes = 0
	}

	for _, p := range paras {
		n := utf8.RuneCountInString(p.text)
		if n > budget {
			flush()
			out = append(out, splitLongBlock(p.text, p.off, budget)...)
			continue
		}
		if cur.Len() > 0 && curRunes+2+n > budget {
			flush()
		}
		if cur.Len() == 0 {
			curOff = p.off
		} else {
			cur.WriteString("\n\n")
			curRunes += 2
		}
		cur.WriteString(p.text)
		curRunes += n
	}
	flush()
	return out
}

var blankLineRE = regexp.MustCompile(`\n[ \t\r]*\n[ \t\r\n]*`)

// splitParagraphs splits on blank lines, keeping each block's byte offset.
func splitParagraphs(text string) []piecePos {
	var out []piecePos
	start := 0
	for _, m := range blankLineRE.FindAllStringIndex(text, -1) {
		appendBlock(&out, text, start, m[0])
		start = m[1]
	}
	appendBlock(&out, text, start, len(text))
	return out
}

func appendBlock(out *[]piecePos, text string, start, end int) {
	raw := text[start:end]
	lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
	t := strings.TrimSpace(raw)
	if t == "" {
		return
	}
	*out = append(*out, piecePos{text: t, off: start + lead})
}

// splitLongBlock handles a single paragraph over budget: accumulate whole
// sentences, word-wrapping any sentence that alone exceeds the budget.
func splitLongBlock(block string, off int, budget int) []piecePos {
	sents := splitSentences(block, off)
	var out []piecePos

	var cur strings.Builder
	curOff := 0
	curRunes := 0
	flush := func() {
		t := strings.TrimSpace(cur.String())
		if t != "" {
			out = append(out, piecePos{text: t, off: curOff})
		}
		cur.Reset()
		curRunes = 0
	}

	for _, s := range sents {
		n := utf8.RuneCountInString(s.text)
		if n > budget {
			flush()
			out = append(out, wrapWords(s.text, s.off, budget)...)
			continue
		}
		if cur.Len() > 0 && curRunes+1+n > budget {
			flush()
		}
		if cur.Len() == 0 {
			curOff = s.off
		} else {
			cur.WriteString(" ")
			curRunes++
		}
		cur.WriteString(s.text)
		curRunes += n
	}
	flush()
	return out
}

// splitSentences breaks a block after terminal punctuation followed by
// whitespace, or at a bare newline. Offsets are byte positions relative to
// the text splitParagraphs saw.
func splitSentences(block string, base int) []piecePos {
	var out []piecePos
	start := 0
	for i := 0; i < len(block); i++ {
		boundary := false
		switch block[i] {
		case '\n':
			boundary = true
		case '.', '!', '?':
			if i+1 >= len(block) || block[i+1] == ' ' || block[i+1] == '\t' || block[i+1] == '\n' {
				boundary = true
			}
		}
		if !boundary {
			continue
		}
		emitSentence(&out, block, base, start, i+1)
		start = i + 1
	}
	emitSentence(&out, block, base, start, len(block))
	return out
}

func emitSentence(out *[]piecePos, block string, base, start, end int) {
	raw := block[start:end]
	lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
	t := strings.TrimSpace(raw)
	if t == "" {
		return
	}
	*out = append(*out, piecePos{text: t, off: base + start + lead})
}

// wrapWords hard-wraps an overlong sentence at the last space inside each
// budget window, cutting mid-word only when a single word exceeds the
// budget on its own.
func wrapWords(s string, off int, budget int) []piecePos {
	r := []rune(s)
	var out []piecePos
	start := 0
	byteOff := 0
	for start < len(r) {
		end := start + budget
		if end >= len(r) {
			end = len(r)
		} else {
			cut := -1
			for i := end; i > start; i-- {
				if unicode.IsSpace(r[i-1]) {
					cut = i
					break
				}
			}
			if cut > start {
				end = cut
			}
		}
		seg := string(r[start:end])
		lead := len(seg) - len(strings.TrimLeft(seg, " \t\r\n"))
		t := strings.TrimSpace(seg)
		if t != "" {
			out = append(out, piecePos{text: t, off: off + byteOff + lead})
		}
		byteOff += len(seg)
		start = end
	}
	return out
}
