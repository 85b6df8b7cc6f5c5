package extractor

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
)

func CollapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}

func SanitizeUTF8(s string) string {
	if s == "" || utf8.ValidString(s) {
		return s
	}
	// Replace invalid byte sequences with a space (keeps words separated)
	return strings.ToValidUTF8(s, " ")
}

// NormalizeSegments trims, drops empties, and dedupes exact repeats while
// keeping order. Providers occasionally emit the same caption or page text
// twice; one copy is enough.
func NormalizeSegments(in []materials.SourceSegment) []materials.SourceSegment {
	out := make([]materials.SourceSegment, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		t := strings.TrimSpace(SanitizeUTF8(s.Text))
		if t == "" {
			continue
		}
		s.Text = t
		key := segmentKey(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func segmentKey(s materials.SourceSegment) string {
	var b strings.Builder
	b.WriteString(s.Text)
	b.WriteString("|")
	if s.Page != nil {
		fmt.Fprintf(&b, "p=%d", *s.Page)
	}
	if s.StartSec != nil {
		fmt.Fprintf(&b, "s=%.3f", *s.StartSec)
	}
	if s.EndSec != nil {
		fmt.Fprintf(&b, "e=%.3f", *s.EndSec)
	}
	if s.Metadata != nil {
		if k, ok := s.Metadata["kind"]; ok {
			fmt.Fprintf(&b, "|k=%v", k)
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// sortSegmentsByPage orders paged segments ascending; segments without a
// page keep their relative order at the end.
func sortSegmentsByPage(segs []materials.SourceSegment) {
	sort.SliceStable(segs, func(i, j int) bool {
		pi, pj := segs[i].Page, segs[j].Page
		if pi == nil || pj == nil {
			return pj == nil && pi != nil
		}
		return *pi < *pj
	})
}

// ClassifyKind infers the source kind for an upload from its name, mime
// type, and leading bytes. Youtube never passes through here; links are
// classified by URI shape at registration.
func ClassifyKind(name, mime string, head []byte) (materials.SourceKind, error) {
	m := strings.ToLower(strings.TrimSpace(mime))
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case m == "application/pdf" || ext == ".pdf" || isPDFHeader(head):
		return materials.SourceKindPDF, nil
	case strings.HasPrefix(m, "image/") || ext == ".png" || ext == ".jpg" || ext == ".jpeg" || ext == ".webp":
		return materials.SourceKindImage, nil
	case strings.HasPrefix(m, "text/") || ext == ".txt" || ext == ".md" || ext == ".html":
		return materials.SourceKindText, nil
	}
	return "", fmt.Errorf("unsupported upload type mime=%q ext=%q: %w", mime, ext, apperrors.ErrInvalidArgument)
}

func isPDFHeader(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

var htmlTagRE = regexp.MustCompile(`(?s)<[^>]*>`)

// decodeNativeText turns a txt/md/html upload into plain text. Binary
// payloads that merely carry a text extension are rejected.
func decodeNativeText(name, mime string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no data")
	}
	m := strings.ToLower(strings.TrimSpace(mime))
	ext := strings.ToLower(filepath.Ext(name))

	s := SanitizeUTF8(string(data))
	if m == "text/html" || ext == ".html" || ext == ".htm" {
		s = htmlTagRE.ReplaceAllString(s, " ")
	}

	printable := 0
	total := 0
	for _, r := range s {
		total++
		if r == '\n' || r == '\r' || r == '\t' || r == ' ' || (r >= 32 && r != 127) {
			printable++
		}
	}
	if total == 0 || float64(printable)/float64(total) < 0.90 {
		return "", fmt.Errorf("content does not look like text (mime=%q ext=%q)", mime, ext)
	}
	return s, nil
}

// splitBlocks produces one whitespace-collapsed block per blank-line
// paragraph.
func splitBlocks(text string) []string {
	var out []string
	for _, raw := range blankLineSplitRE.Split(text, -1) {
		b := CollapseWhitespace(raw)
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

var blankLineSplitRE = regexp.MustCompile(`\n[ \t\r]*\n`)
