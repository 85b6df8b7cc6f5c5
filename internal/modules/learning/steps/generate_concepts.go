package steps

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	repos "github.com/yungbote/studypath-backend/internal/data/repos/learning"
	"github.com/yungbote/studypath-backend/internal/domain/learning"
	"github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/ingestion/chunker"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/openai"
)

// maxConceptsVideo is the hard per-file concept ceiling for video sources.
// Other source kinds read their cap from CONCEPT_CAP.
const maxConceptsVideo = 60

// ConceptCap is the per-file concept ceiling for a source kind. Custom
// concept creation enforces the same ceiling the generation step does.
func ConceptCap(kind materials.SourceKind) int {
	limit := envutil.Int("CONCEPT_CAP", maxConceptsVideo)
	if kind == materials.SourceKindYouTube && limit > maxConceptsVideo {
		limit = maxConceptsVideo
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

type GenerateConceptsDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Concepts repos.ConceptRepo
	AI       openai.Client
}

type GenerateConceptsInput struct {
	OwnerUserID uuid.UUID
	FileID      uuid.UUID
	Kind        materials.SourceKind
	Language    string
	Segments    []materials.SourceSegment
}

type GenerateConceptsOutput struct {
	ConceptsMade int `json:"concepts_made"`
	Dropped      int `json:"dropped"`
}

// GenerateConcepts prompts the model with the full extracted text, page- or
// timestamp-marked so it can see where ideas live, then truncates to the
// per-source cap, dedupes near-identical titles, and anchors each concept to
// a segment by locating its source quote in the unmarked text. Generated
// concepts from an earlier run are replaced; user-authored ones are kept.
// Zero usable concepts is terminal for the file, downstream materials need
// at least one.
func GenerateConcepts(ctx context.Context, deps GenerateConceptsDeps, in GenerateConceptsInput) (GenerateConceptsOutput, error) {
	out := GenerateConceptsOutput{}
	if deps.DB == nil || deps.Log == nil || deps.Concepts == nil || deps.AI == nil {
		return out, fmt.Errorf("generate_concepts: missing deps")
	}
	if in.OwnerUserID == uuid.Nil || in.FileID == uuid.Nil {
		return out, fmt.Errorf("generate_concepts: missing ids: %w", apperrors.ErrInvalidArgument)
	}
	if len(in.Segments) == 0 {
		return out, fmt.Errorf("generate_concepts: no segments: %w", apperrors.ErrInvalidArgument)
	}

	maxConcepts := ConceptCap(in.Kind)

	marked := markedText(in.Segments)
	marked = shorten(marked, envutil.Int("CONCEPT_TEXT_MAX_CHARS", 48000))

	system, user := conceptExtractionPrompt(in.Language, maxConcepts, marked)
	obj, err := deps.AI.GenerateJSON(ctx, system, user, "key_concepts", conceptExtractionSchema())
	if err != nil {
		return out, fmt.Errorf("generate_concepts: %w", err)
	}

	rows, dropped := conceptRowsFromResponse(obj, in, maxConcepts)
	out.Dropped = dropped
	if len(rows) == 0 {
		return out, fmt.Errorf("generate_concepts: no usable concepts for file %s: %w", in.FileID, apperrors.ErrConceptGeneration)
	}

	err = deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := deps.Concepts.DeleteEdgesByFile(dbc, in.FileID); err != nil {
			return err
		}
		if err := deps.Concepts.DeleteGeneratedByFile(dbc, in.FileID); err != nil {
			return err
		}
		created, err := deps.Concepts.CreateBatch(dbc, rows)
		if err != nil {
			return err
		}
		out.ConceptsMade = len(created)
		return nil
	})
	if err != nil {
		return GenerateConceptsOutput{}, err
	}

	deps.Log.Info("generated concepts", "file_id", in.FileID, "made", out.ConceptsMade, "dropped", out.Dropped)
	return out, nil
}

// conceptRowsFromResponse turns the model response into persistable rows:
// truncate to the cap first, then drop empty or duplicate titles, then
// anchor each survivor to a segment. The truncate-before-dedupe order keeps
// the model's importance ranking authoritative, a duplicate late in the
// list never displaces an earlier concept.
func conceptRowsFromResponse(obj map[string]any, in GenerateConceptsInput, maxConcepts int) ([]*learning.Concept, int) {
	dropped := 0
	raw := mapSliceFromAny(obj["concepts"])
	if len(raw) > maxConcepts {
		dropped += len(raw) - maxConcepts
		raw = raw[:maxConcepts]
	}

	joined, offsets := chunker.JoinWithOffsets(in.Segments)
	lowered := strings.ToLower(joined)

	seen := map[string]bool{}
	rows := make([]*learning.Concept, 0, len(raw))
	for _, m := range raw {
		title := stringFromAny(m["title"])
		explanation := stringFromAny(m["explanation"])
		if title == "" || explanation == "" {
			dropped++
			continue
		}
		key := normalizeTitleKey(title)
		if key == "" || seen[key] {
			dropped++
			continue
		}
		seen[key] = true

		c := &learning.Concept{
			FileID:      in.FileID,
			OwnerUserID: in.OwnerUserID,
			Title:       title,
			Explanation: explanation,
			SortIndex:   len(rows),
		}
		quote := stringFromAny(m["source_quote"])
		if si := locateAnchor(lowered, offsets, quote, title); si >= 0 {
			seg := in.Segments[si]
			c.Page = seg.Page
			c.StartSec = seg.StartSec
			c.EndSec = seg.EndSec
		}
		if quote != "" {
			c.Metadata = mustJSON(map[string]any{"source_quote": quote})
		}
		rows = append(rows, c)
	}
	return rows, dropped
}

// markedText joins segment texts with inline provenance markers, [p.N] for
// pages and [t=Ns] for transcript windows, so the model can quote and
// reason about position without a second pass.
func markedText(segs []materials.SourceSegment) string {
	var b strings.Builder
	for i, s := range segs {
		t := strings.TrimSpace(s.Text)
		if t == "" {
			continue
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch {
		case s.StartSec != nil:
			b.WriteString("[t=")
			b.WriteString(strconv.Itoa(int(*s.StartSec)))
			b.WriteString("s] ")
		case s.Page != nil:
			b.WriteString("[p.")
			b.WriteString(strconv.Itoa(*s.Page))
			b.WriteString("] ")
		}
		b.WriteString(t)
	}
	return b.String()
}

// locateAnchor finds the concept's anchor in the joined source text and
// returns the index of the segment whose offset sits nearest the anchor
// midpoint, ties toward the earlier segment. Tries the model's quote first,
// the title as fallback, -1 when neither occurs.
func locateAnchor(lowered string, offsets []int, quote, title string) int {
	for _, needle := range []string{quote, title} {
		needle = strings.ToLower(strings.TrimSpace(needle))
		if needle == "" {
			continue
		}
		off := strings.Index(lowered, needle)
		if off < 0 {
			continue
		}
		return chunker.NearestOffsetIndex(offsets, off+len(needle)/2)
	}
	return -1
}

// normalizeTitleKey reduces a title to its dedupe key: lowercase letters and
// digits separated by single spaces. "The Krebs Cycle" and "krebs cycle!"
// collide on purpose.
func normalizeTitleKey(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	pendingSpace := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	key := b.String()
	key = strings.TrimPrefix(key, "the ")
	key = strings.TrimPrefix(key, "a ")
	key = strings.TrimPrefix(key, "an ")
	return key
}
