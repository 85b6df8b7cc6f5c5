package steps

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/openai"
)

const (
	// DefaultContextTokens is the whole-prompt budget when the caller does
	// not pass one.
	DefaultContextTokens = 8000
	historyTokenBudget   = 600
	webResultLimit       = 5

	// NoAnswerMessage is returned when neither the user's materials nor the
	// web fallback produced anything to answer from.
	NoAnswerMessage = "I couldn't find an answer to that in your materials. Try rephrasing the question, or upload material that covers it."
)

type AssembleDeps struct {
	Log *logger.Logger
	AI  openai.Client
	Web WebSearcher
}

type AssembleInput struct {
	Query              string
	History            []HistoryTurn
	Selected           []Candidate
	ComprehensionLevel string
	// ContextBudget caps estimated tokens of system+user prompt; 0 keeps the
	// default.
	ContextBudget int
}

type AssembleOutput struct {
	AnswerText string     `json:"answer_text"`
	Citations  []Citation `json:"citations,omitempty"`
	UsedWeb    bool       `json:"used_web,omitempty"`
	NoAnswer   bool       `json:"no_answer,omitempty"`
}

// AssembleAnswer formats the selected chunks as numbered context segments,
// prompts for a cited answer and appends the source map. When the prompt
// overflows the budget it re-selects under a tighter budget computed from the
// fixed-text overhead, then falls back to raw truncation. With no selected
// chunks at all it tries web search, and with nothing from that either it
// answers with the explicit no-answer message. Never returns an error.
func AssembleAnswer(ctx context.Context, deps AssembleDeps, in AssembleInput) AssembleOutput {
	budget := in.ContextBudget
	if budget <= 0 {
		budget = DefaultContextTokens
	}
	query := strings.TrimSpace(in.Query)

	if len(in.Selected) == 0 {
		return answerFromWeb(ctx, deps, query)
	}
	if deps.AI == nil {
		return AssembleOutput{AnswerText: NoAnswerMessage, NoAnswer: true}
	}

	history := tailToTokens(formatHistory(in.History, historyTurnsUsed), historyTokenBudget)
	system := answerSystemPrompt(in.ComprehensionLevel)

	selected := in.Selected
	blocks, citations := buildContextBlocks(selected)
	user := answerUserPrompt(history, blocks, query)

	if estimateTokens(system)+estimateTokens(user) > budget {
		overhead := estimateTokens(system) + estimateTokens(user) - estimateTokens(blocks)
		if tighter := budget - overhead; tighter > 0 {
			selected = SelectChunks(selected, tighter)
			blocks, citations = buildContextBlocks(selected)
			user = answerUserPrompt(history, blocks, query)
		}
		if rest := budget - estimateTokens(system); estimateTokens(user) > rest {
			user = truncateToTokens(user, rest)
		}
	}

	answer, err := deps.AI.GenerateText(ctx, system, user)
	if err != nil {
		if deps.Log != nil {
			deps.Log.Warn("answer generation failed, sources preserved", "error", err.Error())
		}
		return AssembleOutput{AnswerText: NoAnswerMessage, Citations: citations, NoAnswer: true}
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return AssembleOutput{AnswerText: NoAnswerMessage, Citations: citations, NoAnswer: true}
	}

	return AssembleOutput{
		AnswerText: answer + "\n\n" + renderSourceMap(citations),
		Citations:  citations,
	}
}

// buildContextBlocks renders the numbered segment blocks and the parallel
// source map entries, index-aligned so [Segment N] in the answer resolves to
// Citations[N-1].
func buildContextBlocks(selected []Candidate) (string, []Citation) {
	var b strings.Builder
	citations := make([]Citation, 0, len(selected))
	n := 0
	for _, c := range selected {
		if c.Chunk == nil || c.File == nil {
			continue
		}
		n++
		fmt.Fprintf(&b, "Context Segment %d:\n%s\n\n", n, strings.TrimSpace(c.Chunk.Text))
		citations = append(citations, Citation{
			Segment:  n,
			FileID:   c.File.ID,
			FileName: c.File.DisplayName,
			Location: chunkLocation(c),
			Fragment: chunkFragment(c),
		})
	}
	return strings.TrimSpace(b.String()), citations
}

func renderSourceMap(citations []Citation) string {
	if len(citations) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Sources:\n")
	for _, c := range citations {
		name := c.FileName
		if name == "" {
			name = "Untitled file"
		}
		b.WriteString(fmt.Sprintf("[Segment %d] %s", c.Segment, name))
		if c.Location != "" {
			b.WriteString(" - " + c.Location)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func chunkLocation(c Candidate) string {
	ch := c.Chunk
	if ch == nil {
		return ""
	}
	if ch.Page != nil && *ch.Page > 0 {
		return fmt.Sprintf("page %d", *ch.Page)
	}
	if ch.StartSec != nil && ch.EndSec != nil && *ch.StartSec >= 0 && *ch.EndSec >= 0 {
		return fmt.Sprintf("%s-%s", formatHMS(*ch.StartSec), formatHMS(*ch.EndSec))
	}
	if ch.StartSec != nil && *ch.StartSec >= 0 {
		return formatHMS(*ch.StartSec)
	}
	return ""
}

func chunkFragment(c Candidate) string {
	ch := c.Chunk
	if ch == nil {
		return ""
	}
	if ch.Page != nil && *ch.Page > 0 {
		return fmt.Sprintf("#page=%d", *ch.Page)
	}
	if ch.StartSec != nil && *ch.StartSec >= 0 {
		return fmt.Sprintf("#t=%d", int(*ch.StartSec))
	}
	return ""
}

func formatHMS(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	s := int(sec + 0.5)
	h := s / 3600
	m := (s % 3600) / 60
	ss := s % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, ss)
	}
	return fmt.Sprintf("%d:%02d", m, ss)
}

func answerFromWeb(ctx context.Context, deps AssembleDeps, query string) AssembleOutput {
	if deps.Web == nil || deps.AI == nil || query == "" {
		return AssembleOutput{AnswerText: NoAnswerMessage, NoAnswer: true}
	}
	results, err := deps.Web.Search(ctx, query, webResultLimit)
	if err != nil {
		if deps.Log != nil {
			deps.Log.Warn("web fallback search failed", "error", err.Error())
		}
		return AssembleOutput{AnswerText: NoAnswerMessage, NoAnswer: true}
	}
	if len(results) == 0 {
		return AssembleOutput{AnswerText: NoAnswerMessage, NoAnswer: true}
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "Result %d: %s\n%s\n%s\n\n", i+1, strings.TrimSpace(r.Title), strings.TrimSpace(r.URL), trimToChars(r.Snippet, 400))
	}
	system, user := webAnswerPrompt(b.String(), query)
	answer, err := deps.AI.GenerateText(ctx, system, user)
	if err != nil || strings.TrimSpace(answer) == "" {
		if err != nil && deps.Log != nil {
			deps.Log.Warn("web fallback answer failed", "error", err.Error())
		}
		return AssembleOutput{AnswerText: NoAnswerMessage, NoAnswer: true}
	}

	var sources strings.Builder
	sources.WriteString("Sources:\n")
	for i, r := range results {
		fmt.Fprintf(&sources, "[Result %d] %s\n", i+1, strings.TrimSpace(r.URL))
	}
	return AssembleOutput{
		AnswerText: strings.TrimSpace(answer) + "\n\n" + strings.TrimSpace(sources.String()),
		UsedWeb:    true,
	}
}

// tailToTokens keeps the tail of s under the token budget; history is
// trimmed from the front so the most recent turns survive.
func tailToTokens(s string, budget int) string {
	if budget <= 0 || s == "" {
		return ""
	}
	if estimateTokens(s) <= budget {
		return s
	}
	start := len(s) - budget*4
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	cut := s[start:]
	if i := strings.IndexByte(cut, '\n'); i >= 0 && i+1 < len(cut) {
		cut = cut[i+1:]
	}
	return cut
}
