package steps

import (
	"context"
	"strings"

	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/openai"
)

const (
	// Queries at or under this many characters skip processing entirely.
	trivialQueryChars = 10
	maxExpansionTerms = 8
	maxRewriteChars   = 400
	historyTurnsUsed  = 6
	historyTurnChars  = 280
)

type ProcessQueryDeps struct {
	Log *logger.Logger
	AI  openai.Client
}

type ProcessQueryInput struct {
	Query   string
	History []HistoryTurn
}

type ProcessQueryOutput struct {
	Original string `json:"original"`
	// Search is the query retrieval runs on: the standalone rewrite when
	// history made one possible, otherwise the original.
	Search    string   `json:"search"`
	Expansion []string `json:"expansion,omitempty"`
}

// ProcessQuery widens a non-trivial query with expansion terms and, when
// history is present and the query is multi-word, rewrites it to stand
// alone. Every model failure falls back to the original query: this step
// never returns an error.
func ProcessQuery(ctx context.Context, deps ProcessQueryDeps, in ProcessQueryInput) ProcessQueryOutput {
	q := strings.TrimSpace(in.Query)
	out := ProcessQueryOutput{Original: q, Search: q}
	if q == "" || len([]rune(q)) <= trivialQueryChars {
		return out
	}
	if deps.AI == nil {
		return out
	}

	system, user := queryExpansionPrompt(q)
	if text, err := deps.AI.GenerateText(ctx, system, user); err != nil {
		if deps.Log != nil {
			deps.Log.Warn("query expansion failed, searching with the raw query", "error", err.Error())
		}
	} else {
		out.Expansion = parseExpansionTerms(text, q)
	}

	if len(in.History) > 0 && strings.Contains(q, " ") {
		system, user := queryRewritePrompt(q, formatHistory(in.History, historyTurnsUsed))
		text, err := deps.AI.GenerateText(ctx, system, user)
		if err != nil {
			if deps.Log != nil {
				deps.Log.Warn("query rewrite failed, searching with the raw query", "error", err.Error())
			}
			return out
		}
		if rw := sanitizeRewrite(text); rw != "" {
			out.Search = rw
		}
	}
	return out
}

func parseExpansionTerms(text, query string) []string {
	lowerQuery := strings.ToLower(strings.TrimSpace(query))
	seen := map[string]bool{}
	out := make([]string, 0, maxExpansionTerms)
	for _, part := range strings.Split(text, ",") {
		term := strings.Trim(strings.TrimSpace(part), `"'`)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if key == lowerQuery || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, term)
		if len(out) >= maxExpansionTerms {
			break
		}
	}
	return out
}

// sanitizeRewrite rejects model output that is clearly not a standalone
// query: empty, multi-line, or too long to be one.
func sanitizeRewrite(text string) string {
	rw := strings.Trim(strings.TrimSpace(text), `"'`)
	if rw == "" || strings.Contains(rw, "\n") {
		return ""
	}
	if len([]rune(rw)) > maxRewriteChars {
		return ""
	}
	return rw
}

func formatHistory(turns []HistoryTurn, max int) string {
	if len(turns) == 0 {
		return ""
	}
	if max > 0 && len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	var b strings.Builder
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		role := strings.ToLower(strings.TrimSpace(t.Role))
		switch role {
		case "assistant":
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(trimToChars(content, historyTurnChars))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
