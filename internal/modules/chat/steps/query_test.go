package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

type textCall struct {
	system string
	user   string
}

// scriptedAI covers the openai.Client surface for the retrieval tests:
// GenerateText replies are keyed by a substring of the system prompt, Embed
// returns the scripted vectors verbatim.
type scriptedAI struct {
	mu         sync.Mutex
	textByHint map[string]string
	textErr    error
	textCalls  []textCall

	embedVecs  [][]float32
	embedErr   error
	embedCalls [][]string
}

func (s *scriptedAI) GenerateText(_ context.Context, system, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textCalls = append(s.textCalls, textCall{system: system, user: user})
	if s.textErr != nil {
		return "", s.textErr
	}
	for hint, reply := range s.textByHint {
		if strings.Contains(system, hint) {
			return reply, nil
		}
	}
	return "ok", nil
}

func (s *scriptedAI) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recorded := make([]string, len(inputs))
	copy(recorded, inputs)
	s.embedCalls = append(s.embedCalls, recorded)
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	if s.embedVecs != nil {
		return s.embedVecs, nil
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (s *scriptedAI) GenerateJSON(context.Context, string, string, string, map[string]any) (map[string]any, error) {
	return nil, fmt.Errorf("not scripted")
}

func (s *scriptedAI) texts() []textCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]textCall, len(s.textCalls))
	copy(out, s.textCalls)
	return out
}

func queryDeps(ai *scriptedAI) ProcessQueryDeps {
	return ProcessQueryDeps{Log: logger.NewNop(), AI: ai}
}

func TestProcessQueryTrivialPassThrough(t *testing.T) {
	ai := &scriptedAI{}
	out := ProcessQuery(context.Background(), queryDeps(ai), ProcessQueryInput{Query: "  go maps? "})

	if out.Original != "go maps?" || out.Search != "go maps?" {
		t.Fatalf("pass-through: original=%q search=%q", out.Original, out.Search)
	}
	if len(out.Expansion) != 0 {
		t.Fatalf("trivial query must not expand: %v", out.Expansion)
	}
	if calls := ai.texts(); len(calls) != 0 {
		t.Fatalf("trivial query must not call the model: %d calls", len(calls))
	}
}

func TestProcessQueryExpandsAndRewrites(t *testing.T) {
	ai := &scriptedAI{textByHint: map[string]string{
		"expansion terms": "calvin cycle, light reactions, Calvin Cycle, chloroplast",
		"stands alone":    "How does the Calvin cycle fix carbon in plants?",
	}}
	history := []HistoryTurn{
		{Role: "user", Content: "Explain photosynthesis."},
		{Role: "assistant", Content: "Photosynthesis converts light into chemical energy."},
	}
	out := ProcessQuery(context.Background(), queryDeps(ai), ProcessQueryInput{
		Query:   "how does the cycle fix carbon?",
		History: history,
	})

	if out.Search != "How does the Calvin cycle fix carbon in plants?" {
		t.Fatalf("rewrite not applied: %q", out.Search)
	}
	if out.Original != "how does the cycle fix carbon?" {
		t.Fatalf("original lost: %q", out.Original)
	}
	// Case-insensitive dedupe keeps three distinct terms.
	if len(out.Expansion) != 3 {
		t.Fatalf("expansion terms: want=3 got=%v", out.Expansion)
	}
	if out.Expansion[0] != "calvin cycle" || out.Expansion[2] != "chloroplast" {
		t.Fatalf("expansion order: %v", out.Expansion)
	}

	calls := ai.texts()
	if len(calls) != 2 {
		t.Fatalf("model calls: want=2 got=%d", len(calls))
	}
	if !strings.Contains(calls[1].user, "Explain photosynthesis.") {
		t.Fatalf("rewrite prompt missing history: %q", calls[1].user)
	}
}

func TestProcessQueryFailOpenOnModelError(t *testing.T) {
	ai := &scriptedAI{textErr: errors.New("model unavailable")}
	out := ProcessQuery(context.Background(), queryDeps(ai), ProcessQueryInput{
		Query:   "what is cellular respiration really doing?",
		History: []HistoryTurn{{Role: "user", Content: "hi"}},
	})

	if out.Search != "what is cellular respiration really doing?" {
		t.Fatalf("failure must fall back to the original query: %q", out.Search)
	}
	if len(out.Expansion) != 0 {
		t.Fatalf("failed expansion must yield no terms: %v", out.Expansion)
	}
}

func TestProcessQuerySingleWordSkipsRewrite(t *testing.T) {
	ai := &scriptedAI{textByHint: map[string]string{
		"expansion terms": "chlorophyll, pigment",
	}}
	out := ProcessQuery(context.Background(), queryDeps(ai), ProcessQueryInput{
		Query:   "photosynthesis?",
		History: []HistoryTurn{{Role: "user", Content: "context"}},
	})

	if out.Search != "photosynthesis?" {
		t.Fatalf("single-word query must not be rewritten: %q", out.Search)
	}
	if len(out.Expansion) != 2 {
		t.Fatalf("expansion still runs: %v", out.Expansion)
	}
	if calls := ai.texts(); len(calls) != 1 {
		t.Fatalf("model calls: want=1 (expansion only) got=%d", len(calls))
	}
}

func TestParseExpansionTerms(t *testing.T) {
	terms := parseExpansionTerms(` "alpha", beta ,, ALPHA, gamma, delta, epsilon, zeta, eta, theta, iota, kappa`, "beta")
	if len(terms) != maxExpansionTerms {
		t.Fatalf("cap: want=%d got=%d (%v)", maxExpansionTerms, len(terms), terms)
	}
	if terms[0] != "alpha" {
		t.Fatalf("quote trim: %v", terms)
	}
	for _, term := range terms {
		if strings.EqualFold(term, "beta") {
			t.Fatalf("query itself must be dropped: %v", terms)
		}
	}
}

func TestSanitizeRewrite(t *testing.T) {
	if got := sanitizeRewrite(`"What is osmosis?"`); got != "What is osmosis?" {
		t.Fatalf("quote trim: %q", got)
	}
	if got := sanitizeRewrite("line one\nline two"); got != "" {
		t.Fatalf("multi-line output must be rejected: %q", got)
	}
	if got := sanitizeRewrite(strings.Repeat("x", maxRewriteChars*2)); got != "" {
		t.Fatalf("overlong output must be rejected")
	}
}
