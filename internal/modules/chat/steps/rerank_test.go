package steps

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

func rerankCand(score float64, text string) Candidate {
	return Candidate{
		Chunk: &materials.Chunk{ID: uuid.New(), FileID: uuid.New(), Text: text},
		File:  &materials.File{ID: uuid.New()},
		Score: score,
	}
}

func TestRerankFailOpenReturnsTopSliceUnchanged(t *testing.T) {
	ai := &scriptedAI{embedErr: errors.New("embedding provider down")}
	candidates := make([]Candidate, 0, 8)
	for i := 0; i < 8; i++ {
		candidates = append(candidates, rerankCand(float64(8-i), "chunk text"))
	}

	got := Rerank(context.Background(), RerankDeps{Log: logger.NewNop(), AI: ai}, "query", candidates, 5)
	if len(got) != 5 {
		t.Fatalf("fail-open size: want=5 got=%d", len(got))
	}
	for i := range got {
		if got[i].Chunk.ID != candidates[i].Chunk.ID || got[i].Score != candidates[i].Score {
			t.Fatalf("fail-open must keep candidates[:5] unchanged at %d", i)
		}
	}
}

func TestRerankOrdersByEmbeddingSimilarity(t *testing.T) {
	ai := &scriptedAI{embedVecs: [][]float32{
		{1, 0},     // query
		{0, 1},     // candidate 0: orthogonal
		{1, 0},     // candidate 1: identical
		{0.7, 0.7}, // candidate 2: diagonal
	}}
	candidates := []Candidate{
		rerankCand(0.9, "off topic"),
		rerankCand(0.5, "exact match"),
		rerankCand(0.1, "related"),
	}

	got := Rerank(context.Background(), RerankDeps{Log: logger.NewNop(), AI: ai}, "query", candidates, 2)
	if len(got) != 2 {
		t.Fatalf("topK: want=2 got=%d", len(got))
	}
	if got[0].Chunk.Text != "exact match" || got[1].Chunk.Text != "related" {
		t.Fatalf("similarity order: got %q, %q", got[0].Chunk.Text, got[1].Chunk.Text)
	}
	if got[0].Score < 0.99 {
		t.Fatalf("rerank score must be the similarity: %v", got[0].Score)
	}
}

func TestRerankCapsCandidatesAndDefaultsTopK(t *testing.T) {
	ai := &scriptedAI{}
	candidates := make([]Candidate, 0, 20)
	for i := 0; i < 20; i++ {
		candidates = append(candidates, rerankCand(float64(20-i), "text"))
	}

	got := Rerank(context.Background(), RerankDeps{Log: logger.NewNop(), AI: ai}, "query", candidates, 0)
	if len(got) != defaultRerankTopK {
		t.Fatalf("default topK: want=%d got=%d", defaultRerankTopK, len(got))
	}
	if len(ai.embedCalls) != 1 || len(ai.embedCalls[0]) != rerankCandidateCap+1 {
		t.Fatalf("embed batch: want=%d texts got=%d", rerankCandidateCap+1, len(ai.embedCalls[0]))
	}
	if ai.embedCalls[0][0] != "query" {
		t.Fatalf("query must lead the embed batch: %q", ai.embedCalls[0][0])
	}
}

func TestRerankSnippetsAreShort(t *testing.T) {
	ai := &scriptedAI{}
	long := rerankCand(1, strings.Repeat("word ", 400))

	Rerank(context.Background(), RerankDeps{Log: logger.NewNop(), AI: ai}, "query", []Candidate{long}, 1)
	if len(ai.embedCalls) != 1 {
		t.Fatalf("embed calls: want=1 got=%d", len(ai.embedCalls))
	}
	snippet := ai.embedCalls[0][1]
	if len([]rune(snippet)) > rerankSnippetChars+1 {
		t.Fatalf("snippet length: want<=%d got=%d", rerankSnippetChars+1, len([]rune(snippet)))
	}
}

func TestRerankEmptyCandidates(t *testing.T) {
	got := Rerank(context.Background(), RerankDeps{Log: logger.NewNop(), AI: &scriptedAI{}}, "query", nil, 5)
	if got != nil {
		t.Fatalf("empty input: want=nil got=%v", got)
	}
}
