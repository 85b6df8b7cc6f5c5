package steps

import (
	"context"
	"sort"

	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/openai"
)

const (
	rerankCandidateCap = 15
	defaultRerankTopK  = 5
	rerankSnippetChars = 240
)

type RerankDeps struct {
	Log *logger.Logger
	AI  openai.Client
}

// Rerank rescores the leading candidates against the query with an
// embedding-similarity proxy and returns the best topK, scores replaced by
// the similarity. The interface stands in for a cross-encoder: a pairwise
// scorer can replace the proxy without touching callers. Any scoring failure
// returns the original top slice unchanged.
func Rerank(ctx context.Context, deps RerankDeps, query string, candidates []Candidate, topK int) []Candidate {
	if topK <= 0 {
		topK = defaultRerankTopK
	}
	if len(candidates) > rerankCandidateCap {
		candidates = candidates[:rerankCandidateCap]
	}
	if len(candidates) == 0 {
		return nil
	}
	k := topK
	if k > len(candidates) {
		k = len(candidates)
	}
	if deps.AI == nil {
		return candidates[:k]
	}

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, query)
	for _, c := range candidates {
		snippet := ""
		if c.Chunk != nil {
			snippet = trimToChars(c.Chunk.Text, rerankSnippetChars)
		}
		texts = append(texts, snippet)
	}

	embs, err := deps.AI.Embed(ctx, texts)
	if err != nil || len(embs) != len(texts) || len(embs[0]) == 0 {
		if err != nil && deps.Log != nil {
			deps.Log.Warn("rerank embedding failed, keeping fused order", "error", err.Error())
		}
		return candidates[:k]
	}

	rescored := make([]Candidate, len(candidates))
	copy(rescored, candidates)
	for i := range rescored {
		rescored[i].Score = cosine(embs[0], embs[i+1])
	}
	sort.SliceStable(rescored, func(i, j int) bool { return rescored[i].Score > rescored[j].Score })
	return rescored[:k]
}
