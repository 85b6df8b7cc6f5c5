package steps

import (
	"sort"

	"github.com/google/uuid"
)

const (
	// DefaultTokenBudget bounds the estimated tokens of the selected chunks.
	DefaultTokenBudget = 3000
	// Once usage crosses this share of the budget, only chunks from files not
	// yet represented are still accepted.
	sameSourceBudgetShare = 0.7
)

// SelectChunks picks chunks best-first under the token budget. The top chunk
// is always taken; when it alone exceeds the budget it is truncated to the
// budget and returned as the sole result. After that, accumulation stops at
// the first chunk that would overflow, and chunks from an already-used file
// are skipped once usage reaches 70% of the budget so one source cannot
// crowd out the rest.
func SelectChunks(candidates []Candidate, tokenBudget int) []Candidate {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}

	pool := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Chunk != nil && c.Chunk.Text != "" {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return nil
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })

	top := pool[0]
	topTokens := estimateTokens(top.Chunk.Text)
	if topTokens > tokenBudget {
		cut := *top.Chunk
		cut.Text = truncateToTokens(cut.Text, tokenBudget)
		top.Chunk = &cut
		return []Candidate{top}
	}

	selected := []Candidate{top}
	used := topTokens
	sourceSeen := map[uuid.UUID]bool{top.Chunk.FileID: true}
	sameSourceCeiling := int(float64(tokenBudget) * sameSourceBudgetShare)

	for _, c := range pool[1:] {
		t := estimateTokens(c.Chunk.Text)
		if used+t > tokenBudget {
			break
		}
		if sourceSeen[c.Chunk.FileID] && used >= sameSourceCeiling {
			continue
		}
		selected = append(selected, c)
		used += t
		sourceSeen[c.Chunk.FileID] = true
	}
	return selected
}
