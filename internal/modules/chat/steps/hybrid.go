package steps

import (
	"sort"

	"github.com/google/uuid"
)

// DefaultAlpha weights the vector side of the fused score.
const DefaultAlpha = 0.7

// FuseHybrid merges vector and keyword rankings into one list. Scores are
// normalized per source by that source's max (an empty source contributes 0),
// combined as alpha*vector + (1-alpha)*keyword, deduped by id keeping the max
// score within each source, and sorted descending. With one source empty the
// ordering degrades to the other source's ranking.
func FuseHybrid(vector, keyword []Hit, alpha float64) []Hit {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	if len(vector) == 0 && len(keyword) == 0 {
		return nil
	}

	vecByID := maxBySource(vector)
	kwByID := maxBySource(keyword)
	maxVec := maxScore(vecByID)
	maxKw := maxScore(kwByID)

	combined := make(map[uuid.UUID]float64, len(vecByID)+len(kwByID))
	for id, s := range vecByID {
		if maxVec > 0 {
			combined[id] += alpha * (s / maxVec)
		}
	}
	for id, s := range kwByID {
		if maxKw > 0 {
			combined[id] += (1 - alpha) * (s / maxKw)
		}
	}

	out := make([]Hit, 0, len(combined))
	for id, s := range combined {
		out = append(out, Hit{ID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func maxBySource(hits []Hit) map[uuid.UUID]float64 {
	out := make(map[uuid.UUID]float64, len(hits))
	for _, h := range hits {
		if h.ID == uuid.Nil {
			continue
		}
		if s, ok := out[h.ID]; !ok || h.Score > s {
			out[h.ID] = h.Score
		}
	}
	return out
}

func maxScore(byID map[uuid.UUID]float64) float64 {
	max := 0.0
	for _, s := range byID {
		if s > max {
			max = s
		}
	}
	return max
}
