package steps

import (
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestFuseHybridBothEmptyReturnsEmpty(t *testing.T) {
	if got := FuseHybrid(nil, nil, 0); len(got) != 0 {
		t.Fatalf("fused hits: want=0 got=%d", len(got))
	}
	if got := FuseHybrid([]Hit{}, []Hit{}, 0.7); len(got) != 0 {
		t.Fatalf("fused hits: want=0 got=%d", len(got))
	}
}

func TestFuseHybridSingleSideKeepsRanking(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	vector := []Hit{{ID: a, Score: 0.8}, {ID: b, Score: 0.4}}

	got := FuseHybrid(vector, nil, 0)
	if len(got) != 2 {
		t.Fatalf("fused hits: want=2 got=%d", len(got))
	}
	if got[0].ID != a || got[1].ID != b {
		t.Fatalf("ranking not preserved: got=%v", got)
	}
	if math.Abs(got[0].Score-0.7) > 1e-9 || math.Abs(got[1].Score-0.35) > 1e-9 {
		t.Fatalf("normalized scores: want=0.7,0.35 got=%v,%v", got[0].Score, got[1].Score)
	}

	keyword := []Hit{{ID: b, Score: 3}, {ID: a, Score: 1}}
	got = FuseHybrid(nil, keyword, 0)
	if len(got) != 2 || got[0].ID != b || got[1].ID != a {
		t.Fatalf("keyword-only ranking: got=%v", got)
	}
}

func TestFuseHybridCombinesUnionAndDedupes(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	vector := []Hit{{ID: a, Score: 10}, {ID: b, Score: 5}}
	// b listed twice on the keyword side; the max within the source wins.
	keyword := []Hit{{ID: b, Score: 2}, {ID: b, Score: 1}, {ID: c, Score: 4}}

	got := FuseHybrid(vector, keyword, 0.7)
	if len(got) != 3 {
		t.Fatalf("union size: want=3 got=%d", len(got))
	}
	want := map[uuid.UUID]float64{
		a: 0.7 * 1.0,
		b: 0.7*0.5 + 0.3*0.5,
		c: 0.3 * 1.0,
	}
	for _, h := range got {
		if math.Abs(h.Score-want[h.ID]) > 1e-9 {
			t.Fatalf("combined score for %s: want=%v got=%v", h.ID, want[h.ID], h.Score)
		}
	}
	if got[0].ID != a || got[1].ID != b || got[2].ID != c {
		t.Fatalf("descending order: got=%v", got)
	}
}

func TestFuseHybridAlphaOverride(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	vector := []Hit{{ID: a, Score: 1}}
	keyword := []Hit{{ID: b, Score: 1}}

	// Keyword-heavy alpha flips the winner.
	got := FuseHybrid(vector, keyword, 0.2)
	if len(got) != 2 || got[0].ID != b {
		t.Fatalf("alpha=0.2 should rank the keyword hit first: got=%v", got)
	}

	// Out-of-range alpha falls back to the default vector weighting.
	got = FuseHybrid(vector, keyword, 1.5)
	if len(got) != 2 || got[0].ID != a {
		t.Fatalf("invalid alpha should use the default: got=%v", got)
	}
	if math.Abs(got[0].Score-0.7) > 1e-9 {
		t.Fatalf("default alpha weight: want=0.7 got=%v", got[0].Score)
	}
}
