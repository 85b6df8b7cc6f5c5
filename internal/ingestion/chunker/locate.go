package chunker

import (
	"strings"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
)

// JoinWithOffsets joins segment texts with a blank line and returns each
// segment's byte offset in the joined text. Chunk windows and concept
// locators both resolve against these offsets, so the joining must stay
// identical across stages.
func JoinWithOffsets(segs []materials.SourceSegment) (string, []int) {
	var b strings.Builder
	offsets := make([]int, len(segs))
	for i, s := range segs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		offsets[i] = b.Len()
		b.WriteString(strings.TrimSpace(s.Text))
	}
	return b.String(), offsets
}

// NearestOffsetIndex returns the index of the offset closest to target,
// ties broken toward the earlier entry.
func NearestOffsetIndex(offsets []int, target int) int {
	if len(offsets) == 0 {
		return -1
	}
	best := 0
	bestDist := absInt(offsets[0] - target)
	for i := 1; i < len(offsets); i++ {
		d := absInt(offsets[i] - target)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
