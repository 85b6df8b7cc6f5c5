package materials

import "fmt"

// Status is the ingestion state of a File. The pipeline only ever moves a
// file forward along stageOrder or jumps to StatusFailed; the single
// exception is an explicit reprocess, which resets a terminal file back to
// StatusExtracting.
type Status string

const (
	StatusUploaded           Status = "uploaded"
	StatusExtracting         Status = "extracting"
	StatusExtracted          Status = "extracted"
	StatusEmbedding          Status = "embedding"
	StatusStoring            Status = "storing"
	StatusGeneratingConcepts Status = "generating_concepts"
	StatusProcessed          Status = "processed"
	StatusFailed             Status = "failed"
)

var stageOrder = map[Status]int{
	StatusUploaded:           0,
	StatusExtracting:         1,
	StatusExtracted:          2,
	StatusEmbedding:          3,
	StatusStoring:            4,
	StatusGeneratingConcepts: 5,
	StatusProcessed:          6,
}

func (s Status) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := stageOrder[s]
	return ok
}

// Terminal statuses accept no further pipeline writes.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// CanTransition reports whether from -> to is a legal move: one step forward
// along the stage order, a jump to failed from any non-terminal state, or a
// reprocess reset from a terminal state to extracting.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	if to == StatusFailed {
		return !from.Terminal()
	}
	if from.Terminal() {
		return to == StatusExtracting
	}
	fo, ok1 := stageOrder[from]
	t, ok2 := stageOrder[to]
	if !ok1 || !ok2 {
		return false
	}
	return t == fo+1
}

// Transition validates from -> to, returning to on success.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("illegal status transition %q -> %q", from, to)
	}
	return to, nil
}
