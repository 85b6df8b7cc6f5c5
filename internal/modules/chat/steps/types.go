package steps

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
)

// HistoryTurn is one prior exchange message, oldest first.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Hit is one scored id from a single retrieval source.
type Hit struct {
	ID    uuid.UUID
	Score float64
}

// Candidate is a hydrated retrieval hit. Score is the working score for the
// current stage: fused after hybrid search, similarity after rerank.
type Candidate struct {
	Chunk *materials.Chunk
	File  *materials.File
	Score float64
}

// Citation maps one numbered context segment back to its source. Fragment is
// a deep-link suffix the client appends to the file url, "#page=3" for pdf
// pages and "#t=765" for transcript windows.
type Citation struct {
	Segment  int       `json:"segment"`
	FileID   uuid.UUID `json:"file_id"`
	FileName string    `json:"file_name"`
	Location string    `json:"location,omitempty"`
	Fragment string    `json:"fragment,omitempty"`
}

// WebResult is one hit from the web-search fallback.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearcher is the assembler's last-resort collaborator when retrieval
// comes back empty.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]WebResult, error)
}
