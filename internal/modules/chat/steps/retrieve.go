package steps

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	materialrepos "github.com/yungbote/studypath-backend/internal/data/repos/materials"
	"github.com/yungbote/studypath-backend/internal/domain/materials"
	learningsteps "github.com/yungbote/studypath-backend/internal/modules/learning/steps"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/openai"
	"github.com/yungbote/studypath-backend/internal/platform/qdrant"
)

const (
	vectorCandidateLimit  = 20
	lexicalCandidateLimit = 20
	vectorQueryTimeout    = 2 * time.Second
)

type RetrieveDeps struct {
	Log    *logger.Logger
	AI     openai.Client
	Vec    qdrant.VectorStore
	Chunks materialrepos.ChunkRepo
	Files  materialrepos.FileRepo
}

type RetrieveInput struct {
	OwnerUserID uuid.UUID
	Search      string
	Expansion   []string
	// Alpha overrides the vector weight for fusion; 0 keeps the default.
	Alpha float64
}

type RetrieveOutput struct {
	Candidates  []Candidate `json:"-"`
	VectorHits  int         `json:"vector_hits"`
	LexicalHits int         `json:"lexical_hits"`
	Mode        string      `json:"mode"`
}

// RetrieveCandidates runs both retrieval sides, fuses them and hydrates the
// winning chunks with their file metadata. Either side failing degrades to
// the other; both failing returns an empty candidate list, never an error.
func RetrieveCandidates(ctx context.Context, deps RetrieveDeps, in RetrieveInput) RetrieveOutput {
	out := RetrieveOutput{}
	query := strings.TrimSpace(in.Search)
	if deps.Chunks == nil || deps.Files == nil || in.OwnerUserID == uuid.Nil || query == "" {
		return out
	}
	dbc := dbctx.Context{Ctx: ctx}

	var vecHits []Hit
	if deps.Vec != nil && deps.AI != nil {
		vecHits = vectorSide(ctx, deps, in.OwnerUserID, query)
	}

	lexQuery := query
	if len(in.Expansion) > 0 {
		lexQuery = query + " " + strings.Join(in.Expansion, " ")
	}
	kwHits, chunkByID := lexicalSide(dbc, deps, in.OwnerUserID, lexQuery)

	out.VectorHits = len(vecHits)
	out.LexicalHits = len(kwHits)
	switch {
	case len(vecHits) > 0 && len(kwHits) > 0:
		out.Mode = "hybrid"
	case len(vecHits) > 0:
		out.Mode = "vector"
	case len(kwHits) > 0:
		out.Mode = "lexical"
	default:
		return out
	}

	fused := FuseHybrid(vecHits, kwHits, in.Alpha)
	if len(fused) > rerankCandidateCap {
		fused = fused[:rerankCandidateCap]
	}

	// Hydrate chunks the lexical side did not already load.
	missing := make([]uuid.UUID, 0, len(fused))
	for _, h := range fused {
		if chunkByID[h.ID] == nil {
			missing = append(missing, h.ID)
		}
	}
	if len(missing) > 0 {
		rows, err := deps.Chunks.GetByIDs(dbc, missing)
		if err != nil {
			if deps.Log != nil {
				deps.Log.Warn("chunk hydration failed, continuing with loaded rows", "error", err.Error())
			}
		}
		for _, ch := range rows {
			if ch != nil && ch.ID != uuid.Nil {
				chunkByID[ch.ID] = ch
			}
		}
	}

	// File lookup is owner-scoped, so a chunk whose file does not come back
	// belongs to someone else and is dropped.
	fileIDs := make([]uuid.UUID, 0, len(fused))
	seenFile := map[uuid.UUID]bool{}
	for _, h := range fused {
		ch := chunkByID[h.ID]
		if ch == nil || seenFile[ch.FileID] {
			continue
		}
		seenFile[ch.FileID] = true
		fileIDs = append(fileIDs, ch.FileID)
	}
	files, err := deps.Files.GetByIDs(dbc, in.OwnerUserID, fileIDs)
	if err != nil {
		if deps.Log != nil {
			deps.Log.Warn("file hydration failed, returning no candidates", "error", err.Error())
		}
		return out
	}
	fileByID := map[uuid.UUID]*materials.File{}
	for _, f := range files {
		if f != nil && f.ID != uuid.Nil {
			fileByID[f.ID] = f
		}
	}

	for _, h := range fused {
		ch := chunkByID[h.ID]
		if ch == nil || strings.TrimSpace(ch.Text) == "" {
			continue
		}
		f := fileByID[ch.FileID]
		if f == nil {
			continue
		}
		out.Candidates = append(out.Candidates, Candidate{Chunk: ch, File: f, Score: h.Score})
	}
	return out
}

func vectorSide(ctx context.Context, deps RetrieveDeps, owner uuid.UUID, query string) []Hit {
	embs, err := deps.AI.Embed(ctx, []string{query})
	if err != nil || len(embs) == 0 || len(embs[0]) == 0 {
		if err != nil && deps.Log != nil {
			deps.Log.Warn("query embedding failed, vector side skipped", "error", err.Error())
		}
		return nil
	}

	qctx, cancel := context.WithTimeout(ctx, vectorQueryTimeout)
	defer cancel()
	matches, err := deps.Vec.QueryMatches(qctx, learningsteps.ChunksNamespace(owner), embs[0], vectorCandidateLimit, nil)
	if err != nil {
		if deps.Log != nil {
			deps.Log.Warn("vector query failed, vector side skipped", "error", err.Error())
		}
		return nil
	}

	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		id, err := uuid.Parse(strings.TrimSpace(m.ID))
		if err != nil || id == uuid.Nil {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: m.Score})
	}
	return hits
}

func lexicalSide(dbc dbctx.Context, deps RetrieveDeps, owner uuid.UUID, query string) ([]Hit, map[uuid.UUID]*materials.Chunk) {
	chunkByID := map[uuid.UUID]*materials.Chunk{}
	rows, err := deps.Chunks.SearchLexical(dbc, owner, query, lexicalCandidateLimit)
	if err != nil {
		if deps.Log != nil {
			deps.Log.Warn("lexical search failed, keyword side skipped", "error", err.Error())
		}
		return nil, chunkByID
	}
	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		if r.Chunk == nil || r.Chunk.ID == uuid.Nil {
			continue
		}
		chunkByID[r.Chunk.ID] = r.Chunk
		hits = append(hits, Hit{ID: r.Chunk.ID, Score: r.Score})
	}
	return hits, chunkByID
}
