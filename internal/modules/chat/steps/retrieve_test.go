package steps

import (
	"context"
	"testing"

	"github.com/google/uuid"

	materialrepos "github.com/yungbote/studypath-backend/internal/data/repos/materials"
	"github.com/yungbote/studypath-backend/internal/data/repos/testutil"
	"github.com/yungbote/studypath-backend/internal/domain/materials"
	learningsteps "github.com/yungbote/studypath-backend/internal/modules/learning/steps"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypath-backend/internal/platform/qdrant"
)

type stubVectorStore struct {
	matches []qdrant.VectorMatch
	err     error
	queried []string
}

func (s *stubVectorStore) Upsert(context.Context, string, []qdrant.Vector) error { return nil }
func (s *stubVectorStore) QueryMatches(_ context.Context, ns string, _ []float32, _ int, _ map[string]any) ([]qdrant.VectorMatch, error) {
	s.queried = append(s.queried, ns)
	if s.err != nil {
		return nil, s.err
	}
	return s.matches, nil
}
func (s *stubVectorStore) DeleteIDs(context.Context, string, []string) error { return nil }

type retrievalFixture struct {
	chunks materialrepos.ChunkRepo
	files  materialrepos.FileRepo
	owner  uuid.UUID
	mine   []*materials.Chunk
	theirs *materials.Chunk
}

func seedRetrievalRows(t *testing.T) retrievalFixture {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	fileRepo := materialrepos.NewFileRepo(tx, log)
	segRepo := materialrepos.NewSegmentRepo(tx, log)
	chunkRepo := materialrepos.NewChunkRepo(tx, log)

	owner := uuid.New()
	stranger := uuid.New()

	seed := func(ownerID uuid.UUID, name string, texts []string) []*materials.Chunk {
		file, err := fileRepo.Create(dbc, &materials.File{
			OwnerUserID: ownerID,
			DisplayName: name,
			SourceKind:  materials.SourceKindText,
			StorageKey:  "materials/" + ownerID.String() + "/" + name,
		})
		if err != nil {
			t.Fatalf("seed file %s: %v", name, err)
		}
		segs := make([]*materials.Segment, len(texts))
		for i, text := range texts {
			segs[i] = &materials.Segment{FileID: file.ID, Ordinal: i + 1, Text: text}
		}
		segs, err = segRepo.CreateBatch(dbc, segs)
		if err != nil {
			t.Fatalf("seed segments %s: %v", name, err)
		}
		chunks := make([]*materials.Chunk, len(texts))
		for i, text := range texts {
			chunks[i] = &materials.Chunk{
				FileID:     file.ID,
				SegmentID:  segs[i].ID,
				Ordinal:    i,
				Text:       text,
				TokenCount: estimateTokens(text),
			}
		}
		chunks, err = chunkRepo.CreateBatch(dbc, chunks)
		if err != nil {
			t.Fatalf("seed chunks %s: %v", name, err)
		}
		return chunks
	}

	mine := seed(owner, "bio.txt", []string{
		"Photosynthesis uses chlorophyll to capture light energy in the chloroplast.",
		"Mitochondria produce ATP through cellular respiration.",
	})
	theirs := seed(stranger, "private.txt", []string{
		"Photosynthesis notes that belong to a different user entirely.",
	})

	return retrievalFixture{chunks: chunkRepo, files: fileRepo, owner: owner, mine: mine, theirs: theirs[0]}
}

func TestRetrieveCandidatesHybridAndOwnerScope(t *testing.T) {
	fx := seedRetrievalRows(t)
	vec := &stubVectorStore{matches: []qdrant.VectorMatch{
		{ID: fx.theirs.ID.String(), Score: 0.95},
		{ID: fx.mine[0].ID.String(), Score: 0.9},
	}}
	deps := RetrieveDeps{Log: testutil.Logger(t), AI: &scriptedAI{}, Vec: vec, Chunks: fx.chunks, Files: fx.files}

	out := RetrieveCandidates(context.Background(), deps, RetrieveInput{
		OwnerUserID: fx.owner,
		Search:      "photosynthesis light",
		Expansion:   []string{"chlorophyll"},
	})

	if out.Mode != "hybrid" {
		t.Fatalf("mode: want=hybrid got=%q (vector=%d lexical=%d)", out.Mode, out.VectorHits, out.LexicalHits)
	}
	if len(vec.queried) != 1 || vec.queried[0] != learningsteps.ChunksNamespace(fx.owner) {
		t.Fatalf("vector namespace: want=%s got=%v", learningsteps.ChunksNamespace(fx.owner), vec.queried)
	}
	if len(out.Candidates) == 0 {
		t.Fatalf("no candidates returned")
	}
	if out.Candidates[0].Chunk.ID != fx.mine[0].ID {
		t.Fatalf("top candidate: want=%s got=%s", fx.mine[0].ID, out.Candidates[0].Chunk.ID)
	}
	for _, c := range out.Candidates {
		if c.Chunk.ID == fx.theirs.ID {
			t.Fatalf("foreign chunk leaked through owner scoping")
		}
		if c.File.OwnerUserID != fx.owner {
			t.Fatalf("candidate file owner: want=%s got=%s", fx.owner, c.File.OwnerUserID)
		}
	}
}

func TestRetrieveCandidatesVectorOnlyHydrates(t *testing.T) {
	fx := seedRetrievalRows(t)
	vec := &stubVectorStore{matches: []qdrant.VectorMatch{
		{ID: fx.mine[1].ID.String(), Score: 0.9},
	}}
	deps := RetrieveDeps{Log: testutil.Logger(t), AI: &scriptedAI{}, Vec: vec, Chunks: fx.chunks, Files: fx.files}

	// A query nothing matches lexically leaves only the vector side.
	out := RetrieveCandidates(context.Background(), deps, RetrieveInput{
		OwnerUserID: fx.owner,
		Search:      "zzqqyx",
	})

	if out.Mode != "vector" {
		t.Fatalf("mode: want=vector got=%q", out.Mode)
	}
	if len(out.Candidates) != 1 || out.Candidates[0].Chunk.ID != fx.mine[1].ID {
		t.Fatalf("vector hydration: %+v", out.Candidates)
	}
	if out.Candidates[0].Chunk.Text == "" || out.Candidates[0].File.DisplayName != "bio.txt" {
		t.Fatalf("candidate not hydrated: %+v", out.Candidates[0])
	}
}

func TestRetrieveCandidatesLexicalFallbackWhenVectorFails(t *testing.T) {
	fx := seedRetrievalRows(t)
	vec := &stubVectorStore{err: context.DeadlineExceeded}
	deps := RetrieveDeps{Log: testutil.Logger(t), AI: &scriptedAI{}, Vec: vec, Chunks: fx.chunks, Files: fx.files}

	out := RetrieveCandidates(context.Background(), deps, RetrieveInput{
		OwnerUserID: fx.owner,
		Search:      "mitochondria respiration",
	})

	if out.Mode != "lexical" {
		t.Fatalf("mode: want=lexical got=%q", out.Mode)
	}
	if len(out.Candidates) != 1 || out.Candidates[0].Chunk.ID != fx.mine[1].ID {
		t.Fatalf("lexical fallback: %+v", out.Candidates)
	}
}

func TestRetrieveCandidatesNothingAnywhere(t *testing.T) {
	fx := seedRetrievalRows(t)
	vec := &stubVectorStore{}
	deps := RetrieveDeps{Log: testutil.Logger(t), AI: &scriptedAI{}, Vec: vec, Chunks: fx.chunks, Files: fx.files}

	out := RetrieveCandidates(context.Background(), deps, RetrieveInput{
		OwnerUserID: fx.owner,
		Search:      "zzqqyx",
	})
	if out.Mode != "" || len(out.Candidates) != 0 {
		t.Fatalf("empty retrieval: mode=%q candidates=%d", out.Mode, len(out.Candidates))
	}
}
