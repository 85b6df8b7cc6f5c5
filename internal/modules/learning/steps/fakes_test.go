package steps

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/studypath-backend/internal/domain/learning"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypath-backend/internal/platform/qdrant"
)

// fakeAI scripts the model: Embed derives each vector deterministically
// from the input text (batches run concurrently, call order is not stable)
// and GenerateJSON answers per schema name.
type fakeAI struct {
	mu sync.Mutex

	embedDim   int
	embedErr   error
	embedCalls [][]string
	// embedShort drops this many vectors from every Embed response.
	embedShort int
	// embedZeroFor returns an empty vector for this exact input.
	embedZeroFor string
	// embedOddFor returns a one-wider vector for this exact input.
	embedOddFor string

	jsonBySchema map[string]map[string]any
	jsonErrFor   map[string]error
	jsonCalls    []string
	// jsonErrOnce fails only the Nth call for a schema (keyed schema -> call
	// ordinal), for per-item isolation tests.
	jsonErrOnce map[string]int
}

func newFakeAI() *fakeAI {
	return &fakeAI{
		embedDim:     8,
		jsonBySchema: map[string]map[string]any{},
		jsonErrFor:   map[string]error{},
		jsonErrOnce:  map[string]int{},
	}
}

// embedMark is the value Embed plants in v[0] for a given input.
func embedMark(input string) float32 {
	h := fnv.New32a()
	h.Write([]byte(input))
	return float32(h.Sum32() % 100000)
}

func (f *fakeAI) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	f.embedCalls = append(f.embedCalls, append([]string(nil), inputs...))

	out := make([][]float32, 0, len(inputs))
	for _, in := range inputs {
		if f.embedZeroFor != "" && in == f.embedZeroFor {
			out = append(out, []float32{})
			continue
		}
		dim := f.embedDim
		if f.embedOddFor != "" && in == f.embedOddFor {
			dim++
		}
		v := make([]float32, dim)
		v[0] = embedMark(in)
		out = append(out, v)
	}
	if f.embedShort > 0 && len(out) > f.embedShort {
		out = out[:len(out)-f.embedShort]
	}
	return out, nil
}

func (f *fakeAI) GenerateJSON(_ context.Context, _, _, schemaName string, _ map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jsonCalls = append(f.jsonCalls, schemaName)
	n := 0
	for _, s := range f.jsonCalls {
		if s == schemaName {
			n++
		}
	}
	if want, ok := f.jsonErrOnce[schemaName]; ok && n == want {
		return nil, fmt.Errorf("scripted failure for %s call %d", schemaName, n)
	}
	if err := f.jsonErrFor[schemaName]; err != nil {
		return nil, err
	}
	resp, ok := f.jsonBySchema[schemaName]
	if !ok {
		return nil, fmt.Errorf("no scripted response for schema %s", schemaName)
	}
	return resp, nil
}

func (f *fakeAI) GenerateText(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("not scripted")
}

type fakeFlashcardRepo struct {
	mu      sync.Mutex
	created []*learning.Flashcard
	err     error
}

func (f *fakeFlashcardRepo) CreateBatch(_ dbctx.Context, cards []*learning.Flashcard) ([]*learning.Flashcard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range cards {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}
	f.created = append(f.created, cards...)
	return cards, nil
}

func (f *fakeFlashcardRepo) ListByFile(dbctx.Context, uuid.UUID) ([]*learning.Flashcard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*learning.Flashcard(nil), f.created...), nil
}

func (f *fakeFlashcardRepo) Delete(dbctx.Context, uuid.UUID, uuid.UUID) error { return nil }

func (f *fakeFlashcardRepo) DeleteByFile(dbctx.Context, uuid.UUID) error { return nil }

type fakeQuizRepo struct {
	mu      sync.Mutex
	created []*learning.QuizQuestion
	err     error
}

func (f *fakeQuizRepo) CreateBatch(_ dbctx.Context, qs []*learning.QuizQuestion) ([]*learning.QuizQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, q := range qs {
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
	}
	f.created = append(f.created, qs...)
	return qs, nil
}

func (f *fakeQuizRepo) ListByFile(dbctx.Context, uuid.UUID) ([]*learning.QuizQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*learning.QuizQuestion(nil), f.created...), nil
}

func (f *fakeQuizRepo) Delete(dbctx.Context, uuid.UUID, uuid.UUID) error { return nil }

func (f *fakeQuizRepo) DeleteByFile(dbctx.Context, uuid.UUID) error { return nil }

type fakeConceptRepo struct {
	mu           sync.Mutex
	edges        []*learning.ConceptEdge
	edgesErr     error
	edgesDeleted int
}

func (f *fakeConceptRepo) CreateBatch(_ dbctx.Context, cs []*learning.Concept) ([]*learning.Concept, error) {
	for _, c := range cs {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}
	return cs, nil
}

func (f *fakeConceptRepo) GetByID(dbctx.Context, uuid.UUID, uuid.UUID) (*learning.Concept, error) {
	return nil, nil
}

func (f *fakeConceptRepo) ListByFile(dbctx.Context, uuid.UUID) ([]*learning.Concept, error) {
	return nil, nil
}

func (f *fakeConceptRepo) CountByFile(dbctx.Context, uuid.UUID) (int64, error) { return 0, nil }

func (f *fakeConceptRepo) UpdateFields(dbctx.Context, uuid.UUID, uuid.UUID, map[string]interface{}) error {
	return nil
}

func (f *fakeConceptRepo) Delete(dbctx.Context, uuid.UUID, uuid.UUID) error { return nil }

func (f *fakeConceptRepo) DeleteGeneratedByFile(dbctx.Context, uuid.UUID) error { return nil }

func (f *fakeConceptRepo) CreateEdges(_ dbctx.Context, edges []*learning.ConceptEdge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.edgesErr != nil {
		return f.edgesErr
	}
	f.edges = append(f.edges, edges...)
	return nil
}

func (f *fakeConceptRepo) ListEdgesByFile(dbctx.Context, uuid.UUID) ([]*learning.ConceptEdge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*learning.ConceptEdge(nil), f.edges...), nil
}

func (f *fakeConceptRepo) DeleteEdgesByFile(dbctx.Context, uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edgesDeleted++
	return nil
}

type fakeVectorStore struct {
	mu        sync.Mutex
	upserts   []qdrant.Vector
	upsertNS  string
	upsertErr error
}

func (f *fakeVectorStore) Upsert(_ context.Context, ns string, vecs []qdrant.Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upsertNS = ns
	f.upserts = append(f.upserts, vecs...)
	return nil
}

func (f *fakeVectorStore) QueryMatches(context.Context, string, []float32, int, map[string]any) ([]qdrant.VectorMatch, error) {
	return nil, nil
}

func (f *fakeVectorStore) DeleteIDs(context.Context, string, []string) error { return nil }
