package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/qdrant"
)

type testVectorStore struct {
	upsertCalls int
}

func (s *testVectorStore) Upsert(ctx context.Context, namespace string, vectors []qdrant.Vector) error {
	s.upsertCalls++
	return nil
}

func (s *testVectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]qdrant.VectorMatch, error) {
	return nil, nil
}

func (s *testVectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	return nil
}

func TestResolveVectorStoreMissingURLDisables(t *testing.T) {
	t.Setenv("QDRANT_URL", "")
	t.Setenv("QDRANT_COLLECTION", "")
	t.Setenv("QDRANT_VECTOR_DIM", "")

	vs, err := resolveVectorStore(logger.NewNop())
	if err != nil {
		t.Fatalf("resolveVectorStore: want=nil err got=%v", err)
	}
	if vs != nil {
		t.Fatalf("vector store: want=nil when unconfigured got=%T", vs)
	}
}

func TestResolveVectorStorePartialConfigFails(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "")
	t.Setenv("QDRANT_VECTOR_DIM", "1536")

	_, err := resolveVectorStore(logger.NewNop())
	if err == nil {
		t.Fatalf("resolveVectorStore: want error for partial config")
	}
	var bootErr *VectorBootstrapError
	if !errors.As(err, &bootErr) {
		t.Fatalf("error type: want=*VectorBootstrapError got=%T", err)
	}
	if bootErr.Code != VectorBootstrapErrorConfigFailed {
		t.Fatalf("code: want=%s got=%s", VectorBootstrapErrorConfigFailed, bootErr.Code)
	}
}

func TestResolveVectorStoreUsesEnvConfig(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "studypath")
	t.Setenv("QDRANT_NAMESPACE_PREFIX", "sp")
	t.Setenv("QDRANT_VECTOR_DIM", "1536")

	orig := newQdrantVectorStore
	t.Cleanup(func() { newQdrantVectorStore = orig })

	stub := &testVectorStore{}
	var captured qdrant.Config
	newQdrantVectorStore = func(_ *logger.Logger, cfg qdrant.Config) (qdrant.VectorStore, error) {
		captured = cfg
		return stub, nil
	}

	vs, err := resolveVectorStore(logger.NewNop())
	if err != nil {
		t.Fatalf("resolveVectorStore: %v", err)
	}
	if vs == nil {
		t.Fatalf("vector store: want non-nil")
	}
	if err := vs.Upsert(context.Background(), "ns", []qdrant.Vector{{ID: "vec-1", Values: []float32{1, 2, 3}}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stub.upsertCalls != 1 {
		t.Fatalf("upsert calls: want=1 got=%d", stub.upsertCalls)
	}
	if captured.URL != "http://qdrant:6333" {
		t.Fatalf("URL: want=%q got=%q", "http://qdrant:6333", captured.URL)
	}
	if captured.Collection != "studypath" {
		t.Fatalf("Collection: want=%q got=%q", "studypath", captured.Collection)
	}
	if captured.VectorDim != 1536 {
		t.Fatalf("VectorDim: want=1536 got=%d", captured.VectorDim)
	}
}

func TestResolveVectorStoreClassifiesReadyCheckFailure(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "studypath")
	t.Setenv("QDRANT_VECTOR_DIM", "1536")

	orig := newQdrantVectorStore
	t.Cleanup(func() { newQdrantVectorStore = orig })

	newQdrantVectorStore = func(_ *logger.Logger, cfg qdrant.Config) (qdrant.VectorStore, error) {
		return nil, fmt.Errorf("ready check failed: dial tcp: connection refused")
	}

	_, err := resolveVectorStore(logger.NewNop())
	if err == nil {
		t.Fatalf("resolveVectorStore: want error")
	}
	var bootErr *VectorBootstrapError
	if !errors.As(err, &bootErr) {
		t.Fatalf("error type: want=*VectorBootstrapError got=%T", err)
	}
	if bootErr.Code != VectorBootstrapErrorConnectFailed {
		t.Fatalf("code: want=%s got=%s", VectorBootstrapErrorConnectFailed, bootErr.Code)
	}
}
