package steps

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/openai"
)

// maxEmbedBatch bounds one embeddings API call. The provider accepts more,
// but per-call failures then take out fewer chunks.
const maxEmbedBatch = 100

type EmbedChunksDeps struct {
	Log *logger.Logger
	AI  openai.Client
}

type EmbedChunksInput struct {
	Texts []string
}

type EmbedChunksOutput struct {
	Vectors [][]float32 `json:"-"`
	Batches int         `json:"batches"`
	Dim     int         `json:"dim"`
}

// EmbedChunks embeds every text and returns vectors in input order. Any
// count or dimension mismatch aborts the whole stage: the storing stage
// must never see a chunk set with holes in it.
func EmbedChunks(ctx context.Context, deps EmbedChunksDeps, in EmbedChunksInput) (EmbedChunksOutput, error) {
	out := EmbedChunksOutput{}
	if deps.Log == nil || deps.AI == nil {
		return out, fmt.Errorf("embed_chunks: missing deps")
	}
	if len(in.Texts) == 0 {
		return out, fmt.Errorf("embed_chunks: no texts to embed")
	}

	type span struct{ lo, hi int }
	spans := make([]span, 0, len(in.Texts)/maxEmbedBatch+1)
	for lo := 0; lo < len(in.Texts); lo += maxEmbedBatch {
		hi := lo + maxEmbedBatch
		if hi > len(in.Texts) {
			hi = len(in.Texts)
		}
		spans = append(spans, span{lo: lo, hi: hi})
	}

	vectors := make([][]float32, len(in.Texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(envutil.Int("EMBED_CONCURRENCY", 4))
	for _, sp := range spans {
		sp := sp
		g.Go(func() error {
			vecs, err := deps.AI.Embed(gctx, in.Texts[sp.lo:sp.hi])
			if err != nil {
				return fmt.Errorf("embed_chunks: batch [%d:%d]: %w", sp.lo, sp.hi, err)
			}
			if len(vecs) != sp.hi-sp.lo {
				return fmt.Errorf("embed_chunks: batch [%d:%d] returned %d vectors: %w", sp.lo, sp.hi, len(vecs), apperrors.ErrEmbeddingMismatch)
			}
			for i, v := range vecs {
				if len(v) == 0 {
					return fmt.Errorf("embed_chunks: empty vector at index %d: %w", sp.lo+i, apperrors.ErrEmbeddingMismatch)
				}
				vectors[sp.lo+i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return out, fmt.Errorf("embed_chunks: vector %d has dim %d, want %d: %w", i, len(v), dim, apperrors.ErrEmbeddingMismatch)
		}
	}

	out.Vectors = vectors
	out.Batches = len(spans)
	out.Dim = dim
	deps.Log.Info("embedded chunks", "texts", len(in.Texts), "batches", out.Batches, "dim", dim)
	return out, nil
}
