package steps

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	repos "github.com/yungbote/studypath-backend/internal/data/repos/materials"
	"github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/ingestion/chunker"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/qdrant"
)

type StoreContentDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Segments repos.SegmentRepo
	Chunks   repos.ChunkRepo
	Vec      qdrant.VectorStore
}

type StoreContentInput struct {
	OwnerUserID uuid.UUID
	FileID      uuid.UUID
	Segments    []materials.SourceSegment
	Pieces      []chunker.Piece
	Vectors     [][]float32
}

type StoreContentOutput struct {
	SegmentRows   int  `json:"segment_rows"`
	ChunkRows     int  `json:"chunk_rows"`
	VectorUpserts int  `json:"vector_upserts"`
	VectorSkipped bool `json:"vector_skipped"`
}

// StoreContent persists segments and their chunks, embeddings included, in
// one transaction. Leftover rows from a prior run of the same file are wiped
// inside the same transaction so a reprocess never doubles content. The
// vector index upsert happens after commit and is a retrieval cache only:
// its failure logs a warning and the stage still succeeds.
func StoreContent(ctx context.Context, deps StoreContentDeps, in StoreContentInput) (StoreContentOutput, error) {
	out := StoreContentOutput{}
	if deps.DB == nil || deps.Log == nil || deps.Segments == nil || deps.Chunks == nil {
		return out, fmt.Errorf("store_content: missing deps")
	}
	if in.OwnerUserID == uuid.Nil || in.FileID == uuid.Nil {
		return out, fmt.Errorf("store_content: missing ids: %w", apperrors.ErrInvalidArgument)
	}
	if len(in.Segments) == 0 {
		return out, fmt.Errorf("store_content: no segments to store: %w", apperrors.ErrInvalidArgument)
	}
	if len(in.Vectors) != len(in.Pieces) {
		return out, fmt.Errorf("store_content: %d vectors for %d pieces: %w", len(in.Vectors), len(in.Pieces), apperrors.ErrEmbeddingMismatch)
	}
	for _, p := range in.Pieces {
		if p.Seg < 0 || p.Seg >= len(in.Segments) {
			return out, fmt.Errorf("store_content: piece %d references segment %d of %d: %w", p.Index, p.Seg, len(in.Segments), apperrors.ErrInvalidArgument)
		}
	}

	var chunkRows []*materials.Chunk
	err := deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		if err := deps.Chunks.DeleteByFile(dbc, in.FileID); err != nil {
			return err
		}
		if err := deps.Segments.DeleteByFile(dbc, in.FileID); err != nil {
			return err
		}

		segRows := make([]*materials.Segment, 0, len(in.Segments))
		for i, s := range in.Segments {
			segRows = append(segRows, &materials.Segment{
				FileID:   in.FileID,
				Ordinal:  i,
				Text:     s.Text,
				Page:     s.Page,
				StartSec: s.StartSec,
				EndSec:   s.EndSec,
			})
		}
		segRows, err := deps.Segments.CreateBatch(dbc, segRows)
		if err != nil {
			return err
		}
		out.SegmentRows = len(segRows)

		chunkRows = make([]*materials.Chunk, 0, len(in.Pieces))
		for i, p := range in.Pieces {
			id := uuid.New()
			chunkRows = append(chunkRows, &materials.Chunk{
				ID:         id,
				FileID:     in.FileID,
				SegmentID:  segRows[p.Seg].ID,
				Ordinal:    p.Index,
				Text:       p.Text,
				TokenCount: chunker.EstimateTokens(p.Text),
				Embedding:  mustJSON(in.Vectors[i]),
				VectorID:   id.String(),
				Page:       p.Page,
				StartSec:   p.StartSec,
				EndSec:     p.EndSec,
			})
		}
		chunkRows, err = deps.Chunks.CreateBatch(dbc, chunkRows)
		if err != nil {
			return err
		}
		out.ChunkRows = len(chunkRows)
		return nil
	})
	if err != nil {
		return StoreContentOutput{}, err
	}

	if deps.Vec == nil {
		out.VectorSkipped = true
		return out, nil
	}
	vecs := make([]qdrant.Vector, 0, len(chunkRows))
	for i, ch := range chunkRows {
		vecs = append(vecs, qdrant.Vector{
			ID:     ch.VectorID,
			Values: in.Vectors[i],
			Metadata: map[string]any{
				"type":     "chunk",
				"file_id":  in.FileID.String(),
				"chunk_id": ch.ID.String(),
				"ordinal":  ch.Ordinal,
			},
		})
	}
	ns := ChunksNamespace(in.OwnerUserID)
	if err := deps.Vec.Upsert(ctx, ns, vecs); err != nil {
		out.VectorSkipped = true
		deps.Log.Warn("vector upsert failed, lexical search still covers these chunks", "namespace", ns, "error", err.Error())
		return out, nil
	}
	out.VectorUpserts = len(vecs)
	return out, nil
}

// ChunksNamespace scopes vector points per owner so one user's similarity
// query never sees another user's chunks.
func ChunksNamespace(ownerUserID uuid.UUID) string {
	return "chunks-" + ownerUserID.String()
}
