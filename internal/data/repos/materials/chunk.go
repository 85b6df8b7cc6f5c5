package materials

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/data/repos/repoerr"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

// LexicalHit is one full-text match with its ts_rank score.
type LexicalHit struct {
	Chunk *types.Chunk
	Score float64
}

type ChunkRepo interface {
	CreateBatch(dbc dbctx.Context, chunks []*types.Chunk) ([]*types.Chunk, error)
	ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.Chunk, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Chunk, error)
	DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) error
	BulkSetEmbeddings(dbc dbctx.Context, chunks []*types.Chunk, vectors [][]float32) error
	SearchLexical(dbc dbctx.Context, ownerUserID uuid.UUID, query string, limit int) ([]LexicalHit, error)
}

type chunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChunkRepo(db *gorm.DB, baseLog *logger.Logger) ChunkRepo {
	return &chunkRepo{
		db:  db,
		log: baseLog.With("repo", "ChunkRepo"),
	}
}

func (r *chunkRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *chunkRepo) CreateBatch(dbc dbctx.Context, chunks []*types.Chunk) ([]*types.Chunk, error) {
	if len(chunks) == 0 {
		return []*types.Chunk{}, nil
	}
	for _, ch := range chunks {
		if ch == nil || ch.FileID == uuid.Nil || ch.SegmentID == uuid.Nil {
			return nil, fmt.Errorf("chunk repo create: missing parent ids: %w", apperrors.ErrInvalidArgument)
		}
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).CreateInBatches(&chunks, 200).Error; err != nil {
		return nil, repoerr.Map("chunk repo create", err)
	}
	return chunks, nil
}

func (r *chunkRepo) ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.Chunk, error) {
	if fileID == uuid.Nil {
		return nil, fmt.Errorf("chunk repo list: %w", apperrors.ErrInvalidArgument)
	}
	var out []*types.Chunk
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("file_id = ?", fileID).
		Order("ordinal ASC").
		Find(&out).Error
	if err != nil {
		return nil, repoerr.Map("chunk repo list", err)
	}
	return out, nil
}

func (r *chunkRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Chunk, error) {
	var out []*types.Chunk
	if len(ids) == 0 {
		return out, nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error
	if err != nil {
		return nil, repoerr.Map("chunk repo get by ids", err)
	}
	return out, nil
}

func (r *chunkRepo) DeleteByFile(dbc dbctx.Context, fileID uuid.UUID) error {
	if fileID == uuid.Nil {
		return nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("file_id = ?", fileID).
		Delete(&types.Chunk{}).Error
	return repoerr.Map("chunk repo delete by file", err)
}

// BulkSetEmbeddings writes one vector per chunk in a single CASE update.
// Counts must already have been validated by the embedding stage; the
// recheck here is the last line of defense before the write.
func (r *chunkRepo) BulkSetEmbeddings(dbc dbctx.Context, chunks []*types.Chunk, vectors [][]float32) error {
	if dbc.Tx == nil {
		return fmt.Errorf("chunk repo set embeddings: tx required: %w", apperrors.ErrInvalidArgument)
	}
	if len(chunks) == 0 {
		return nil
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("chunk repo set embeddings (got %d want %d): %w",
			len(vectors), len(chunks), apperrors.ErrEmbeddingMismatch)
	}

	var (
		embParts []string
		vecParts []string
		embArgs  []any
		vecArgs  []any
		ids      []uuid.UUID
	)
	embParts = append(embParts, "CASE id")
	vecParts = append(vecParts, "CASE id")
	for i, ch := range chunks {
		if ch == nil || ch.ID == uuid.Nil {
			continue
		}
		raw, _ := json.Marshal(vectors[i])
		embParts = append(embParts, "WHEN ? THEN ?::jsonb")
		embArgs = append(embArgs, ch.ID, string(raw))
		vecParts = append(vecParts, "WHEN ? THEN ?")
		vecArgs = append(vecArgs, ch.ID, ch.VectorID)
		ids = append(ids, ch.ID)
	}
	embParts = append(embParts, "ELSE embedding END")
	vecParts = append(vecParts, "ELSE vector_id END")
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`UPDATE material_chunk
		 SET embedding = %s,
		     vector_id = %s
		 WHERE id IN ?`,
		strings.Join(embParts, " "),
		strings.Join(vecParts, " "),
	)
	args := append(embArgs, vecArgs...)
	args = append(args, ids)
	err := dbc.Tx.WithContext(dbc.Ctx).Exec(query, args...).Error
	return repoerr.Map("chunk repo set embeddings", err)
}

// SearchLexical ranks the owner's chunks against the query with Postgres
// full-text search. Non-postgres dialects (sqlite dev mode) return nothing,
// which the hybrid engine treats as an empty keyword side.
func (r *chunkRepo) SearchLexical(dbc dbctx.Context, ownerUserID uuid.UUID, query string, limit int) ([]LexicalHit, error) {
	if ownerUserID == uuid.Nil || strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	h := r.handle(dbc)
	if h.Dialector.Name() != "postgres" {
		return nil, nil
	}

	start := time.Now()
	sql := fmt.Sprintf(`
		SELECT material_chunk.*,
		       ts_rank(to_tsvector('english', material_chunk.text), plainto_tsquery('english', ?)) AS rank
		FROM material_chunk
		JOIN material_file ON material_chunk.file_id = material_file.id
		WHERE material_file.owner_user_id = ?
			AND material_file.deleted_at IS NULL
			AND to_tsvector('english', material_chunk.text) @@ plainto_tsquery('english', ?)
		ORDER BY rank DESC, material_chunk.created_at DESC
		LIMIT %d;
	`, limit)

	type row struct {
		types.Chunk
		Rank float64 `gorm:"column:rank"`
	}
	var rows []row
	if err := h.WithContext(dbc.Ctx).Raw(sql, query, ownerUserID, query).Scan(&rows).Error; err != nil {
		return nil, repoerr.Map("chunk repo search lexical", err)
	}
	r.log.Debug("lexical search", "ms", time.Since(start).Milliseconds(), "count", len(rows))

	out := make([]LexicalHit, 0, len(rows))
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			continue
		}
		c := rows[i].Chunk
		out = append(out, LexicalHit{Chunk: &c, Score: rows[i].Rank})
	}
	return out, nil
}
