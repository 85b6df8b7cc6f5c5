package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	materialrepos "github.com/yungbote/studypath-backend/internal/data/repos/materials"
	"github.com/yungbote/studypath-backend/internal/modules/chat/steps"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/openai"
	"github.com/yungbote/studypath-backend/internal/platform/qdrant"
	"github.com/yungbote/studypath-backend/internal/platform/websearch"
)

type AnswerInput struct {
	Query   string              `json:"query"`
	History []steps.HistoryTurn `json:"history,omitempty"`
}

// RetrievalStats describes how the answer's context was found, for clients
// that surface retrieval quality.
type RetrievalStats struct {
	VectorHits  int    `json:"vector_hits"`
	LexicalHits int    `json:"lexical_hits"`
	Mode        string `json:"mode"`
}

type AnswerResult struct {
	AnswerText string           `json:"answer_text"`
	Citations  []steps.Citation `json:"citations,omitempty"`
	UsedWeb    bool             `json:"used_web,omitempty"`
	NoAnswer   bool             `json:"no_answer,omitempty"`
	Retrieval  RetrievalStats   `json:"retrieval"`
}

// AnswerService answers one question over the owner's processed materials:
// query shaping, hybrid retrieval, rerank, budgeted selection, then a cited
// answer, with web search as the empty-retrieval fallback.
type AnswerService interface {
	Answer(ctx context.Context, ownerUserID uuid.UUID, in AnswerInput) (*AnswerResult, error)
}

type answerService struct {
	log    *logger.Logger
	ai     openai.Client
	vec    qdrant.VectorStore
	web    steps.WebSearcher
	chunks materialrepos.ChunkRepo
	files  materialrepos.FileRepo
}

var _ AnswerService = (*answerService)(nil)

func NewAnswerService(
	baseLog *logger.Logger,
	ai openai.Client,
	vec qdrant.VectorStore,
	web websearch.Client,
	chunks materialrepos.ChunkRepo,
	files materialrepos.FileRepo,
) AnswerService {
	return &answerService{
		log:    baseLog.With("service", "AnswerService"),
		ai:     ai,
		vec:    vec,
		web:    webSearchAdapter{c: web},
		chunks: chunks,
		files:  files,
	}
}

func (s *answerService) Answer(ctx context.Context, ownerUserID uuid.UUID, in AnswerInput) (*AnswerResult, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("answer: missing owner: %w", apperrors.ErrUnauthorized)
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, fmt.Errorf("answer: empty query: %w", apperrors.ErrInvalidArgument)
	}

	pq := steps.ProcessQuery(ctx, steps.ProcessQueryDeps{Log: s.log, AI: s.ai}, steps.ProcessQueryInput{
		Query:   query,
		History: in.History,
	})

	ret := steps.RetrieveCandidates(ctx, steps.RetrieveDeps{
		Log:    s.log,
		AI:     s.ai,
		Vec:    s.vec,
		Chunks: s.chunks,
		Files:  s.files,
	}, steps.RetrieveInput{
		OwnerUserID: ownerUserID,
		Search:      pq.Search,
		Expansion:   pq.Expansion,
		Alpha:       envutil.Float("RETRIEVAL_ALPHA", steps.DefaultAlpha),
	})

	ranked := steps.Rerank(ctx, steps.RerankDeps{Log: s.log, AI: s.ai}, pq.Search, ret.Candidates, 0)
	selected := steps.SelectChunks(ranked, envutil.Int("SELECT_TOKEN_BUDGET", steps.DefaultTokenBudget))

	out := steps.AssembleAnswer(ctx, steps.AssembleDeps{Log: s.log, AI: s.ai, Web: s.web}, steps.AssembleInput{
		Query:              pq.Original,
		History:            in.History,
		Selected:           selected,
		ComprehensionLevel: comprehensionLevelFor(selected),
		ContextBudget:      envutil.Int("CONTEXT_TOKEN_BUDGET", steps.DefaultContextTokens),
	})

	s.log.Info("answer assembled",
		"mode", ret.Mode,
		"candidates", len(ret.Candidates),
		"selected", len(selected),
		"no_answer", out.NoAnswer,
		"used_web", out.UsedWeb)

	return &AnswerResult{
		AnswerText: out.AnswerText,
		Citations:  out.Citations,
		UsedWeb:    out.UsedWeb,
		NoAnswer:   out.NoAnswer,
		Retrieval: RetrievalStats{
			VectorHits:  ret.VectorHits,
			LexicalHits: ret.LexicalHits,
			Mode:        ret.Mode,
		},
	}, nil
}

// comprehensionLevelFor picks the level of the best-ranked source, so the
// answer's register follows the material it leans on most.
func comprehensionLevelFor(selected []steps.Candidate) string {
	for _, c := range selected {
		if c.File != nil && c.File.ComprehensionLevel != "" {
			return c.File.ComprehensionLevel
		}
	}
	return "intermediate"
}

// webSearchAdapter bridges the websearch client into the assembler's
// fallback interface. A nil or disabled client searches nothing.
type webSearchAdapter struct {
	c websearch.Client
}

func (a webSearchAdapter) Search(ctx context.Context, query string, limit int) ([]steps.WebResult, error) {
	if a.c == nil || !a.c.Enabled() {
		return nil, nil
	}
	results, err := a.c.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]steps.WebResult, 0, len(results))
	for _, r := range results {
		out = append(out, steps.WebResult{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}
