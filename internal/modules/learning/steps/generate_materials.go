package steps

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	repos "github.com/yungbote/studypath-backend/internal/data/repos/learning"
	"github.com/yungbote/studypath-backend/internal/domain/learning"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/openai"
)

type GenerateMaterialsDeps struct {
	Log        *logger.Logger
	Flashcards repos.FlashcardRepo
	Quiz       repos.QuizQuestionRepo
	AI         openai.Client
}

type GenerateMaterialsInput struct {
	OwnerUserID        uuid.UUID
	FileID             uuid.UUID
	Language           string
	ComprehensionLevel string
	Concepts           []*learning.Concept
}

type GenerateMaterialsOutput struct {
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// GenerateMaterials derives a flashcard, a multiple-choice question, and a
// true/false question for every persisted concept. The three generators per
// concept are isolated from each other and concepts are isolated from their
// siblings: one bad model response costs exactly one item. The aggregate
// counts land on the job row and in the completion notification.
func GenerateMaterials(ctx context.Context, deps GenerateMaterialsDeps, in GenerateMaterialsInput) (GenerateMaterialsOutput, error) {
	out := GenerateMaterialsOutput{}
	if deps.Log == nil || deps.Flashcards == nil || deps.Quiz == nil || deps.AI == nil {
		return out, fmt.Errorf("generate_materials: missing deps")
	}
	if in.OwnerUserID == uuid.Nil || in.FileID == uuid.Nil {
		return out, fmt.Errorf("generate_materials: missing ids: %w", apperrors.ErrInvalidArgument)
	}
	if len(in.Concepts) == 0 {
		return out, fmt.Errorf("generate_materials: no concepts: %w", apperrors.ErrInvalidArgument)
	}

	var successful, failed int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(envutil.Int("MATERIALS_CONCURRENCY", 4))
	for _, c := range in.Concepts {
		c := c
		if c == nil || c.ID == uuid.Nil {
			continue
		}
		g.Go(func() error {
			for _, gen := range [...]func(context.Context, GenerateMaterialsDeps, GenerateMaterialsInput, *learning.Concept) error{
				generateFlashcard,
				generateMultipleChoice,
				generateTrueFalse,
			} {
				if err := gen(gctx, deps, in, c); err != nil {
					atomic.AddInt32(&failed, 1)
					deps.Log.Warn("material generation failed", "file_id", in.FileID, "concept_id", c.ID, "error", err.Error())
					continue
				}
				atomic.AddInt32(&successful, 1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	out.Processed = len(in.Concepts)
	out.Successful = int(atomic.LoadInt32(&successful))
	out.Failed = int(atomic.LoadInt32(&failed))
	deps.Log.Info("generated materials", "file_id", in.FileID,
		"processed", out.Processed, "successful", out.Successful, "failed", out.Failed)
	return out, nil
}

func generateFlashcard(ctx context.Context, deps GenerateMaterialsDeps, in GenerateMaterialsInput, c *learning.Concept) error {
	system, user := flashcardPrompt(in.Language, in.ComprehensionLevel, c.Title, c.Explanation)
	obj, err := deps.AI.GenerateJSON(ctx, system, user, "flashcard", flashcardSchema())
	if err != nil {
		return fmt.Errorf("flashcard: %w", err)
	}
	front := stringFromAny(obj["front"])
	back := stringFromAny(obj["back"])
	if front == "" || back == "" {
		return fmt.Errorf("flashcard: empty front or back")
	}
	conceptID := c.ID
	_, err = deps.Flashcards.CreateBatch(dbctx.From(ctx), []*learning.Flashcard{{
		FileID:      in.FileID,
		OwnerUserID: in.OwnerUserID,
		ConceptID:   &conceptID,
		Front:       front,
		Back:        back,
	}})
	return err
}

func generateMultipleChoice(ctx context.Context, deps GenerateMaterialsDeps, in GenerateMaterialsInput, c *learning.Concept) error {
	system, user := multipleChoicePrompt(in.Language, in.ComprehensionLevel, c.Title, c.Explanation)
	obj, err := deps.AI.GenerateJSON(ctx, system, user, "multiple_choice", multipleChoiceSchema())
	if err != nil {
		return fmt.Errorf("multiple choice: %w", err)
	}
	question := stringFromAny(obj["question"])
	options := stringSliceFromAny(obj["options"])
	answerIdx, ok := floatFromAny(obj["answer_index"])
	if question == "" || len(options) != 4 || !ok || int(answerIdx) < 0 || int(answerIdx) > 3 {
		return fmt.Errorf("multiple choice: malformed question (options=%d)", len(options))
	}
	conceptID := c.ID
	_, err = deps.Quiz.CreateBatch(dbctx.From(ctx), []*learning.QuizQuestion{{
		FileID:      in.FileID,
		OwnerUserID: in.OwnerUserID,
		ConceptID:   &conceptID,
		Kind:        learning.QuizKindMultipleChoice,
		Question:    question,
		Options:     mustJSON(options),
		Answer:      fmt.Sprintf("%d", int(answerIdx)),
		Explanation: stringFromAny(obj["explanation"]),
	}})
	return err
}

func generateTrueFalse(ctx context.Context, deps GenerateMaterialsDeps, in GenerateMaterialsInput, c *learning.Concept) error {
	system, user := trueFalsePrompt(in.Language, in.ComprehensionLevel, c.Title, c.Explanation)
	obj, err := deps.AI.GenerateJSON(ctx, system, user, "true_false", trueFalseSchema())
	if err != nil {
		return fmt.Errorf("true/false: %w", err)
	}
	statement := stringFromAny(obj["statement"])
	answer := strings.ToLower(stringFromAny(obj["answer"]))
	if statement == "" || (answer != "true" && answer != "false") {
		return fmt.Errorf("true/false: malformed statement")
	}
	conceptID := c.ID
	_, err = deps.Quiz.CreateBatch(dbctx.From(ctx), []*learning.QuizQuestion{{
		FileID:      in.FileID,
		OwnerUserID: in.OwnerUserID,
		ConceptID:   &conceptID,
		Kind:        learning.QuizKindTrueFalse,
		Question:    statement,
		Answer:      answer,
		Explanation: stringFromAny(obj["explanation"]),
	}})
	return err
}
