package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studypath-backend/internal/http/response"
	"github.com/yungbote/studypath-backend/internal/modules/chat/steps"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/services"
)

// AnswerHandler serves grounded question answering over the caller's library.
type AnswerHandler struct {
	log     *logger.Logger
	answers services.AnswerService
}

func NewAnswerHandler(baseLog *logger.Logger, answers services.AnswerService) *AnswerHandler {
	return &AnswerHandler{log: baseLog.With("handler", "AnswerHandler"), answers: answers}
}

type answerRequest struct {
	Query   string `json:"query"`
	History []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"history"`
}

func (h *AnswerHandler) Answer(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	history := make([]steps.HistoryTurn, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, steps.HistoryTurn{Role: turn.Role, Content: turn.Content})
	}
	res, err := h.answers.Answer(c.Request.Context(), owner, services.AnswerInput{
		Query:   req.Query,
		History: history,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}
