package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studypath-backend/internal/http/response"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/services"
)

// ConceptHandler exposes the key concepts of a file plus custom-concept editing.
type ConceptHandler struct {
	log      *logger.Logger
	concepts services.ConceptService
}

func NewConceptHandler(baseLog *logger.Logger, concepts services.ConceptService) *ConceptHandler {
	return &ConceptHandler{log: baseLog.With("handler", "ConceptHandler"), concepts: concepts}
}

func (h *ConceptHandler) ListForFile(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	fileID, ok := idParam(c, "id")
	if !ok {
		return
	}
	includeEdges := c.Query("include") == "edges"
	list, err := h.concepts.List(c.Request.Context(), owner, fileID, includeEdges)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, list)
}

type createConceptRequest struct {
	Title       string   `json:"title"`
	Explanation string   `json:"explanation"`
	Page        *int     `json:"page"`
	StartSec    *float64 `json:"start_sec"`
	EndSec      *float64 `json:"end_sec"`
}

func (h *ConceptHandler) Create(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	fileID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req createConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	concept, err := h.concepts.CreateCustom(c.Request.Context(), owner, services.CreateConceptInput{
		FileID:      fileID,
		Title:       req.Title,
		Explanation: req.Explanation,
		Page:        req.Page,
		StartSec:    req.StartSec,
		EndSec:      req.EndSec,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, concept)
}

type updateConceptRequest struct {
	Title       *string  `json:"title"`
	Explanation *string  `json:"explanation"`
	Page        *int     `json:"page"`
	StartSec    *float64 `json:"start_sec"`
	EndSec      *float64 `json:"end_sec"`
}

func (h *ConceptHandler) Update(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	conceptID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req updateConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	concept, err := h.concepts.Update(c.Request.Context(), owner, conceptID, services.UpdateConceptInput{
		Title:       req.Title,
		Explanation: req.Explanation,
		Page:        req.Page,
		StartSec:    req.StartSec,
		EndSec:      req.EndSec,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, concept)
}

func (h *ConceptHandler) Delete(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	conceptID, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.concepts.Delete(c.Request.Context(), owner, conceptID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondNoContent(c)
}
