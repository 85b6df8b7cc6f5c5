package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/studypath-backend/internal/http/response"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/services"
)

// ProductsHandler serves the study products derived from a file.
type ProductsHandler struct {
	log      *logger.Logger
	products services.ProductsService
}

func NewProductsHandler(baseLog *logger.Logger, products services.ProductsService) *ProductsHandler {
	return &ProductsHandler{log: baseLog.With("handler", "ProductsHandler"), products: products}
}

func (h *ProductsHandler) ListFlashcards(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	fileID, ok := idParam(c, "id")
	if !ok {
		return
	}
	cards, err := h.products.ListFlashcards(c.Request.Context(), owner, fileID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"flashcards": cards})
}

func (h *ProductsHandler) ListQuizQuestions(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	fileID, ok := idParam(c, "id")
	if !ok {
		return
	}
	questions, err := h.products.ListQuizQuestions(c.Request.Context(), owner, fileID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"questions": questions})
}
