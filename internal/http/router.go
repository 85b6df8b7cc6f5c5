package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/studypath-backend/internal/http/handlers"
	httpMW "github.com/yungbote/studypath-backend/internal/http/middleware"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler   *httpH.HealthHandler
	FileHandler     *httpH.FileHandler
	ConceptHandler  *httpH.ConceptHandler
	ProductsHandler *httpH.ProductsHandler
	AnswerHandler   *httpH.AnswerHandler
	EventsHandler   *httpH.EventsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			api.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Realtime (SSE)
		if cfg.EventsHandler != nil {
			api.GET("/events", cfg.EventsHandler.Stream)
		}

		// Files
		if cfg.FileHandler != nil {
			api.POST("/files", cfg.FileHandler.Create)
			api.GET("/files", cfg.FileHandler.List)
			api.GET("/files/:id", cfg.FileHandler.Get)
			api.POST("/files/:id/reprocess", cfg.FileHandler.Reprocess)
			api.DELETE("/files/:id", cfg.FileHandler.Delete)
		}

		// Concepts
		if cfg.ConceptHandler != nil {
			api.GET("/files/:id/concepts", cfg.ConceptHandler.ListForFile)
			api.POST("/files/:id/concepts", cfg.ConceptHandler.Create)
			api.PATCH("/concepts/:id", cfg.ConceptHandler.Update)
			api.DELETE("/concepts/:id", cfg.ConceptHandler.Delete)
		}

		// Study products
		if cfg.ProductsHandler != nil {
			api.GET("/files/:id/flashcards", cfg.ProductsHandler.ListFlashcards)
			api.GET("/files/:id/quiz", cfg.ProductsHandler.ListQuizQuestions)
		}

		// Answers
		if cfg.AnswerHandler != nil {
			api.POST("/answers", cfg.AnswerHandler.Answer)
		}
	}

	return r
}
