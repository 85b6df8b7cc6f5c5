package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/studypath-backend/internal/http"
	httpH "github.com/yungbote/studypath-backend/internal/http/handlers"
	httpMW "github.com/yungbote/studypath-backend/internal/http/middleware"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	File     *httpH.FileHandler
	Concept  *httpH.ConceptHandler
	Products *httpH.ProductsHandler
	Answer   *httpH.AnswerHandler
	Events   *httpH.EventsHandler
}

func wireHandlers(log *logger.Logger, services Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(),
		File:     httpH.NewFileHandler(log, services.File),
		Concept:  httpH.NewConceptHandler(log, services.Concept),
		Products: httpH.NewProductsHandler(log, services.Products),
		Answer:   httpH.NewAnswerHandler(log, services.Answer),
		Events:   httpH.NewEventsHandler(log, hub),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:             log,
		ServiceName:     cfg.ServiceName,
		AuthMiddleware:  middleware.Auth,
		HealthHandler:   handlers.Health,
		FileHandler:     handlers.File,
		ConceptHandler:  handlers.Concept,
		ProductsHandler: handlers.Products,
		AnswerHandler:   handlers.Answer,
		EventsHandler:   handlers.Events,
	})
}
