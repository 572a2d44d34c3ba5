package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/tutorbridge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/tutorbridge-backend/internal/http/middleware"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware

	TurnHandler     *httpH.TurnHandler
	ThreadHandler   *httpH.ThreadHandler
	DocumentHandler *httpH.DocumentHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			api.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Turns
		if cfg.TurnHandler != nil {
			api.POST("/turns", cfg.TurnHandler.HandleTurn)
		}

		// Threads
		if cfg.ThreadHandler != nil {
			api.GET("/threads/:id", cfg.ThreadHandler.GetThread)
		}

		// Documents
		if cfg.DocumentHandler != nil {
			api.POST("/documents", cfg.DocumentHandler.CreateDocument)
			api.GET("/documents/:id", cfg.DocumentHandler.GetDocument)
		}
	}

	return r
}
