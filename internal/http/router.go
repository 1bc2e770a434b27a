package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/astrolab-backend/internal/http/handlers"
	httpMW "github.com/yungbote/astrolab-backend/internal/http/middleware"
)

type RouterConfig struct {
	AuthMiddleware *httpMW.AuthMiddleware

	EventHandler  *httpH.EventHandler
	AbTestHandler *httpH.AbTestHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Tracking and experiments accept anonymous callers; the bearer
		// token, when present, supplies the user half of the visitor identity.
		if cfg.AuthMiddleware != nil {
			api.Use(cfg.AuthMiddleware.OptionalAuth())
		}

		if cfg.EventHandler != nil {
			api.POST("/events", cfg.EventHandler.Track)
			api.POST("/events/batch", cfg.EventHandler.IngestBatch)
		}

		if cfg.AbTestHandler != nil {
			api.POST("/ab-tests/variant", cfg.AbTestHandler.GetVariant)
			api.POST("/ab-tests/conversion", cfg.AbTestHandler.RecordConversion)
			api.GET("/ab-tests/:name/results", cfg.AbTestHandler.GetResults)
		}
	}

	return r
}
