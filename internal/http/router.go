package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/classforge/classforge-backend/internal/http/handlers"
	httpMW "github.com/classforge/classforge-backend/internal/http/middleware"
	"github.com/classforge/classforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	JobHandler     *httpH.JobHandler
	ContentHandler *httpH.ContentHandler
	HealthHandler  *httpH.HealthHandler
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
		// Jobs
		if cfg.JobHandler != nil {
			api.POST("/jobs", cfg.JobHandler.SubmitJob)
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
		}

		// Generated content
		if cfg.ContentHandler != nil {
			api.GET("/sessions/:id/content", cfg.ContentHandler.GetSessionContent)
			api.GET("/students/:id/report", cfg.ContentHandler.GetStudentReport)
			api.GET("/jobs/:id/artifacts", cfg.ContentHandler.ListJobArtifacts)
		}
	}

	return r
}
