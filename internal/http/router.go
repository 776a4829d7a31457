package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/correspondence-backend/internal/http/handlers"
	httpMW "github.com/yungbote/correspondence-backend/internal/http/middleware"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	AssistantHandler *httpH.AssistantHandler
	RealtimeHandler  *httpH.RealtimeHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	protected := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		// Assistant
		if cfg.AssistantHandler != nil {
			protected.POST("/assistant/ask", cfg.AssistantHandler.Ask)
			protected.POST("/assistant/ask/stream", cfg.AssistantHandler.AskStream)
			protected.POST("/assistant/logs/:id/feedback", cfg.AssistantHandler.Feedback)
			protected.GET("/assistant/usage/summary",
				httpMW.RequireRole("manager", "admin"),
				cfg.AssistantHandler.UsageSummary,
			)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}
	}

	return r
}
