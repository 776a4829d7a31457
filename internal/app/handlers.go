package app

import (
	"github.com/gin-gonic/gin"

	apphttp "github.com/yungbote/correspondence-backend/internal/http"
	httpH "github.com/yungbote/correspondence-backend/internal/http/handlers"
	httpMW "github.com/yungbote/correspondence-backend/internal/http/middleware"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/realtime"
	"github.com/yungbote/correspondence-backend/internal/realtime/bus"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health    *httpH.HealthHandler
	Assistant *httpH.AssistantHandler
	Realtime  *httpH.RealtimeHandler
}

func wireMiddleware(log *logger.Logger, cfg *Config) (Middleware, error) {
	log.Info("Wiring middleware...")
	auth, err := httpMW.NewAuthMiddleware(log, cfg.Auth.JWTSecret)
	if err != nil {
		return Middleware{}, err
	}
	return Middleware{Auth: auth}, nil
}

func wireHandlers(log *logger.Logger, services Services, hub *realtime.SSEHub, b bus.Bus, pinger httpH.Pinger) Handlers {
	log.Info("Wiring handlers...")
	emitter := &bus.Emitter{Bus: b, Log: log}
	return Handlers{
		Health:    httpH.NewHealthHandler(pinger),
		Assistant: httpH.NewAssistantHandler(log, services.Orchestrator, services.Recorder, emitter),
		Realtime:  httpH.NewRealtimeHandler(log, hub),
	}
}

func wireRouter(log *logger.Logger, cfg *Config, handlers Handlers, middleware Middleware) *gin.Engine {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return apphttp.NewRouter(apphttp.RouterConfig{
		Log:              log,
		ServiceName:      serviceName,
		CORSOrigins:      cfg.HTTP.CORSOrigins,
		AuthMiddleware:   middleware.Auth,
		AssistantHandler: handlers.Assistant,
		RealtimeHandler:  handlers.Realtime,
		HealthHandler:    handlers.Health,
	})
}
