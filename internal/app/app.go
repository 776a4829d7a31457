package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/correspondence-backend/internal/db"
	apphttp "github.com/yungbote/correspondence-backend/internal/http"
	"github.com/yungbote/correspondence-backend/internal/observability"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	Config   *Config
	DB       *db.Service
	Router   *gin.Engine
	Repos    Repos
	Services Services
	Clients  Clients
	SSEHub   *realtime.SSEHub

	server       *http.Server
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := NewWithConfig(cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

// NewWithConfig wires every component from an already-loaded config.
func NewWithConfig(cfg *Config, log *logger.Logger) (*App, error) {
	otelShutdown := observability.InitOTel(context.Background(), log, cfg.Otel)

	store, err := db.New(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := store.AutoMigrateAll(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("db automigrate: %w", err)
	}
	theDB := store.DB()

	clients, err := wireClients(cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	hub := realtime.NewSSEHub(log)
	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, clients)
	if err != nil {
		_ = clients.Bus.Close()
		_ = store.Close()
		return nil, err
	}
	middleware, err := wireMiddleware(log, cfg)
	if err != nil {
		_ = clients.Bus.Close()
		_ = store.Close()
		return nil, err
	}
	handlerset := wireHandlers(log, serviceset, hub, clients.Bus, store)
	router := wireRouter(log, cfg, handlerset, middleware)

	return &App{
		Log:      log,
		Config:   cfg,
		DB:       store,
		Router:   router,
		Repos:    reposet,
		Services: serviceset,
		Clients:  clients,
		SSEHub:   hub,
		server: apphttp.NewServer(apphttp.ServerConfig{
			Addr:              cfg.HTTP.Addr,
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
			IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
		}, router),
		otelShutdown: otelShutdown,
	}, nil
}

// Start connects the status bus to the local SSE hub.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.Clients.Bus == nil {
		return errors.New("app not initialized")
	}
	return a.Clients.Bus.StartForwarder(ctx, a.SSEHub.Broadcast)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return errors.New("app not initialized")
	}
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start status bus: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("HTTP server listening", "addr", a.server.Addr)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Clients.Bus != nil {
		_ = a.Clients.Bus.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("Closing db failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
