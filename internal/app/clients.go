package app

import (
	"fmt"

	"github.com/yungbote/correspondence-backend/internal/platform/completion"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/realtime/bus"
)

type Clients struct {
	Completion completion.Client
	Bus        bus.Bus
}

func wireClients(cfg *Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	switch cfg.LLM.Mode {
	case LLMModeMock:
		log.Warn("LLM_MODE=mock: completions are simulated offline")
		out.Completion = completion.Mock{}
	default:
		c, err := completion.New(completion.Config{
			BaseURL:             cfg.LLM.BaseURL,
			APIKey:              cfg.LLM.APIKey,
			ChatCompletionsPath: cfg.LLM.ChatCompletionsPath,
			Timeout:             cfg.LLM.Timeout.Duration,
		}, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init completion client: %w", err)
		}
		out.Completion = c
	}

	if cfg.Redis.Addr != "" {
		b, err := bus.NewRedisBus(cfg.Redis, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis bus: %w", err)
		}
		out.Bus = b
	} else {
		out.Bus = bus.NewMemoryBus()
	}
	return out, nil
}
