package app

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/correspondence-backend/internal/modules/assistant"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/services"
)

type Services struct {
	Correspondence services.CorrespondenceService
	Meetings       services.MeetingService
	Alerts         services.AlertService

	Tools        *assistant.Registry
	Context      *assistant.ContextAssembler
	Recorder     *assistant.Recorder
	Orchestrator *assistant.Orchestrator
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg *Config, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")
	loc, err := time.LoadLocation(cfg.Assistant.Timezone)
	if err != nil {
		return Services{}, fmt.Errorf("load timezone: %w", err)
	}

	out := Services{
		Correspondence: services.NewCorrespondenceService(db, log, repos.Correspondence),
		Meetings:       services.NewMeetingService(db, log, repos.Meeting),
		Alerts:         services.NewAlertService(log, repos.Correspondence, cfg.Assistant.StaleAfter.Duration, cfg.Assistant.AlertIDLimit),
	}

	out.Tools, err = assistant.NewRegistry(assistant.RegistryDeps{
		Log:            log,
		Correspondence: out.Correspondence,
		Meetings:       out.Meetings,
		LinkBase:       cfg.Assistant.LinkBase,
		Location:       loc,
	})
	if err != nil {
		return Services{}, err
	}
	out.Context = assistant.NewContextAssembler(assistant.ContextAssemblerDeps{
		Log:      log,
		Alerts:   out.Alerts,
		TTL:      cfg.Assistant.AlertTTL.Duration,
		Location: loc,
	})
	out.Recorder = assistant.NewRecorder(log, repos.UsageLog)
	out.Orchestrator, err = assistant.NewOrchestrator(assistant.OrchestratorDeps{
		Log:      log,
		Client:   clients.Completion,
		Tools:    out.Tools,
		Prompts:  out.Context,
		Recorder: out.Recorder,
		Config: assistant.Config{
			PrimaryModel:  cfg.LLM.PrimaryModel,
			FallbackModel: cfg.LLM.FallbackModel,
			Temperature:   cfg.LLM.Temperature,
			MaxTokens:     cfg.LLM.MaxTokens,
			HistoryWindow: cfg.Assistant.HistoryWindow,
		},
	})
	if err != nil {
		return Services{}, err
	}
	return out, nil
}
