package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/correspondence-backend/internal/platform/logger"
	"github.com/yungbote/correspondence-backend/internal/repos"
)

type Repos struct {
	Correspondence repos.CorrespondenceRepo
	Meeting        repos.MeetingRepo
	UsageLog       repos.AssistantUsageLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Correspondence: repos.NewCorrespondenceRepo(db, log),
		Meeting:        repos.NewMeetingRepo(db, log),
		UsageLog:       repos.NewAssistantUsageLogRepo(db, log),
	}
}
