package app

import (
	"gorm.io/gorm"

	analyticsrepo "github.com/yungbote/astrolab-backend/internal/data/repos/analytics"
	experimentsrepo "github.com/yungbote/astrolab-backend/internal/data/repos/experiments"
	"github.com/yungbote/astrolab-backend/internal/platform/logger"
)

type Repos struct {
	Event        analyticsrepo.EventRepo
	AbTest       experimentsrepo.AbTestRepo
	AbAssignment experimentsrepo.AbAssignmentRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Event:        analyticsrepo.NewEventRepo(db, log),
		AbTest:       experimentsrepo.NewAbTestRepo(db, log),
		AbAssignment: experimentsrepo.NewAbAssignmentRepo(db, log),
	}
}
