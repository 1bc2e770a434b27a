package app

import (
	"gorm.io/gorm"

	redisclient "github.com/yungbote/astrolab-backend/internal/clients/redis"
	"github.com/yungbote/astrolab-backend/internal/platform/logger"
	"github.com/yungbote/astrolab-backend/internal/services"
)

type Services struct {
	Event        services.EventService
	Queue        *services.BatchQueue
	Spool        services.EventSpool
	Assignment   services.AssignmentService
	Conversion   services.ConversionService
	Significance services.SignificanceService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos) Services {
	log.Info("Wiring services...")

	eventService := services.NewEventService(db, log, repos.Event)

	// The spool is optional: without Redis the queue re-buffers offline
	// drains in memory, trading durability for a lighter deployment.
	var spool services.EventSpool
	if cfg.RedisAddr != "" {
		s, err := redisclient.NewEventSpool(log, cfg.RedisAddr, cfg.SpoolKey, cfg.SpoolMaxRetained)
		if err != nil {
			log.Warn("event spool unavailable, offline events stay in memory", "error", err)
		} else {
			spool = s
		}
	}

	queue := services.NewBatchQueue(log, eventService, spool, services.BatchQueueConfig{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	})

	// Assignment and conversion events flow through the same queue the
	// public tracking endpoint uses; Track never fails, which keeps the
	// emission best-effort by construction.
	assignmentService := services.NewAssignmentService(db, log, repos.AbTest, repos.AbAssignment, queue)
	conversionService := services.NewConversionService(db, log, repos.AbTest, repos.AbAssignment, queue)
	significanceService := services.NewSignificanceService(db, log, repos.AbTest, repos.AbAssignment)

	return Services{
		Event:        eventService,
		Queue:        queue,
		Spool:        spool,
		Assignment:   assignmentService,
		Conversion:   conversionService,
		Significance: significanceService,
	}
}
