package app

import (
	httpx "github.com/yungbote/astrolab-backend/internal/http"
	httpH "github.com/yungbote/astrolab-backend/internal/http/handlers"
	httpMW "github.com/yungbote/astrolab-backend/internal/http/middleware"
	"github.com/yungbote/astrolab-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, svcs Services) httpx.RouterConfig {
	log.Info("Wiring handlers...")
	return httpx.RouterConfig{
		AuthMiddleware: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
		EventHandler:   httpH.NewEventHandler(svcs.Event, svcs.Queue),
		AbTestHandler:  httpH.NewAbTestHandler(svcs.Assignment, svcs.Conversion, svcs.Significance),
		HealthHandler:  httpH.NewHealthHandler(),
	}
}
