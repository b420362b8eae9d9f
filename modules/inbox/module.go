package inbox

import (
	"inviteflow/core/clock"
	"inviteflow/core/crypto"
	"inviteflow/core/database"
	"inviteflow/core/middleware"
	"inviteflow/modules/inbox/controller"
	"inviteflow/modules/inbox/repository"
	"inviteflow/modules/inbox/router"
	"inviteflow/modules/inbox/service"

	"github.com/labstack/echo/v4"
)

// Init wires the inbox module and returns its services for cross-module use.
// The booking module later injects itself as the SlotReleaser so that
// disconnecting an inbox frees its pending bookings.
func Init(g *echo.Group, db database.Database, mw *middleware.Middleware, clk clock.Clock, sealer *crypto.Sealer) (*service.RegistryService, *service.SelectorService) {
	repo := repository.NewInboxRepository(db)
	registry := service.NewRegistryService(repo, clk, sealer)
	selector := service.NewSelectorService(repo)
	ctrl := controller.NewInboxController(registry)

	r := router.NewInboxRouter(ctrl)
	r.Register(g, mw)

	return registry, selector
}
