package campaign

import (
	"inviteflow/core/clock"
	"inviteflow/core/database"
	"inviteflow/core/middleware"
	bookingService "inviteflow/modules/booking/service"
	"inviteflow/modules/campaign/controller"
	"inviteflow/modules/campaign/repository"
	"inviteflow/modules/campaign/router"
	"inviteflow/modules/campaign/service"
	inboxRepository "inviteflow/modules/inbox/repository"
	inboxService "inviteflow/modules/inbox/service"
	"inviteflow/modules/transport"

	"github.com/labstack/echo/v4"
)

// Init wires the campaign module. It returns the campaign service, which the
// host plugs into the reservation service as settings resolver and prospect
// syncer, and the processor the worker drives.
func Init(
	g *echo.Group,
	db database.Database,
	mw *middleware.Middleware,
	clk clock.Clock,
	reservations *bookingService.ReservationService,
	registry *inboxService.RegistryService,
	transports *transport.Registry,
	enqueuer service.Enqueuer,
) (*service.CampaignService, *service.ProcessorService) {
	repo := repository.NewCampaignRepository(db)
	inboxRepo := inboxRepository.NewInboxRepository(db)

	campaignSvc := service.NewCampaignService(repo, reservations, enqueuer, clk)
	outcomes := service.NewOutcomeService(repo, registry, reservations, clk)
	processor := service.NewProcessorService(repo, reservations, outcomes, campaignSvc, transports, inboxRepo, clk, nil)

	ctrl := controller.NewCampaignController(campaignSvc)
	r := router.NewCampaignRouter(ctrl)
	r.Register(g, mw)

	return campaignSvc, processor
}
