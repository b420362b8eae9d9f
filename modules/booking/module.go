package booking

import (
	"math/rand"

	"inviteflow/core/clock"
	"inviteflow/core/database"
	"inviteflow/core/lock"
	"inviteflow/core/middleware"
	"inviteflow/modules/booking/controller"
	"inviteflow/modules/booking/repository"
	"inviteflow/modules/booking/router"
	"inviteflow/modules/booking/service"
	inboxRepository "inviteflow/modules/inbox/repository"
	inboxService "inviteflow/modules/inbox/service"
	scheduleService "inviteflow/modules/schedule/service"

	"github.com/labstack/echo/v4"
)

// Init wires the booking module and returns the reservation service so the
// host can plug it into the inbox registry (slot release on disconnect) and
// the campaign processor.
func Init(g *echo.Group, db database.Database, mw *middleware.Middleware, clk clock.Clock, locker lock.Locker, selector *inboxService.SelectorService, rng *rand.Rand) *service.ReservationService {
	repo := repository.NewBookingRepository(db)
	inboxRepo := inboxRepository.NewInboxRepository(db)
	calculator := scheduleService.NewSlotCalculator()
	svc := service.NewReservationService(repo, inboxRepo, selector, calculator, locker, clk, rng)
	ctrl := controller.NewBookingController(svc)

	r := router.NewBookingRouter(ctrl)
	r.Register(g, mw)

	return svc
}
