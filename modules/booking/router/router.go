package router

import (
	"inviteflow/core/middleware"
	"inviteflow/modules/booking/controller"

	"github.com/labstack/echo/v4"
)

type BookingRouter struct {
	controller *controller.BookingController
}

func NewBookingRouter(controller *controller.BookingController) *BookingRouter {
	return &BookingRouter{
		controller: controller,
	}
}

func (r *BookingRouter) Register(g *echo.Group, mw *middleware.Middleware) {
	bookings := g.Group("/bookings")
	bookings.Use(mw.RequestLogger())

	bookings.GET("/:id", r.controller.GetBooking)
	bookings.POST("/:id/rsvp", r.controller.ApplyRSVP)
	bookings.POST("/:id/cancel", r.controller.CancelBooking)
	bookings.POST("/:id/reschedule", r.controller.RescheduleBooking)
}
