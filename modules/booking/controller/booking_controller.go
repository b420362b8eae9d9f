package controller

import (
	"inviteflow/core/controller"
	"inviteflow/core/errors"
	"inviteflow/modules/booking/dto"
	"inviteflow/modules/booking/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type BookingController struct {
	reservations *service.ReservationService
	controller.BaseController
}

func NewBookingController(reservations *service.ReservationService) *BookingController {
	return &BookingController{
		reservations:   reservations,
		BaseController: controller.NewBaseController(),
	}
}

// GetBooking returns one booked slot
// @Summary Get booking
// @Tags Booking
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} errors.AppError
// @Router /bookings/{id} [get]
func (c *BookingController) GetBooking(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid booking id", nil)
	}

	result, appErr := c.reservations.Get(ctx.Request().Context(), id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Booking retrieved successfully")
}

// ApplyRSVP records the recipient's answer to a sent invite
// @Summary Apply RSVP
// @Description Records accepted, declined or tentative for a sent invite
// @Tags Booking
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body dto.RSVPRequest true "RSVP response"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.AppError
// @Router /bookings/{id}/rsvp [post]
func (c *BookingController) ApplyRSVP(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid booking id", nil)
	}

	req := new(dto.RSVPRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body", nil)
	}

	result, appErr := c.reservations.ApplyRSVP(ctx.Request().Context(), id, req.Response)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "RSVP recorded successfully")
}

// CancelBooking releases the booked instant
// @Summary Cancel booking
// @Tags Booking
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body dto.CancelBookingRequest false "Cancel reason"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} errors.AppError
// @Router /bookings/{id}/cancel [post]
func (c *BookingController) CancelBooking(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid booking id", nil)
	}

	req := new(dto.CancelBookingRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body", nil)
	}

	result, appErr := c.reservations.Cancel(ctx.Request().Context(), id, req.Reason)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Booking canceled successfully")
}

// RescheduleBooking moves the booking to a fresh computed instant
// @Summary Reschedule booking
// @Description Recomputes the send time under the campaign's settings, keeping the invite UID
// @Tags Booking
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} errors.AppError
// @Failure 422 {object} errors.AppError
// @Router /bookings/{id}/reschedule [post]
func (c *BookingController) RescheduleBooking(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid booking id", nil)
	}

	result, appErr := c.reservations.Reschedule(ctx.Request().Context(), id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Booking rescheduled successfully")
}
