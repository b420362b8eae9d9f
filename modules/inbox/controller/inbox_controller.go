package controller

import (
	"inviteflow/core/controller"
	"inviteflow/core/errors"
	"inviteflow/core/params"
	"inviteflow/modules/inbox/dto"
	"inviteflow/modules/inbox/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type InboxController struct {
	registry *service.RegistryService
	controller.BaseController
}

func NewInboxController(registry *service.RegistryService) *InboxController {
	return &InboxController{
		registry:       registry,
		BaseController: controller.NewBaseController(),
	}
}

// ListInboxes returns the inbox pool with derived states
// @Summary List inboxes
// @Description Returns the inbox pool with quota, health and derived status
// @Tags Inbox
// @Produce json
// @Param page_number query int false "Page number"
// @Param page_size query int false "Page size"
// @Param search query string false "Filter by email"
// @Success 200 {object} map[string]interface{}
// @Router /inboxes [get]
func (c *InboxController) ListInboxes(ctx echo.Context) error {
	queryParams := params.NewQueryParams(ctx)

	result, appErr := c.registry.List(ctx.Request().Context(), *queryParams)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Inboxes retrieved successfully")
}

// GetInbox returns one inbox
// @Summary Get inbox
// @Tags Inbox
// @Produce json
// @Param id path string true "Inbox ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} errors.AppError
// @Router /inboxes/{id} [get]
func (c *InboxController) GetInbox(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid inbox id", nil)
	}

	result, appErr := c.registry.Get(ctx.Request().Context(), id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Inbox retrieved successfully")
}

// ConnectInbox registers a new sending identity
// @Summary Connect inbox
// @Description Registers a sending identity; app-password inboxes need SMTP details
// @Tags Inbox
// @Accept json
// @Produce json
// @Param request body dto.ConnectInboxRequest true "Inbox to connect"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.AppError
// @Failure 409 {object} errors.AppError
// @Router /inboxes [post]
func (c *InboxController) ConnectInbox(ctx echo.Context) error {
	req := new(dto.ConnectInboxRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body", nil)
	}

	result, appErr := c.registry.Connect(ctx.Request().Context(), req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Inbox connected successfully")
}

// ResumeInbox clears an auto-pause
// @Summary Resume inbox
// @Description Clears the pause reason and error streak after an operator intervened
// @Tags Inbox
// @Produce json
// @Param id path string true "Inbox ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} errors.AppError
// @Router /inboxes/{id}/resume [post]
func (c *InboxController) ResumeInbox(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid inbox id", nil)
	}

	if appErr := c.registry.Resume(ctx.Request().Context(), id); appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, nil, "Inbox resumed successfully")
}

// PauseInbox pauses sending manually
// @Summary Pause inbox
// @Tags Inbox
// @Accept json
// @Produce json
// @Param id path string true "Inbox ID"
// @Param request body dto.PauseInboxRequest true "Pause reason"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errors.AppError
// @Router /inboxes/{id}/pause [post]
func (c *InboxController) PauseInbox(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid inbox id", nil)
	}

	req := new(dto.PauseInboxRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body", nil)
	}

	if appErr := c.registry.Pause(ctx.Request().Context(), id, req.Reason); appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, nil, "Inbox paused successfully")
}

// DisconnectInbox removes an inbox from the pool
// @Summary Disconnect inbox
// @Description Disables the inbox and releases its pending bookings
// @Tags Inbox
// @Produce json
// @Param id path string true "Inbox ID"
// @Success 200 {object} map[string]int
// @Failure 404 {object} errors.AppError
// @Router /inboxes/{id} [delete]
func (c *InboxController) DisconnectInbox(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid inbox id", nil)
	}

	released, appErr := c.registry.Disconnect(ctx.Request().Context(), id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, map[string]int{"released_slots": released}, "Inbox disconnected successfully")
}

// ResetDailyCounters zeroes every sent_today counter
// @Summary Reset daily counters
// @Description Manual trigger for the daily boundary reset
// @Tags Inbox
// @Produce json
// @Success 200 {object} map[string]string
// @Router /inboxes/reset-daily [post]
func (c *InboxController) ResetDailyCounters(ctx echo.Context) error {
	if appErr := c.registry.ResetDaily(ctx.Request().Context()); appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, nil, "Daily counters reset successfully")
}
