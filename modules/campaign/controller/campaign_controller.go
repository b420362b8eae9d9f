package controller

import (
	"inviteflow/core/controller"
	"inviteflow/core/errors"
	"inviteflow/core/params"
	"inviteflow/modules/campaign/dto"
	"inviteflow/modules/campaign/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CampaignController struct {
	campaigns *service.CampaignService
	controller.BaseController
}

func NewCampaignController(campaigns *service.CampaignService) *CampaignController {
	return &CampaignController{
		campaigns:      campaigns,
		BaseController: controller.NewBaseController(),
	}
}

// CreateCampaign creates a campaign with its prospect list
// @Summary Create campaign
// @Description Creates a draft campaign; scheduling overrides are validated against the base settings
// @Tags Campaign
// @Accept json
// @Produce json
// @Param request body dto.CreateCampaignRequest true "Campaign to create"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.AppError
// @Failure 422 {object} errors.AppError
// @Router /campaigns [post]
func (c *CampaignController) CreateCampaign(ctx echo.Context) error {
	req := new(dto.CreateCampaignRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body", nil)
	}

	result, appErr := c.campaigns.Create(ctx.Request().Context(), req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Campaign created successfully")
}

// ListCampaigns returns campaigns with pagination
// @Summary List campaigns
// @Tags Campaign
// @Produce json
// @Param page_number query int false "Page number"
// @Param page_size query int false "Page size"
// @Param search query string false "Filter by name or ref"
// @Success 200 {object} map[string]interface{}
// @Router /campaigns [get]
func (c *CampaignController) ListCampaigns(ctx echo.Context) error {
	queryParams := params.NewQueryParams(ctx)

	result, appErr := c.campaigns.List(ctx.Request().Context(), *queryParams)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Campaigns retrieved successfully")
}

// GetCampaign returns one campaign
// @Summary Get campaign
// @Tags Campaign
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} errors.AppError
// @Router /campaigns/{id} [get]
func (c *CampaignController) GetCampaign(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid campaign id", nil)
	}

	result, appErr := c.campaigns.Get(ctx.Request().Context(), id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Campaign retrieved successfully")
}

// StartCampaign moves the campaign to running and queues processing
// @Summary Start campaign
// @Description Marks the campaign running and enqueues a processing run
// @Tags Campaign
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.AppError
// @Failure 404 {object} errors.AppError
// @Router /campaigns/{id}/start [post]
func (c *CampaignController) StartCampaign(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid campaign id", nil)
	}

	result, appErr := c.campaigns.Start(ctx.Request().Context(), id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Campaign started successfully")
}

// PauseCampaign stops further dispatching
// @Summary Pause campaign
// @Description Pauses a running campaign; already booked slots stay booked
// @Tags Campaign
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.AppError
// @Router /campaigns/{id}/pause [post]
func (c *CampaignController) PauseCampaign(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid campaign id", nil)
	}

	result, appErr := c.campaigns.Pause(ctx.Request().Context(), id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Campaign paused successfully")
}

// GetCampaignStats returns prospect and booking counts per status
// @Summary Campaign stats
// @Tags Campaign
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} errors.AppError
// @Router /campaigns/{id}/stats [get]
func (c *CampaignController) GetCampaignStats(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid campaign id", nil)
	}

	result, appErr := c.campaigns.Stats(ctx.Request().Context(), id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Campaign stats retrieved successfully")
}

// ListCampaignBookings returns the campaign's booked slots
// @Summary List campaign bookings
// @Tags Campaign
// @Produce json
// @Param id path string true "Campaign ID"
// @Param page_number query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} errors.AppError
// @Router /campaigns/{id}/bookings [get]
func (c *CampaignController) ListCampaignBookings(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid campaign id", nil)
	}
	queryParams := params.NewQueryParams(ctx)

	result, appErr := c.campaigns.Bookings(ctx.Request().Context(), id, *queryParams)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Campaign bookings retrieved successfully")
}

// ListCampaignProspects returns the campaign's prospects
// @Summary List campaign prospects
// @Tags Campaign
// @Produce json
// @Param id path string true "Campaign ID"
// @Param page_number query int false "Page number"
// @Param page_size query int false "Page size"
// @Param search query string false "Filter by email or name"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} errors.AppError
// @Router /campaigns/{id}/prospects [get]
func (c *CampaignController) ListCampaignProspects(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid campaign id", nil)
	}
	queryParams := params.NewQueryParams(ctx)

	result, appErr := c.campaigns.ListProspects(ctx.Request().Context(), id, *queryParams)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Campaign prospects retrieved successfully")
}

// AddCampaignProspects appends prospects to an existing campaign
// @Summary Add prospects
// @Tags Campaign
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param request body dto.AddProspectsRequest true "Prospects to add"
// @Success 200 {object} map[string]int
// @Failure 400 {object} errors.AppError
// @Failure 404 {object} errors.AppError
// @Router /campaigns/{id}/prospects [post]
func (c *CampaignController) AddCampaignProspects(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid campaign id", nil)
	}

	req := new(dto.AddProspectsRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body", nil)
	}

	added, appErr := c.campaigns.AddProspects(ctx.Request().Context(), id, req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, map[string]int{"added": added}, "Prospects added successfully")
}

// RequeueProspect puts a parked prospect back in the pending queue
// @Summary Requeue prospect
// @Description Moves a needs_attention or canceled prospect back to pending for the next run
// @Tags Campaign
// @Produce json
// @Param id path string true "Campaign ID"
// @Param prospectId path string true "Prospect ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errors.AppError
// @Router /campaigns/{id}/prospects/{prospectId}/requeue [post]
func (c *CampaignController) RequeueProspect(ctx echo.Context) error {
	prospectID, err := uuid.Parse(ctx.Param("prospectId"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid prospect id", nil)
	}

	if appErr := c.campaigns.RequeueProspect(ctx.Request().Context(), prospectID); appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, nil, "Prospect requeued successfully")
}
