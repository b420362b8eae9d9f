package router

import (
	"inviteflow/core/middleware"
	"inviteflow/modules/campaign/controller"

	"github.com/labstack/echo/v4"
)

type CampaignRouter struct {
	controller *controller.CampaignController
}

func NewCampaignRouter(controller *controller.CampaignController) *CampaignRouter {
	return &CampaignRouter{
		controller: controller,
	}
}

func (r *CampaignRouter) Register(g *echo.Group, mw *middleware.Middleware) {
	campaigns := g.Group("/campaigns")
	campaigns.Use(mw.RequestLogger())

	campaigns.POST("", r.controller.CreateCampaign)
	campaigns.GET("", r.controller.ListCampaigns)
	campaigns.GET("/:id", r.controller.GetCampaign)
	campaigns.POST("/:id/start", r.controller.StartCampaign)
	campaigns.POST("/:id/pause", r.controller.PauseCampaign)
	campaigns.GET("/:id/stats", r.controller.GetCampaignStats)
	campaigns.GET("/:id/bookings", r.controller.ListCampaignBookings)
	campaigns.GET("/:id/prospects", r.controller.ListCampaignProspects)
	campaigns.POST("/:id/prospects", r.controller.AddCampaignProspects)
	campaigns.POST("/:id/prospects/:prospectId/requeue", r.controller.RequeueProspect)
}
