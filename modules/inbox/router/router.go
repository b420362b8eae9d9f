package router

import (
	"inviteflow/core/middleware"
	"inviteflow/modules/inbox/controller"

	"github.com/labstack/echo/v4"
)

type InboxRouter struct {
	controller *controller.InboxController
}

func NewInboxRouter(controller *controller.InboxController) *InboxRouter {
	return &InboxRouter{
		controller: controller,
	}
}

func (r *InboxRouter) Register(g *echo.Group, mw *middleware.Middleware) {
	inboxes := g.Group("/inboxes")
	inboxes.Use(mw.RequestLogger())

	inboxes.GET("", r.controller.ListInboxes)
	inboxes.POST("", r.controller.ConnectInbox)
	inboxes.POST("/reset-daily", r.controller.ResetDailyCounters)
	inboxes.GET("/:id", r.controller.GetInbox)
	inboxes.POST("/:id/resume", r.controller.ResumeInbox)
	inboxes.POST("/:id/pause", r.controller.PauseInbox)
	inboxes.DELETE("/:id", r.controller.DisconnectInbox)
}
