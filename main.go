package main

import (
	"inviteflow/core/logger"
	"inviteflow/core/server"
)

// @title InviteFlow API
// @version 1.0
// @description Inbox load-balancing and scheduling engine for calendar invites.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@inviteflow.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:7070
// @BasePath /api/v1

func main() {
	if err := server.Run(); err != nil {
		logger.Error("run server error", err)
	}
}
