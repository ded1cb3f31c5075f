package router

import (
	"github.com/arminiranpour/cnaghsh/app/controllers"
	"github.com/arminiranpour/cnaghsh/internal/pkg/constants"
	"github.com/arminiranpour/cnaghsh/internal/pkg/middleware"
	"github.com/arminiranpour/cnaghsh/internal/pkg/session"
	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	session.NewSessionStore()

	app.Use(middleware.UserContext)

	// Gateway callbacks. Public by design: authenticity comes from the
	// signature header, not from a user session.
	app.Post(constants.WebhookRoute, controllers.HandleProviderWebhook)
}
