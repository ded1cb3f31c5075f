package router

import (
	"github.com/arminiranpour/cnaghsh/app/controllers"
	"github.com/arminiranpour/cnaghsh/internal/pkg/constants"
	"github.com/arminiranpour/cnaghsh/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New())

	v1 := api.Group(constants.APIV1Route, middleware.RequireAPISessionAuth)
	v1.Post(constants.CheckoutRoute, controllers.HandleCheckoutStart)
	v1.Post(constants.JobsRoute, controllers.HandleJobCreate)
	v1.Post(constants.JobPublishRoute, controllers.HandleJobPublish)
	v1.Get(constants.CreditsRoute, controllers.HandleCreditsSummary)
}
