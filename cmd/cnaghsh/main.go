package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/arminiranpour/cnaghsh/app/controllers"
	"github.com/arminiranpour/cnaghsh/internal/pkg/cache"
	"github.com/arminiranpour/cnaghsh/internal/pkg/database"
	"github.com/arminiranpour/cnaghsh/internal/pkg/env"
	"github.com/arminiranpour/cnaghsh/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	controllers.Setup()

	app := fiber.New(fiber.Config{
		AppName: "cnaghsh",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
