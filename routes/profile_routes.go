package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mindmates/backend/handlers"
	"github.com/mindmates/backend/middleware"
)

func ProfileRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	users := api.Group("/users", middleware.Protected(), middleware.NotBlacklisted())
	users.Get("/me", handlers.GetMe)
	users.Put("/me", handlers.UpdateMe)
	users.Get("/search", handlers.SearchUsers)
}
