package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mindmates/backend/handlers"
	"github.com/mindmates/backend/middleware"
)

func ForumRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	questions := api.Group("/questions", middleware.Protected(), middleware.NotBlacklisted())
	questions.Get("", handlers.GetQuestions)
	questions.Post("", handlers.CreateQuestion)
	questions.Get("/:id", handlers.GetQuestion)
	questions.Put("/:id", handlers.UpdateQuestion)
	questions.Delete("/:id", handlers.DeleteQuestion)
	questions.Get("/:id/answers", handlers.GetAnswers)
	questions.Post("/:id/answers", handlers.CreateAnswer)

	api.Get("/tags", middleware.Protected(), middleware.NotBlacklisted(), handlers.GetTags)
}
