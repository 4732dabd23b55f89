package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/mindmates/backend/handlers"
	"github.com/mindmates/backend/middleware"
)

func CommunityRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	communities := api.Group("/communities", middleware.Protected(), middleware.NotBlacklisted())
	communities.Post("", handlers.CreateCommunity)
	communities.Get("", handlers.GetMyCommunities)
	communities.Get("/:id", handlers.GetCommunity)
	communities.Put("/:id", handlers.UpdateCommunity)
	communities.Delete("/:id", handlers.DeleteCommunity)
	communities.Post("/:id/join", handlers.JoinCommunity)
	communities.Post("/:id/leave", handlers.LeaveCommunity)
	communities.Post("/:id/remove-member", handlers.RemoveCommunityMember)
	communities.Get("/:id/messages", handlers.GetCommunityMessages)
	communities.Post("/:id/messages", handlers.PostCommunityMessage)
	communities.Patch("/:id/messages/:messageId", handlers.EditCommunityMessage)
	communities.Delete("/:id/messages/:messageId", handlers.DeleteCommunityMessage)
	communities.Post("/:id/messages/:messageId/like", handlers.LikeCommunityMessage)

	// The /ws upgrade guard is registered by MessagingRoutes.
	api.Get("/ws/communities/:id", websocket.New(handlers.ServeCommunityWs))
}
