package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/mindmates/backend/handlers"
	"github.com/mindmates/backend/middleware"
)

func MessagingRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	conversations := api.Group("/conversations", middleware.Protected(), middleware.NotBlacklisted())
	conversations.Get("", handlers.GetUserConversations)
	conversations.Post("", handlers.CreateOrGetConversation)
	conversations.Get("/:conversationId/messages", handlers.GetConversationMessages)
	conversations.Post("/:conversationId/files", handlers.UploadConversationFile)

	msgs := api.Group("/messages", middleware.Protected(), middleware.NotBlacklisted())
	msgs.Patch("/:messageId/read", handlers.MarkMessageRead)
	msgs.Patch("/:messageId", handlers.EditMessage)
	msgs.Delete("/:messageId", handlers.DeleteMessage)
	msgs.Post("/:messageId/like", handlers.LikeMessage)

	// Socket routes stay public; auth happens in-band on the first frame.
	api.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/ws/chat/:conversationId", websocket.New(handlers.ServeConversationWs))
}
