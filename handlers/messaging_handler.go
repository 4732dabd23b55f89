package handlers

import (
	"errors"
	"io"
	"log"
	"strconv"
	"time"

	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/mindmates/backend/apperrors"
	config "github.com/mindmates/backend/configs"
	"github.com/mindmates/backend/database"
	"github.com/mindmates/backend/middleware"
	"github.com/mindmates/backend/models"
	"github.com/mindmates/backend/services"
	"github.com/mindmates/backend/websocket"
	"gorm.io/gorm"
)

const defaultHistoryLimit = 50

// CreateOrGetConversation returns the existing conversation between the
// caller and the recipient, in either ordering, or creates a new one.
func CreateOrGetConversation(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	type Request struct {
		RecipientID uint `json:"recipient_id" validate:"required"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.RecipientID == userID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot start a conversation with yourself"})
	}

	ctx := c.Context()
	if _, err := messages.GetUser(ctx, req.RecipientID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Recipient not found"})
	}

	existing, err := messages.FindConversationBetween(ctx, userID, req.RecipientID)
	if err == nil {
		return c.JSON(existing)
	}
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to look up conversation"})
	}

	conversation := &models.Conversation{
		InitiatorID:   userID,
		ReceiverID:    req.RecipientID,
		LastMessageAt: time.Now(),
	}
	if err := messages.CreateConversation(ctx, conversation); err != nil {
		log.Printf("Failed to create conversation for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create conversation"})
	}

	created, err := messages.GetConversation(ctx, conversation.ID)
	if err != nil {
		return c.Status(fiber.StatusCreated).JSON(conversation)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func GetUserConversations(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	conversations, err := messages.ListUserConversations(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch conversations"})
	}
	return c.JSON(conversations)
}

// GetConversationMessages returns the non-deleted history, newest first.
func GetConversationMessages(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	conversationID, err := strconv.ParseUint(c.Params("conversationId"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	ctx := c.Context()
	conversation, err := messages.GetConversation(ctx, uint(conversationID))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	}
	if !conversation.HasParticipant(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not a participant of this conversation"})
	}

	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultHistoryLimit)))
	if limit <= 0 || limit > 200 {
		limit = defaultHistoryLimit
	}

	history, err := messages.ConversationHistory(ctx, uint(conversationID), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch messages"})
	}
	return c.JSON(history)
}

// loadMessageForUser fetches a direct message plus its conversation and
// checks the caller participates. Shared by the message-scoped endpoints.
func loadMessageForUser(c *fiber.Ctx, userID uint) (*models.Message, *models.Conversation, error) {
	messageID, err := strconv.ParseUint(c.Params("messageId"), 10, 32)
	if err != nil {
		return nil, nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message ID"})
	}

	var message models.Message
	if err := database.DB.First(&message, "id = ?", uint(messageID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Message not found"})
		}
		return nil, nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch message"})
	}

	conversation, err := messages.GetConversation(c.Context(), message.ConversationID)
	if err != nil {
		return nil, nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch conversation"})
	}
	if !conversation.HasParticipant(userID) {
		return nil, nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not a participant of this conversation"})
	}

	return &message, conversation, nil
}

// MarkMessageRead flips the read flag. Only the receiving side may mark a
// message read; silent unless read receipts are enabled.
func MarkMessageRead(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	message, conversation, err := loadMessageForUser(c, userID)
	if message == nil {
		return err
	}
	if message.SenderID == userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Cannot mark your own message as read"})
	}

	changed, err := messages.MarkRead(c.Context(), message.ID, message.ConversationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to mark message as read"})
	}
	if changed && config.ConfigBool("BROADCAST_READ_RECEIPTS") {
		hub.Broadcast(websocket.RoomKeyConversation(conversation.ID), websocket.NewMessageReadEvent(message.ID))
	}

	return c.JSON(fiber.Map{"message_id": message.ID, "is_read": true})
}

// EditMessage updates the sender's own message and notifies the room.
func EditMessage(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	type Request struct {
		NewContent string `json:"new_content" validate:"required"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	message, conversation, err := loadMessageForUser(c, userID)
	if message == nil {
		return err
	}

	updated, err := messages.EditMessage(c.Context(), message.ID, message.ConversationID, userID, req.NewContent)
	if err != nil {
		status := apperrors.HTTPStatus(apperrors.CodeOf(err))
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	hub.Broadcast(websocket.RoomKeyConversation(conversation.ID),
		websocket.NewMessageEditedEvent(updated.ID, updated.Content, time.Now()))
	return c.JSON(updated)
}

// DeleteMessage soft-deletes the sender's own message and notifies the room.
func DeleteMessage(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	message, conversation, err := loadMessageForUser(c, userID)
	if message == nil {
		return err
	}

	if err := messages.SoftDeleteMessage(c.Context(), message.ID, message.ConversationID, userID); err != nil {
		status := apperrors.HTTPStatus(apperrors.CodeOf(err))
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	hub.Broadcast(websocket.RoomKeyConversation(conversation.ID), websocket.NewMessageDeletedEvent(message.ID))
	return c.JSON(fiber.Map{"message_id": message.ID, "is_deleted": true})
}

// LikeMessage toggles the caller's like and notifies the room.
func LikeMessage(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	message, conversation, err := loadMessageForUser(c, userID)
	if message == nil {
		return err
	}

	action, likeCount, err := messages.ToggleLike(c.Context(), message.ID, message.ConversationID, userID)
	if err != nil {
		status := apperrors.HTTPStatus(apperrors.CodeOf(err))
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	hub.Broadcast(websocket.RoomKeyConversation(conversation.ID),
		websocket.NewMessageLikedEvent(message.ID, userID, action, likeCount))
	return c.JSON(fiber.Map{"message_id": message.ID, "action": action, "like_count": likeCount})
}

// UploadConversationFile accepts a multipart attachment, runs the same
// validation as the socket path and broadcasts the resulting message.
func UploadConversationFile(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	conversationID, err := strconv.ParseUint(c.Params("conversationId"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	ctx := c.Context()
	conversation, err := messages.GetConversation(ctx, uint(conversationID))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	}
	if !conversation.HasParticipant(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not a participant of this conversation"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "File is required"})
	}

	filename := services.SanitizeFilename(fileHeader.Filename)
	if err := services.ValidateFile(filename, int(fileHeader.Size)); err != nil {
		status := apperrors.HTTPStatus(apperrors.CodeOf(err))
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read file"})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read file"})
	}

	fileURL, err := files.Upload(ctx, data, filename)
	if err != nil {
		log.Printf("File upload failed for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "File upload failed"})
	}

	content := c.FormValue("content")
	if content == "" {
		content = filename
	}

	message := &models.Message{
		ConversationID: uint(conversationID),
		SenderID:       userID,
		Content:        content,
		FileURL:        &fileURL,
		FileName:       &filename,
	}
	if err := messages.CreateMessage(ctx, message); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save message"})
	}

	sender, err := messages.GetUser(ctx, userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch sender"})
	}
	receiver := conversation.OtherParticipant(userID)

	hub.Broadcast(websocket.RoomKeyConversation(conversation.ID),
		websocket.NewDirectMessageEvent(message, sender, receiver))
	return c.Status(fiber.StatusCreated).JSON(message)
}

// ServeConversationWs hands a freshly upgraded socket to the gateway. Auth
// happens in-band, so the route itself is public.
func ServeConversationWs(c *websocketcontrib.Conn) {
	conversationID, err := strconv.ParseUint(c.Params("conversationId"), 10, 32)
	if err != nil {
		log.Printf("WebSocket rejected: invalid conversation ID %q", c.Params("conversationId"))
		c.Close()
		return
	}
	gateway.HandleConversation(c, uint(conversationID))
}
