package handlers

import (
	"log"
	"strconv"
	"time"

	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/mindmates/backend/apperrors"
	"github.com/mindmates/backend/middleware"
	"github.com/mindmates/backend/models"
	"github.com/mindmates/backend/websocket"
)

func parseCommunityID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid community ID"})
	}
	return uint(id), nil
}

func CreateCommunity(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	type Request struct {
		Name        string `json:"name" validate:"required,min=3,max=150"`
		Description string `json:"description" validate:"required"`
		ImageURL    string `json:"image_url"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ctx := c.Context()
	community := &models.Community{
		Name:        req.Name,
		Description: req.Description,
		CreatorID:   userID,
	}
	if req.ImageURL != "" {
		community.ImageURL = &req.ImageURL
	}
	if err := communities.CreateCommunity(ctx, community); err != nil {
		log.Printf("Failed to create community for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create community"})
	}

	// The creator is a member from the start.
	if err := communities.AddMember(ctx, community.ID, userID); err != nil {
		log.Printf("Failed to add creator %d to community %d: %v", userID, community.ID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(community)
}

func GetMyCommunities(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	list, err := communities.ListUserCommunities(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch communities"})
	}
	return c.JSON(list)
}

// GetCommunity returns the community plus the live online count from the
// room registry.
func GetCommunity(c *fiber.Ctx) error {
	communityID, err := parseCommunityID(c)
	if communityID == 0 {
		return err
	}

	community, err := communities.GetCommunity(c.Context(), communityID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Community not found"})
	}

	online := hub.OnlineUsers(websocket.RoomKeyCommunity(communityID))
	return c.JSON(fiber.Map{
		"community":    community,
		"online_count": len(online),
		"online_users": online,
	})
}

func UpdateCommunity(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	communityID, err := parseCommunityID(c)
	if communityID == 0 {
		return err
	}

	ctx := c.Context()
	community, err := communities.GetCommunity(ctx, communityID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Community not found"})
	}
	if community.CreatorID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only the creator can update a community"})
	}

	type Request struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		ImageURL    string `json:"image_url"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if req.Name != "" {
		community.Name = req.Name
	}
	if req.Description != "" {
		community.Description = req.Description
	}
	if req.ImageURL != "" {
		community.ImageURL = &req.ImageURL
	}

	if err := communities.UpdateCommunity(ctx, community); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update community"})
	}
	return c.JSON(community)
}

func DeleteCommunity(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	communityID, err := parseCommunityID(c)
	if communityID == 0 {
		return err
	}

	ctx := c.Context()
	community, err := communities.GetCommunity(ctx, communityID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Community not found"})
	}
	if community.CreatorID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only the creator can delete a community"})
	}

	if err := communities.DeleteCommunity(ctx, communityID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete community"})
	}
	return c.JSON(fiber.Map{"message": "Community deleted"})
}

func JoinCommunity(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	communityID, err := parseCommunityID(c)
	if communityID == 0 {
		return err
	}

	ctx := c.Context()
	if _, err := communities.GetCommunity(ctx, communityID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Community not found"})
	}

	if err := communities.AddMember(ctx, communityID, userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to join community"})
	}
	return c.JSON(fiber.Map{"message": "Joined community"})
}

func LeaveCommunity(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	communityID, err := parseCommunityID(c)
	if communityID == 0 {
		return err
	}

	if err := communities.RemoveMember(c.Context(), communityID, userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to leave community"})
	}
	return c.JSON(fiber.Map{"message": "Left community"})
}

// RemoveCommunityMember evicts a member; creator only.
func RemoveCommunityMember(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	communityID, err := parseCommunityID(c)
	if communityID == 0 {
		return err
	}

	type Request struct {
		UserID uint `json:"user_id" validate:"required"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ctx := c.Context()
	community, err := communities.GetCommunity(ctx, communityID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Community not found"})
	}
	if community.CreatorID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only the creator can remove members"})
	}
	if req.UserID == community.CreatorID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "The creator cannot be removed"})
	}

	if err := communities.RemoveMember(ctx, communityID, req.UserID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to remove member"})
	}
	return c.JSON(fiber.Map{"message": "Member removed"})
}

// requireMembership answers whether the caller may touch the community's
// messages. On failure it has already written the response; callers must
// bail out whenever ok is false, not on the returned error (a serialized
// 403 yields a nil error).
func requireMembership(c *fiber.Ctx, communityID, userID uint) (bool, error) {
	member, err := communities.IsMember(c.Context(), communityID, userID)
	if err != nil {
		return false, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check membership"})
	}
	if !member {
		return false, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not a member of this community"})
	}
	return true, nil
}

func GetCommunityMessages(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	communityID, err := parseCommunityID(c)
	if communityID == 0 {
		return err
	}

	if ok, err := requireMembership(c, communityID, userID); !ok {
		return err
	}

	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultHistoryLimit)))
	if limit <= 0 || limit > 200 {
		limit = defaultHistoryLimit
	}

	history, err := communities.CommunityHistory(c.Context(), communityID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch messages"})
	}
	return c.JSON(history)
}

// PostCommunityMessage persists a message over HTTP and broadcasts it to the
// live room, same envelope as the socket path.
func PostCommunityMessage(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	communityID, err := parseCommunityID(c)
	if communityID == 0 {
		return err
	}

	if ok, err := requireMembership(c, communityID, userID); !ok {
		return err
	}

	type Request struct {
		Content string `json:"content" validate:"required"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ctx := c.Context()
	message := &models.CommunityMessage{
		CommunityID: communityID,
		SenderID:    userID,
		Content:     req.Content,
	}
	if err := communities.CreateCommunityMessage(ctx, message); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save message"})
	}

	sender, err := messages.GetUser(ctx, userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch sender"})
	}

	hub.Broadcast(websocket.RoomKeyCommunity(communityID), websocket.NewCommunityMessageEvent(message, sender))
	return c.Status(fiber.StatusCreated).JSON(message)
}

func EditCommunityMessage(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	communityID, err := parseCommunityID(c)
	if communityID == 0 {
		return err
	}
	messageID, err := strconv.ParseUint(c.Params("messageId"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message ID"})
	}

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

	updated, err := communities.EditCommunityMessage(c.Context(), uint(messageID), communityID, userID, req.NewContent)
	if err != nil {
		status := apperrors.HTTPStatus(apperrors.CodeOf(err))
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	hub.Broadcast(websocket.RoomKeyCommunity(communityID),
		websocket.NewMessageEditedEvent(updated.ID, updated.Content, time.Now()))
	return c.JSON(updated)
}

func DeleteCommunityMessage(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	communityID, err := parseCommunityID(c)
	if communityID == 0 {
		return err
	}
	messageID, err := strconv.ParseUint(c.Params("messageId"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message ID"})
	}

	if err := communities.SoftDeleteCommunityMessage(c.Context(), uint(messageID), communityID, userID); err != nil {
		status := apperrors.HTTPStatus(apperrors.CodeOf(err))
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	hub.Broadcast(websocket.RoomKeyCommunity(communityID), websocket.NewMessageDeletedEvent(uint(messageID)))
	return c.JSON(fiber.Map{"message_id": messageID, "is_deleted": true})
}

func LikeCommunityMessage(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	communityID, err := parseCommunityID(c)
	if communityID == 0 {
		return err
	}
	messageID, err := strconv.ParseUint(c.Params("messageId"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message ID"})
	}

	if ok, err := requireMembership(c, communityID, userID); !ok {
		return err
	}

	action, likeCount, err := communities.ToggleCommunityLike(c.Context(), uint(messageID), communityID, userID)
	if err != nil {
		status := apperrors.HTTPStatus(apperrors.CodeOf(err))
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	hub.Broadcast(websocket.RoomKeyCommunity(communityID),
		websocket.NewMessageLikedEvent(uint(messageID), userID, action, likeCount))
	return c.JSON(fiber.Map{"message_id": messageID, "action": action, "like_count": likeCount})
}

// ServeCommunityWs hands a freshly upgraded socket to the gateway.
func ServeCommunityWs(c *websocketcontrib.Conn) {
	communityID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		log.Printf("WebSocket rejected: invalid community ID %q", c.Params("id"))
		c.Close()
		return
	}
	gateway.HandleCommunity(c, uint(communityID))
}
