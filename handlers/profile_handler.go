package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mindmates/backend/database"
	"github.com/mindmates/backend/middleware"
	"github.com/mindmates/backend/models"
)

func GetMe(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	return c.JSON(toUserResponse(&user))
}

func UpdateMe(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	type Request struct {
		Username          *string `json:"username" validate:"omitempty,min=3,max=150"`
		Bio               *string `json:"bio"`
		ProfilePictureURL *string `json:"profile_picture_url"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	if req.Username != nil && *req.Username != user.Username {
		var count int64
		database.DB.Model(&models.User{}).Where("username = ?", *req.Username).Count(&count)
		if count > 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Username already taken"})
		}
		user.Username = *req.Username
	}
	if req.Bio != nil {
		user.Bio = req.Bio
	}
	if req.ProfilePictureURL != nil {
		user.ProfilePictureURL = req.ProfilePictureURL
	}

	if err := database.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}
	return c.JSON(toUserResponse(&user))
}

// SearchUsers finds users by username prefix, excluding the caller.
func SearchUsers(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Query parameter q is required"})
	}

	var users []models.User
	err := database.DB.
		Where("username ILIKE ? AND id != ?", query+"%", userID).
		Limit(20).
		Find(&users).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to search users"})
	}

	results := make([]UserResponse, 0, len(users))
	for i := range users {
		results = append(results, toUserResponse(&users[i]))
	}
	return c.JSON(results)
}
