package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mindmates/backend/database"
	"github.com/mindmates/backend/middleware"
	"github.com/mindmates/backend/models"
)

func GetQuestions(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := database.DB.Preload("Tags").Order("created_at DESC")
	if tag := c.Query("tag"); tag != "" {
		query = query.
			Joins("JOIN question_tags qt ON qt.question_id = questions.id").
			Joins("JOIN tags ON tags.id = qt.tag_id").
			Where("tags.name = ?", tag)
	}

	var questions []models.Question
	if err := query.Limit(pageSize).Offset((page - 1) * pageSize).Find(&questions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch questions"})
	}
	return c.JSON(questions)
}

func CreateQuestion(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	type Request struct {
		Title       string   `json:"title" validate:"required,min=5,max=255"`
		Description string   `json:"description" validate:"required"`
		ImageURL    *string  `json:"image_url"`
		Tags        []string `json:"tags" validate:"max=5,dive,min=1,max=50"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	question := models.Question{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}

	// Tags are shared; reuse existing rows by name.
	for _, name := range req.Tags {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		var tag models.Tag
		if err := database.DB.Where("name = ?", name).FirstOrCreate(&tag, models.Tag{Name: name}).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve tags"})
		}
		question.Tags = append(question.Tags, &tag)
	}

	if err := database.DB.Create(&question).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create question"})
	}
	return c.Status(fiber.StatusCreated).JSON(question)
}

func GetQuestion(c *fiber.Ctx) error {
	questionID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid question ID"})
	}

	var question models.Question
	err = database.DB.
		Preload("Tags").
		Preload("Answers").
		First(&question, "id = ?", uint(questionID)).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Question not found"})
	}
	return c.JSON(question)
}

func UpdateQuestion(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	questionID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid question ID"})
	}

	var question models.Question
	if err := database.DB.First(&question, "id = ?", uint(questionID)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Question not found"})
	}
	if question.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only the author can update a question"})
	}

	type Request struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if req.Title != "" {
		question.Title = req.Title
	}
	if req.Description != "" {
		question.Description = req.Description
	}

	if err := database.DB.Save(&question).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update question"})
	}
	return c.JSON(question)
}

func DeleteQuestion(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	questionID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid question ID"})
	}

	var question models.Question
	if err := database.DB.First(&question, "id = ?", uint(questionID)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Question not found"})
	}
	if question.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only the author can delete a question"})
	}

	if err := database.DB.Select("Answers", "Tags").Delete(&question).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete question"})
	}
	return c.JSON(fiber.Map{"message": "Question deleted"})
}

func GetAnswers(c *fiber.Ctx) error {
	questionID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid question ID"})
	}

	var answers []models.Answer
	err = database.DB.
		Where("question_id = ?", uint(questionID)).
		Order("created_at ASC").
		Find(&answers).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch answers"})
	}
	return c.JSON(answers)
}

func CreateAnswer(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	questionID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid question ID"})
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

	var question models.Question
	if err := database.DB.First(&question, "id = ?", uint(questionID)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Question not found"})
	}

	answer := models.Answer{
		QuestionID: question.ID,
		UserID:     userID,
		Content:    req.Content,
	}
	if err := database.DB.Create(&answer).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create answer"})
	}
	return c.Status(fiber.StatusCreated).JSON(answer)
}

func GetTags(c *fiber.Ctx) error {
	var tags []models.Tag
	if err := database.DB.Order("name ASC").Find(&tags).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tags"})
	}
	return c.JSON(tags)
}
