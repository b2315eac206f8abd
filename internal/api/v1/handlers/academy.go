package handlers

import (
	"academy-go/internal/models"
	"academy-go/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ListAcademies is public: social-login users pick their academy from it.
func (h *Handler) ListAcademies(c *fiber.Ctx) error {
	rows, err := h.DB.Query("SELECT id, name FROM academies ORDER BY name ASC")
	if err != nil {
		logger.ErrorLogger.Error("Error fetching academies", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching academies",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	academies := []fiber.Map{}
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			logger.ErrorLogger.Error("Error scanning academy", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error fetching academies",
				"success": false,
				"status":  500,
			})
		}
		academies = append(academies, fiber.Map{"id": id, "name": name})
	}

	return c.JSON(fiber.Map{
		"message": "Academies fetched successfully",
		"success": true,
		"status":  200,
		"data":    academies,
	})
}

func (h *Handler) GetAcademy(c *fiber.Ctx) error {
	academyID := c.Locals("academyID").(int)
	if academyID == 0 {
		return c.Status(404).JSON(fiber.Map{
			"message": "Academy not found",
			"success": false,
			"status":  404,
		})
	}

	var academy models.Academy
	err := h.DB.QueryRow(
		"SELECT id, name, created_at, updated_at FROM academies WHERE id = $1", academyID,
	).Scan(&academy.ID, &academy.Name, &academy.CreatedAt, &academy.UpdatedAt)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "Academy not found",
			"success": false,
			"status":  404,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Academy found",
		"success": true,
		"status":  200,
		"data":    academy,
	})
}

func (h *Handler) UpdateAcademy(c *fiber.Ctx) error {
	role := c.Locals("role").(string)
	academyID := c.Locals("academyID").(int)

	if role != models.RoleAdmin {
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	type updateAcademyRequest struct {
		Name string `json:"name" validate:"required"`
	}

	var req updateAcademyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}
	if err := h.Validate.Struct(req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	if _, err := h.DB.Exec(
		"UPDATE academies SET name = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		req.Name, academyID,
	); err != nil {
		logger.ErrorLogger.Error("Error updating academy", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating academy",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Academy updated", zap.Int("academy_id", academyID))
	return c.JSON(fiber.Map{
		"message": "Academy updated successfully",
		"success": true,
		"status":  200,
	})
}

// SelectAcademy attaches an unaffiliated (social-login) user to an
// academy.
func (h *Handler) SelectAcademy(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	type selectAcademyRequest struct {
		AcademyID int `json:"academy_id" validate:"required"`
	}

	var req selectAcademyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}
	if err := h.Validate.Struct(req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Academy ID is required",
			"success": false,
			"status":  400,
		})
	}

	var exists bool
	if err := h.DB.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM academies WHERE id = $1)", req.AcademyID,
	).Scan(&exists); err != nil || !exists {
		return c.Status(404).JSON(fiber.Map{
			"message": "Academy not found",
			"success": false,
			"status":  404,
		})
	}

	if _, err := h.DB.Exec(
		"UPDATE users SET academy_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		req.AcademyID, userID,
	); err != nil {
		logger.ErrorLogger.Error("Error selecting academy", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error selecting academy",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Academy selected", zap.Int("user_id", userID), zap.Int("academy_id", req.AcademyID))
	return c.JSON(fiber.Map{
		"message": "Academy selected successfully",
		"success": true,
		"status":  200,
	})
}
