package handlers

import (
	"database/sql"

	"academy-go/internal/models"
	"academy-go/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func isApprover(role string) bool {
	return role == models.RoleSuperAdmin || role == models.RoleAdmin
}

func (h *Handler) listRegistrations(c *fiber.Ctx, approved bool) error {
	role := c.Locals("role").(string)
	if !isApprover(role) {
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	rows, err := h.DB.Query(
		`SELECT u.id, u.name, u.email, u.phone_number, u.business_license, u.created_at, a.name
         FROM users u
         LEFT JOIN academies a ON a.id = u.academy_id
         WHERE u.role = 'ADMIN' AND u.is_approved = $1
         ORDER BY u.created_at DESC`,
		approved)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching registrations", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching registrations",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	registrations := []fiber.Map{}
	for rows.Next() {
		var id int
		var name, email string
		var phone, license, academyName sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&id, &name, &email, &phone, &license, &createdAt, &academyName); err != nil {
			logger.ErrorLogger.Error("Error scanning registration", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error fetching registrations",
				"success": false,
				"status":  500,
			})
		}
		registrations = append(registrations, fiber.Map{
			"id":               id,
			"name":             name,
			"email":            email,
			"phone_number":     phone.String,
			"business_license": license.String,
			"academy_name":     academyName.String,
			"created_at":       createdAt.Time,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Registrations fetched successfully",
		"success": true,
		"status":  200,
		"data":    registrations,
	})
}

// PendingUsers lists academy registrations awaiting manual approval.
func (h *Handler) PendingUsers(c *fiber.Ctx) error {
	return h.listRegistrations(c, false)
}

func (h *Handler) ApprovedUsers(c *fiber.Ctx) error {
	return h.listRegistrations(c, true)
}

// ApproveUser flips a pending registration to approved.
func (h *Handler) ApproveUser(c *fiber.Ctx) error {
	role := c.Locals("role").(string)
	if !isApprover(role) {
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	type approveRequest struct {
		UserID int `json:"user_id" validate:"required"`
	}

	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}
	if err := h.Validate.Struct(req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "User ID is required",
			"success": false,
			"status":  400,
		})
	}

	res, err := h.DB.Exec(
		"UPDATE users SET is_approved = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1",
		req.UserID)
	if err != nil {
		logger.ErrorLogger.Error("Error approving user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error approving user",
			"success": false,
			"status":  500,
		})
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return c.Status(404).JSON(fiber.Map{
			"message": "User not found",
			"success": false,
			"status":  404,
		})
	}

	logger.AuditLogger.Info("User approved", zap.Int("user_id", req.UserID))
	return c.JSON(fiber.Map{
		"message": "User approved successfully",
		"success": true,
		"status":  200,
	})
}
