package handlers

import (
	"academy-go/internal/models"
	"academy-go/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ListTeachers returns the teachers of the caller's academy.
func (h *Handler) ListTeachers(c *fiber.Ctx) error {
	academyID := c.Locals("academyID").(int)

	rows, err := h.DB.Query(
		`SELECT id, name, email, role, created_at FROM users
         WHERE academy_id = $1 AND role = 'TEACHER' ORDER BY name ASC`,
		academyID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching teachers", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching teachers",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	teachers := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			logger.ErrorLogger.Error("Error scanning teacher", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error fetching teachers",
				"success": false,
				"status":  500,
			})
		}
		teachers = append(teachers, u)
	}

	return c.JSON(fiber.Map{
		"message": "Teachers fetched successfully",
		"success": true,
		"status":  200,
		"data":    teachers,
	})
}

// CreateTeacher lets an academy admin add a pre-approved staff account.
func (h *Handler) CreateTeacher(c *fiber.Ctx) error {
	role := c.Locals("role").(string)
	academyID := c.Locals("academyID").(int)

	if role != models.RoleAdmin {
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	type createTeacherRequest struct {
		Name     string `json:"name" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Role     string `json:"role" validate:"required,oneof=TEACHER ADMIN"`
		Password string `json:"password" validate:"required,min=6"`
	}

	var req createTeacherRequest
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

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"message": "Error hashing password",
			"success": false,
			"status":  500,
		})
	}

	var userID int
	err = h.DB.QueryRow(
		`INSERT INTO users (name, email, password, role, academy_id, is_approved)
         VALUES ($1, $2, $3, $4, $5, TRUE) RETURNING id`,
		req.Name, req.Email, string(hashedPassword), req.Role, academyID,
	).Scan(&userID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return c.Status(409).JSON(fiber.Map{
				"message": "Email already exists",
				"success": false,
				"status":  409,
			})
		}
		logger.ErrorLogger.Error("Error creating teacher", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating teacher",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Teacher account created",
		zap.Int("user_id", userID), zap.Int("academy_id", academyID), zap.String("role", req.Role))
	return c.Status(201).JSON(fiber.Map{
		"message": "Teacher created successfully",
		"success": true,
		"status":  201,
		"data": fiber.Map{
			"id": userID,
		},
	})
}
