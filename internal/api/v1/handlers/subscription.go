package handlers

import (
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"academy-go/internal/models"
	"academy-go/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ProcessSubscription runs a mock payment and books the subscription.
// When an ACTIVE subscription is still running, the new period starts
// after it ends.
func (h *Handler) ProcessSubscription(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	if role != models.RoleAdmin {
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	type subscriptionRequest struct {
		PlanID   string `json:"plan_id" validate:"required"`
		Amount   int    `json:"amount" validate:"required,gt=0"`
		Duration int    `json:"duration" validate:"required,gt=0"` // months
	}

	var req subscriptionRequest
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

	// Mock payment; a real gateway would be called here.
	paymentID := fmt.Sprintf("payment_%d_%d", time.Now().UnixMilli(), rand.Intn(1000))
	description := fmt.Sprintf("%s plan, %d month(s)", req.PlanID, req.Duration)

	var payment models.Payment
	err := h.DB.QueryRow(
		`INSERT INTO payment_history (user_id, amount, payment_method, payment_id, status, description)
         VALUES ($1, $2, 'CARD', $3, 'COMPLETED', $4)
         RETURNING id, created_at`,
		userID, req.Amount, paymentID, description,
	).Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		logger.ErrorLogger.Error("Error recording payment", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error processing payment",
			"success": false,
			"status":  500,
		})
	}

	startDate := time.Now()
	var activeEnd time.Time
	err = h.DB.QueryRow(
		`SELECT end_date FROM subscriptions
         WHERE user_id = $1 AND status = 'ACTIVE' AND end_date >= $2
         ORDER BY end_date DESC LIMIT 1`,
		userID, startDate,
	).Scan(&activeEnd)
	if err == nil {
		startDate = activeEnd
	} else if err != sql.ErrNoRows {
		logger.ErrorLogger.Error("Error checking active subscription", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error processing subscription",
			"success": false,
			"status":  500,
		})
	}
	endDate := startDate.AddDate(0, req.Duration, 0)

	var subscription models.Subscription
	err = h.DB.QueryRow(
		`INSERT INTO subscriptions (user_id, start_date, end_date, amount, status, payment_method, payment_id)
         VALUES ($1, $2, $3, $4, 'ACTIVE', 'CARD', $5)
         RETURNING id, created_at`,
		userID, startDate, endDate, req.Amount, paymentID,
	).Scan(&subscription.ID, &subscription.CreatedAt)
	if err != nil {
		logger.ErrorLogger.Error("Error creating subscription", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating subscription",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Subscription processed",
		zap.Int("user_id", userID), zap.String("payment_id", paymentID), zap.Int("duration", req.Duration))
	return c.Status(201).JSON(fiber.Map{
		"message": "Subscription processed successfully",
		"success": true,
		"status":  201,
		"data": fiber.Map{
			"payment_id": paymentID,
			"start_date": startDate,
			"end_date":   endDate,
			"amount":     req.Amount,
		},
	})
}

// CurrentSubscription returns the caller's running subscription, if any.
func (h *Handler) CurrentSubscription(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	var s models.Subscription
	err := h.DB.QueryRow(
		`SELECT id, user_id, start_date, end_date, amount, status, payment_method, payment_id, created_at
         FROM subscriptions
         WHERE user_id = $1 AND status = 'ACTIVE' AND end_date >= $2
         ORDER BY end_date DESC LIMIT 1`,
		userID, time.Now(),
	).Scan(&s.ID, &s.UserID, &s.StartDate, &s.EndDate, &s.Amount, &s.Status, &s.PaymentMethod, &s.PaymentID, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return c.JSON(fiber.Map{
			"message": "No active subscription",
			"success": true,
			"status":  200,
			"data":    nil,
		})
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching subscription", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching subscription",
			"success": false,
			"status":  500,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Subscription found",
		"success": true,
		"status":  200,
		"data":    s,
	})
}
