package handlers

import (
	"database/sql"
	"time"

	"academy-go/internal/models"
	"academy-go/internal/repository"
	"academy-go/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) signToken(user *models.User) (string, error) {
	academyID := 0
	if user.AcademyID.Valid {
		academyID = int(user.AcademyID.Int64)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    user.ID,
		"name":       user.Name,
		"role":       user.Role,
		"academy_id": academyID,
		"exp":        time.Now().Add(time.Hour * 24).Unix(),
	})
	return token.SignedString([]byte(h.Cfg.JWTSecret))
}

// Register creates an academy together with its ADMIN account from a
// multipart form. The account stays unusable until a super admin approves
// it.
func (h *Handler) Register(c *fiber.Ctx) error {
	name := c.FormValue("name")
	academyName := c.FormValue("academyName")
	email := c.FormValue("email")
	phoneNumber := c.FormValue("phoneNumber")
	password := c.FormValue("password")

	licenseFile, err := c.FormFile("businessLicense")
	if name == "" || academyName == "" || email == "" || phoneNumber == "" || password == "" || err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "All fields are required",
			"success": false,
			"status":  400,
		})
	}

	type registerRequest struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=6"`
	}
	if err := h.Validate.Struct(registerRequest{Email: email, Password: password}); err != nil {
		logger.AuditLogger.Warn("Validation error during register", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	licenseURL, err := h.saveBusinessLicense(licenseFile)
	if err != nil {
		logger.ErrorLogger.Error("Error saving business license", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": err.Error(),
			"success": false,
			"status":  400,
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error hashing password",
			"success": false,
			"status":  500,
		})
	}

	// Academy and admin account are created together or not at all.
	tx, err := h.DB.Begin()
	if err != nil {
		logger.ErrorLogger.Error("Error starting transaction", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating account",
			"success": false,
			"status":  500,
		})
	}
	defer tx.Rollback()

	var academyID int
	if err := tx.QueryRow(
		"INSERT INTO academies (name) VALUES ($1) RETURNING id", academyName,
	).Scan(&academyID); err != nil {
		logger.ErrorLogger.Error("Error creating academy", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating academy",
			"success": false,
			"status":  500,
		})
	}

	var userID int
	err = tx.QueryRow(
		`INSERT INTO users (name, email, phone_number, password, role, academy_id, is_approved, business_license)
         VALUES ($1, $2, $3, $4, 'ADMIN', $5, FALSE, $6) RETURNING id`,
		name, email, phoneNumber, string(hashedPassword), academyID, licenseURL,
	).Scan(&userID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			logger.SecurityLogger.Warn("Duplicate email on register", zap.String("email", email))
			return c.Status(409).JSON(fiber.Map{
				"message": "Email already exists",
				"success": false,
				"status":  409,
			})
		}
		logger.ErrorLogger.Error("Error creating user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating user",
			"success": false,
			"status":  500,
		})
	}

	if err := tx.Commit(); err != nil {
		logger.ErrorLogger.Error("Error committing registration", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating account",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Academy registered, pending approval",
		zap.Int("userID", userID), zap.Int("academyID", academyID))
	return c.Status(201).JSON(fiber.Map{
		"message": "Registration submitted, waiting for approval",
		"success": true,
		"status":  201,
		"data": fiber.Map{
			"id":         userID,
			"academy_id": academyID,
		},
	})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	type loginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in login", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := h.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during login", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	user, err := h.Users.ByEmail(c.Context(), req.Email)
	if err != nil {
		logger.SecurityLogger.Warn("User not found", zap.String("email", req.Email))
		return c.Status(401).JSON(fiber.Map{
			"message": "Invalid credentials",
			"success": false,
			"status":  401,
		})
	}

	if !user.Password.Valid ||
		bcrypt.CompareHashAndPassword([]byte(user.Password.String), []byte(req.Password)) != nil {
		logger.SecurityLogger.Warn("Invalid password", zap.String("email", req.Email))
		return c.Status(401).JSON(fiber.Map{
			"message": "Invalid credentials",
			"success": false,
			"status":  401,
		})
	}

	if !user.IsApproved {
		return c.Status(403).JSON(fiber.Map{
			"message": "Account is pending approval",
			"success": false,
			"status":  403,
		})
	}

	tokenString, err := h.signToken(user)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error generating token",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Login success", zap.Int("user_id", user.ID), zap.String("role", user.Role))
	return c.JSON(fiber.Map{
		"message": "Login success",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"user_id": user.ID,
			"role":    user.Role,
			"token":   tokenString,
		},
	})
}

// KakaoLogin handles the social-login callback: it exchanges the
// authorization code for a token pair, loads the Kakao profile and signs
// the user in, creating an unaffiliated TEACHER account on first login.
// The token pair is stored so task notifications can reach the user.
func (h *Handler) KakaoLogin(c *fiber.Ctx) error {
	type kakaoLoginRequest struct {
		Code        string `json:"code" validate:"required"`
		RedirectURI string `json:"redirect_uri" validate:"required"`
	}

	var req kakaoLoginRequest
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

	pair, err := h.Kakao.ExchangeCode(c.Context(), req.Code, req.RedirectURI)
	if err != nil {
		logger.ErrorLogger.Error("Kakao code exchange failed", zap.Error(err))
		return c.Status(401).JSON(fiber.Map{
			"message": "Kakao login failed",
			"success": false,
			"status":  401,
		})
	}

	profile, err := h.Kakao.UserInfo(c.Context(), pair.AccessToken)
	if err != nil || profile.Email == "" {
		logger.ErrorLogger.Error("Kakao profile fetch failed", zap.Error(err))
		return c.Status(401).JSON(fiber.Map{
			"message": "Kakao login failed",
			"success": false,
			"status":  401,
		})
	}

	user, err := h.Users.ByEmail(c.Context(), profile.Email)
	if err == repository.ErrUserNotFound {
		// First social login: auto-approved teacher account without an
		// academy; the user picks one through /select-academy.
		nickname := profile.Nickname
		if nickname == "" {
			nickname = "카카오 사용자"
		}
		var userID int
		err = h.DB.QueryRow(
			`INSERT INTO users (name, email, role, is_approved, is_kakao_linked, kakao_id, kakao_access_token, kakao_refresh_token)
             VALUES ($1, $2, 'TEACHER', TRUE, TRUE, $3, $4, $5) RETURNING id`,
			nickname, profile.Email, profile.ID, pair.AccessToken, pair.RefreshToken,
		).Scan(&userID)
		if err != nil {
			logger.ErrorLogger.Error("Error creating kakao user", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error creating user",
				"success": false,
				"status":  500,
			})
		}
		user, err = h.Users.ByID(c.Context(), userID)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{
				"message": "Error loading user",
				"success": false,
				"status":  500,
			})
		}
	} else if err != nil {
		logger.ErrorLogger.Error("Error loading user for kakao login", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error loading user",
			"success": false,
			"status":  500,
		})
	} else {
		if err := h.Users.LinkKakao(c.Context(), user.ID, profile.ID, pair.AccessToken, pair.RefreshToken); err != nil {
			logger.ErrorLogger.Error("Error linking kakao account", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error linking kakao account",
				"success": false,
				"status":  500,
			})
		}
	}

	if !user.IsApproved {
		return c.Status(403).JSON(fiber.Map{
			"message": "Account is pending approval",
			"success": false,
			"status":  403,
		})
	}

	tokenString, err := h.signToken(user)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error generating token",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Kakao login success", zap.Int("user_id", user.ID))
	return c.JSON(fiber.Map{
		"message": "Login success",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"user_id":    user.ID,
			"role":       user.Role,
			"academy_id": user.AcademyID.Int64,
			"token":      tokenString,
		},
	})
}

func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	type changePasswordRequest struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,min=6"`
	}

	var req changePasswordRequest
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

	user, err := h.Users.ByID(c.Context(), userID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "User not found",
			"success": false,
			"status":  404,
		})
	}

	if !user.Password.Valid ||
		bcrypt.CompareHashAndPassword([]byte(user.Password.String), []byte(req.CurrentPassword)) != nil {
		logger.SecurityLogger.Warn("Wrong current password", zap.Int("user_id", userID))
		return c.Status(401).JSON(fiber.Map{
			"message": "Current password is incorrect",
			"success": false,
			"status":  401,
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"message": "Error hashing password",
			"success": false,
			"status":  500,
		})
	}

	if _, err := h.DB.Exec(
		"UPDATE users SET password = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		string(hashedPassword), userID,
	); err != nil {
		logger.ErrorLogger.Error("Error updating password", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating password",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Password changed", zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"message": "Password changed successfully",
		"success": true,
		"status":  200,
	})
}

// KakaoStatus reports the caller's notification linkage.
func (h *Handler) KakaoStatus(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	var isLinked bool
	var kakaoID sql.NullString
	err := h.DB.QueryRow(
		"SELECT is_kakao_linked, kakao_id FROM users WHERE id = $1", userID,
	).Scan(&isLinked, &kakaoID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "User not found",
			"success": false,
			"status":  404,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Kakao status",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"is_kakao_linked": isLinked,
			"kakao_id":        kakaoID.String,
		},
	})
}

// KakaoUnlink drops the stored tokens and linkage flag on user request.
func (h *Handler) KakaoUnlink(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	if err := h.Users.ClearTokens(c.Context(), userID); err != nil {
		logger.ErrorLogger.Error("Error unlinking kakao", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error unlinking kakao account",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Kakao unlinked", zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"message": "Kakao account unlinked",
		"success": true,
		"status":  200,
	})
}
