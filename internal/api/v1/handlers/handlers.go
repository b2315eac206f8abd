package handlers

import (
	"database/sql"

	"academy-go/configs"
	"academy-go/internal/kakao"
	"academy-go/internal/repository"
	"academy-go/internal/tasks"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
)

// Handler bundles the dependencies of all HTTP handlers. Constructed once
// at startup and shared across requests.
type Handler struct {
	DB          *sql.DB
	Redis       *redis.Client
	Validate    *validator.Validate
	Cfg         configs.Config
	Users       *repository.UserRepository
	Tasks       *repository.TaskRepository
	TaskService *tasks.Service
	Kakao       *kakao.Client
	UploadDir   string
	LicenseDir  string
}

func New(db *sql.DB, redisClient *redis.Client, cfg configs.Config,
	users *repository.UserRepository, taskRepo *repository.TaskRepository,
	taskService *tasks.Service, kakaoClient *kakao.Client) *Handler {
	return &Handler{
		DB:          db,
		Redis:       redisClient,
		Validate:    validator.New(),
		Cfg:         cfg,
		Users:       users,
		Tasks:       taskRepo,
		TaskService: taskService,
		Kakao:       kakaoClient,
		UploadDir:   "public/uploads",
		LicenseDir:  "public/business-licenses",
	}
}

// actorFromLocals rebuilds the authenticated actor stored by the auth
// middleware.
func actorFromLocals(c *fiber.Ctx) tasks.Actor {
	return tasks.Actor{
		ID:   c.Locals("userID").(int),
		Name: c.Locals("userName").(string),
		Role: c.Locals("role").(string),
	}
}
