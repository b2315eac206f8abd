package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"academy-go/configs"
	v1 "academy-go/internal/api/v1"
	"academy-go/internal/api/v1/handlers"
	"academy-go/internal/kakao"
	"academy-go/internal/middleware"
	"academy-go/internal/repository"
	"academy-go/internal/scheduler"
	"academy-go/internal/tasks"
	"academy-go/pkg/database"
	"academy-go/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
)

func main() {
	// Inisialisasi logger
	logger.InitLoggers()
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	// Load config
	cfg := configs.LoadConfig()

	// Inisialisasi database
	db := database.ConnectDB(cfg)
	defer db.Close()
	logger.SystemLogger.Info("Database Connected")

	// Buat tabel jika belum ada:
	repository.CreateTableIfNotExists(db)
	if cfg.SuperAdminEmail != "" && cfg.SuperAdminPassword != "" {
		repository.CreateSuperAdmin(db, cfg.SuperAdminEmail, cfg.SuperAdminPassword)
	}

	redisClient := database.ConnectRedis(cfg)
	defer redisClient.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	// Kakao notification pipeline
	kakaoClient := kakao.NewClient(cfg.KakaoClientID, cfg.KakaoClientSecret)
	dispatcher := kakao.NewDispatcher(kakaoClient, userRepo, cfg.KakaoAdminKey,
		cfg.NotificationTestMode, cfg.IsProduction(), logger.NotifyLogger)
	notifier := kakao.NewNotifier(dispatcher, userRepo, kakao.Templates{
		StatusChange:   cfg.TaskStatusTemplateID,
		Reminder:       cfg.TaskReminderTemplateID,
		ScheduleChange: cfg.TaskScheduleTemplateID,
	}, logger.NotifyLogger)

	taskService := tasks.NewService(taskRepo, notifier, logger.AuditLogger)

	h := handlers.New(db, redisClient, cfg, userRepo, taskRepo, taskService, kakaoClient)

	app := fiber.New()

	// Middleware
	app.Use(middleware.ErrorHandler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	// Daftarkan route API v1
	v1.RegisterRoutes(app, h, []byte(cfg.JWTSecret))

	// Reminder scheduler, hourly pass over upcoming due dates
	var reminderScheduler *scheduler.ReminderScheduler
	if cfg.IsProduction() || cfg.EnableReminderScheduler {
		reminderScheduler = scheduler.NewReminderScheduler(taskRepo, notifier,
			cfg.ReminderLookaheadHours, logger.SystemLogger)
		if err := reminderScheduler.Start(); err != nil {
			logger.ErrorLogger.Error("Reminder scheduler failed to start", zap.Error(err))
		}
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.SystemLogger.Info("Shutting down")
		if reminderScheduler != nil {
			reminderScheduler.Stop()
		}
		if err := app.Shutdown(); err != nil {
			logger.ErrorLogger.Error("Shutdown error", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.SystemLogger.Info("Application ready", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}
}
