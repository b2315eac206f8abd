package v1

import (
	"academy-go/internal/api/v1/handlers"
	"academy-go/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, h *handlers.Handler, jwtSecret []byte) {
	api := app.Group("/api/v1")
	auth := middleware.UseToken(jwtSecret)

	// Auth
	api.Post("/register", h.Register)
	api.Post("/login", h.Login)
	api.Post("/auth/kakao", h.KakaoLogin)
	api.Post("/auth/change-password", auth, h.ChangePassword)

	// Kakao linkage
	api.Get("/users/me/kakao", auth, h.KakaoStatus)
	api.Delete("/users/me/kakao", auth, h.KakaoUnlink)

	// Task
	taskRoutes := api.Group("/tasks", auth)
	taskRoutes.Post("/", h.CreateTask)
	taskRoutes.Get("/", h.ListTasks)
	taskRoutes.Get("/:id", h.GetTask)
	taskRoutes.Put("/:id", h.UpdateTask)
	taskRoutes.Patch("/:id", h.PatchTask)
	taskRoutes.Get("/:id/history", h.TaskHistory)

	// Academy
	api.Get("/academies", h.ListAcademies)
	api.Get("/academy", auth, h.GetAcademy)
	api.Patch("/academy", auth, h.UpdateAcademy)
	api.Post("/select-academy", auth, h.SelectAcademy)

	// Teacher
	teacherRoutes := api.Group("/teachers", auth)
	teacherRoutes.Get("/", h.ListTeachers)
	teacherRoutes.Post("/", h.CreateTeacher)

	// Admin
	adminRoutes := api.Group("/admin", auth)
	adminRoutes.Get("/pending-users", h.PendingUsers)
	adminRoutes.Get("/approved-users", h.ApprovedUsers)
	adminRoutes.Post("/approve-user", h.ApproveUser)

	// Subscription
	subRoutes := api.Group("/subscription", auth)
	subRoutes.Post("/process", h.ProcessSubscription)
	subRoutes.Get("/current", h.CurrentSubscription)

	// File Upload
	uploadRoutes := api.Group("/upload", auth)
	uploadRoutes.Post("/", h.UploadFile)
	uploadRoutes.Get("/:filename", h.GetFile)
}
