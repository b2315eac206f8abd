package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"academy-go/internal/models"
	"academy-go/internal/repository"
	"academy-go/internal/tasks"
	"academy-go/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const taskCacheTTL = time.Hour

func taskCacheKey(id int) string {
	return fmt.Sprintf("task:%d", id)
}

func (h *Handler) cacheTask(c *fiber.Ctx, task *models.Task) {
	data, err := json.Marshal(task)
	if err != nil {
		return
	}
	if err := h.Redis.Set(c.Context(), taskCacheKey(task.ID), data, taskCacheTTL).Err(); err != nil {
		logger.ErrorLogger.Error("Error caching task", zap.Int("task_id", task.ID), zap.Error(err))
	}
}

func canAccessTask(task *models.Task, userID int, role string) bool {
	return role == models.RoleAdmin || task.AssignedToID == userID || task.CreatedByID == userID
}

// CreateTask registers a new task for a teacher. Admin only; fires a
// task-created notification to the assignee.
func (h *Handler) CreateTask(c *fiber.Ctx) error {
	actor := actorFromLocals(c)
	if actor.Role != models.RoleAdmin {
		return c.Status(403).JSON(fiber.Map{
			"message": "Only admins can create tasks",
			"success": false,
			"status":  403,
		})
	}

	type createTaskRequest struct {
		Title        string   `json:"title" validate:"required"`
		Description  string   `json:"description"`
		AssignedToID int      `json:"assigned_to_id" validate:"required"`
		DueDate      string   `json:"due_date"`
		Images       []string `json:"images"`
	}

	var req createTaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create task", zap.Error(err))
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

	input := tasks.CreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Images:       req.Images,
		AssignedToID: req.AssignedToID,
		AcademyID:    c.Locals("academyID").(int),
	}
	if req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{
				"message": "Invalid due date",
				"success": false,
				"status":  400,
			})
		}
		input.DueDate = &due
	}

	task, err := h.TaskService.Create(c.Context(), input, actor)
	if err != nil {
		logger.ErrorLogger.Error("Error creating task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating task",
			"success": false,
			"status":  500,
		})
	}

	h.cacheTask(c, task)
	logger.AuditLogger.Info("Task created", zap.Int("task_id", task.ID), zap.Int("assigned_to", task.AssignedToID))
	return c.Status(201).JSON(fiber.Map{
		"message": "Task created successfully",
		"success": true,
		"status":  201,
		"data":    task,
	})
}

// ListTasks returns tasks the caller is assigned to or created.
func (h *Handler) ListTasks(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	taskList, err := h.Tasks.ListForUser(c.Context(), userID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching tasks",
			"success": false,
			"status":  500,
		})
	}

	for i := range taskList {
		h.cacheTask(c, &taskList[i])
	}

	return c.JSON(fiber.Map{
		"message": "Tasks fetched successfully",
		"success": true,
		"status":  200,
		"data":    taskList,
	})
}

func (h *Handler) GetTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task ID",
			"success": false,
			"status":  400,
		})
	}

	// Cache first
	if cached, err := h.Redis.Get(c.Context(), taskCacheKey(taskID)).Result(); err == nil {
		var task models.Task
		if err := json.Unmarshal([]byte(cached), &task); err == nil {
			if !canAccessTask(&task, userID, role) {
				return c.Status(403).JSON(fiber.Map{
					"message": "Forbidden",
					"success": false,
					"status":  403,
				})
			}
			return c.JSON(fiber.Map{
				"message": "Task found (from cache)",
				"success": true,
				"status":  200,
				"data":    task,
			})
		}
	}

	task, err := h.Tasks.ByID(c.Context(), taskID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "Task not found",
			"success": false,
			"status":  404,
		})
	}

	if !canAccessTask(task, userID, role) {
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	h.cacheTask(c, task)
	return c.JSON(fiber.Map{
		"message": "Task found",
		"success": true,
		"status":  200,
		"data":    task,
	})
}

// UpdateTask is the full metadata update (title, description, assignee,
// due date, images). It does not run the status state machine and fires
// no notifications.
func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task ID",
			"success": false,
			"status":  400,
		})
	}

	task, err := h.Tasks.ByID(c.Context(), taskID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "Task not found",
			"success": false,
			"status":  404,
		})
	}

	if role != models.RoleAdmin && task.AssignedToID != userID {
		logger.SecurityLogger.Warn("Forbidden task update",
			zap.Int("user_id", userID), zap.Int("task_id", taskID))
		return c.Status(403).JSON(fiber.Map{
			"message": "You don't have permission to update this task",
			"success": false,
			"status":  403,
		})
	}

	type updateTaskRequest struct {
		Title        *string  `json:"title"`
		Description  *string  `json:"description"`
		AssignedToID *int     `json:"assigned_to_id"`
		DueDate      *string  `json:"due_date"`
		Images       []string `json:"images"`
	}

	var req updateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.AssignedToID != nil {
		task.AssignedToID = *req.AssignedToID
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			task.DueDate.Valid = false
		} else {
			due, err := time.Parse(time.RFC3339, *req.DueDate)
			if err != nil {
				return c.Status(400).JSON(fiber.Map{
					"message": "Invalid due date",
					"success": false,
					"status":  400,
				})
			}
			task.DueDate.Time = due
			task.DueDate.Valid = true
		}
	}
	if req.Images != nil {
		images, err := json.Marshal(req.Images)
		if err == nil {
			task.Images = string(images)
		}
	}

	if err := h.Tasks.Update(c.Context(), task); err != nil {
		logger.ErrorLogger.Error("Error updating task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating task",
			"success": false,
			"status":  500,
		})
	}

	h.Redis.Del(c.Context(), taskCacheKey(taskID))
	h.cacheTask(c, task)

	logger.AuditLogger.Info("Task updated", zap.Int("task_id", taskID))
	return c.JSON(fiber.Map{
		"message": "Task updated successfully",
		"success": true,
		"status":  200,
		"data":    task,
	})
}

// PatchTask applies a status/schedule mutation through the state machine.
// The request outcome depends only on persistence; notification problems
// stay in the logs.
func (h *Handler) PatchTask(c *fiber.Ctx) error {
	actor := actorFromLocals(c)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task ID",
			"success": false,
			"status":  400,
		})
	}

	// due_date stays raw so "field absent" and "explicit null" can be
	// told apart.
	type patchTaskRequest struct {
		Status      *string         `json:"status"`
		Description *string         `json:"description"`
		DueDate     json.RawMessage `json:"due_date"`
		NewImages   []string        `json:"new_images"`
	}

	var req patchTaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in patch task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	change := tasks.Change{
		Status:      req.Status,
		Description: req.Description,
		NewImages:   req.NewImages,
	}
	if len(req.DueDate) > 0 {
		change.DueDateSet = true
		if string(req.DueDate) != "null" {
			var raw string
			if err := json.Unmarshal(req.DueDate, &raw); err != nil {
				return c.Status(400).JSON(fiber.Map{
					"message": "Invalid due date",
					"success": false,
					"status":  400,
				})
			}
			if raw != "" {
				due, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					return c.Status(400).JSON(fiber.Map{
						"message": "Invalid due date",
						"success": false,
						"status":  400,
					})
				}
				change.DueDate = &due
			}
		}
	}

	task, err := h.TaskService.ApplyChange(c.Context(), taskID, change, actor)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTaskNotFound):
			return c.Status(404).JSON(fiber.Map{
				"message": "Task not found",
				"success": false,
				"status":  404,
			})
		case errors.Is(err, tasks.ErrForbidden):
			logger.SecurityLogger.Warn("Forbidden task patch",
				zap.Int("user_id", actor.ID), zap.Int("task_id", taskID))
			return c.Status(403).JSON(fiber.Map{
				"message": "Forbidden",
				"success": false,
				"status":  403,
			})
		case errors.Is(err, tasks.ErrInvalidStatus):
			return c.Status(400).JSON(fiber.Map{
				"message": "Invalid status",
				"success": false,
				"status":  400,
			})
		default:
			logger.ErrorLogger.Error("Error updating task status", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error updating task",
				"success": false,
				"status":  500,
			})
		}
	}

	h.Redis.Del(c.Context(), taskCacheKey(taskID))
	h.cacheTask(c, task)

	logger.AuditLogger.Info("Task patched",
		zap.Int("task_id", taskID), zap.String("status", task.Status))
	return c.JSON(fiber.Map{
		"message": "Task updated successfully",
		"success": true,
		"status":  200,
		"data":    task,
	})
}

// TaskHistory returns the append-only status change log, newest first.
func (h *Handler) TaskHistory(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task ID",
			"success": false,
			"status":  400,
		})
	}

	task, err := h.Tasks.ByID(c.Context(), taskID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "Task not found",
			"success": false,
			"status":  404,
		})
	}
	if !canAccessTask(task, userID, role) {
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	history, err := h.Tasks.HistoryByTaskID(c.Context(), taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task history", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching task history",
			"success": false,
			"status":  500,
		})
	}

	return c.JSON(fiber.Map{
		"message": "Task history fetched successfully",
		"success": true,
		"status":  200,
		"data":    history,
	})
}
