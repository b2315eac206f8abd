// Package tasks implements the task status state machine: it validates and
// applies task mutations, appends the status audit log, and triggers
// notifications for status and schedule changes.
package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"academy-go/internal/models"

	"go.uber.org/zap"
)

var (
	ErrForbidden     = errors.New("not allowed to modify this task")
	ErrInvalidStatus = errors.New("invalid task status")
)

// Actor identifies who performs a mutation; name and role are snapshotted
// into the history row.
type Actor struct {
	ID   int
	Name string
	Role string
}

// Change is a partial task mutation. Nil pointers mean "field not
// provided". DueDateSet distinguishes "clear the due date" (true, nil
// DueDate) from "leave it alone" (false).
type Change struct {
	Status      *string
	Description *string
	DueDate     *time.Time
	DueDateSet  bool
	NewImages   []string
}

// CreateInput holds the fields of a new task.
type CreateInput struct {
	Title        string
	Description  string
	Images       []string
	DueDate      *time.Time
	AssignedToID int
	AcademyID    int
}

// Store is the persistence collaborator of the state machine.
type Store interface {
	ByID(ctx context.Context, id int) (*models.Task, error)
	Create(ctx context.Context, t *models.Task) error
	Update(ctx context.Context, t *models.Task) error
	AppendHistory(ctx context.Context, h *models.TaskStatusHistory) error
}

// Notifier receives task events. Implementations must not block the
// mutation outcome; all calls are fire-and-forget from the service's
// perspective.
type Notifier interface {
	TaskCreated(task *models.Task)
	TaskStatusChanged(task *models.Task, previousStatus string)
	TaskScheduleChanged(task *models.Task, previousDue sql.NullTime, changeReason, updaterName string)
}

type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

func NewService(store Store, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger}
}

// Create registers a new task and fires the task-created notification.
func (s *Service) Create(ctx context.Context, input CreateInput, actor Actor) (*models.Task, error) {
	images, err := json.Marshal(input.Images)
	if err != nil {
		return nil, err
	}
	task := &models.Task{
		Title:        input.Title,
		Description:  input.Description,
		Images:       string(images),
		Status:       models.StatusRegistered,
		AssignedToID: input.AssignedToID,
		CreatedByID:  actor.ID,
		AcademyID:    input.AcademyID,
	}
	if input.DueDate != nil {
		task.DueDate = sql.NullTime{Time: *input.DueDate, Valid: true}
	}

	if err := s.store.Create(ctx, task); err != nil {
		return nil, err
	}

	s.notifier.TaskCreated(task)
	return task, nil
}

// ApplyChange persists a partial task mutation. The mutation outcome
// depends only on persistence; history or notification problems are
// logged and never surface to the caller.
//
// A status equal to the current one is a no-op for the audit log: no
// history row, no status notification. A due date is considered changed
// only when old and new differ at millisecond granularity, with an absent
// date distinct from any real timestamp.
func (s *Service) ApplyChange(ctx context.Context, taskID int, change Change, actor Actor) (*models.Task, error) {
	task, err := s.store.ByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	// Admins may modify any task, teachers only their own.
	if actor.Role != models.RoleAdmin && task.AssignedToID != actor.ID {
		return nil, ErrForbidden
	}

	previousStatus := task.Status
	previousDue := task.DueDate
	previousDescription := task.Description

	if change.Status != nil {
		if !models.ValidStatus(*change.Status) {
			return nil, ErrInvalidStatus
		}
		task.Status = *change.Status
	}
	if change.Description != nil {
		task.Description = *change.Description
	}
	if change.DueDateSet {
		if change.DueDate != nil {
			task.DueDate = sql.NullTime{Time: *change.DueDate, Valid: true}
		} else {
			task.DueDate = sql.NullTime{}
		}
	}
	if len(change.NewImages) > 0 {
		task.Images = mergeImages(task.Images, change.NewImages)
	}

	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}

	if task.Status != previousStatus {
		history := &models.TaskStatusHistory{
			TaskID:         task.ID,
			PreviousStatus: previousStatus,
			NewStatus:      task.Status,
			ChangedByID:    actor.ID,
			ChangedByName:  actor.Name,
			ChangedByRole:  actor.Role,
		}
		if err := s.store.AppendHistory(ctx, history); err != nil {
			s.logger.Error("failed to record task status history",
				zap.Int("task_id", task.ID), zap.Error(err))
		}
		s.notifier.TaskStatusChanged(task, previousStatus)
	}

	if change.DueDateSet && dueDateChanged(previousDue, task.DueDate) {
		reason := ""
		if change.Description != nil && *change.Description != previousDescription {
			reason = ExtractChangeReason(*change.Description)
		}
		s.notifier.TaskScheduleChanged(task, previousDue, reason, actor.Name)
	}

	return task, nil
}

// dueDateChanged compares at millisecond granularity; an absent date is a
// sentinel distinct from any real timestamp.
func dueDateChanged(old, new sql.NullTime) bool {
	if old.Valid != new.Valid {
		return true
	}
	if !old.Valid {
		return false
	}
	return old.Time.UnixMilli() != new.Time.UnixMilli()
}

// mergeImages appends new image URLs to the stored JSON array. An
// unreadable stored value is treated as empty rather than an error.
func mergeImages(existing string, newImages []string) string {
	var images []string
	if existing != "" {
		if err := json.Unmarshal([]byte(existing), &images); err != nil {
			images = nil
		}
	}
	images = append(images, newImages...)
	merged, err := json.Marshal(images)
	if err != nil {
		return existing
	}
	return string(merged)
}

// changeReasonPattern matches a reason block appended to the description
// at update time, e.g. "[일정 변경 사유 - 2024. 1. 2.]\n<reason>". The block
// ends at a blank line or the end of the text.
var changeReasonPattern = regexp.MustCompile(`(?s)\[일정 변경 사유 - [^\]]*\]\n(.*?)(?:\n\n|$)`)

// ExtractChangeReason pulls the most recent schedule-change reason out of
// a task description. Best effort: any parse failure yields "", never an
// error.
func ExtractChangeReason(description string) string {
	matches := changeReasonPattern.FindAllStringSubmatch(description, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSpace(matches[len(matches)-1][1])
}
