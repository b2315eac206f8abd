package kakao

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"academy-go/internal/models"

	"go.uber.org/zap"
)

// Message sentinels, matching the KakaoTalk template texts.
const (
	NoneLabel     = "없음"    // absent due date
	NoReasonLabel = "사유 없음" // no change reason found in the description
	NewTaskLabel  = "새 업무"  // "previous status" of a freshly created task
)

// Sender abstracts the dispatcher for tests.
type Sender interface {
	Send(user models.User, templateID string, templateArgs map[string]string) bool
}

// UserSource loads notification recipients.
type UserSource interface {
	ByID(ctx context.Context, id int) (*models.User, error)
}

// Templates holds the three KakaoTalk template ids from the business
// channel. An empty id short-circuits the corresponding event in Send.
type Templates struct {
	StatusChange   string
	Reminder       string
	ScheduleChange string
}

// Notifier decides recipients and template arguments per event type and
// hands each message to the dispatcher. Every method is fire-and-forget:
// delivery failures are logged, never returned.
type Notifier struct {
	sender    Sender
	users     UserSource
	templates Templates
	logger    *zap.Logger
	now       func() time.Time
}

func NewNotifier(sender Sender, users UserSource, templates Templates, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender:    sender,
		users:     users,
		templates: templates,
		logger:    logger,
		now:       time.Now,
	}
}

func formatDate(t sql.NullTime) string {
	if !t.Valid {
		return NoneLabel
	}
	return t.Time.Local().Format("2006. 1. 2.")
}

func formatDateTime(t sql.NullTime) string {
	if !t.Valid {
		return NoneLabel
	}
	return t.Time.Local().Format("2006. 1. 2. 15:04:05")
}

func (n *Notifier) statusChangeArgs(task *models.Task, previousStatus string) map[string]string {
	return map[string]string{
		"task_title":      task.Title,
		"task_id":         strconv.Itoa(task.ID),
		"previous_status": previousStatus,
		"current_status":  task.Status,
		"due_date":        formatDate(task.DueDate),
		"updated_at":      formatDateTime(sql.NullTime{Time: n.now(), Valid: true}),
	}
}

// TaskStatusChanged notifies the assignee always and the creator when the
// creator is an academy admin.
func (n *Notifier) TaskStatusChanged(task *models.Task, previousStatus string) {
	ctx := context.Background()
	args := n.statusChangeArgs(task, previousStatus)

	n.logger.Info("sending task status change notification",
		zap.Int("task_id", task.ID),
		zap.String("previous_status", previousStatus),
		zap.String("current_status", task.Status))

	assignedTo, err := n.users.ByID(ctx, task.AssignedToID)
	if err != nil {
		n.logger.Error("cannot load task assignee for notification",
			zap.Int("task_id", task.ID), zap.Int("user_id", task.AssignedToID), zap.Error(err))
	} else if !n.sender.Send(*assignedTo, n.templates.StatusChange, args) {
		n.logger.Info("status change notification to assignee failed",
			zap.Int("task_id", task.ID), zap.Int("user_id", assignedTo.ID))
	}

	createdBy, err := n.users.ByID(ctx, task.CreatedByID)
	if err != nil {
		n.logger.Error("cannot load task creator for notification",
			zap.Int("task_id", task.ID), zap.Int("user_id", task.CreatedByID), zap.Error(err))
		return
	}
	if createdBy.Role != models.RoleAdmin {
		return
	}
	if !n.sender.Send(*createdBy, n.templates.StatusChange, args) {
		n.logger.Info("status change notification to creator failed",
			zap.Int("task_id", task.ID), zap.Int("user_id", createdBy.ID))
	}
}

// TaskCreated is a status-change event whose previous status is the
// new-task sentinel.
func (n *Notifier) TaskCreated(task *models.Task) {
	n.TaskStatusChanged(task, NewTaskLabel)
}

// TaskScheduleChanged notifies the task creator only, and only when the
// creator is an academy admin. The assignee is not a recipient here.
func (n *Notifier) TaskScheduleChanged(task *models.Task, previousDue sql.NullTime, changeReason, updaterName string) {
	if changeReason == "" {
		changeReason = NoReasonLabel
	}
	args := map[string]string{
		"task_title":        task.Title,
		"task_id":           strconv.Itoa(task.ID),
		"previous_due_date": formatDateTime(previousDue),
		"current_due_date":  formatDateTime(task.DueDate),
		"change_reason":     changeReason,
		"updated_at":        formatDateTime(sql.NullTime{Time: n.now(), Valid: true}),
		"updater_name":      updaterName,
	}

	createdBy, err := n.users.ByID(context.Background(), task.CreatedByID)
	if err != nil {
		n.logger.Error("cannot load task creator for schedule notification",
			zap.Int("task_id", task.ID), zap.Int("user_id", task.CreatedByID), zap.Error(err))
		return
	}
	if createdBy.Role != models.RoleAdmin {
		n.logger.Info("no admin recipient for schedule change notification",
			zap.Int("task_id", task.ID))
		return
	}

	n.logger.Info("sending schedule change notification",
		zap.Int("task_id", task.ID), zap.Int("user_id", createdBy.ID))
	if !n.sender.Send(*createdBy, n.templates.ScheduleChange, args) {
		n.logger.Info("schedule change notification failed",
			zap.Int("task_id", task.ID), zap.Int("user_id", createdBy.ID))
	}
}

// TaskDueSoon reminds the assignee of an upcoming due date.
func (n *Notifier) TaskDueSoon(task *models.Task) {
	args := map[string]string{
		"task_title":     task.Title,
		"task_id":        strconv.Itoa(task.ID),
		"due_date":       formatDateTime(task.DueDate),
		"current_status": task.Status,
	}

	assignedTo, err := n.users.ByID(context.Background(), task.AssignedToID)
	if err != nil {
		n.logger.Error("cannot load task assignee for reminder",
			zap.Int("task_id", task.ID), zap.Int("user_id", task.AssignedToID), zap.Error(err))
		return
	}

	if !n.sender.Send(*assignedTo, n.templates.Reminder, args) {
		n.logger.Info("due date reminder failed",
			zap.Int("task_id", task.ID), zap.Int("user_id", assignedTo.ID))
	}
}
