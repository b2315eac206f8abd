package kakao_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"academy-go/internal/kakao"
	"academy-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	userID     int
	templateID string
	args       map[string]string
}

type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) Send(user models.User, templateID string, templateArgs map[string]string) bool {
	f.sent = append(f.sent, sentMessage{userID: user.ID, templateID: templateID, args: templateArgs})
	return true
}

type fakeUserSource struct {
	users map[int]*models.User
}

func (f *fakeUserSource) ByID(ctx context.Context, id int) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d not found", id)
	}
	return u, nil
}

var testTemplates = kakao.Templates{
	StatusChange:   "tpl-status",
	Reminder:       "tpl-reminder",
	ScheduleChange: "tpl-schedule",
}

func newTestNotifier(sender *fakeSender, users *fakeUserSource) *kakao.Notifier {
	return kakao.NewNotifier(sender, users, testTemplates, zap.NewNop())
}

func dueTask(assignee, creator int) *models.Task {
	return &models.Task{
		ID:           42,
		Title:        "prepare midterm",
		Status:       models.StatusInProgress,
		AssignedToID: assignee,
		CreatedByID:  creator,
		DueDate:      sql.NullTime{Time: time.Date(2026, 3, 5, 18, 0, 0, 0, time.Local), Valid: true},
	}
}

func TestStatusChangeNotifiesAssigneeAndAdminCreator(t *testing.T) {
	sender := &fakeSender{}
	users := &fakeUserSource{users: map[int]*models.User{
		1: {ID: 1, Name: "Teacher", Role: models.RoleTeacher},
		2: {ID: 2, Name: "Director", Role: models.RoleAdmin},
	}}
	n := newTestNotifier(sender, users)

	n.TaskStatusChanged(dueTask(1, 2), models.StatusRegistered)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, 1, sender.sent[0].userID)
	assert.Equal(t, 2, sender.sent[1].userID)
	for _, m := range sender.sent {
		assert.Equal(t, "tpl-status", m.templateID)
		assert.Equal(t, models.StatusRegistered, m.args["previous_status"])
		assert.Equal(t, models.StatusInProgress, m.args["current_status"])
		assert.Equal(t, "42", m.args["task_id"])
	}
}

func TestStatusChangeSkipsNonAdminCreator(t *testing.T) {
	sender := &fakeSender{}
	users := &fakeUserSource{users: map[int]*models.User{
		1: {ID: 1, Role: models.RoleTeacher},
		2: {ID: 2, Role: models.RoleTeacher},
	}}
	n := newTestNotifier(sender, users)

	n.TaskStatusChanged(dueTask(1, 2), models.StatusRegistered)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, 1, sender.sent[0].userID)
}

func TestStatusChangeAdminSelfAssignedGetsBoth(t *testing.T) {
	// The creator is also the assignee: the policy sends twice, once per
	// role, matching one message per recipient slot.
	sender := &fakeSender{}
	users := &fakeUserSource{users: map[int]*models.User{
		2: {ID: 2, Role: models.RoleAdmin},
	}}
	n := newTestNotifier(sender, users)

	n.TaskStatusChanged(dueTask(2, 2), models.StatusRegistered)

	assert.Len(t, sender.sent, 2)
}

func TestTaskCreatedUsesNewTaskLabel(t *testing.T) {
	sender := &fakeSender{}
	users := &fakeUserSource{users: map[int]*models.User{
		1: {ID: 1, Role: models.RoleTeacher},
		2: {ID: 2, Role: models.RoleAdmin},
	}}
	n := newTestNotifier(sender, users)

	n.TaskCreated(dueTask(1, 2))

	require.NotEmpty(t, sender.sent)
	assert.Equal(t, kakao.NewTaskLabel, sender.sent[0].args["previous_status"])
}

func TestStatusChangeAbsentDueDateSentinel(t *testing.T) {
	sender := &fakeSender{}
	users := &fakeUserSource{users: map[int]*models.User{
		1: {ID: 1, Role: models.RoleTeacher},
		2: {ID: 2, Role: models.RoleTeacher},
	}}
	n := newTestNotifier(sender, users)

	task := dueTask(1, 2)
	task.DueDate = sql.NullTime{}
	n.TaskStatusChanged(task, models.StatusRegistered)

	require.NotEmpty(t, sender.sent)
	assert.Equal(t, kakao.NoneLabel, sender.sent[0].args["due_date"])
}

func TestScheduleChangeNotifiesAdminCreatorOnly(t *testing.T) {
	sender := &fakeSender{}
	users := &fakeUserSource{users: map[int]*models.User{
		1: {ID: 1, Role: models.RoleTeacher},
		2: {ID: 2, Role: models.RoleAdmin},
	}}
	n := newTestNotifier(sender, users)

	previous := sql.NullTime{Time: time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local), Valid: true}
	n.TaskScheduleChanged(dueTask(1, 2), previous, "학부모 상담 일정과 겹침", "Teacher")

	require.Len(t, sender.sent, 1)
	m := sender.sent[0]
	assert.Equal(t, 2, m.userID)
	assert.Equal(t, "tpl-schedule", m.templateID)
	assert.Equal(t, "학부모 상담 일정과 겹침", m.args["change_reason"])
	assert.Equal(t, "Teacher", m.args["updater_name"])
	assert.Equal(t, "2026. 3. 1. 09:00:00", m.args["previous_due_date"])
}

func TestScheduleChangeSkipsNonAdminCreator(t *testing.T) {
	sender := &fakeSender{}
	users := &fakeUserSource{users: map[int]*models.User{
		2: {ID: 2, Role: models.RoleTeacher},
	}}
	n := newTestNotifier(sender, users)

	n.TaskScheduleChanged(dueTask(1, 2), sql.NullTime{}, "", "Teacher")

	assert.Empty(t, sender.sent)
}

func TestScheduleChangeEmptyReasonSentinel(t *testing.T) {
	sender := &fakeSender{}
	users := &fakeUserSource{users: map[int]*models.User{
		2: {ID: 2, Role: models.RoleAdmin},
	}}
	n := newTestNotifier(sender, users)

	n.TaskScheduleChanged(dueTask(1, 2), sql.NullTime{}, "", "Teacher")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, kakao.NoReasonLabel, sender.sent[0].args["change_reason"])
	assert.Equal(t, kakao.NoneLabel, sender.sent[0].args["previous_due_date"])
}

func TestDueSoonNotifiesAssignee(t *testing.T) {
	sender := &fakeSender{}
	users := &fakeUserSource{users: map[int]*models.User{
		1: {ID: 1, Role: models.RoleTeacher},
	}}
	n := newTestNotifier(sender, users)

	n.TaskDueSoon(dueTask(1, 2))

	require.Len(t, sender.sent, 1)
	m := sender.sent[0]
	assert.Equal(t, 1, m.userID)
	assert.Equal(t, "tpl-reminder", m.templateID)
	assert.Equal(t, models.StatusInProgress, m.args["current_status"])
}

func TestStatusChangeUnknownAssigneeStillNotifiesCreator(t *testing.T) {
	sender := &fakeSender{}
	users := &fakeUserSource{users: map[int]*models.User{
		2: {ID: 2, Role: models.RoleAdmin},
	}}
	n := newTestNotifier(sender, users)

	n.TaskStatusChanged(dueTask(99, 2), models.StatusRegistered)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, 2, sender.sent[0].userID)
}
