package tasks_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"academy-go/internal/models"
	"academy-go/internal/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	task       *models.Task
	history    []models.TaskStatusHistory
	updateErr  error
	historyErr error
	nextID     int
}

func (f *fakeStore) ByID(ctx context.Context, id int) (*models.Task, error) {
	if f.task == nil || f.task.ID != id {
		return nil, errors.New("task not found")
	}
	copy := *f.task
	return &copy, nil
}

func (f *fakeStore) Create(ctx context.Context, t *models.Task) error {
	f.nextID++
	t.ID = f.nextID
	copy := *t
	f.task = &copy
	return nil
}

func (f *fakeStore) Update(ctx context.Context, t *models.Task) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	copy := *t
	f.task = &copy
	return nil
}

func (f *fakeStore) AppendHistory(ctx context.Context, h *models.TaskStatusHistory) error {
	if f.historyErr != nil {
		return f.historyErr
	}
	f.history = append(f.history, *h)
	return nil
}

type notifierCall struct {
	event          string
	previousStatus string
	previousDue    sql.NullTime
	reason         string
	updater        string
}

type fakeNotifier struct {
	calls []notifierCall
}

func (f *fakeNotifier) TaskCreated(task *models.Task) {
	f.calls = append(f.calls, notifierCall{event: "created"})
}

func (f *fakeNotifier) TaskStatusChanged(task *models.Task, previousStatus string) {
	f.calls = append(f.calls, notifierCall{event: "status", previousStatus: previousStatus})
}

func (f *fakeNotifier) TaskScheduleChanged(task *models.Task, previousDue sql.NullTime, changeReason, updaterName string) {
	f.calls = append(f.calls, notifierCall{
		event:       "schedule",
		previousDue: previousDue,
		reason:      changeReason,
		updater:     updaterName,
	})
}

func (f *fakeNotifier) events() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.event)
	}
	return out
}

func strPtr(s string) *string { return &s }

func newService(store *fakeStore, notifier *fakeNotifier) *tasks.Service {
	return tasks.NewService(store, notifier, zap.NewNop())
}

func seedTask(store *fakeStore) {
	store.task = &models.Task{
		ID:           1,
		Title:        "prepare midterm",
		Description:  "cover chapters 1-4",
		Status:       models.StatusRegistered,
		AssignedToID: 10,
		CreatedByID:  20,
		DueDate:      sql.NullTime{Time: time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC), Valid: true},
	}
}

var (
	teacherActor = tasks.Actor{ID: 10, Name: "Teacher Kim", Role: models.RoleTeacher}
	adminActor   = tasks.Actor{ID: 20, Name: "Director Lee", Role: models.RoleAdmin}
)

func TestCreateRegistersAndNotifies(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	svc := newService(store, notifier)

	due := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	task, err := svc.Create(context.Background(), tasks.CreateInput{
		Title:        "grade essays",
		AssignedToID: 10,
		DueDate:      &due,
	}, adminActor)

	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistered, task.Status)
	assert.Equal(t, adminActor.ID, task.CreatedByID)
	assert.Equal(t, []string{"created"}, notifier.events())
}

func TestStatusChangeAppendsHistoryAndNotifies(t *testing.T) {
	store := &fakeStore{}
	seedTask(store)
	notifier := &fakeNotifier{}
	svc := newService(store, notifier)

	_, err := svc.ApplyChange(context.Background(), 1,
		tasks.Change{Status: strPtr(models.StatusInProgress)}, teacherActor)

	require.NoError(t, err)
	require.Len(t, store.history, 1)
	h := store.history[0]
	assert.Equal(t, models.StatusRegistered, h.PreviousStatus)
	assert.Equal(t, models.StatusInProgress, h.NewStatus)
	assert.Equal(t, teacherActor.ID, h.ChangedByID)
	assert.Equal(t, teacherActor.Name, h.ChangedByName)
	assert.Equal(t, teacherActor.Role, h.ChangedByRole)
	assert.Equal(t, []string{"status"}, notifier.events())
}

func TestSameStatusIsNoOpForAudit(t *testing.T) {
	store := &fakeStore{}
	seedTask(store)
	notifier := &fakeNotifier{}
	svc := newService(store, notifier)

	_, err := svc.ApplyChange(context.Background(), 1,
		tasks.Change{Status: strPtr(models.StatusRegistered)}, teacherActor)

	require.NoError(t, err)
	assert.Empty(t, store.history)
	assert.Empty(t, notifier.calls)
}

func TestRepeatedStatusChangeAppendsOncePerTransition(t *testing.T) {
	store := &fakeStore{}
	seedTask(store)
	notifier := &fakeNotifier{}
	svc := newService(store, notifier)

	ctx := context.Background()
	_, err := svc.ApplyChange(ctx, 1, tasks.Change{Status: strPtr(models.StatusInProgress)}, teacherActor)
	require.NoError(t, err)
	_, err = svc.ApplyChange(ctx, 1, tasks.Change{Status: strPtr(models.StatusInProgress)}, teacherActor)
	require.NoError(t, err)

	assert.Len(t, store.history, 1)
}

func TestInvalidStatusRejected(t *testing.T) {
	store := &fakeStore{}
	seedTask(store)
	svc := newService(store, &fakeNotifier{})

	_, err := svc.ApplyChange(context.Background(), 1,
		tasks.Change{Status: strPtr("DONE")}, teacherActor)

	assert.ErrorIs(t, err, tasks.ErrInvalidStatus)
	assert.Empty(t, store.history)
}

func TestNonAssigneeTeacherForbidden(t *testing.T) {
	store := &fakeStore{}
	seedTask(store)
	svc := newService(store, &fakeNotifier{})

	other := tasks.Actor{ID: 99, Name: "Other", Role: models.RoleTeacher}
	_, err := svc.ApplyChange(context.Background(), 1,
		tasks.Change{Status: strPtr(models.StatusCompleted)}, other)

	assert.ErrorIs(t, err, tasks.ErrForbidden)
}

func TestAdminMayChangeAnyTask(t *testing.T) {
	store := &fakeStore{}
	seedTask(store)
	svc := newService(store, &fakeNotifier{})

	actor := tasks.Actor{ID: 777, Name: "Head", Role: models.RoleAdmin}
	_, err := svc.ApplyChange(context.Background(), 1,
		tasks.Change{Status: strPtr(models.StatusConfirmed)}, actor)

	assert.NoError(t, err)
}

func TestHistoryFailureDoesNotFailMutation(t *testing.T) {
	store := &fakeStore{historyErr: errors.New("disk full")}
	seedTask(store)
	notifier := &fakeNotifier{}
	svc := newService(store, notifier)

	task, err := svc.ApplyChange(context.Background(), 1,
		tasks.Change{Status: strPtr(models.StatusCompleted)}, teacherActor)

	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, task.Status)
	assert.Equal(t, []string{"status"}, notifier.events())
}

func TestDueDateChangeFiresScheduleNotification(t *testing.T) {
	store := &fakeStore{}
	seedTask(store)
	notifier := &fakeNotifier{}
	svc := newService(store, notifier)

	newDue := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	_, err := svc.ApplyChange(context.Background(), 1,
		tasks.Change{DueDate: &newDue, DueDateSet: true}, teacherActor)

	require.NoError(t, err)
	require.Equal(t, []string{"schedule"}, notifier.events())
	c := notifier.calls[0]
	assert.True(t, c.previousDue.Valid)
	assert.Equal(t, teacherActor.Name, c.updater)
	assert.Empty(t, c.reason)
}

func TestSameDueDateMillisecondGranularityNoNotification(t *testing.T) {
	store := &fakeStore{}
	seedTask(store)
	notifier := &fakeNotifier{}
	svc := newService(store, notifier)

	// Same millisecond, different sub-millisecond part.
	same := store.task.DueDate.Time.Add(500 * time.Microsecond)
	_, err := svc.ApplyChange(context.Background(), 1,
		tasks.Change{DueDate: &same, DueDateSet: true}, teacherActor)

	require.NoError(t, err)
	assert.Empty(t, notifier.calls)
}

func TestClearingDueDateNotifies(t *testing.T) {
	store := &fakeStore{}
	seedTask(store)
	notifier := &fakeNotifier{}
	svc := newService(store, notifier)

	_, err := svc.ApplyChange(context.Background(), 1,
		tasks.Change{DueDate: nil, DueDateSet: true}, teacherActor)

	require.NoError(t, err)
	require.Equal(t, []string{"schedule"}, notifier.events())
	assert.False(t, store.task.DueDate.Valid)
}

func TestAbsentDueDateFieldLeavesDateAlone(t *testing.T) {
	store := &fakeStore{}
	seedTask(store)
	notifier := &fakeNotifier{}
	svc := newService(store, notifier)

	_, err := svc.ApplyChange(context.Background(), 1,
		tasks.Change{Description: strPtr("updated text")}, teacherActor)

	require.NoError(t, err)
	assert.True(t, store.task.DueDate.Valid)
	assert.Empty(t, notifier.calls)
}

func TestScheduleChangeReasonFromNewDescription(t *testing.T) {
	store := &fakeStore{}
	seedTask(store)
	notifier := &fakeNotifier{}
	svc := newService(store, notifier)

	newDue := time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC)
	desc := "cover chapters 1-4\n\n[일정 변경 사유 - 2026. 3. 2.]\n학부모 상담과 겹쳐 연기"
	_, err := svc.ApplyChange(context.Background(), 1, tasks.Change{
		DueDate:     &newDue,
		DueDateSet:  true,
		Description: &desc,
	}, teacherActor)

	require.NoError(t, err)
	require.Equal(t, []string{"schedule"}, notifier.events())
	assert.Equal(t, "학부모 상담과 겹쳐 연기", notifier.calls[0].reason)
}

func TestStatusAndScheduleChangeTogether(t *testing.T) {
	store := &fakeStore{}
	seedTask(store)
	notifier := &fakeNotifier{}
	svc := newService(store, notifier)

	newDue := time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC)
	_, err := svc.ApplyChange(context.Background(), 1, tasks.Change{
		Status:     strPtr(models.StatusInProgress),
		DueDate:    &newDue,
		DueDateSet: true,
	}, teacherActor)

	require.NoError(t, err)
	assert.Equal(t, []string{"status", "schedule"}, notifier.events())
	assert.Len(t, store.history, 1)
}

func TestExtractChangeReason(t *testing.T) {
	cases := []struct {
		name        string
		description string
		want        string
	}{
		{
			name:        "no reason block",
			description: "plain description",
			want:        "",
		},
		{
			name:        "single block",
			description: "text\n\n[일정 변경 사유 - 2026. 3. 2.]\n감기 때문에 연기",
			want:        "감기 때문에 연기",
		},
		{
			name:        "takes the latest block",
			description: "[일정 변경 사유 - 2026. 3. 1.]\n첫 번째 사유\n\n[일정 변경 사유 - 2026. 3. 2.]\n두 번째 사유",
			want:        "두 번째 사유",
		},
		{
			name:        "block followed by more text",
			description: "[일정 변경 사유 - 2026. 3. 2.]\n사유입니다\n\n추가 메모",
			want:        "사유입니다",
		},
		{
			name:        "surrounding whitespace trimmed",
			description: "[일정 변경 사유 - 2026. 3. 2.]\n  여유 공백  ",
			want:        "여유 공백",
		},
		{
			name:        "empty description",
			description: "",
			want:        "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tasks.ExtractChangeReason(tc.description))
		})
	}
}
