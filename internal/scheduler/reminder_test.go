package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"academy-go/internal/models"
	"academy-go/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTaskSource struct {
	tasks    []models.Task
	err      error
	lastFrom time.Time
	lastTo   time.Time
}

func (f *fakeTaskSource) DueWithin(ctx context.Context, from, to time.Time) ([]models.Task, error) {
	f.lastFrom = from
	f.lastTo = to
	return f.tasks, f.err
}

type fakeReminder struct {
	reminded []int
}

func (f *fakeReminder) TaskDueSoon(task *models.Task) {
	f.reminded = append(f.reminded, task.ID)
}

func TestRunOnceRemindsEachDueTask(t *testing.T) {
	source := &fakeTaskSource{tasks: []models.Task{
		{ID: 1, Title: "grade essays"},
		{ID: 2, Title: "call parents"},
		{ID: 3, Title: "prepare slides"},
	}}
	reminder := &fakeReminder{}
	s := scheduler.NewReminderScheduler(source, reminder, 3, zap.NewNop())

	err := s.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, reminder.reminded)
}

func TestRunOnceWindowSpansLookahead(t *testing.T) {
	source := &fakeTaskSource{}
	s := scheduler.NewReminderScheduler(source, &fakeReminder{}, 3, zap.NewNop())

	before := time.Now()
	require.NoError(t, s.RunOnce(context.Background()))
	after := time.Now()

	assert.False(t, source.lastFrom.Before(before))
	assert.False(t, source.lastFrom.After(after))
	assert.Equal(t, 3*time.Hour, source.lastTo.Sub(source.lastFrom))
}

func TestRunOnceEmptyWindow(t *testing.T) {
	reminder := &fakeReminder{}
	s := scheduler.NewReminderScheduler(&fakeTaskSource{}, reminder, 3, zap.NewNop())

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, reminder.reminded)
}

func TestRunOnceQueryFailure(t *testing.T) {
	source := &fakeTaskSource{err: errors.New("connection refused")}
	reminder := &fakeReminder{}
	s := scheduler.NewReminderScheduler(source, reminder, 3, zap.NewNop())

	err := s.RunOnce(context.Background())

	assert.Error(t, err)
	assert.Empty(t, reminder.reminded)
}

func TestStartAndStop(t *testing.T) {
	s := scheduler.NewReminderScheduler(&fakeTaskSource{}, &fakeReminder{}, 3, zap.NewNop())

	require.NoError(t, s.Start())
	s.Stop()
}
