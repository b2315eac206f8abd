// Package scheduler runs the recurring due-date reminder pass.
package scheduler

import (
	"context"
	"time"

	"academy-go/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TaskSource queries tasks whose due date falls inside a window.
type TaskSource interface {
	DueWithin(ctx context.Context, from, to time.Time) ([]models.Task, error)
}

// Reminder delivers one due-date reminder; failures are the notifier's
// problem, the scheduler only logs and moves on.
type Reminder interface {
	TaskDueSoon(task *models.Task)
}

// ReminderScheduler fires an hourly pass over tasks due within the
// lookahead window and issues one reminder per task, sequentially. There
// is no idempotency marker: overlapping windows across runs may produce
// duplicate reminders.
type ReminderScheduler struct {
	cronEngine *cron.Cron
	tasks      TaskSource
	reminder   Reminder
	logger     *zap.Logger
	lookahead  time.Duration
	now        func() time.Time
}

func NewReminderScheduler(tasks TaskSource, reminder Reminder, lookaheadHours int, logger *zap.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)),
		tasks:      tasks,
		reminder:   reminder,
		logger:     logger,
		lookahead:  time.Duration(lookaheadHours) * time.Hour,
		now:        time.Now,
	}
}

// Start registers the hourly job (minute 0) and starts the cron engine.
func (s *ReminderScheduler) Start() error {
	_, err := s.cronEngine.AddFunc("0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("reminder pass failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.cronEngine.Start()
	s.logger.Info("task reminder scheduler started",
		zap.Duration("lookahead", s.lookahead))
	return nil
}

// RunOnce executes a single reminder pass. Exported so tests and
// one-shot tooling can drive it without the cron engine.
func (s *ReminderScheduler) RunOnce(ctx context.Context) error {
	now := s.now()
	until := now.Add(s.lookahead)

	tasks, err := s.tasks.DueWithin(ctx, now, until)
	if err != nil {
		return err
	}

	s.logger.Info("reminder pass", zap.Int("task_count", len(tasks)))
	for i := range tasks {
		s.reminder.TaskDueSoon(&tasks[i])
	}
	return nil
}

func (s *ReminderScheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("task reminder scheduler stopped")
}
