package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"academy-go/internal/models"
)

var ErrTaskNotFound = fmt.Errorf("task not found")

const taskColumns = `id, title, description, images, due_date, status,
    assigned_to_id, created_by_id, academy_id, created_at, updated_at`

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func scanTask(row *sql.Row) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Images, &t.DueDate, &t.Status,
		&t.AssignedToID, &t.CreatedByID, &t.AcademyID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("error scanning task: %w", err)
	}
	return t, nil
}

func (r *TaskRepository) ByID(ctx context.Context, id int) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.db.QueryRowContext(ctx, query, id))
}

func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	query := `INSERT INTO tasks (title, description, images, due_date, status, assigned_to_id, created_by_id, academy_id)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
              RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, t.Title, t.Description, t.Images, t.DueDate,
		t.Status, t.AssignedToID, t.CreatedByID, t.AcademyID).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating task: %w", err)
	}
	return nil
}

// Update persists every mutable field of the task.
func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	query := `UPDATE tasks SET title = $1, description = $2, images = $3, due_date = $4,
                  status = $5, assigned_to_id = $6, updated_at = CURRENT_TIMESTAMP
              WHERE id = $7
              RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, t.Title, t.Description, t.Images, t.DueDate,
		t.Status, t.AssignedToID, t.ID).Scan(&t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrTaskNotFound
		}
		return fmt.Errorf("error updating task: %w", err)
	}
	return nil
}

// ListForUser returns tasks the user is assigned to or created, newest first.
func (r *TaskRepository) ListForUser(ctx context.Context, userID int) ([]models.Task, error) {
	query := `SELECT t.id, t.title, t.description, t.images, t.due_date, t.status,
                  t.assigned_to_id, t.created_by_id, t.academy_id, t.created_at, t.updated_at,
                  a.name, c.name
              FROM tasks t
              JOIN users a ON a.id = t.assigned_to_id
              JOIN users c ON c.id = t.created_by_id
              WHERE t.assigned_to_id = $1 OR t.created_by_id = $1
              ORDER BY t.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Images, &t.DueDate, &t.Status,
			&t.AssignedToID, &t.CreatedByID, &t.AcademyID, &t.CreatedAt, &t.UpdatedAt,
			&t.AssignedToName, &t.CreatedByName); err != nil {
			return nil, fmt.Errorf("error scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DueWithin returns tasks whose due date falls inside [from, to] and whose
// status still warrants a reminder. Used by the hourly reminder pass; no
// idempotency marker, overlapping windows may re-notify.
func (r *TaskRepository) DueWithin(ctx context.Context, from, to time.Time) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
              WHERE due_date >= $1 AND due_date <= $2 AND status IN ($3, $4)
              ORDER BY due_date ASC`
	rows, err := r.db.QueryContext(ctx, query, from, to, models.StatusRegistered, models.StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("error querying due tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Images, &t.DueDate, &t.Status,
			&t.AssignedToID, &t.CreatedByID, &t.AcademyID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning due task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// AppendHistory inserts one audit row for an observed status change.
// Rows are never updated afterwards.
func (r *TaskRepository) AppendHistory(ctx context.Context, h *models.TaskStatusHistory) error {
	query := `INSERT INTO task_status_history
                  (task_id, previous_status, new_status, changed_by_id, changed_by_name, changed_by_role)
              VALUES ($1, $2, $3, $4, $5, $6)
              RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, h.TaskID, h.PreviousStatus, h.NewStatus,
		h.ChangedByID, h.ChangedByName, h.ChangedByRole).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting status history: %w", err)
	}
	return nil
}

func (r *TaskRepository) HistoryByTaskID(ctx context.Context, taskID int) ([]models.TaskStatusHistory, error) {
	query := `SELECT id, task_id, previous_status, new_status, changed_by_id, changed_by_name, changed_by_role, created_at
              FROM task_status_history WHERE task_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("error querying status history: %w", err)
	}
	defer rows.Close()

	history := []models.TaskStatusHistory{}
	for rows.Next() {
		var h models.TaskStatusHistory
		if err := rows.Scan(&h.ID, &h.TaskID, &h.PreviousStatus, &h.NewStatus,
			&h.ChangedByID, &h.ChangedByName, &h.ChangedByRole, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning history row: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}
