package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pulse-analytics/pulse/internal/model"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskRepository scopes every query to the owning user. Rows of other users
// behave as if they did not exist.
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	ByID(ctx context.Context, userID, taskID string) (*model.Task, error)
	Tasks(ctx context.Context, userID string) ([]*model.Task, error)
	Complete(ctx context.Context, userID, taskID string) error
	Delete(ctx context.Context, userID, taskID string) error
}

type taskRepository struct {
	q querier
}

func NewTaskRepository(ext sqlx.ExtContext, timeout time.Duration) TaskRepository {
	return &taskRepository{q: querier{db: ext, timeout: timeout}}
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	query := `INSERT INTO tasks (id, user_id, title, duration_minutes, deadline, importance, completed, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.q.exec(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.DurationMinutes,
		task.Deadline,
		task.Importance,
		task.Completed,
		task.CreatedAt,
	)

	return err
}

func (r *taskRepository) ByID(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task := &model.Task{}
	query := `SELECT * FROM tasks WHERE id = $1 AND user_id = $2`

	err := r.q.get(ctx, task, query, taskID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	return task, nil
}

// Tasks lists open tasks first, then by creation time.
func (r *taskRepository) Tasks(ctx context.Context, userID string) ([]*model.Task, error) {
	tasks := []*model.Task{}
	query := `SELECT * FROM tasks WHERE user_id = $1 ORDER BY completed ASC, created_at ASC`

	err := r.q.selectAll(ctx, &tasks, query, userID)
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

func (r *taskRepository) Complete(ctx context.Context, userID, taskID string) error {
	rows, err := r.q.exec(ctx, `UPDATE tasks SET completed = TRUE WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrTaskNotFound
	}

	return nil
}

func (r *taskRepository) Delete(ctx context.Context, userID, taskID string) error {
	rows, err := r.q.exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrTaskNotFound
	}

	return nil
}
