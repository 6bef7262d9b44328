package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pulse-analytics/pulse/internal/model"
	"github.com/pulse-analytics/pulse/internal/repository"
)

type TaskService struct {
	repo repository.TaskRepository

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewTaskService(repo repository.TaskRepository) *TaskService {
	return &TaskService{
		repo:    repo,
		NowFunc: time.Now,
	}
}

func (s *TaskService) Create(ctx context.Context, userID string, req model.CreateTaskRequest) (*model.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "title is required"}
	}

	task := &model.Task{
		ID:              uuid.New().String(),
		UserID:          userID,
		Title:           title,
		DurationMinutes: model.TaskDefaultDuration,
		Importance:      model.TaskDefaultImportance,
		CreatedAt:       s.NowFunc().UTC(),
	}

	if req.DurationMinutes != nil {
		task.DurationMinutes = *req.DurationMinutes
	}
	if req.Importance != nil {
		task.Importance = *req.Importance
	}
	if req.Deadline != nil {
		deadline, err := time.Parse(time.RFC3339, *req.Deadline)
		if err != nil {
			return nil, &ValidationError{Field: "deadline", Message: "deadline must be an RFC 3339 timestamp"}
		}
		deadline = deadline.UTC()
		task.Deadline = &deadline
	}

	err := s.repo.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return task, nil
}

func (s *TaskService) Tasks(ctx context.Context, userID string) ([]*model.Task, error) {
	return s.repo.Tasks(ctx, userID)
}

func (s *TaskService) ByID(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.repo.ByID(ctx, userID, taskID)
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

func (s *TaskService) Complete(ctx context.Context, userID, taskID string) (*model.Task, error) {
	err := s.repo.Complete(ctx, userID, taskID)
	if err != nil {
		return nil, notFound(err)
	}

	return s.ByID(ctx, userID, taskID)
}

func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	return notFound(s.repo.Delete(ctx, userID, taskID))
}

// notFound maps the repository's missing-row error, which also covers rows
// owned by another user, to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, repository.ErrTaskNotFound) {
		return ErrNotFound
	}
	return err
}
