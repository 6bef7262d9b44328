package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pulse-analytics/pulse/internal/model"
	"github.com/pulse-analytics/pulse/internal/repository"
)

type FeedbackService struct {
	repo repository.FeedbackRepository

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewFeedbackService(repo repository.FeedbackRepository) *FeedbackService {
	return &FeedbackService{
		repo:    repo,
		NowFunc: time.Now,
	}
}

func (s *FeedbackService) Submit(ctx context.Context, userID string, req model.CreateFeedbackRequest) (*model.Feedback, error) {
	_, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Message: "date must be formatted as YYYY-MM-DD"}
	}

	if req.StressLevel < 1 || req.StressLevel > 5 {
		return nil, &ValidationError{Field: "stress_level", Message: "stress level must be between 1 and 5"}
	}

	var notes *string
	if req.Notes != nil {
		if trimmed := strings.TrimSpace(*req.Notes); trimmed != "" {
			notes = &trimmed
		}
	}

	feedback := &model.Feedback{
		ID:          uuid.New().String(),
		UserID:      userID,
		Date:        req.Date,
		StressLevel: req.StressLevel,
		Notes:       notes,
		CreatedAt:   s.NowFunc().UTC(),
	}

	err = s.repo.Create(ctx, feedback)
	if err != nil {
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}

	return feedback, nil
}

func (s *FeedbackService) Feedback(ctx context.Context, userID string) ([]*model.Feedback, error) {
	return s.repo.Feedback(ctx, userID)
}
