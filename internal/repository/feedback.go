package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pulse-analytics/pulse/internal/model"
)

type FeedbackRepository interface {
	Create(ctx context.Context, feedback *model.Feedback) error
	Feedback(ctx context.Context, userID string) ([]*model.Feedback, error)
}

type feedbackRepository struct {
	q querier
}

func NewFeedbackRepository(ext sqlx.ExtContext, timeout time.Duration) FeedbackRepository {
	return &feedbackRepository{q: querier{db: ext, timeout: timeout}}
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *model.Feedback) error {
	query := `INSERT INTO feedback (id, user_id, date, stress_level, notes, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.q.exec(ctx, query,
		feedback.ID,
		feedback.UserID,
		feedback.Date,
		feedback.StressLevel,
		feedback.Notes,
		feedback.CreatedAt,
	)

	return err
}

// Feedback returns the user's entries, newest day first.
func (r *feedbackRepository) Feedback(ctx context.Context, userID string) ([]*model.Feedback, error) {
	entries := []*model.Feedback{}
	query := `SELECT * FROM feedback WHERE user_id = $1 ORDER BY date DESC, created_at DESC`

	err := r.q.selectAll(ctx, &entries, query, userID)
	if err != nil {
		return nil, err
	}

	return entries, nil
}
