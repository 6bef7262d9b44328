package model

import (
	"time"
)

// Feedback is a daily self-reported stress entry.
type Feedback struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"-"`
	Date        string    `db:"date" json:"date"` // YYYY-MM-DD
	StressLevel int       `db:"stress_level" json:"stress_level"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
