package model

import (
	"time"
)

const (
	TaskDefaultDuration   = 30
	TaskDefaultImportance = 3
)

type Task struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"-"`
	Title           string     `db:"title" json:"title"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	Deadline        *time.Time `db:"deadline" json:"deadline,omitempty"`
	Importance      int        `db:"importance" json:"importance"`
	Completed       bool       `db:"completed" json:"completed"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
