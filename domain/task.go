package domain

import "time"

// Task is a single to-do item owned by exactly one user.
type Task struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	Owner     string    `json:"-"`
}
