package domain

import "context"

// UserStore persists accounts. CreateUser must enforce username uniqueness
// itself and report a duplicate as ErrConflict.
type UserStore interface {
	CreateUser(ctx context.Context, u User) (User, error)
	FindUserByUsername(ctx context.Context, username string) (User, error)
	FindUserByID(ctx context.Context, id string) (User, error)
}

// TaskStore persists tasks. Every method is scoped to owner and reports a
// miss as ErrNotFound.
type TaskStore interface {
	// ListTasks returns owner's tasks newest first.
	ListTasks(ctx context.Context, owner string, skip, take int) ([]Task, error)
	CreateTask(ctx context.Context, t Task) (Task, error)
	// ToggleTask flips the completed flag in a single atomic write.
	ToggleTask(ctx context.Context, owner, id string) (Task, error)
	DeleteTask(ctx context.Context, owner, id string) error
}

// Store is the full persistence surface a backend provides.
type Store interface {
	UserStore
	TaskStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
