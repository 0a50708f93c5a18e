package domain

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultPageSize = 20
	DefaultMaxTake  = 100
)

// Tasks implements the owner-scoped task operations.
type Tasks struct {
	store   TaskStore
	events  Publisher
	maxTake int
	now     func() time.Time
}

// TasksOption customises a Tasks service.
type TasksOption func(*Tasks)

// WithMaxTake bounds the page size a caller may request.
func WithMaxTake(n int) TasksOption {
	return func(t *Tasks) {
		if n > 0 {
			t.maxTake = n
		}
	}
}

// WithTaskEvents publishes task lifecycle events.
func WithTaskEvents(p Publisher) TasksOption {
	return func(t *Tasks) {
		if p != nil {
			t.events = p
		}
	}
}

func NewTasks(store TaskStore, opts ...TasksOption) *Tasks {
	t := &Tasks{store: store, events: discardPublisher{}, maxTake: DefaultMaxTake, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// PageSize returns the window size List uses for a requested take.
func (s *Tasks) PageSize(take int) int {
	if take <= 0 {
		take = DefaultPageSize
	}
	return min(take, s.maxTake)
}

// List returns a newest-first window of owner's tasks. take <= 0 selects the
// default page size and take above the configured maximum is clamped.
func (s *Tasks) List(ctx context.Context, owner string, skip, take int) ([]Task, error) {
	if owner == "" {
		return nil, ErrUnauthorized
	}
	if skip < 0 {
		return nil, ValidationErrors{{Field: "skip", Message: "skip must not be negative"}}
	}
	take = s.PageSize(take)
	tasks, err := s.store.ListTasks(ctx, owner, skip, take)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

// Create adds a task with trimmed text for owner.
func (s *Tasks) Create(ctx context.Context, owner, text string) (Task, error) {
	if owner == "" {
		return Task{}, ErrUnauthorized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Task{}, ValidationErrors{{Field: "text", Message: "Task text is required"}}
	}
	if utf8.RuneCountInString(text) > TaskTextMaxLen {
		return Task{}, ValidationErrors{{Field: "text", Message: "Task text must be at most 500 characters"}}
	}
	t, err := s.store.CreateTask(ctx, Task{
		Text:      text,
		Owner:     owner,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return Task{}, err
	}
	s.events.Publish(ctx, newEvent(TaskCreated, "task", t.ID, owner, t.CreatedAt, map[string]any{"text": t.Text}))
	return t, nil
}

// Toggle flips the completed flag of owner's task id.
func (s *Tasks) Toggle(ctx context.Context, owner, id string) (Task, error) {
	if owner == "" {
		return Task{}, ErrUnauthorized
	}
	if id == "" {
		return Task{}, ErrNotFound
	}
	t, err := s.store.ToggleTask(ctx, owner, id)
	if err != nil {
		return Task{}, err
	}
	s.events.Publish(ctx, newEvent(TaskToggled, "task", t.ID, owner, s.now(), map[string]any{"completed": t.Completed}))
	return t, nil
}

// Delete removes owner's task id.
func (s *Tasks) Delete(ctx context.Context, owner, id string) error {
	if owner == "" {
		return ErrUnauthorized
	}
	if id == "" {
		return ErrNotFound
	}
	if err := s.store.DeleteTask(ctx, owner, id); err != nil {
		return err
	}
	s.events.Publish(ctx, newEvent(TaskDeleted, "task", id, owner, s.now(), nil))
	return nil
}
