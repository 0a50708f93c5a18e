// Package memory is an in-process store used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"todo-app/domain"
)

// Store keeps users and tasks in maps guarded by a single mutex, so each
// operation is atomic with respect to the others.
type Store struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	byUsername map[string]string
	tasks      map[string]domain.Task
}

func New() *Store {
	return &Store{
		users:      map[string]domain.User{},
		byUsername: map[string]string{},
		tasks:      map[string]domain.Task{},
	}
}

func (s *Store) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byUsername[u.Username]; taken {
		return domain.User{}, domain.ErrConflict
	}
	u.ID = uuid.NewString()
	s.users[u.ID] = u
	s.byUsername[u.Username] = u.ID
	return u, nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) FindUserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *Store) ListTasks(_ context.Context, owner string, skip, take int) ([]domain.Task, error) {
	s.mu.RLock()
	owned := make([]domain.Task, 0)
	for _, t := range s.tasks {
		if t.Owner == owner {
			owned = append(owned, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	if skip >= len(owned) {
		return []domain.Task{}, nil
	}
	owned = owned[skip:]
	if take > 0 && take < len(owned) {
		owned = owned[:take]
	}
	return owned, nil
}

func (s *Store) CreateTask(_ context.Context, t domain.Task) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.NewString()
	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) ToggleTask(_ context.Context, owner, id string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Owner != owner {
		return domain.Task{}, domain.ErrNotFound
	}
	t.Completed = !t.Completed
	s.tasks[id] = t
	return t, nil
}

func (s *Store) DeleteTask(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Owner != owner {
		return domain.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }
