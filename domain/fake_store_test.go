package domain

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

type fakeStore struct {
	mu     sync.Mutex
	users  map[string]User
	tasks  map[string]Task
	nextID int

	// skipPrecheck hides users from FindUserByUsername to simulate a lost race.
	skipPrecheck bool
	createErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]User{}, tasks: map[string]Task{}}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return prefix + strconv.Itoa(f.nextID)
}

func (f *fakeStore) CreateUser(ctx context.Context, u User) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return User{}, f.createErr
	}
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return User{}, ErrConflict
		}
	}
	u.ID = f.id("u")
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) FindUserByUsername(ctx context.Context, username string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.skipPrecheck {
		return User{}, ErrNotFound
	}
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (f *fakeStore) FindUserByID(ctx context.Context, id string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) ListTasks(ctx context.Context, owner string, skip, take int) ([]Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Task
	for _, t := range f.tasks {
		if t.Owner == owner {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if skip >= len(out) {
		return nil, nil
	}
	out = out[skip:]
	if take < len(out) {
		out = out[:take]
	}
	return out, nil
}

func (f *fakeStore) CreateTask(ctx context.Context, t Task) (Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = f.id("t")
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeStore) ToggleTask(ctx context.Context, owner, id string) (Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok || t.Owner != owner {
		return Task{}, ErrNotFound
	}
	t.Completed = !t.Completed
	f.tasks[id] = t
	return t, nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, owner, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok || t.Owner != owner {
		return ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingPublisher) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingPublisher) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
