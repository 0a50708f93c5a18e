package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"todo-app/domain"
)

func TestConcurrentRegistrationSingleWinner(t *testing.T) {
	st := New()
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins, conflicts int
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.CreateUser(ctx, domain.User{Username: "alice", PasswordHash: "h"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 || conflicts != attempts-1 {
		t.Fatalf("expected exactly one winner, got wins=%d conflicts=%d", wins, conflicts)
	}
}

func TestTasksOwnerScopedAndOrdered(t *testing.T) {
	st := New()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 4; i++ {
		task, err := st.CreateTask(ctx, domain.Task{Text: "t", Owner: "alice", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, task.ID)
	}
	if _, err := st.CreateTask(ctx, domain.Task{Text: "other", Owner: "bob", CreatedAt: base}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := st.ListTasks(ctx, "alice", 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != ids[2] || got[1].ID != ids[1] {
		t.Fatalf("unexpected window: %#v", got)
	}

	if _, err := st.ToggleTask(ctx, "bob", ids[0]); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found toggling another user's task, got %v", err)
	}
	if err := st.DeleteTask(ctx, "bob", ids[0]); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found deleting another user's task, got %v", err)
	}
	toggled, err := st.ToggleTask(ctx, "alice", ids[0])
	if err != nil || !toggled.Completed {
		t.Fatalf("expected toggle to complete task, got %#v err=%v", toggled, err)
	}
	if err := st.DeleteTask(ctx, "alice", ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.DeleteTask(ctx, "alice", ids[0]); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected second delete to miss, got %v", err)
	}
}
