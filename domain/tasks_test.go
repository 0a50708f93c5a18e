package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestTasks(st *fakeStore, opts ...TasksOption) *Tasks {
	svc := NewTasks(st, opts...)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return svc
}

func TestCreateTrimsAndRejectsEmpty(t *testing.T) {
	svc := newTestTasks(newFakeStore())
	ctx := context.Background()

	task, err := svc.Create(ctx, "u1", "  buy milk  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Text != "buy milk" || task.Completed || task.Owner != "u1" {
		t.Fatalf("unexpected task: %#v", task)
	}

	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := svc.Create(ctx, "u1", text)
		var verrs ValidationErrors
		if !errors.As(err, &verrs) || verrs.ByField()["text"] == "" {
			t.Fatalf("expected text validation error for %q, got %v", text, err)
		}
	}

	if _, err := svc.Create(ctx, "u1", strings.Repeat("x", TaskTextMaxLen+1)); err == nil {
		t.Fatalf("expected overly long text to be rejected")
	}
}

func TestDoubleToggleRestoresState(t *testing.T) {
	svc := newTestTasks(newFakeStore())
	ctx := context.Background()
	task, err := svc.Create(ctx, "u1", "write tests")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := svc.Toggle(ctx, "u1", task.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !first.Completed {
		t.Fatalf("expected completed after first toggle")
	}
	second, err := svc.Toggle(ctx, "u1", task.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if second.Completed != task.Completed {
		t.Fatalf("expected double toggle to restore %v", task.Completed)
	}
}

func TestCrossUserAccessIsNotFound(t *testing.T) {
	svc := newTestTasks(newFakeStore())
	ctx := context.Background()
	task, err := svc.Create(ctx, "alice", "private")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Toggle(ctx, "bob", task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on toggle, got %v", err)
	}
	if err := svc.Delete(ctx, "bob", task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
	if _, err := svc.Toggle(ctx, "bob", "does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for missing id, got %v", err)
	}
	list, err := svc.List(ctx, "bob", 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected bob to see nothing, got %#v", list)
	}

	still, err := svc.List(ctx, "alice", 0, 10)
	if err != nil || len(still) != 1 || still[0].Completed {
		t.Fatalf("alice's task was modified: %#v err=%v", still, err)
	}
}

func TestListPaginationWindows(t *testing.T) {
	svc := newTestTasks(newFakeStore())
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		if _, err := svc.Create(ctx, "u1", "task "+string(rune('a'+i))); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	first, err := svc.List(ctx, "u1", 0, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, err := svc.List(ctx, "u1", 3, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	all, err := svc.List(ctx, "u1", 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(first) != 3 || len(second) != 3 || len(all) != 7 {
		t.Fatalf("unexpected window sizes %d %d %d", len(first), len(second), len(all))
	}
	combined := append(append([]Task{}, first...), second...)
	for i, task := range combined {
		if task.ID != all[i].ID {
			t.Fatalf("window position %d: expected %s got %s", i, all[i].ID, task.ID)
		}
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatalf("expected newest first at %d", i)
		}
	}
	if all[0].Text != "task g" {
		t.Fatalf("expected newest task first, got %q", all[0].Text)
	}
}

func TestListBounds(t *testing.T) {
	st := newFakeStore()
	svc := newTestTasks(st, WithMaxTake(5))
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		if _, err := svc.Create(ctx, "u1", "t"); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if _, err := svc.List(ctx, "u1", -1, 10); err == nil {
		t.Fatalf("expected negative skip to be rejected")
	}
	clamped, err := svc.List(ctx, "u1", 0, 1000)
	if err != nil || len(clamped) != 5 {
		t.Fatalf("expected take to be clamped to 5, got %d err=%v", len(clamped), err)
	}
	def, err := NewTasks(st).List(ctx, "u1", 0, 0)
	if err != nil || len(def) != DefaultPageSize {
		t.Fatalf("expected default page size, got %d err=%v", len(def), err)
	}
	for take, want := range map[int]int{0: 5, -3: 5, 2: 2, 1000: 5} {
		if got := svc.PageSize(take); got != want {
			t.Fatalf("PageSize(%d): expected %d got %d", take, want, got)
		}
	}
	past, err := svc.List(ctx, "u1", 100, 5)
	if err != nil || past == nil || len(past) != 0 {
		t.Fatalf("expected empty non-nil page past the end, got %#v err=%v", past, err)
	}
}

func TestTaskOperationsRequireOwner(t *testing.T) {
	svc := newTestTasks(newFakeStore())
	ctx := context.Background()
	if _, err := svc.List(ctx, "", 0, 10); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("list: expected unauthorized, got %v", err)
	}
	if _, err := svc.Create(ctx, "", "x"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("create: expected unauthorized, got %v", err)
	}
	if _, err := svc.Toggle(ctx, "", "t1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("toggle: expected unauthorized, got %v", err)
	}
	if err := svc.Delete(ctx, "", "t1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("delete: expected unauthorized, got %v", err)
	}
}

func TestTaskEventsPublished(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestTasks(newFakeStore(), WithTaskEvents(pub))
	ctx := context.Background()
	task, err := svc.Create(ctx, "u1", "x")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Toggle(ctx, "u1", task.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := svc.Delete(ctx, "u1", task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_ = svc.Delete(ctx, "u1", task.ID)

	got := pub.Types()
	want := []string{TaskCreated, TaskToggled, TaskDeleted}
	if len(got) != len(want) {
		t.Fatalf("expected %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v got %v", want, got)
		}
	}
}
