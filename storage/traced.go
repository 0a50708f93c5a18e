package storage

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"todo-app/domain"
)

const tracerName = "todo-app/storage"

// Traced wraps a Store and records a span per call.
type Traced struct {
	next    domain.Store
	tracer  trace.Tracer
	backend string
}

// NewTraced decorates next. A nil provider uses the global one.
func NewTraced(next domain.Store, backend string, tp trace.TracerProvider) *Traced {
	if next == nil {
		panic("storage.NewTraced: store is nil")
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Traced{next: next, tracer: tp.Tracer(tracerName), backend: backend}
}

func (t *Traced) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", t.backend), attribute.String("db.operation", op))
	return t.tracer.Start(ctx, "storage."+op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

// finish marks the span failed for unexpected errors only; misses and
// conflicts are ordinary outcomes.
func finish(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
		span.SetAttributes(attribute.String("storage.outcome", err.Error()))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (t *Traced) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	ctx, span := t.start(ctx, "CreateUser")
	out, err := t.next.CreateUser(ctx, u)
	finish(span, err)
	return out, err
}

func (t *Traced) FindUserByUsername(ctx context.Context, username string) (domain.User, error) {
	ctx, span := t.start(ctx, "FindUserByUsername")
	out, err := t.next.FindUserByUsername(ctx, username)
	finish(span, err)
	return out, err
}

func (t *Traced) FindUserByID(ctx context.Context, id string) (domain.User, error) {
	ctx, span := t.start(ctx, "FindUserByID", attribute.String("user.id", id))
	out, err := t.next.FindUserByID(ctx, id)
	finish(span, err)
	return out, err
}

func (t *Traced) ListTasks(ctx context.Context, owner string, skip, take int) ([]domain.Task, error) {
	ctx, span := t.start(ctx, "ListTasks",
		attribute.String("user.id", owner),
		attribute.Int("page.skip", skip),
		attribute.Int("page.take", take),
	)
	out, err := t.next.ListTasks(ctx, owner, skip, take)
	span.SetAttributes(attribute.Int("page.returned", len(out)))
	finish(span, err)
	return out, err
}

func (t *Traced) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	ctx, span := t.start(ctx, "CreateTask", attribute.String("user.id", task.Owner))
	out, err := t.next.CreateTask(ctx, task)
	finish(span, err)
	return out, err
}

func (t *Traced) ToggleTask(ctx context.Context, owner, id string) (domain.Task, error) {
	ctx, span := t.start(ctx, "ToggleTask", attribute.String("user.id", owner), attribute.String("task.id", id))
	out, err := t.next.ToggleTask(ctx, owner, id)
	finish(span, err)
	return out, err
}

func (t *Traced) DeleteTask(ctx context.Context, owner, id string) error {
	ctx, span := t.start(ctx, "DeleteTask", attribute.String("user.id", owner), attribute.String("task.id", id))
	err := t.next.DeleteTask(ctx, owner, id)
	finish(span, err)
	return err
}

func (t *Traced) Ping(ctx context.Context) error {
	ctx, span := t.start(ctx, "Ping")
	err := t.next.Ping(ctx)
	finish(span, err)
	return err
}

func (t *Traced) Close(ctx context.Context) error {
	return t.next.Close(ctx)
}
