package events

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"todo-app/domain"
)

func bufferedLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&log.JSONFormatter{})
	logger.SetLevel(log.DebugLevel)
	return logger, &buf
}

func TestQueuePublisherEncodesEvent(t *testing.T) {
	var got string
	logger, _ := bufferedLogger()
	p := newQueuePublisher(func(ctx context.Context, payload string) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Fatalf("expected send context to carry a deadline")
		}
		got = payload
		return nil
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Publish(ctx, domain.Event{Type: domain.TaskCreated, EntityType: "task", EntityID: "t1", UserID: "u1", Time: 42, Data: map[string]any{"text": "buy milk"}})

	var ev domain.Event
	if err := sonic.UnmarshalString(got, &ev); err != nil {
		t.Fatalf("decode payload %q: %v", got, err)
	}
	if ev.ID == "" || ev.Type != domain.TaskCreated || ev.EntityID != "t1" || ev.UserID != "u1" || ev.Data["text"] != "buy milk" {
		t.Fatalf("unexpected event: %#v", ev)
	}
}

func TestQueuePublisherLogsFailures(t *testing.T) {
	logger, buf := bufferedLogger()
	p := newQueuePublisher(func(context.Context, string) error { return errors.New("queue unavailable") }, logger)
	p.timeout = time.Second

	p.Publish(context.Background(), domain.Event{Type: domain.UserLoggedIn, UserID: "u1"})

	out := buf.String()
	if !strings.Contains(out, "events.publish.failed") || !strings.Contains(out, "queue unavailable") {
		t.Fatalf("expected failure to be logged, got %s", out)
	}
}

func TestLogPublisher(t *testing.T) {
	logger, buf := bufferedLogger()
	NewLogPublisher(logger).Publish(context.Background(), domain.Event{Type: domain.UserRegistered, EntityType: "user", EntityID: "u1", UserID: "u1"})
	if !strings.Contains(buf.String(), "events.user-registered") {
		t.Fatalf("expected event to be logged, got %s", buf.String())
	}
}
