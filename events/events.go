// Package events delivers activity events to an Azure queue or to the log.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"todo-app/domain"
)

const defaultPublishTimeout = 3 * time.Second

// QueuePublisher enqueues each event as a JSON message.
type QueuePublisher struct {
	send    func(ctx context.Context, payload string) error
	logger  *log.Logger
	timeout time.Duration
}

// NewQueuePublisher connects to queueName and creates it when missing.
func NewQueuePublisher(ctx context.Context, connStr, queueName string, logger *log.Logger) (*QueuePublisher, error) {
	q, err := EnsureQueue(ctx, connStr, queueName)
	if err != nil {
		return nil, err
	}
	send := func(ctx context.Context, payload string) error {
		_, err := q.EnqueueMessage(ctx, payload, nil)
		return err
	}
	return newQueuePublisher(send, logger), nil
}

// EnsureQueue returns a client for queueName, creating the queue if needed.
func EnsureQueue(ctx context.Context, connStr, queueName string) (*azqueue.QueueClient, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    2,
				TryTimeout:    time.Second * 5,
				RetryDelay:    time.Millisecond * 200,
				MaxRetryDelay: time.Second * 2,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	if _, err := q.Create(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
			return nil, err
		}
	}
	return q, nil
}

func newQueuePublisher(send func(context.Context, string) error, logger *log.Logger) *QueuePublisher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &QueuePublisher{send: send, logger: logger, timeout: defaultPublishTimeout}
}

// Publish enqueues ev. It detaches from the caller's cancellation so a
// finished request does not abort delivery, and only logs on failure.
func (p *QueuePublisher) Publish(ctx context.Context, ev domain.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	fields := log.Fields{"event_id": ev.ID, "event_type": ev.Type, "entity_id": ev.EntityID, "user_id": ev.UserID}
	payload, err := sonic.MarshalString(ev)
	if err != nil {
		p.logger.WithFields(fields).WithError(err).Error("events.encode.failed")
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.send(sendCtx, payload); err != nil {
		p.logger.WithFields(fields).WithError(err).Error("events.publish.failed")
		return
	}
	p.logger.WithFields(fields).Debug("events.published")
}

// LogPublisher writes events to the log only.
type LogPublisher struct {
	logger *log.Logger
}

func NewLogPublisher(logger *log.Logger) *LogPublisher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, ev domain.Event) {
	p.logger.WithFields(log.Fields{
		"event_type":  ev.Type,
		"entity_type": ev.EntityType,
		"entity_id":   ev.EntityID,
		"user_id":     ev.UserID,
	}).Info("events." + ev.Type)
}
