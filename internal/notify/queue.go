package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/suriekke/shopeasy2-sub000/internal/logger"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
)

// TaskTypeStatusChanged is the asynq task type carrying a models.StatusChange.
const TaskTypeStatusChanged = "order:status_changed"

const defaultMaxRetry = 5

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func NewStatusChangedTask(change models.StatusChange) (*asynq.Task, error) {
	data, err := json.Marshal(change)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeStatusChanged, data), nil
}

// QueueSink hands changes to the worker through asynq.
type QueueSink struct {
	client Enqueuer
	queue  string
}

func NewQueueSink(client Enqueuer, queue string) *QueueSink {
	return &QueueSink{client: client, queue: queue}
}

func (s *QueueSink) Notify(ctx context.Context, change models.StatusChange) error {
	task, err := NewStatusChangedTask(change)
	if err != nil {
		return fmt.Errorf("build status task: %w", err)
	}
	opts := []asynq.Option{asynq.MaxRetry(defaultMaxRetry)}
	if s.queue != "" {
		opts = append(opts, asynq.Queue(s.queue))
	}
	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue status task: %w", err)
	}
	return nil
}

// Deliverer performs the actual outbound notification for a dequeued change.
type Deliverer interface {
	Deliver(ctx context.Context, change models.StatusChange) error
}

// Handler processes TaskTypeStatusChanged tasks on the worker.
type Handler struct {
	deliverer Deliverer
	log       *logger.Logger
}

func NewHandler(deliverer Deliverer, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{deliverer: deliverer, log: log}
}

// Handle fulfils the asynq.HandlerFunc contract. Malformed payloads are not retried.
func (h *Handler) Handle(ctx context.Context, task *asynq.Task) error {
	var change models.StatusChange
	if err := json.Unmarshal(task.Payload(), &change); err != nil {
		h.log.Warn(ctx, "notify.bad_payload", err)
		return fmt.Errorf("decode status change: %v: %w", err, asynq.SkipRetry)
	}
	ctx = h.log.WithFields(ctx, changeFields(change))
	if err := h.deliverer.Deliver(ctx, change); err != nil {
		h.log.Warn(ctx, "notify.delivery_failed", err)
		return err
	}
	return nil
}

// LogDeliverer is the Deliverer used until an outbound channel is configured.
type LogDeliverer struct {
	log *logger.Logger
}

func NewLogDeliverer(log *logger.Logger) *LogDeliverer {
	if log == nil {
		log = logger.Nop()
	}
	return &LogDeliverer{log: log}
}

func (d *LogDeliverer) Deliver(ctx context.Context, change models.StatusChange) error {
	d.log.Info(ctx, "notify.delivered")
	return nil
}
