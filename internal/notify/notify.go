// Package notify tells interested parties that an order changed status.
//
// Delivery is best effort: the order engine calls a Sink after the transition has
// committed and only logs what the Sink returns.
package notify

import (
	"context"

	"github.com/suriekke/shopeasy2-sub000/internal/logger"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
)

type Sink interface {
	Notify(ctx context.Context, change models.StatusChange) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, change models.StatusChange) error

func (f SinkFunc) Notify(ctx context.Context, change models.StatusChange) error {
	return f(ctx, change)
}

// LogSink writes each change to the structured log.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Notify(ctx context.Context, change models.StatusChange) error {
	ctx = s.log.WithFields(ctx, changeFields(change))
	s.log.Info(ctx, "order.status_changed")
	return nil
}

// Multi fans a change out to every sink and returns the first error.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, change models.StatusChange) error {
	var first error
	for _, sink := range m {
		if err := sink.Notify(ctx, change); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func changeFields(change models.StatusChange) map[string]any {
	return map[string]any{
		"order_id":    change.OrderID.String(),
		"user_id":     change.UserID,
		"from_status": string(change.From),
		"to_status":   string(change.To),
	}
}
