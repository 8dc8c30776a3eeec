package tasks

import (
	"context"

	"go.uber.org/zap"
)

// StdoutPublisher logs tasks instead of sending them. Used in dev.
type StdoutPublisher struct{}

func (s *StdoutPublisher) Publish(_ context.Context, msg Message) error {
	zap.S().Named("stdout_publisher").Infow("task published", "envelope", msg.Envelope, "key", msg.Key)
	return nil
}

func (s *StdoutPublisher) Close() error {
	return nil
}
