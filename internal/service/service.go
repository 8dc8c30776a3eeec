package service

import (
	"context"

	"github.com/stemflow/stemflow/internal/tasks"
)

// TaskProducer hands work to the out-of-process worker.
type TaskProducer interface {
	Enqueue(ctx context.Context, t tasks.Task) error
}
