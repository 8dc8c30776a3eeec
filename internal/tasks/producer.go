package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stemflow/stemflow/pkg/metrics"
	"go.uber.org/zap"
)

const defaultEnqueueTimeout = 5 * time.Second

// ErrDuplicateTask is returned by a Publisher when the idempotency key was already seen.
var ErrDuplicateTask = errors.New("task already enqueued")

// Message is what a Publisher receives: the wire envelope plus the key used for de-duplication.
type Message struct {
	Key      string
	Envelope Envelope
}

// Publisher is implemented by the underlying transport.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Producer dispatches tasks synchronously. Unlike socket events, a failed
// enqueue is returned to the caller.
type Producer struct {
	publisher Publisher
	timeout   time.Duration
	now       func() time.Time
	log       *zap.SugaredLogger
}

type ProducerOption func(p *Producer)

func WithTimeout(d time.Duration) ProducerOption {
	return func(p *Producer) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithClock(now func() time.Time) ProducerOption {
	return func(p *Producer) {
		p.now = now
	}
}

func NewProducer(publisher Publisher, opts ...ProducerOption) *Producer {
	p := &Producer{
		publisher: publisher,
		timeout:   defaultEnqueueTimeout,
		now:       time.Now,
		log:       zap.S().Named("task_producer"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Producer) Enqueue(ctx context.Context, t Task) error {
	msg := Message{
		Key:      IdempotencyKey(t.JobID(), t.Kind()),
		Envelope: NewEnvelope(t, p.now()),
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.publisher.Publish(ctx, msg)
	switch {
	case err == nil:
		metrics.IncreaseTasksEnqueuedMetric(string(t.Kind()), metrics.TaskResultOK)
		p.log.Debugw("task enqueued", "task", msg.Envelope.Task, "id", msg.Envelope.ID, "job_id", t.JobID())
		return nil
	case errors.Is(err, ErrDuplicateTask):
		metrics.IncreaseTasksEnqueuedMetric(string(t.Kind()), metrics.TaskResultDedup)
		p.log.Infow("task already enqueued for job, skipping", "task", msg.Envelope.Task, "job_id", t.JobID())
		return nil
	default:
		metrics.IncreaseTasksEnqueuedMetric(string(t.Kind()), metrics.TaskResultFailure)
		return fmt.Errorf("enqueue %s for job %s: %w", t.Kind(), t.JobID(), err)
	}
}

func (p *Producer) Close() error {
	return p.publisher.Close()
}
