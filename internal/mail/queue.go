package mail

import (
	"context"

	"plannr/internal/queue"
)

// QueueMailer hands messages to the worker through the task stream. A nil
// error means the message was enqueued, not delivered.
type QueueMailer struct {
	producer *queue.Producer
}

func NewQueueMailer(producer *queue.Producer) *QueueMailer {
	return &QueueMailer{producer: producer}
}

func (m *QueueMailer) Send(ctx context.Context, msg Message) error {
	return m.producer.Enqueue(ctx, queue.TaskEmail, msg)
}
