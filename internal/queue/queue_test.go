package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	tasks []Task
	err   error
}

func (h *recordingHandler) Handle(_ context.Context, task Task) error {
	h.tasks = append(h.tasks, task)
	return h.err
}

func newTestQueue(t *testing.T, handler TaskHandler) (*Producer, *Consumer, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	producer := NewProducer(client, "test:tasks")
	consumer := NewConsumer(client, "test:tasks", "workers", "w1", time.Second, zerolog.Nop(), handler)
	require.NoError(t, consumer.EnsureGroup(context.Background()))
	return producer, consumer, client
}

func TestDecodeTask(t *testing.T) {
	task, err := DecodeTask(map[string]any{"type": TaskEmail, "payload": `{"to":"a@x.com"}`})
	require.NoError(t, err)
	assert.Equal(t, TaskEmail, task.Type)
	assert.JSONEq(t, `{"to":"a@x.com"}`, string(task.Payload))

	_, err = DecodeTask(map[string]any{"payload": "{}"})
	assert.Error(t, err)
}

func TestEnsureGroup_Idempotent(t *testing.T) {
	_, consumer, _ := newTestQueue(t, &recordingHandler{})
	assert.NoError(t, consumer.EnsureGroup(context.Background()))
}

func TestProduceConsume_AcksHandledTasks(t *testing.T) {
	handler := &recordingHandler{}
	producer, consumer, client := newTestQueue(t, handler)
	ctx := context.Background()

	require.NoError(t, producer.Enqueue(ctx, TaskEmail, map[string]string{"to": "a@x.com"}))
	require.NoError(t, producer.Enqueue(ctx, TaskPruneLoginEvents, nil))

	require.NoError(t, consumer.read(ctx, time.Millisecond))
	require.Len(t, handler.tasks, 2)
	assert.Equal(t, TaskEmail, handler.tasks[0].Type)

	var body map[string]string
	require.NoError(t, json.Unmarshal(handler.tasks[0].Payload, &body))
	assert.Equal(t, "a@x.com", body["to"])

	pending, err := client.XPending(ctx, "test:tasks", "workers").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestProduceConsume_FailedTaskStaysPending(t *testing.T) {
	handler := &recordingHandler{err: errors.New("smtp down")}
	producer, consumer, client := newTestQueue(t, handler)
	ctx := context.Background()

	require.NoError(t, producer.Enqueue(ctx, TaskEmail, map[string]string{"to": "a@x.com"}))
	require.NoError(t, consumer.read(ctx, time.Millisecond))

	pending, err := client.XPending(ctx, "test:tasks", "workers").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
}
