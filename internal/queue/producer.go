package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	TaskEmail            = "email"
	TaskPruneLoginEvents = "prune_login_events"
	TaskReconcilePending = "reconcile_pending"
)

// Task is one stream entry. Payload is the JSON body specific to Type.
type Task struct {
	Type    string
	Payload json.RawMessage
}

type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) Enqueue(ctx context.Context, taskType string, payload any) error {
	body := []byte("{}")
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", taskType, err)
		}
		body = data
	}

	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":    taskType,
			"payload": string(body),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

func DecodeTask(values map[string]any) (Task, error) {
	taskType, _ := values["type"].(string)
	if taskType == "" {
		return Task{}, fmt.Errorf("task type missing")
	}
	raw, _ := values["payload"].(string)
	if raw == "" {
		raw = "{}"
	}
	return Task{Type: taskType, Payload: json.RawMessage(raw)}, nil
}
