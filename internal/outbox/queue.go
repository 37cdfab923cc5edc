// Package outbox carries the work that must happen after a transaction
// commits: approver notifications and the seeding of final submissions. Tasks
// live in a Redis list and are drained by a Worker.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Task kinds.
const (
	KindNotify = "notify"
	KindSeed   = "seed"
)

// Task is one unit of deferred work. Key, when set, makes the task
// idempotent: once a task with that key succeeded, later copies are skipped.
type Task struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Key        string          `json:"key,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	LastError  string          `json:"last_error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Queue is a FIFO of tasks in a Redis list. Producers LPUSH, the worker
// BRPOPs. Failed tasks past their attempts go to "<name>:dead".
type Queue struct {
	client *redis.Client
	name   string
}

// NewQueue connects to Redis and checks the connection.
func NewQueue(redisURL, name string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewQueueWithClient(client, name), nil
}

// NewQueueWithClient creates a queue on an existing client.
func NewQueueWithClient(client *redis.Client, name string) *Queue {
	return &Queue{client: client, name: name}
}

func (q *Queue) deadName() string {
	return q.name + ":dead"
}

func (q *Queue) doneKey(key string) string {
	return q.name + ":done:" + key
}

// Enqueue appends a task. An empty ID or EnqueuedAt is filled in.
func (q *Queue) Enqueue(ctx context.Context, t Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("enqueue %s task: %w", t.Kind, err)
	}
	return nil
}

// Dequeue waits up to timeout for a task. It returns nil when none arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	res, err := q.client.BRPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	// res is [list, value]
	var t Task
	if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &t, nil
}

// Len returns the number of waiting tasks.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}

func (q *Queue) bury(ctx context.Context, t Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return q.client.LPush(ctx, q.deadName(), data).Err()
}

// DeadLetters returns the tasks that ran out of attempts, oldest first.
func (q *Queue) DeadLetters(ctx context.Context) ([]Task, error) {
	raw, err := q.client.LRange(ctx, q.deadName(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	tasks := make([]Task, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var t Task
		if err := json.Unmarshal([]byte(raw[i]), &t); err != nil {
			return nil, fmt.Errorf("unmarshal dead letter: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (q *Queue) isDone(ctx context.Context, key string) (bool, error) {
	n, err := q.client.Exists(ctx, q.doneKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q *Queue) markDone(ctx context.Context, key string, ttl time.Duration) error {
	return q.client.SetNX(ctx, q.doneKey(key), time.Now().UTC().Format(time.RFC3339), ttl).Err()
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) Close() error {
	return q.client.Close()
}
