package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

func setupTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	q, err := NewQueue("redis://"+s.Addr(), "outbox")
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q, s
}

func TestNewQueueRejectsBadURL(t *testing.T) {
	if _, err := NewQueue("://nope", "outbox"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	for _, kind := range []string{"first", "second"} {
		if err := q.Enqueue(ctx, Task{Kind: kind}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	if n, _ := q.Len(ctx); n != 2 {
		t.Fatalf("expected 2 waiting tasks, got %d", n)
	}

	got, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if got == nil || got.Kind != "first" {
		t.Fatalf("expected first task, got %+v", got)
	}
	if got.ID == "" || got.EnqueuedAt.IsZero() {
		t.Errorf("expected id and timestamp to be filled in, got %+v", got)
	}
}

func TestNotifierEnqueuesPayload(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()
	user := uuid.New()

	n := NewNotifier(q)
	if err := n.Notify(ctx, []uuid.UUID{user}, "batch.approved", map[string]any{"name": "B1"}); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	task, err := q.Dequeue(ctx, time.Second)
	if err != nil || task == nil {
		t.Fatalf("expected a task, got %v / %v", task, err)
	}
	if task.Kind != KindNotify {
		t.Errorf("expected kind %q, got %q", KindNotify, task.Kind)
	}
	var p NotifyPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if len(p.Users) != 1 || p.Users[0] != user || p.Kind != "batch.approved" {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestNotifierSkipsEmptyAudience(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	if err := NewNotifier(q).Notify(ctx, nil, "batch.approved", nil); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("expected nothing queued, got %d", n)
	}
}

func TestSeedSinkUsesSubmissionKey(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()
	id := uuid.New()

	if err := NewSeedSink(q).Seed(ctx, id); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	task, _ := q.Dequeue(ctx, time.Second)
	if task == nil {
		t.Fatal("expected a task")
	}
	if task.Kind != KindSeed || task.Key != "seed:"+id.String() {
		t.Errorf("unexpected task %+v", task)
	}
}

func TestEnqueueFailsWhenRedisIsDown(t *testing.T) {
	q, s := setupTestQueue(t)
	s.Close()

	if err := q.Enqueue(context.Background(), Task{Kind: KindNotify}); err == nil {
		t.Fatal("expected enqueue to fail")
	}
}
