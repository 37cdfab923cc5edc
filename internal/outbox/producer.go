package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NotifyPayload is the body of a notify task.
type NotifyPayload struct {
	Users []uuid.UUID    `json:"users"`
	Kind  string         `json:"kind"`
	Data  map[string]any `json:"data,omitempty"`
}

// SeedPayload is the body of a seed task.
type SeedPayload struct {
	SubmissionID uuid.UUID `json:"submission_id"`
}

// Notifier queues user notifications.
type Notifier struct {
	queue *Queue
}

func NewNotifier(q *Queue) *Notifier {
	return &Notifier{queue: q}
}

func (n *Notifier) Notify(ctx context.Context, users []uuid.UUID, kind string, data map[string]any) error {
	if len(users) == 0 {
		return nil
	}
	payload, err := json.Marshal(NotifyPayload{Users: users, Kind: kind, Data: data})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.queue.Enqueue(ctx, Task{Kind: KindNotify, Payload: payload})
}

// SeedSink queues the seeding of final submissions. Each submission is
// seeded at most once per done-key lifetime.
type SeedSink struct {
	queue *Queue
}

func NewSeedSink(q *Queue) *SeedSink {
	return &SeedSink{queue: q}
}

func (s *SeedSink) Seed(ctx context.Context, submissionID uuid.UUID) error {
	payload, err := json.Marshal(SeedPayload{SubmissionID: submissionID})
	if err != nil {
		return fmt.Errorf("marshal seed task: %w", err)
	}
	return s.queue.Enqueue(ctx, Task{Kind: KindSeed, Key: "seed:" + submissionID.String(), Payload: payload})
}
