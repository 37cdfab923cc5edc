package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// HandlerFunc executes one task. Returning an error schedules a retry.
type HandlerFunc func(ctx context.Context, t Task) error

type WorkerConfig struct {
	MaxAttempts int
	PollTimeout time.Duration
	DoneTTL     time.Duration
}

// Worker drains a Queue, dispatching tasks to handlers by kind.
type Worker struct {
	queue    *Queue
	cfg      WorkerConfig
	handlers map[string]HandlerFunc
}

func NewWorker(q *Queue, cfg WorkerConfig) *Worker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Second
	}
	return &Worker{queue: q, cfg: cfg, handlers: make(map[string]HandlerFunc)}
}

// Handle registers the handler for a task kind.
func (w *Worker) Handle(kind string, h HandlerFunc) {
	w.handlers[kind] = h
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("outbox worker started on %s", w.queue.name)
	for {
		if ctx.Err() != nil {
			log.Println("outbox worker stopped")
			return
		}
		if _, err := w.ProcessOne(ctx); err != nil && ctx.Err() == nil {
			log.Printf("outbox: %v", err)
			time.Sleep(time.Second)
		}
	}
}

// ProcessOne handles at most one task. It reports whether a task was taken.
// Handler failures are not returned; they are retried or buried.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	t, err := w.queue.Dequeue(ctx, w.cfg.PollTimeout)
	if err != nil || t == nil {
		return false, err
	}

	if t.Key != "" {
		done, err := w.queue.isDone(ctx, t.Key)
		if err != nil {
			return true, w.retry(ctx, *t, err)
		}
		if done {
			return true, nil
		}
	}

	h, ok := w.handlers[t.Kind]
	if !ok {
		t.LastError = "no handler for kind " + t.Kind
		log.Printf("outbox: burying task %s: %s", t.ID, t.LastError)
		return true, w.queue.bury(ctx, *t)
	}

	if err := h(ctx, *t); err != nil {
		return true, w.retry(ctx, *t, err)
	}

	if t.Key != "" {
		if err := w.queue.markDone(ctx, t.Key, w.cfg.DoneTTL); err != nil {
			log.Printf("outbox: task %s ran but could not be marked done: %v", t.ID, err)
		}
	}
	return true, nil
}

func (w *Worker) retry(ctx context.Context, t Task, cause error) error {
	t.Attempt++
	t.LastError = cause.Error()
	if t.Attempt >= w.cfg.MaxAttempts {
		log.Printf("outbox: task %s (%s) gave up after %d attempts: %v", t.ID, t.Kind, t.Attempt, cause)
		return w.queue.bury(ctx, t)
	}
	log.Printf("outbox: task %s (%s) failed, attempt %d: %v", t.ID, t.Kind, t.Attempt, cause)
	return w.queue.Enqueue(ctx, t)
}

// Deliverer pushes notifications to connected users.
type Deliverer interface {
	Deliver(ctx context.Context, users []uuid.UUID, kind string, data map[string]any) error
}

// Seeder runs the seeding of one submission.
type Seeder interface {
	SeedSubmission(ctx context.Context, submissionID uuid.UUID) (bool, error)
}

// NotifyHandler delivers notify tasks through d.
func NotifyHandler(d Deliverer) HandlerFunc {
	return func(ctx context.Context, t Task) error {
		var p NotifyPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		return d.Deliver(ctx, p.Users, p.Kind, p.Data)
	}
}

// SeedHandler runs seed tasks through s.
func SeedHandler(s Seeder) HandlerFunc {
	return func(ctx context.Context, t Task) error {
		var p SeedPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return fmt.Errorf("decode seed task: %w", err)
		}
		if p.SubmissionID == uuid.Nil {
			return errors.New("seed task without submission id")
		}
		_, err := s.SeedSubmission(ctx, p.SubmissionID)
		return err
	}
}
