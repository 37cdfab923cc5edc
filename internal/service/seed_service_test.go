package service

import (
	"context"
	"testing"

	"collector/internal/model"

	"github.com/google/uuid"
)

func TestSeedSubmissionRunsOnce(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	sub, err := w.submissions.CreateSubmission(ctx, w.admin.ID.String(), CreateSubmissionRequest{
		FormID:           w.form.ID.String(),
		AdministrationID: w.village.ID.String(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission failed: %v", err)
	}
	id := uuid.MustParse(sub.ID)

	seeded, err := w.seeds.SeedSubmission(ctx, id)
	if err != nil || !seeded {
		t.Fatalf("expected first seeding to run, got %v / %v", seeded, err)
	}
	if w.db.subs[id].SeededAt == nil {
		t.Error("seeded_at should be stamped")
	}
	if w.auditCount(model.ActionSeedSubmission) != 1 {
		t.Error("expected a SEED_SUBMISSION entry")
	}
	for _, l := range w.db.audit {
		if l.Action == model.ActionSeedSubmission && l.UserID != nil {
			t.Error("worker entries carry no user")
		}
	}
	if !containsKind(w.notifier.kinds(), NotifySeeded) {
		t.Errorf("creator should be told, got %v", w.notifier.kinds())
	}

	seeded, err = w.seeds.SeedSubmission(ctx, id)
	if err != nil || seeded {
		t.Fatalf("second seeding must be a no-op, got %v / %v", seeded, err)
	}
	if w.auditCount(model.ActionSeedSubmission) != 1 {
		t.Error("duplicate seeding must not write audit rows")
	}
}

func TestSeedSubmissionIgnoresPending(t *testing.T) {
	w := newWorld(t)
	sub := w.submit(t, w.village, false)

	seeded, err := w.seeds.SeedSubmission(context.Background(), uuid.MustParse(sub.ID))
	if err != nil || seeded {
		t.Fatalf("pending submissions are not seeded, got %v / %v", seeded, err)
	}
}
