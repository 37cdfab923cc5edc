package service

import (
	"context"

	"collector/internal/model"
	"collector/internal/repository"

	"github.com/google/uuid"
)

// consensus holds the bits shared by every path that can complete a batch:
// a decision reaching quorum and an edit that auto-approves the last slot.
type consensus struct {
	batches     repository.BatchRepository
	submissions repository.SubmissionRepository
	audit       repository.AuditRepository
}

// finalize marks the batch final and promotes every member submission. The
// caller holds the batch lock; seeding and the owner notice are queued on
// effects.
func (c consensus) finalize(ctx context.Context, batch *model.Batch, actor uuid.UUID, effects *afterCommit) error {
	if err := c.batches.MarkFinalized(ctx, batch.ID); err != nil {
		return dependencyError(err, "failed to finalize batch")
	}
	members := batch.MemberIDs()
	if err := c.submissions.UpdateStatus(ctx, members, model.SubmissionFinal); err != nil {
		return dependencyError(err, "failed to promote batch members")
	}
	batch.Finalized = true

	if err := writeAudit(ctx, c.audit, &actor, model.ActionFinalizeBatch, batch.ID.String(), batch.Name, map[string]interface{}{
		"submissions": len(members),
	}); err != nil {
		return err
	}

	effects.seed(members...)
	effects.notify([]uuid.UUID{batch.OwnerID}, NotifyBatchApproved, map[string]any{
		"batch_id": batch.ID.String(),
		"name":     batch.Name,
	})
	return nil
}

// saveSlotChanges persists changed slots and writes one audit row per slot.
func (c consensus) saveSlotChanges(ctx context.Context, batch *model.Batch, slots []*model.ApprovalSlot, actor uuid.UUID, action string) error {
	if len(slots) == 0 {
		return nil
	}
	if err := c.batches.SaveSlots(ctx, slots); err != nil {
		return dependencyError(err, "failed to save approval slots")
	}
	for _, s := range slots {
		if err := writeAudit(ctx, c.audit, &actor, action, s.ID.String(), batch.Name, map[string]interface{}{
			"batch_id": batch.ID.String(),
			"level":    int(s.Level),
			"approver": s.ApproverID.String(),
			"status":   string(s.Status),
		}); err != nil {
			return err
		}
	}
	return nil
}

func approverIDsOf(slots []*model.ApprovalSlot) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(slots))
	ids := make([]uuid.UUID, 0, len(slots))
	for _, s := range slots {
		if !seen[s.ApproverID] {
			seen[s.ApproverID] = true
			ids = append(ids, s.ApproverID)
		}
	}
	return ids
}
