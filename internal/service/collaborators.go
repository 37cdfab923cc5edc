package service

import (
	"context"

	"github.com/google/uuid"
)

// Notification kinds sent to users.
const (
	NotifyPendingApproval = "batch.pending_approval"
	NotifyBatchApproved   = "batch.approved"
	NotifyBatchRejected   = "batch.rejected"
	NotifyApprovalReset   = "batch.approval_reset"
	NotifyResubmitted     = "batch.resubmitted"
)

// Notifier hands a message to the delivery pipeline. Implementations must
// not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, users []uuid.UUID, kind string, data map[string]any) error
}

// FinalizationSink schedules the seeding of a submission that became final.
// Seeding runs later and must tolerate duplicates.
type FinalizationSink interface {
	Seed(ctx context.Context, submissionID uuid.UUID) error
}
