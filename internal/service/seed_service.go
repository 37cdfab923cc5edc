package service

import (
	"context"
	"log"
	"time"

	"collector/internal/model"
	"collector/internal/repository"

	"github.com/google/uuid"
)

// NotifySeeded tells a creator that a final submission reached the dataset.
const NotifySeeded = "submission.seeded"

// SeedService executes the seeding tasks scheduled through a FinalizationSink.
type SeedService interface {
	SeedSubmission(ctx context.Context, submissionID uuid.UUID) (bool, error)
}

type seedService struct {
	txManager   repository.TransactionManager
	submissions repository.SubmissionRepository
	audit       repository.AuditRepository
	notifier    Notifier
}

func NewSeedService(txManager repository.TransactionManager, submissions repository.SubmissionRepository, audit repository.AuditRepository, notifier Notifier) SeedService {
	return &seedService{txManager: txManager, submissions: submissions, audit: audit, notifier: notifier}
}

// SeedSubmission stamps a final submission as seeded. Running it twice is a
// no-op; it reports whether this call did the work.
func (s *seedService) SeedSubmission(ctx context.Context, submissionID uuid.UUID) (bool, error) {
	var sub *model.Submission
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		seeded, err := s.submissions.MarkSeeded(txCtx, submissionID, time.Now())
		if err != nil {
			return dependencyError(err, "failed to seed submission %s", submissionID)
		}
		if !seeded {
			return nil
		}
		if sub, err = s.submissions.FindByID(txCtx, submissionID); err != nil {
			return lookupError(err, "submission", submissionID)
		}
		return writeAudit(txCtx, s.audit, nil, model.ActionSeedSubmission, sub.ID.String(), sub.Name, map[string]interface{}{
			"uuid": sub.UUID.String(),
		})
	})
	if err != nil || sub == nil {
		return false, err
	}

	if err := s.notifier.Notify(ctx, []uuid.UUID{sub.CreatedBy}, NotifySeeded, map[string]any{
		"submission_id": sub.ID.String(),
		"name":          sub.Name,
	}); err != nil {
		log.Printf("seed notice for %s failed: %v", sub.ID, err)
	}
	return true, nil
}
