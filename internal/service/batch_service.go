package service

import (
	"context"
	"errors"
	"strings"

	"collector/internal/model"
	"collector/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AttachmentInput struct {
	Name      string `json:"name" binding:"required"`
	ObjectKey string `json:"object_key" binding:"required"`
}

type CreateBatchRequest struct {
	Name          string            `json:"name" binding:"required"`
	SubmissionIDs []string          `json:"submission_ids" binding:"required,min=1"`
	Comment       string            `json:"comment"`
	Attachments   []AttachmentInput `json:"attachments" binding:"dive"`
}

type DecisionRequest struct {
	Comment string `json:"comment"`
}

type ApprovalSlotResponse struct {
	ID               string `json:"id"`
	AdministrationID string `json:"administration_id"`
	Level            int    `json:"level"`
	ApproverID       string `json:"approver_id"`
	ApproverName     string `json:"approver_name,omitempty"`
	Status           string `json:"status"`
	Comment          string `json:"comment,omitempty"`
	UpdatedAt        string `json:"updated_at"`
}

type BatchResponse struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	OwnerID          string                 `json:"owner_id"`
	OwnerName        string                 `json:"owner_name,omitempty"`
	AdministrationID string                 `json:"administration_id"`
	FormID           string                 `json:"form_id"`
	Finalized        bool                   `json:"finalized"`
	Status           string                 `json:"status"`
	SubmissionIDs    []string               `json:"submission_ids"`
	Slots            []ApprovalSlotResponse `json:"slots"`
	CreatedAt        string                 `json:"created_at"`
	UpdatedAt        string                 `json:"updated_at"`
}

type BatchCommentResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
	Comment   string `json:"comment"`
	CreatedAt string `json:"created_at"`
}

// DecisionResult reports the effect of one approve/reject call.
type DecisionResult struct {
	SlotID       string   `json:"slot_id"`
	BatchID      string   `json:"batch_id"`
	Status       string   `json:"status"`
	Finalized    bool     `json:"finalized"`
	ResetSlotIDs []string `json:"reset_slot_ids"`
}

// ApprovalMode selects which batches an approver sees.
type ApprovalMode string

const (
	// ModePending lists batches waiting on the caller right now.
	ModePending ApprovalMode = "pending"
	// ModeSubordinate lists batches still held at a more local level.
	ModeSubordinate ApprovalMode = "subordinate"
	// ModeApproved lists batches the caller already decided or that are final.
	ModeApproved ApprovalMode = "approved"
)

func (m ApprovalMode) Valid() bool {
	return m == ModePending || m == ModeSubordinate || m == ModeApproved
}

type BatchService interface {
	CreateBatch(ctx context.Context, userID string, req CreateBatchRequest) (BatchResponse, error)
	Decide(ctx context.Context, userID, slotID string, outcome model.SlotStatus, comment string) (DecisionResult, error)
	ListActionableBatches(ctx context.Context, userID string, mode ApprovalMode, page, limit int) ([]BatchResponse, int64, error)
	ListOwnBatches(ctx context.Context, userID string, page, limit int) ([]BatchResponse, int64, error)
	GetBatch(ctx context.Context, userID, id string) (BatchResponse, error)
	ListComments(ctx context.Context, userID, id string) ([]BatchCommentResponse, error)
}

type batchService struct {
	txManager   repository.TransactionManager
	batches     repository.BatchRepository
	submissions repository.SubmissionRepository
	users       repository.UserRepository
	hierarchy   repository.HierarchyRepository
	access      repository.AccessRepository
	audit       repository.AuditRepository
	resolver    *ApproverResolver
	notifier    Notifier
	sink        FinalizationSink
}

type BatchDeps struct {
	TxManager   repository.TransactionManager
	Batches     repository.BatchRepository
	Submissions repository.SubmissionRepository
	Users       repository.UserRepository
	Hierarchy   repository.HierarchyRepository
	Access      repository.AccessRepository
	Audit       repository.AuditRepository
	Resolver    *ApproverResolver
	Notifier    Notifier
	Sink        FinalizationSink
}

func NewBatchService(d BatchDeps) BatchService {
	return &batchService{
		txManager:   d.TxManager,
		batches:     d.Batches,
		submissions: d.Submissions,
		users:       d.Users,
		hierarchy:   d.Hierarchy,
		access:      d.Access,
		audit:       d.Audit,
		resolver:    d.Resolver,
		notifier:    d.Notifier,
		sink:        d.Sink,
	}
}

func (s *batchService) consensus() consensus {
	return consensus{batches: s.batches, submissions: s.submissions, audit: s.audit}
}

// CreateBatch groups pending submissions and opens one approval slot per
// approver of the anchor submission. A batch whose slate is empty is final
// on creation. Either everything is stored and the approvers are notified,
// or nothing is.
func (s *batchService) CreateBatch(ctx context.Context, userID string, req CreateBatchRequest) (BatchResponse, error) {
	ownerID, err := parseID("user id", userID)
	if err != nil {
		return BatchResponse{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return BatchResponse{}, validationError("batch name is required")
	}
	if len(req.SubmissionIDs) == 0 {
		return BatchResponse{}, validationError("a batch needs at least one submission")
	}
	ids, err := parseIDs("submission id", req.SubmissionIDs)
	if err != nil {
		return BatchResponse{}, err
	}

	var batch model.Batch
	effects := &afterCommit{}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		owner, err := s.users.GetByID(txCtx, ownerID)
		if err != nil {
			return lookupError(err, "user", ownerID)
		}
		ownerAdm := owner.Administration
		if ownerAdm == nil {
			if ownerAdm, err = s.hierarchy.FindByID(txCtx, owner.AdministrationID); err != nil {
				return lookupError(err, "administration", owner.AdministrationID)
			}
		}

		subs, err := s.submissions.FindByIDs(txCtx, ids)
		if err != nil {
			return dependencyError(err, "failed to load submissions")
		}
		if len(subs) != len(ids) {
			return validationError("some submissions do not exist")
		}
		anchor, err := validateMembers(owner.ID, *ownerAdm, subs)
		if err != nil {
			return err
		}

		if !owner.IsPrivileged() {
			ok, err := hasCapability(txCtx, s.access, s.hierarchy, owner.ID, *anchor.Form, owner.AdministrationID, model.CapabilitySubmit)
			if err != nil {
				return err
			}
			if !ok {
				return permissionError("user %s cannot submit %s", owner.Username, anchor.Form.Name)
			}
		}

		batched, err := s.batches.BatchedSubmissionIDs(txCtx, ids)
		if err != nil {
			return dependencyError(err, "failed to check batch membership")
		}
		if len(batched) > 0 {
			return validationError("submission %s already belongs to a batch", batched[0])
		}
		exists, err := s.batches.NameExists(txCtx, name)
		if err != nil {
			return dependencyError(err, "failed to check batch name")
		}
		if exists {
			return validationError("batch name %q is already taken", name)
		}

		slate, err := s.resolver.Resolve(txCtx, anchor)
		if err != nil {
			return err
		}

		batch = model.Batch{
			ID:               uuid.New(),
			Name:             name,
			OwnerID:          owner.ID,
			Owner:            owner,
			AdministrationID: ownerAdm.ID,
			FormID:           anchor.Form.LineageID(),
			Finalized:        len(slate) == 0,
		}
		if err := s.batches.Create(txCtx, &batch); err != nil {
			if errors.Is(err, repository.ErrDuplicateBatchName) {
				return validationError("batch name %q is already taken", name)
			}
			return dependencyError(err, "failed to create batch")
		}

		for _, sub := range subs {
			batch.Members = append(batch.Members, model.BatchSubmission{BatchID: batch.ID, SubmissionID: sub.ID})
		}
		if err := s.batches.AddMembers(txCtx, batch.Members); err != nil {
			return dependencyError(err, "failed to add batch members")
		}

		for _, entry := range slate {
			batch.Slots = append(batch.Slots, model.ApprovalSlot{
				ID:               uuid.New(),
				BatchID:          batch.ID,
				AdministrationID: entry.Administration.ID,
				Level:            entry.Level,
				ApproverID:       entry.ApproverID,
				Status:           model.SlotPending,
			})
		}
		if err := s.batches.AddSlots(txCtx, batch.Slots); err != nil {
			return dependencyError(err, "failed to open approval slots")
		}

		if c := strings.TrimSpace(req.Comment); c != "" {
			if err := s.batches.AddComment(txCtx, &model.BatchComment{BatchID: batch.ID, UserID: owner.ID, Comment: c}); err != nil {
				return dependencyError(err, "failed to store batch comment")
			}
		}
		if len(req.Attachments) > 0 {
			items := make([]model.BatchAttachment, 0, len(req.Attachments))
			for _, a := range req.Attachments {
				items = append(items, model.BatchAttachment{BatchID: batch.ID, Name: a.Name, ObjectKey: a.ObjectKey, CreatedBy: owner.ID})
			}
			if err := s.batches.AddAttachments(txCtx, items); err != nil {
				return dependencyError(err, "failed to store batch attachments")
			}
		}

		if err := writeAudit(txCtx, s.audit, &owner.ID, model.ActionCreateBatch, batch.ID.String(), batch.Name, map[string]interface{}{
			"submissions": len(ids),
			"slots":       len(batch.Slots),
		}); err != nil {
			return err
		}

		if batch.Finalized {
			if err := s.submissions.UpdateStatus(txCtx, ids, model.SubmissionFinal); err != nil {
				return dependencyError(err, "failed to promote batch members")
			}
			effects.seed(ids...)
			return nil
		}

		err = s.notifier.Notify(txCtx, batch.ApproverIDs(), NotifyPendingApproval, map[string]any{
			"batch_id": batch.ID.String(),
			"name":     batch.Name,
		})
		if err != nil {
			return dependencyError(err, "failed to notify approvers")
		}
		return nil
	})
	if err != nil {
		return BatchResponse{}, err
	}

	effects.run(ctx, s.sink, s.notifier)
	return toBatchResponse(batch), nil
}

// validateMembers checks that the submissions may share a batch and returns
// the anchor, the least local member whose administration defines the slate.
func validateMembers(ownerID uuid.UUID, ownerAdm model.Administration, subs []model.Submission) (model.Submission, error) {
	anchor := subs[0]
	for _, sub := range subs {
		if sub.Status != model.SubmissionPending {
			return model.Submission{}, validationError("submission %s is %s, only pending submissions can be batched", sub.ID, sub.Status)
		}
		if sub.CreatedBy != ownerID {
			return model.Submission{}, validationError("submission %s was not created by the batch owner", sub.ID)
		}
		if sub.Form == nil || sub.Administration == nil {
			return model.Submission{}, validationError("submission %s is incomplete", sub.ID)
		}
		if sub.Administration.Level.MoreGlobalThan(anchor.Administration.Level) {
			anchor = sub
		}
	}

	lineage := anchor.Form.LineageID()
	for _, sub := range subs {
		if sub.Form.LineageID() != lineage {
			return model.Submission{}, validationError("submission %s belongs to another form", sub.ID)
		}
		if !sub.Administration.UnderPath(anchor.Administration.Path) {
			return model.Submission{}, validationError("submission %s is outside the batch's administration", sub.ID)
		}
		if !ownerAdm.Contains(*sub.Administration) {
			return model.Submission{}, validationError("submission %s is outside the owner's administration", sub.ID)
		}
	}
	return anchor, nil
}

// Decide records an approve or reject on one slot. A rejection rolls the next
// more local level back to pending; an approval that completes the quorum
// finalizes the batch and its submissions.
func (s *batchService) Decide(ctx context.Context, userID, slotID string, outcome model.SlotStatus, comment string) (DecisionResult, error) {
	actorID, err := parseID("user id", userID)
	if err != nil {
		return DecisionResult{}, err
	}
	sid, err := parseID("slot id", slotID)
	if err != nil {
		return DecisionResult{}, err
	}
	if outcome != model.SlotApproved && outcome != model.SlotRejected {
		return DecisionResult{}, validationError("invalid decision %q", outcome)
	}

	var result DecisionResult
	effects := &afterCommit{}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.batches.FindSlot(txCtx, sid)
		if err != nil {
			return lookupError(err, "approval slot", sid)
		}
		batch, err := s.batches.LockByID(txCtx, found.BatchID)
		if err != nil {
			return lookupError(err, "batch", found.BatchID)
		}
		slot := batch.SlotByID(sid)
		if slot == nil {
			return notFoundError("approval slot %s not found", sid)
		}
		if slot.ApproverID != actorID {
			return permissionError("slot %s belongs to another approver", sid)
		}
		if batch.Finalized {
			return stateError("batch %s is already final", batch.ID)
		}
		if slot.Status != model.SlotPending {
			return stateError("slot %s is already %s", sid, slot.Status)
		}

		slot.Status = outcome
		slot.Comment = strings.TrimSpace(comment)
		c := s.consensus()
		action := model.ActionApproveSlot
		if outcome == model.SlotRejected {
			action = model.ActionRejectSlot
		}
		if err := c.saveSlotChanges(txCtx, batch, []*model.ApprovalSlot{slot}, actorID, action); err != nil {
			return err
		}
		if slot.Comment != "" {
			if err := s.batches.AddComment(txCtx, &model.BatchComment{BatchID: batch.ID, UserID: actorID, Comment: slot.Comment}); err != nil {
				return dependencyError(err, "failed to store comment")
			}
		}

		result = DecisionResult{
			SlotID:       slot.ID.String(),
			BatchID:      batch.ID.String(),
			Status:       string(slot.Status),
			ResetSlotIDs: []string{},
		}
		data := map[string]any{"batch_id": batch.ID.String(), "name": batch.Name}

		if outcome == model.SlotRejected {
			reset := batch.RollbackFrom(slot.Level)
			if err := c.saveSlotChanges(txCtx, batch, reset, actorID, model.ActionResetSlot); err != nil {
				return err
			}
			for _, r := range reset {
				result.ResetSlotIDs = append(result.ResetSlotIDs, r.ID.String())
			}
			effects.notify([]uuid.UUID{batch.OwnerID}, NotifyBatchRejected, data)
			effects.notify(approverIDsOf(reset), NotifyApprovalReset, data)
			return nil
		}

		if batch.QuorumReached() {
			if err := c.finalize(txCtx, batch, actorID, effects); err != nil {
				return err
			}
			result.Finalized = true
			return nil
		}
		// wake up the next level once this one is complete
		if batch.LevelApproved(slot.Level) {
			var next []*model.ApprovalSlot
			for i := range batch.Slots {
				o := &batch.Slots[i]
				if o.Status == model.SlotPending && batch.ActionableAt(o.Level) {
					next = append(next, o)
				}
			}
			effects.notify(approverIDsOf(next), NotifyPendingApproval, data)
		}
		return nil
	})
	if err != nil {
		return DecisionResult{}, err
	}

	effects.run(ctx, s.sink, s.notifier)
	return result, nil
}

// ListActionableBatches lists the caller's batches for one approval view.
func (s *batchService) ListActionableBatches(ctx context.Context, userID string, mode ApprovalMode, page, limit int) ([]BatchResponse, int64, error) {
	uid, err := parseID("user id", userID)
	if err != nil {
		return nil, 0, err
	}
	if !mode.Valid() {
		return nil, 0, validationError("unknown approval mode %q", mode)
	}
	batches, err := s.batches.ListByApprover(ctx, uid)
	if err != nil {
		return nil, 0, dependencyError(err, "failed to list batches")
	}

	matched := make([]model.Batch, 0, len(batches))
	for i := range batches {
		if visibleIn(&batches[i], uid, mode) {
			matched = append(matched, batches[i])
		}
	}

	total := int64(len(matched))
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	res := make([]BatchResponse, 0, end-start)
	for _, b := range matched[start:end] {
		res = append(res, toBatchResponse(b))
	}
	return res, total, nil
}

func visibleIn(b *model.Batch, approver uuid.UUID, mode ApprovalMode) bool {
	for _, slot := range b.SlotsFor(approver) {
		switch mode {
		case ModePending:
			if !b.Finalized && slot.Status == model.SlotPending && b.ActionableAt(slot.Level) {
				return true
			}
		case ModeSubordinate:
			if !b.Finalized && slot.Status == model.SlotPending && b.HeldBelow(slot.Level) {
				return true
			}
		case ModeApproved:
			if b.Finalized || slot.Status != model.SlotPending {
				return true
			}
		}
	}
	return false
}

func (s *batchService) ListOwnBatches(ctx context.Context, userID string, page, limit int) ([]BatchResponse, int64, error) {
	uid, err := parseID("user id", userID)
	if err != nil {
		return nil, 0, err
	}
	batches, total, err := s.batches.ListByOwner(ctx, uid, page, limit)
	if err != nil {
		return nil, 0, dependencyError(err, "failed to list batches")
	}
	res := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		res = append(res, toBatchResponse(b))
	}
	return res, total, nil
}

func (s *batchService) GetBatch(ctx context.Context, userID, id string) (BatchResponse, error) {
	batch, err := s.loadVisible(ctx, userID, id)
	if err != nil {
		return BatchResponse{}, err
	}
	return toBatchResponse(*batch), nil
}

func (s *batchService) ListComments(ctx context.Context, userID, id string) ([]BatchCommentResponse, error) {
	batch, err := s.loadVisible(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.batches.ListComments(ctx, batch.ID)
	if err != nil {
		return nil, dependencyError(err, "failed to list comments")
	}
	res := make([]BatchCommentResponse, 0, len(comments))
	for _, c := range comments {
		item := BatchCommentResponse{
			ID:        c.ID.String(),
			UserID:    c.UserID.String(),
			Comment:   c.Comment,
			CreatedAt: formatTime(c.CreatedAt),
		}
		if c.User != nil {
			item.Username = c.User.Username
		}
		res = append(res, item)
	}
	return res, nil
}

// loadVisible returns a batch the caller owns or holds a slot on.
func (s *batchService) loadVisible(ctx context.Context, userID, id string) (*model.Batch, error) {
	uid, err := parseID("user id", userID)
	if err != nil {
		return nil, err
	}
	bid, err := parseID("batch id", id)
	if err != nil {
		return nil, err
	}
	batch, err := s.batches.FindByID(ctx, bid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("batch %s not found", bid)
		}
		return nil, dependencyError(err, "failed to load batch %s", bid)
	}
	if batch.OwnerID != uid && len(batch.SlotsFor(uid)) == 0 {
		user, err := s.users.GetByID(ctx, uid)
		if err != nil {
			return nil, lookupError(err, "user", uid)
		}
		if !user.IsPrivileged() {
			return nil, permissionError("batch %s is not visible to you", bid)
		}
	}
	return batch, nil
}

// batchStatus summarizes a batch for its owner.
func batchStatus(b model.Batch) string {
	if b.Finalized {
		return "approved"
	}
	for _, s := range b.Slots {
		if s.Status == model.SlotRejected {
			return "rejected"
		}
	}
	return "pending"
}

func toBatchResponse(b model.Batch) BatchResponse {
	res := BatchResponse{
		ID:               b.ID.String(),
		Name:             b.Name,
		OwnerID:          b.OwnerID.String(),
		AdministrationID: b.AdministrationID.String(),
		FormID:           b.FormID.String(),
		Finalized:        b.Finalized,
		Status:           batchStatus(b),
		SubmissionIDs:    make([]string, 0, len(b.Members)),
		Slots:            make([]ApprovalSlotResponse, 0, len(b.Slots)),
		CreatedAt:        formatTime(b.CreatedAt),
		UpdatedAt:        formatTime(b.UpdatedAt),
	}
	if b.Owner != nil {
		res.OwnerName = b.Owner.Username
	}
	for _, m := range b.Members {
		res.SubmissionIDs = append(res.SubmissionIDs, m.SubmissionID.String())
	}
	for _, s := range b.Slots {
		slot := ApprovalSlotResponse{
			ID:               s.ID.String(),
			AdministrationID: s.AdministrationID.String(),
			Level:            int(s.Level),
			ApproverID:       s.ApproverID.String(),
			Status:           string(s.Status),
			Comment:          s.Comment,
			UpdatedAt:        formatTime(s.UpdatedAt),
		}
		if s.Approver != nil {
			slot.ApproverName = s.Approver.Username
		}
		res.Slots = append(res.Slots, slot)
	}
	return res
}
