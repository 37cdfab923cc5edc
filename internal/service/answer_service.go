package service

import (
	"context"
	"encoding/json"
	"errors"

	"collector/internal/model"
	"collector/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AnswerInput struct {
	QuestionID string   `json:"question_id" binding:"required"`
	Index      int      `json:"index" binding:"gte=0"`
	Text       *string  `json:"text"`
	Number     *string  `json:"number"`
	Options    []string `json:"options"`
}

type ReplaceAnswersRequest struct {
	Answers []AnswerInput `json:"answers" binding:"required,min=1,dive"`
}

type AnswerResponse struct {
	ID           string         `json:"id"`
	SubmissionID string         `json:"submission_id"`
	QuestionID   string         `json:"question_id"`
	Index        int            `json:"index"`
	Text         *string        `json:"text"`
	Number       *string        `json:"number"`
	Options      datatypes.JSON `json:"options,omitempty" swaggertype:"array,string"`
	UpdatedBy    *string        `json:"updated_by"`
	UpdatedAt    string         `json:"updated_at"`
}

type AnswerHistoryResponse struct {
	ID         string         `json:"id"`
	AnswerID   string         `json:"answer_id"`
	QuestionID string         `json:"question_id"`
	Index      int            `json:"index"`
	Text       *string        `json:"text"`
	Number     *string        `json:"number"`
	Options    datatypes.JSON `json:"options,omitempty" swaggertype:"array,string"`
	EditedBy   string         `json:"edited_by"`
	EditorName string         `json:"editor_name,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

type AnswerService interface {
	ReplaceAnswer(ctx context.Context, userID, submissionID string, input AnswerInput) (AnswerResponse, error)
	ReplaceAnswers(ctx context.Context, userID, submissionID string, inputs []AnswerInput) ([]AnswerResponse, error)
	ListAnswers(ctx context.Context, submissionID string) ([]AnswerResponse, error)
	ListHistory(ctx context.Context, submissionID string) ([]AnswerHistoryResponse, error)
}

// answerValue is a validated AnswerInput.
type answerValue struct {
	QuestionID uuid.UUID
	Index      int
	Text       *string
	Number     decimal.NullDecimal
	Options    datatypes.JSON
}

func (in AnswerInput) value() (answerValue, error) {
	qid, err := parseID("question_id", in.QuestionID)
	if err != nil {
		return answerValue{}, err
	}
	if in.Index < 0 {
		return answerValue{}, validationError("answer index must not be negative")
	}
	v := answerValue{QuestionID: qid, Index: in.Index, Text: in.Text}
	if in.Number != nil {
		d, err := decimal.NewFromString(*in.Number)
		if err != nil {
			return answerValue{}, validationError("invalid number %q for question %s", *in.Number, qid)
		}
		v.Number = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	if in.Options != nil {
		raw, err := json.Marshal(in.Options)
		if err != nil {
			return answerValue{}, validationError("invalid options for question %s", qid)
		}
		v.Options = datatypes.JSON(raw)
	}
	return v, nil
}

func (v answerValue) answer(submissionID, by uuid.UUID) model.Answer {
	return model.Answer{
		SubmissionID: submissionID,
		QuestionID:   v.QuestionID,
		Index:        v.Index,
		Text:         v.Text,
		Number:       v.Number,
		Options:      v.Options,
		CreatedBy:    by,
	}
}

type answerService struct {
	txManager   repository.TransactionManager
	submissions repository.SubmissionRepository
	answers     repository.AnswerRepository
	forms       repository.FormRepository
	batches     repository.BatchRepository
	hierarchy   repository.HierarchyRepository
	access      repository.AccessRepository
	audit       repository.AuditRepository
	sink        FinalizationSink
	notifier    Notifier
}

type AnswerDeps struct {
	TxManager   repository.TransactionManager
	Submissions repository.SubmissionRepository
	Answers     repository.AnswerRepository
	Forms       repository.FormRepository
	Batches     repository.BatchRepository
	Hierarchy   repository.HierarchyRepository
	Access      repository.AccessRepository
	Audit       repository.AuditRepository
	Sink        FinalizationSink
	Notifier    Notifier
}

func NewAnswerService(d AnswerDeps) AnswerService {
	return &answerService{
		txManager:   d.TxManager,
		submissions: d.Submissions,
		answers:     d.Answers,
		forms:       d.Forms,
		batches:     d.Batches,
		hierarchy:   d.Hierarchy,
		access:      d.Access,
		audit:       d.Audit,
		sink:        d.Sink,
		notifier:    d.Notifier,
	}
}

func (s *answerService) ReplaceAnswer(ctx context.Context, userID, submissionID string, input AnswerInput) (AnswerResponse, error) {
	res, err := s.ReplaceAnswers(ctx, userID, submissionID, []AnswerInput{input})
	if err != nil {
		return AnswerResponse{}, err
	}
	return res[0], nil
}

// ReplaceAnswers applies a set of answer edits atomically. Every overwritten
// value is kept in the history. When the submission sits in an open batch the
// batch is reopened: rejected slots return to pending, the editor's own
// rejected slot is approved, and the batch is finalized if that completes
// the quorum.
func (s *answerService) ReplaceAnswers(ctx context.Context, userID, submissionID string, inputs []AnswerInput) ([]AnswerResponse, error) {
	editorID, err := parseID("user id", userID)
	if err != nil {
		return nil, err
	}
	subID, err := parseID("submission id", submissionID)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, validationError("no answers given")
	}
	values := make([]answerValue, 0, len(inputs))
	for _, in := range inputs {
		v, err := in.value()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	saved := make([]model.Answer, 0, len(values))
	effects := &afterCommit{}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		sub, err := s.submissions.FindByID(txCtx, subID)
		if err != nil {
			return lookupError(err, "submission", subID)
		}
		form := sub.Form
		if form == nil {
			if form, err = s.forms.FindByID(txCtx, sub.FormID); err != nil {
				return lookupError(err, "form", sub.FormID)
			}
		}

		var batch *model.Batch
		batchID, err := s.batches.FindOpenBatchID(txCtx, sub.ID)
		if err != nil {
			return dependencyError(err, "failed to look up batch of submission %s", sub.ID)
		}
		if batchID != nil {
			if batch, err = s.batches.LockByID(txCtx, *batchID); err != nil {
				return dependencyError(err, "failed to lock batch %s", *batchID)
			}
		}

		if err := s.authorizeEdit(txCtx, editorID, *sub, *form, batch); err != nil {
			return err
		}

		for _, v := range values {
			if sub.Status == model.SubmissionFinal && form.IsLocked(v.QuestionID) {
				return stateError("question %s is locked on final submissions", v.QuestionID)
			}
			answer, err := s.replaceOne(txCtx, sub.ID, editorID, v)
			if err != nil {
				return err
			}
			saved = append(saved, answer)
			if err := writeAudit(txCtx, s.audit, &editorID, model.ActionReplaceAnswer, answer.ID.String(), sub.Name, map[string]interface{}{
				"submission_id": sub.ID.String(),
				"question_id":   v.QuestionID.String(),
				"index":         v.Index,
			}); err != nil {
				return err
			}
		}

		sub.UpdatedBy = &editorID
		if err := s.submissions.Update(txCtx, sub); err != nil {
			return dependencyError(err, "failed to touch submission")
		}

		if batch != nil && !batch.Finalized {
			return s.reopen(txCtx, batch, *sub, editorID, effects)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	effects.run(ctx, s.sink, s.notifier)
	res := make([]AnswerResponse, 0, len(saved))
	for _, a := range saved {
		res = append(res, toAnswerResponse(a))
	}
	return res, nil
}

// authorizeEdit allows the creator, any approver on the submission's open
// batch, and holders of the edit capability over its administration.
func (s *answerService) authorizeEdit(ctx context.Context, editorID uuid.UUID, sub model.Submission, form model.Form, batch *model.Batch) error {
	if sub.CreatedBy == editorID {
		return nil
	}
	if batch != nil && len(batch.SlotsFor(editorID)) > 0 {
		return nil
	}
	if sub.Status == model.SubmissionDraft {
		return permissionError("draft %s can only be edited by its creator", sub.ID)
	}
	ok, err := hasCapability(ctx, s.access, s.hierarchy, editorID, form, sub.AdministrationID, model.CapabilityEdit)
	if err != nil {
		return err
	}
	if !ok {
		return permissionError("user %s cannot edit submission %s", editorID, sub.ID)
	}
	return nil
}

// replaceOne upserts a single answer, snapshotting the previous value first.
func (s *answerService) replaceOne(ctx context.Context, submissionID, editorID uuid.UUID, v answerValue) (model.Answer, error) {
	current, err := s.answers.Find(ctx, submissionID, v.QuestionID, v.Index)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		answer := v.answer(submissionID, editorID)
		if err := s.answers.Create(ctx, &answer); err != nil {
			return model.Answer{}, dependencyError(err, "failed to store answer %s", v.QuestionID)
		}
		return answer, nil
	}
	if err != nil {
		return model.Answer{}, dependencyError(err, "failed to load answer %s", v.QuestionID)
	}

	snapshot := current.Snapshot(editorID)
	if err := s.answers.CreateHistory(ctx, &snapshot); err != nil {
		return model.Answer{}, dependencyError(err, "failed to record answer history")
	}
	current.Text = v.Text
	current.Number = v.Number
	current.Options = v.Options
	current.UpdatedBy = &editorID
	if err := s.answers.Update(ctx, current); err != nil {
		return model.Answer{}, dependencyError(err, "failed to update answer %s", v.QuestionID)
	}
	return *current, nil
}

func (s *answerService) reopen(ctx context.Context, batch *model.Batch, sub model.Submission, editorID uuid.UUID, effects *afterCommit) error {
	ancestors, err := s.hierarchy.Ancestors(ctx, sub.AdministrationID)
	if err != nil {
		return lookupError(err, "ancestors of administration", sub.AdministrationID)
	}
	closest, _ := batch.ClosestSlotAdministration(ancestors)
	changed := batch.ReopenAfterEdit(editorID, closest)
	if len(changed) == 0 {
		return nil
	}
	var approved, reset []*model.ApprovalSlot
	for _, slot := range changed {
		if slot.Status == model.SlotApproved {
			approved = append(approved, slot)
		} else {
			reset = append(reset, slot)
		}
	}

	c := consensus{batches: s.batches, submissions: s.submissions, audit: s.audit}
	if err := c.saveSlotChanges(ctx, batch, approved, editorID, model.ActionAutoApproveSlot); err != nil {
		return err
	}
	if err := c.saveSlotChanges(ctx, batch, reset, editorID, model.ActionResetSlot); err != nil {
		return err
	}
	effects.notify(approverIDsOf(reset), NotifyResubmitted, map[string]any{
		"batch_id": batch.ID.String(),
		"name":     batch.Name,
	})

	if batch.QuorumReached() {
		return c.finalize(ctx, batch, editorID, effects)
	}
	return nil
}

func (s *answerService) ListAnswers(ctx context.Context, submissionID string) ([]AnswerResponse, error) {
	subID, err := parseID("submission id", submissionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.submissions.FindByID(ctx, subID); err != nil {
		return nil, lookupError(err, "submission", subID)
	}
	answers, err := s.answers.ListBySubmission(ctx, subID)
	if err != nil {
		return nil, dependencyError(err, "failed to list answers")
	}
	res := make([]AnswerResponse, 0, len(answers))
	for _, a := range answers {
		res = append(res, toAnswerResponse(a))
	}
	return res, nil
}

// ListHistory returns the replaced values of a submission, newest first.
func (s *answerService) ListHistory(ctx context.Context, submissionID string) ([]AnswerHistoryResponse, error) {
	subID, err := parseID("submission id", submissionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.submissions.FindByID(ctx, subID); err != nil {
		return nil, lookupError(err, "submission", subID)
	}
	history, err := s.answers.ListHistory(ctx, subID)
	if err != nil {
		return nil, dependencyError(err, "failed to list answer history")
	}
	res := make([]AnswerHistoryResponse, 0, len(history))
	for _, h := range history {
		item := AnswerHistoryResponse{
			ID:         h.ID.String(),
			AnswerID:   h.AnswerID.String(),
			QuestionID: h.QuestionID.String(),
			Index:      h.Index,
			Text:       h.Text,
			Number:     numberString(h.Number),
			Options:    h.Options,
			EditedBy:   h.EditedBy.String(),
			CreatedAt:  formatTime(h.CreatedAt),
		}
		if h.Editor != nil {
			item.EditorName = h.Editor.Username
		}
		res = append(res, item)
	}
	return res, nil
}

func numberString(n decimal.NullDecimal) *string {
	if !n.Valid {
		return nil
	}
	s := n.Decimal.String()
	return &s
}

func toAnswerResponse(a model.Answer) AnswerResponse {
	res := AnswerResponse{
		ID:           a.ID.String(),
		SubmissionID: a.SubmissionID.String(),
		QuestionID:   a.QuestionID.String(),
		Index:        a.Index,
		Text:         a.Text,
		Number:       numberString(a.Number),
		Options:      a.Options,
		UpdatedAt:    formatTime(a.UpdatedAt),
	}
	if a.UpdatedBy != nil {
		by := a.UpdatedBy.String()
		res.UpdatedBy = &by
	}
	return res
}
