package service

import (
	"context"
	"strings"

	"collector/internal/model"
	"collector/internal/repository"

	"github.com/google/uuid"
)

type CreateSubmissionRequest struct {
	FormID           string        `json:"form_id" binding:"required"`
	AdministrationID string        `json:"administration_id"`
	ParentID         string        `json:"parent_id"`
	Name             string        `json:"name"`
	Draft            bool          `json:"draft"`
	// IsDraft and IsPending are the older client flags; both set is rejected.
	IsDraft          bool          `json:"is_draft"`
	IsPending        bool          `json:"is_pending"`
	Answers          []AnswerInput `json:"answers" binding:"dive"`
}

// draft reports whether the request asks for a draft.
func (r CreateSubmissionRequest) draft() (bool, error) {
	requested, err := model.StatusFromFlags(r.Draft || r.IsDraft, r.IsPending)
	if err != nil {
		return false, validationError("%v", err)
	}
	return requested == model.SubmissionDraft, nil
}

type SubmissionResponse struct {
	ID                 string  `json:"id"`
	FormID             string  `json:"form_id"`
	AdministrationID   string  `json:"administration_id"`
	AdministrationName string  `json:"administration_name,omitempty"`
	ParentID           *string `json:"parent_id"`
	UUID               string  `json:"uuid"`
	Name               string  `json:"name"`
	Status             string  `json:"status"`
	IsDraft            bool    `json:"is_draft"`
	IsPending          bool    `json:"is_pending"`
	CreatedBy          string  `json:"created_by"`
	SeededAt           *string `json:"seeded_at"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

type SubmissionListFilter struct {
	FormID string
	Status string
	Mine   bool
	Page   int
	Limit  int
}

type SubmissionService interface {
	CreateSubmission(ctx context.Context, userID string, req CreateSubmissionRequest) (SubmissionResponse, error)
	PublishSubmission(ctx context.Context, userID, id string) (SubmissionResponse, error)
	GetSubmission(ctx context.Context, id string) (SubmissionResponse, error)
	ListSubmissions(ctx context.Context, userID string, filter SubmissionListFilter) ([]SubmissionResponse, int64, error)
	ListUnbatched(ctx context.Context, userID, formID string) ([]SubmissionResponse, error)
}

type submissionService struct {
	txManager   repository.TransactionManager
	submissions repository.SubmissionRepository
	answers     repository.AnswerRepository
	forms       repository.FormRepository
	users       repository.UserRepository
	hierarchy   repository.HierarchyRepository
	access      repository.AccessRepository
	audit       repository.AuditRepository
	resolver    *ApproverResolver
	sink        FinalizationSink
	notifier    Notifier
}

type SubmissionDeps struct {
	TxManager   repository.TransactionManager
	Submissions repository.SubmissionRepository
	Answers     repository.AnswerRepository
	Forms       repository.FormRepository
	Users       repository.UserRepository
	Hierarchy   repository.HierarchyRepository
	Access      repository.AccessRepository
	Audit       repository.AuditRepository
	Resolver    *ApproverResolver
	Sink        FinalizationSink
	Notifier    Notifier
}

func NewSubmissionService(d SubmissionDeps) SubmissionService {
	return &submissionService{
		txManager:   d.TxManager,
		submissions: d.Submissions,
		answers:     d.Answers,
		forms:       d.Forms,
		users:       d.Users,
		hierarchy:   d.Hierarchy,
		access:      d.Access,
		audit:       d.Audit,
		resolver:    d.Resolver,
		sink:        d.Sink,
		notifier:    d.Notifier,
	}
}

// CreateSubmission stores a submission with its initial answers. Drafts stay
// private; anything else is either pending approval or final right away when
// nobody needs to approve it.
func (s *submissionService) CreateSubmission(ctx context.Context, userID string, req CreateSubmissionRequest) (SubmissionResponse, error) {
	creatorID, err := parseID("user id", userID)
	if err != nil {
		return SubmissionResponse{}, err
	}
	formID, err := parseID("form_id", req.FormID)
	if err != nil {
		return SubmissionResponse{}, err
	}
	draft, err := req.draft()
	if err != nil {
		return SubmissionResponse{}, err
	}
	values := make([]answerValue, 0, len(req.Answers))
	for _, in := range req.Answers {
		v, err := in.value()
		if err != nil {
			return SubmissionResponse{}, err
		}
		values = append(values, v)
	}

	var sub model.Submission
	effects := &afterCommit{}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		creator, err := s.users.GetByID(txCtx, creatorID)
		if err != nil {
			return lookupError(err, "user", creatorID)
		}
		form, err := s.forms.FindByID(txCtx, formID)
		if err != nil {
			return lookupError(err, "form", formID)
		}

		sub = model.Submission{
			ID:        uuid.New(),
			FormID:    form.ID,
			Form:      form,
			Name:      strings.TrimSpace(req.Name),
			Status:    model.SubmissionDraft,
			CreatedBy: creator.ID,
		}
		if err := s.placeSubmission(txCtx, &sub, *form, req); err != nil {
			return err
		}

		if !creator.IsPrivileged() {
			ok, err := hasCapability(txCtx, s.access, s.hierarchy, creator.ID, *form, sub.AdministrationID, model.CapabilitySubmit)
			if err != nil {
				return err
			}
			if !ok {
				return permissionError("user %s cannot submit %s here", creator.Username, form.Name)
			}
		}

		if !draft {
			status, err := s.initialStatus(txCtx, *creator, sub)
			if err != nil {
				return err
			}
			sub.Status = status
		}

		if err := s.submissions.Create(txCtx, &sub); err != nil {
			return dependencyError(err, "failed to create submission")
		}
		for _, v := range values {
			answer := v.answer(sub.ID, creator.ID)
			if err := s.answers.Create(txCtx, &answer); err != nil {
				return dependencyError(err, "failed to store answer %s", v.QuestionID)
			}
		}

		if err := writeAudit(txCtx, s.audit, &creator.ID, model.ActionCreateSubmission, sub.ID.String(), sub.Name, map[string]interface{}{
			"form_id": form.ID.String(),
			"status":  string(sub.Status),
			"answers": len(values),
		}); err != nil {
			return err
		}
		if sub.Status == model.SubmissionFinal {
			effects.seed(sub.ID)
		}
		return nil
	})
	if err != nil {
		return SubmissionResponse{}, err
	}

	effects.run(ctx, s.sink, s.notifier)
	return toSubmissionResponse(sub), nil
}

// placeSubmission fills in the administration and the registration uuid.
// Monitoring submissions inherit both from the registration they follow.
func (s *submissionService) placeSubmission(ctx context.Context, sub *model.Submission, form model.Form, req CreateSubmissionRequest) error {
	if req.ParentID == "" {
		if form.ParentID != nil {
			return validationError("form %s is a monitoring form and needs parent_id", form.Name)
		}
		admID, err := parseID("administration_id", req.AdministrationID)
		if err != nil {
			return err
		}
		adm, err := s.hierarchy.FindByID(ctx, admID)
		if err != nil {
			return lookupError(err, "administration", admID)
		}
		sub.AdministrationID = adm.ID
		sub.Administration = adm
		sub.UUID = uuid.New()
		return nil
	}

	parentID, err := parseID("parent_id", req.ParentID)
	if err != nil {
		return err
	}
	parent, err := s.submissions.FindByID(ctx, parentID)
	if err != nil {
		return lookupError(err, "submission", parentID)
	}
	if parent.Status == model.SubmissionDraft {
		return validationError("parent submission %s is still a draft", parent.ID)
	}
	if form.ParentID == nil || *form.ParentID != parent.FormID {
		return validationError("form %s does not follow up on the parent's form", form.Name)
	}
	sub.ParentID = &parent.ID
	sub.AdministrationID = parent.AdministrationID
	sub.Administration = parent.Administration
	sub.UUID = parent.UUID
	return nil
}

// initialStatus decides where a published submission lands.
func (s *submissionService) initialStatus(ctx context.Context, creator model.User, sub model.Submission) (model.SubmissionStatus, error) {
	if creator.IsPrivileged() {
		return model.SubmissionFinal, nil
	}
	slate, err := s.resolver.Resolve(ctx, sub)
	if err != nil {
		return "", err
	}
	if len(slate) == 0 {
		return model.SubmissionFinal, nil
	}
	return model.SubmissionPending, nil
}

func (s *submissionService) PublishSubmission(ctx context.Context, userID, id string) (SubmissionResponse, error) {
	actorID, err := parseID("user id", userID)
	if err != nil {
		return SubmissionResponse{}, err
	}
	subID, err := parseID("submission id", id)
	if err != nil {
		return SubmissionResponse{}, err
	}

	var sub *model.Submission
	effects := &afterCommit{}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		actor, err := s.users.GetByID(txCtx, actorID)
		if err != nil {
			return lookupError(err, "user", actorID)
		}
		sub, err = s.submissions.FindByID(txCtx, subID)
		if err != nil {
			return lookupError(err, "submission", subID)
		}
		if sub.Status != model.SubmissionDraft {
			return stateError("submission %s is already %s", sub.ID, sub.Status)
		}
		if sub.CreatedBy != actor.ID && !actor.IsPrivileged() {
			return permissionError("only the creator can publish submission %s", sub.ID)
		}

		// approval is skipped on the creator's privilege, not the publisher's
		creator := actor
		if sub.CreatedBy != actor.ID {
			if creator, err = s.users.GetByID(txCtx, sub.CreatedBy); err != nil {
				return lookupError(err, "user", sub.CreatedBy)
			}
		}
		status, err := s.initialStatus(txCtx, *creator, *sub)
		if err != nil {
			return err
		}
		sub.Status = status
		sub.UpdatedBy = &actor.ID
		if err := s.submissions.Update(txCtx, sub); err != nil {
			return dependencyError(err, "failed to publish submission")
		}
		if err := writeAudit(txCtx, s.audit, &actor.ID, model.ActionPublishSubmission, sub.ID.String(), sub.Name, map[string]interface{}{
			"status": string(status),
		}); err != nil {
			return err
		}
		if status == model.SubmissionFinal {
			effects.seed(sub.ID)
		}
		return nil
	})
	if err != nil {
		return SubmissionResponse{}, err
	}

	effects.run(ctx, s.sink, s.notifier)
	return toSubmissionResponse(*sub), nil
}

func (s *submissionService) GetSubmission(ctx context.Context, id string) (SubmissionResponse, error) {
	subID, err := parseID("submission id", id)
	if err != nil {
		return SubmissionResponse{}, err
	}
	sub, err := s.submissions.FindByID(ctx, subID)
	if err != nil {
		return SubmissionResponse{}, lookupError(err, "submission", subID)
	}
	return toSubmissionResponse(*sub), nil
}

func (s *submissionService) ListSubmissions(ctx context.Context, userID string, filter SubmissionListFilter) ([]SubmissionResponse, int64, error) {
	q := repository.SubmissionFilter{Page: filter.Page, Limit: filter.Limit}
	if filter.FormID != "" {
		formID, err := parseID("form_id", filter.FormID)
		if err != nil {
			return nil, 0, err
		}
		q.FormID = &formID
	}
	if filter.Status != "" {
		status := model.SubmissionStatus(filter.Status)
		if !status.Valid() {
			return nil, 0, validationError("unknown status %q", filter.Status)
		}
		q.Status = status
	}
	if filter.Mine {
		uid, err := parseID("user id", userID)
		if err != nil {
			return nil, 0, err
		}
		q.CreatedBy = &uid
	}

	subs, total, err := s.submissions.List(ctx, q)
	if err != nil {
		return nil, 0, dependencyError(err, "failed to list submissions")
	}
	res := make([]SubmissionResponse, 0, len(subs))
	for _, sub := range subs {
		res = append(res, toSubmissionResponse(sub))
	}
	return res, total, nil
}

// ListUnbatched returns the caller's pending submissions that can still be
// grouped into a new batch.
func (s *submissionService) ListUnbatched(ctx context.Context, userID, formID string) ([]SubmissionResponse, error) {
	uid, err := parseID("user id", userID)
	if err != nil {
		return nil, err
	}
	var form *uuid.UUID
	if formID != "" {
		id, err := parseID("form_id", formID)
		if err != nil {
			return nil, err
		}
		form = &id
	}
	subs, err := s.submissions.ListUnbatched(ctx, uid, form)
	if err != nil {
		return nil, dependencyError(err, "failed to list unbatched submissions")
	}
	res := make([]SubmissionResponse, 0, len(subs))
	for _, sub := range subs {
		res = append(res, toSubmissionResponse(sub))
	}
	return res, nil
}

func toSubmissionResponse(sub model.Submission) SubmissionResponse {
	isDraft, isPending := sub.Status.Flags()
	res := SubmissionResponse{
		ID:               sub.ID.String(),
		FormID:           sub.FormID.String(),
		AdministrationID: sub.AdministrationID.String(),
		UUID:             sub.UUID.String(),
		Name:             sub.Name,
		Status:           string(sub.Status),
		IsDraft:          isDraft,
		IsPending:        isPending,
		CreatedBy:        sub.CreatedBy.String(),
		CreatedAt:        formatTime(sub.CreatedAt),
		UpdatedAt:        formatTime(sub.UpdatedAt),
	}
	if sub.Administration != nil {
		res.AdministrationName = sub.Administration.Name
	}
	if sub.ParentID != nil {
		p := sub.ParentID.String()
		res.ParentID = &p
	}
	if sub.SeededAt != nil {
		at := formatTime(*sub.SeededAt)
		res.SeededAt = &at
	}
	return res
}
