package service

import (
	"context"

	"collector/internal/model"
	"collector/internal/repository"

	"github.com/google/uuid"
)

// SlateEntry is one approver expected to decide at one ancestor level.
type SlateEntry struct {
	Level          model.Level
	Administration model.Administration
	ApproverID     uuid.UUID
}

// ApproverResolver computes who must approve a submission: the approvers of
// every ancestor of its administration, most local level first.
type ApproverResolver struct {
	hierarchy repository.HierarchyRepository
	access    repository.AccessRepository
	forms     repository.FormRepository
}

func NewApproverResolver(hierarchy repository.HierarchyRepository, access repository.AccessRepository, forms repository.FormRepository) *ApproverResolver {
	return &ApproverResolver{hierarchy: hierarchy, access: access, forms: forms}
}

// Resolve returns the approval slate. Ancestors without approvers are left
// out; an empty slate means no approval is required. The submission's own
// administration never contributes.
func (r *ApproverResolver) Resolve(ctx context.Context, sub model.Submission) ([]SlateEntry, error) {
	form := sub.Form
	if form == nil {
		f, err := r.forms.FindByID(ctx, sub.FormID)
		if err != nil {
			return nil, lookupError(err, "form", sub.FormID)
		}
		form = f
	}

	ancestors, err := r.hierarchy.Ancestors(ctx, sub.AdministrationID)
	if err != nil {
		return nil, lookupError(err, "administration", sub.AdministrationID)
	}

	slate := make([]SlateEntry, 0, len(ancestors))
	for i := len(ancestors) - 1; i >= 0; i-- {
		adm := ancestors[i]
		approvers, err := r.access.ApproversFor(ctx, form.LineageIDs(), adm.ID)
		if err != nil {
			return nil, dependencyError(err, "failed to look up approvers at %s", adm.Name)
		}
		for _, u := range approvers {
			slate = append(slate, SlateEntry{Level: adm.Level, Administration: adm, ApproverID: u.ID})
		}
	}
	return slate, nil
}
