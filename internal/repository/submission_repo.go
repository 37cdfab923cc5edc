package repository

import (
	"context"
	"time"

	"collector/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubmissionFilter struct {
	FormID    *uuid.UUID
	Status    model.SubmissionStatus
	CreatedBy *uuid.UUID
	Page      int
	Limit     int
}

type SubmissionRepository interface {
	Create(ctx context.Context, sub *model.Submission) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Submission, error)
	Update(ctx context.Context, sub *model.Submission) error
	UpdateStatus(ctx context.Context, ids []uuid.UUID, status model.SubmissionStatus) error
	MarkSeeded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	List(ctx context.Context, filter SubmissionFilter) ([]model.Submission, int64, error)
	ListUnbatched(ctx context.Context, ownerID uuid.UUID, formID *uuid.UUID) ([]model.Submission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	return GetDB(ctx, r.db).Omit("Form", "Administration", "Creator").Create(sub).Error
}

func (r *submissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	var sub model.Submission
	if err := GetDB(ctx, r.db).Preload("Form").Preload("Administration").First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByIDs loads submissions in the order of ids; unknown ids are skipped.
func (r *submissionRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Submission, error) {
	var subs []model.Submission
	if len(ids) == 0 {
		return subs, nil
	}
	if err := GetDB(ctx, r.db).Preload("Form").Preload("Administration").Where("id IN ?", ids).Find(&subs).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]model.Submission, len(subs))
	for _, s := range subs {
		byID[s.ID] = s
	}
	ordered := make([]model.Submission, 0, len(subs))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered, nil
}

func (r *submissionRepository) Update(ctx context.Context, sub *model.Submission) error {
	return GetDB(ctx, r.db).Omit("Form", "Administration", "Creator").Save(sub).Error
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, ids []uuid.UUID, status model.SubmissionStatus) error {
	if len(ids) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Model(&model.Submission{}).Where("id IN ?", ids).Update("status", status).Error
}

// MarkSeeded stamps seeded_at once. It reports false when the submission was
// already seeded or is not final.
func (r *submissionRepository) MarkSeeded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Submission{}).
		Where("id = ? AND status = ? AND seeded_at IS NULL", id, model.SubmissionFinal).
		Update("seeded_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]model.Submission, int64, error) {
	var subs []model.Submission
	var total int64

	scoped := func(q *gorm.DB) *gorm.DB {
		if filter.FormID != nil {
			q = q.Where("form_id = ?", *filter.FormID)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.CreatedBy != nil {
			q = q.Where("created_by = ?", *filter.CreatedBy)
		}
		return q
	}

	db := GetDB(ctx, r.db)
	if err := scoped(db.Model(&model.Submission{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := scoped(db.Preload("Administration")).Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&subs).Error; err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// ListUnbatched returns the owner's pending submissions not yet grouped into a batch.
func (r *submissionRepository) ListUnbatched(ctx context.Context, ownerID uuid.UUID, formID *uuid.UUID) ([]model.Submission, error) {
	var subs []model.Submission
	db := GetDB(ctx, r.db)
	q := db.Preload("Administration").
		Where("created_by = ? AND status = ?", ownerID, model.SubmissionPending).
		Where("id NOT IN (?)", db.Model(&model.BatchSubmission{}).Select("submission_id"))
	if formID != nil {
		q = q.Where("form_id = ?", *formID)
	}
	if err := q.Order("created_at ASC").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
