package repository

import (
	"context"
	"errors"
	"time"

	"collector/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDuplicateBatchName = errors.New("batch name already exists")

const pgUniqueViolation = "23505"

type BatchRepository interface {
	Create(ctx context.Context, batch *model.Batch) error
	AddMembers(ctx context.Context, members []model.BatchSubmission) error
	AddSlots(ctx context.Context, slots []model.ApprovalSlot) error
	AddComment(ctx context.Context, comment *model.BatchComment) error
	AddAttachments(ctx context.Context, items []model.BatchAttachment) error
	NameExists(ctx context.Context, name string) (bool, error)
	BatchedSubmissionIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	FindSlot(ctx context.Context, slotID uuid.UUID) (*model.ApprovalSlot, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	FindOpenBatchID(ctx context.Context, submissionID uuid.UUID) (*uuid.UUID, error)
	SaveSlots(ctx context.Context, slots []*model.ApprovalSlot) error
	MarkFinalized(ctx context.Context, id uuid.UUID) error
	ListByApprover(ctx context.Context, approverID uuid.UUID) ([]model.Batch, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]model.Batch, int64, error)
	ListComments(ctx context.Context, batchID uuid.UUID) ([]model.BatchComment, error)
}

type batchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(ctx context.Context, batch *model.Batch) error {
	err := GetDB(ctx, r.db).Omit(clause.Associations).Create(batch).Error
	if isUniqueViolation(err) {
		return ErrDuplicateBatchName
	}
	return err
}

func (r *batchRepository) AddMembers(ctx context.Context, members []model.BatchSubmission) error {
	if len(members) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(&members).Error
}

func (r *batchRepository) AddSlots(ctx context.Context, slots []model.ApprovalSlot) error {
	if len(slots) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(&slots).Error
}

func (r *batchRepository) AddComment(ctx context.Context, comment *model.BatchComment) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(comment).Error
}

func (r *batchRepository) AddAttachments(ctx context.Context, items []model.BatchAttachment) error {
	if len(items) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&items).Error
}

func (r *batchRepository) NameExists(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Batch{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// BatchedSubmissionIDs returns which of ids already belong to a batch.
func (r *batchRepository) BatchedSubmissionIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	var found []uuid.UUID
	if len(ids) == 0 {
		return found, nil
	}
	err := GetDB(ctx, r.db).Model(&model.BatchSubmission{}).
		Where("submission_id IN ?", ids).
		Pluck("submission_id", &found).Error
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *batchRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	var batch model.Batch
	err := GetDB(ctx, r.db).
		Preload("Slots", func(db *gorm.DB) *gorm.DB { return db.Order("level desc, created_at asc") }).
		Preload("Slots.Approver").
		Preload("Members").
		Preload("Owner").
		First(&batch, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) FindSlot(ctx context.Context, slotID uuid.UUID) (*model.ApprovalSlot, error) {
	var slot model.ApprovalSlot
	if err := GetDB(ctx, r.db).First(&slot, "id = ?", slotID).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

// LockByID loads the batch aggregate with its row and slot rows locked
// FOR UPDATE. Must run inside a transaction.
func (r *batchRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	db := GetDB(ctx, r.db)
	var batch model.Batch
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("batch_id = ?", id).
		Order("level desc, created_at asc").
		Find(&batch.Slots).Error; err != nil {
		return nil, err
	}
	if err := db.Where("batch_id = ?", id).Order("created_at asc").Find(&batch.Members).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// FindOpenBatchID returns the id of the non-finalized batch holding the
// submission, or nil when there is none.
func (r *batchRepository) FindOpenBatchID(ctx context.Context, submissionID uuid.UUID) (*uuid.UUID, error) {
	var ids []uuid.UUID
	err := GetDB(ctx, r.db).Model(&model.BatchSubmission{}).
		Joins("JOIN batches ON batches.id = batch_submissions.batch_id").
		Where("batch_submissions.submission_id = ? AND batches.finalized = ?", submissionID, false).
		Limit(1).
		Pluck("batch_submissions.batch_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &ids[0], nil
}

func (r *batchRepository) SaveSlots(ctx context.Context, slots []*model.ApprovalSlot) error {
	db := GetDB(ctx, r.db)
	now := time.Now()
	for _, s := range slots {
		s.UpdatedAt = now
		err := db.Model(&model.ApprovalSlot{}).Where("id = ?", s.ID).Updates(map[string]interface{}{
			"status":     s.Status,
			"comment":    s.Comment,
			"updated_at": now,
		}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *batchRepository) MarkFinalized(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.Batch{}).
		Where("id = ? AND finalized = ?", id, false).
		Updates(map[string]interface{}{"finalized": true, "updated_at": time.Now()}).Error
}

// ListByApprover returns every batch in which the approver holds a slot, with
// the full slate preloaded so visibility can be evaluated in memory.
func (r *batchRepository) ListByApprover(ctx context.Context, approverID uuid.UUID) ([]model.Batch, error) {
	var batches []model.Batch
	db := GetDB(ctx, r.db)
	err := db.
		Preload("Slots", func(q *gorm.DB) *gorm.DB { return q.Order("level desc, created_at asc") }).
		Preload("Members").
		Preload("Owner").
		Where("id IN (?)", db.Model(&model.ApprovalSlot{}).Select("batch_id").Where("approver_id = ?", approverID)).
		Order("created_at DESC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *batchRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]model.Batch, int64, error) {
	var batches []model.Batch
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Batch{}).Where("owner_id = ?", ownerID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := db.
		Preload("Slots", func(q *gorm.DB) *gorm.DB { return q.Order("level desc, created_at asc") }).
		Preload("Members").
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&batches).Error
	if err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

func (r *batchRepository) ListComments(ctx context.Context, batchID uuid.UUID) ([]model.BatchComment, error) {
	var comments []model.BatchComment
	if err := GetDB(ctx, r.db).Preload("User").Where("batch_id = ?", batchID).Order("created_at asc").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
