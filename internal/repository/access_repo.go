package repository

import (
	"context"

	"collector/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessRepository answers capability questions from form_accesses.
type AccessRepository interface {
	ApproversFor(ctx context.Context, formIDs []uuid.UUID, administrationID uuid.UUID) ([]model.User, error)
	HasAccess(ctx context.Context, userID uuid.UUID, formIDs []uuid.UUID, administrationIDs []uuid.UUID, capability model.Capability) (bool, error)
}

type accessRepository struct {
	db *gorm.DB
}

func NewAccessRepository(db *gorm.DB) AccessRepository {
	return &accessRepository{db: db}
}

// ApproversFor lists users holding the approve capability on any of formIDs at administrationID.
func (r *accessRepository) ApproversFor(ctx context.Context, formIDs []uuid.UUID, administrationID uuid.UUID) ([]model.User, error) {
	var users []model.User
	db := GetDB(ctx, r.db)
	sub := db.Model(&model.FormAccess{}).
		Select("user_id").
		Where("form_id IN ? AND administration_id = ? AND capability = ?", formIDs, administrationID, model.CapabilityApprove)
	if err := db.Where("id IN (?)", sub).Order("username asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *accessRepository) HasAccess(ctx context.Context, userID uuid.UUID, formIDs []uuid.UUID, administrationIDs []uuid.UUID, capability model.Capability) (bool, error) {
	if len(formIDs) == 0 || len(administrationIDs) == 0 {
		return false, nil
	}
	var count int64
	err := GetDB(ctx, r.db).Model(&model.FormAccess{}).
		Where("user_id = ? AND form_id IN ? AND administration_id IN ? AND capability = ?", userID, formIDs, administrationIDs, capability).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
