package repository

import (
	"context"

	"collector/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FormRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Form, error)
}

type formRepository struct {
	db *gorm.DB
}

func NewFormRepository(db *gorm.DB) FormRepository {
	return &formRepository{db: db}
}

func (r *formRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Form, error) {
	var form model.Form
	if err := GetDB(ctx, r.db).First(&form, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &form, nil
}
