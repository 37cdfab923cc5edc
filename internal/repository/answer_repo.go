package repository

import (
	"context"

	"collector/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AnswerRepository interface {
	// Find returns gorm.ErrRecordNotFound when no answer exists yet.
	Find(ctx context.Context, submissionID, questionID uuid.UUID, index int) (*model.Answer, error)
	Create(ctx context.Context, answer *model.Answer) error
	Update(ctx context.Context, answer *model.Answer) error
	CreateHistory(ctx context.Context, entry *model.AnswerHistory) error
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]model.Answer, error)
	ListHistory(ctx context.Context, submissionID uuid.UUID) ([]model.AnswerHistory, error)
}

type answerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) Find(ctx context.Context, submissionID, questionID uuid.UUID, index int) (*model.Answer, error) {
	var answer model.Answer
	err := GetDB(ctx, r.db).
		Where(`submission_id = ? AND question_id = ? AND "index" = ?`, submissionID, questionID, index).
		First(&answer).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *answerRepository) Create(ctx context.Context, answer *model.Answer) error {
	return GetDB(ctx, r.db).Create(answer).Error
}

func (r *answerRepository) Update(ctx context.Context, answer *model.Answer) error {
	return GetDB(ctx, r.db).Save(answer).Error
}

func (r *answerRepository) CreateHistory(ctx context.Context, entry *model.AnswerHistory) error {
	return GetDB(ctx, r.db).Omit("Editor").Create(entry).Error
}

func (r *answerRepository) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]model.Answer, error) {
	var answers []model.Answer
	if err := GetDB(ctx, r.db).Where("submission_id = ?", submissionID).Order(`question_id asc, "index" asc`).Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}

func (r *answerRepository) ListHistory(ctx context.Context, submissionID uuid.UUID) ([]model.AnswerHistory, error) {
	var entries []model.AnswerHistory
	if err := GetDB(ctx, r.db).Preload("Editor").Where("submission_id = ?", submissionID).Order("created_at desc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
