package repository

import (
	"context"
	"fmt"
	"time"

	"collector/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatisticsRange bounds the statistics queries. FormID is optional.
type StatisticsRange struct {
	FormID *uuid.UUID
	Start  time.Time
	End    time.Time
}

type StatisticsRepository interface {
	CountSubmissions(ctx context.Context, r StatisticsRange) (map[model.SubmissionStatus]int64, error)
	CountBatches(ctx context.Context, r StatisticsRange) (open, finalized int64, err error)
	CountSlots(ctx context.Context, r StatisticsRange) (map[model.SlotStatus]int64, error)
	TopBacklog(ctx context.Context, r StatisticsRange, limit int) ([]model.AdministrationBacklog, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) within(q *gorm.DB, table string, rng StatisticsRange) *gorm.DB {
	q = q.Where(table+".created_at >= ? AND "+table+".created_at <= ?", rng.Start, rng.End)
	if rng.FormID != nil {
		q = q.Where(table+".form_id = ?", *rng.FormID)
	}
	return q
}

func (r *statisticsRepository) CountSubmissions(ctx context.Context, rng StatisticsRange) (map[model.SubmissionStatus]int64, error) {
	var rows []struct {
		Status model.SubmissionStatus
		Count  int64
	}
	q := r.within(GetDB(ctx, r.db).Table("submissions"), "submissions", rng)
	if err := q.Select("submissions.status as status, COUNT(*) as count").
		Group("submissions.status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	counts := make(map[model.SubmissionStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *statisticsRepository) CountBatches(ctx context.Context, rng StatisticsRange) (int64, int64, error) {
	var result struct {
		Open      int64
		Finalized int64
	}
	q := r.within(GetDB(ctx, r.db).Table("batches"), "batches", rng)
	if err := q.Select("COUNT(*) FILTER (WHERE NOT batches.finalized) as open, COUNT(*) FILTER (WHERE batches.finalized) as finalized").
		Scan(&result).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count batches: %w", err)
	}
	return result.Open, result.Finalized, nil
}

// CountSlots counts the slots of open batches by status.
func (r *statisticsRepository) CountSlots(ctx context.Context, rng StatisticsRange) (map[model.SlotStatus]int64, error) {
	var rows []struct {
		Status model.SlotStatus
		Count  int64
	}
	q := r.within(GetDB(ctx, r.db).Table("approval_slots").
		Joins("JOIN batches ON batches.id = approval_slots.batch_id").
		Where("NOT batches.finalized"), "batches", rng)
	if err := q.Select("approval_slots.status as status, COUNT(*) as count").
		Group("approval_slots.status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count approval slots: %w", err)
	}
	counts := make(map[model.SlotStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *statisticsRepository) TopBacklog(ctx context.Context, rng StatisticsRange, limit int) ([]model.AdministrationBacklog, error) {
	var rankings []model.AdministrationBacklog
	q := r.within(GetDB(ctx, r.db).Table("submissions").
		Joins("JOIN administrations ON administrations.id = submissions.administration_id").
		Where("submissions.status = ?", model.SubmissionPending), "submissions", rng)
	if err := q.Select("administrations.id as administration_id, administrations.name as administration_name, administrations.level as level, COUNT(submissions.id) as pending_count").
		Group("administrations.id, administrations.name, administrations.level").
		Order("pending_count DESC").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query backlog ranking: %w", err)
	}
	return rankings, nil
}
