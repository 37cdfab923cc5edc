package service

import (
	"context"
	"time"

	"collector/internal/model"
	"collector/internal/repository"
)

const backlogRankingSize = 5

type StatisticsService interface {
	GetStatistics(ctx context.Context, formID string, startDate, endDate time.Time) (model.StatisticsResponse, error)
}

type statisticsService struct {
	repo repository.StatisticsRepository
}

func NewStatisticsService(repo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{repo: repo}
}

// GetStatistics aggregates submission and approval counts created in the range,
// optionally narrowed to one form.
func (s *statisticsService) GetStatistics(ctx context.Context, formID string, startDate, endDate time.Time) (model.StatisticsResponse, error) {
	if endDate.Before(startDate) {
		return model.StatisticsResponse{}, validationError("end_date must not be before start_date")
	}
	rng := repository.StatisticsRange{Start: startDate, End: endDate}
	if formID != "" {
		id, err := parseID("form_id", formID)
		if err != nil {
			return model.StatisticsResponse{}, err
		}
		rng.FormID = &id
	}

	res := model.StatisticsResponse{TimeRangeStartDate: startDate, TimeRangeEndDate: endDate}

	subs, err := s.repo.CountSubmissions(ctx, rng)
	if err != nil {
		return res, dependencyError(err, "failed to load submission statistics")
	}
	res.DraftSubmissions = subs[model.SubmissionDraft]
	res.PendingSubmissions = subs[model.SubmissionPending]
	res.FinalSubmissions = subs[model.SubmissionFinal]

	if res.OpenBatches, res.FinalizedBatches, err = s.repo.CountBatches(ctx, rng); err != nil {
		return res, dependencyError(err, "failed to load batch statistics")
	}

	slots, err := s.repo.CountSlots(ctx, rng)
	if err != nil {
		return res, dependencyError(err, "failed to load approval statistics")
	}
	res.PendingSlots = slots[model.SlotPending]
	res.RejectedSlots = slots[model.SlotRejected]

	if res.TopBacklog, err = s.repo.TopBacklog(ctx, rng, backlogRankingSize); err != nil {
		return res, dependencyError(err, "failed to rank backlog")
	}
	if res.TopBacklog == nil {
		res.TopBacklog = []model.AdministrationBacklog{}
	}
	return res, nil
}
