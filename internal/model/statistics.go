package model

import (
	"time"
)

// StatisticsResponse summarizes collection and approval activity in a time range
type StatisticsResponse struct {
	DraftSubmissions   int64                   `json:"draft_submissions"`
	PendingSubmissions int64                   `json:"pending_submissions"`
	FinalSubmissions   int64                   `json:"final_submissions"`
	OpenBatches        int64                   `json:"open_batches"`
	FinalizedBatches   int64                   `json:"finalized_batches"`
	PendingSlots       int64                   `json:"pending_slots"`
	RejectedSlots      int64                   `json:"rejected_slots"`
	TopBacklog         []AdministrationBacklog `json:"top_backlog"`
	TimeRangeStartDate time.Time               `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time               `json:"time_range_end_date"`
}

// AdministrationBacklog ranks an administration by its pending submissions
type AdministrationBacklog struct {
	AdministrationID   string `json:"administration_id"`
	AdministrationName string `json:"administration_name"`
	Level              int    `json:"level"`
	PendingCount       int64  `json:"pending_count"`
}
