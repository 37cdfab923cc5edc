package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type SubmissionStatus string

const (
	SubmissionDraft   SubmissionStatus = "draft"
	SubmissionPending SubmissionStatus = "pending"
	SubmissionFinal   SubmissionStatus = "final"
)

var ErrInvalidStatusFlags = errors.New("a submission cannot be both draft and pending")

// StatusFromFlags converts the legacy is_draft/is_pending pair into a status.
func StatusFromFlags(isDraft, isPending bool) (SubmissionStatus, error) {
	switch {
	case isDraft && isPending:
		return "", ErrInvalidStatusFlags
	case isDraft:
		return SubmissionDraft, nil
	case isPending:
		return SubmissionPending, nil
	default:
		return SubmissionFinal, nil
	}
}

// Flags returns the legacy is_draft/is_pending pair for s.
func (s SubmissionStatus) Flags() (isDraft, isPending bool) {
	return s == SubmissionDraft, s == SubmissionPending
}

func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionDraft, SubmissionPending, SubmissionFinal:
		return true
	}
	return false
}

// Submission is one collected record. Monitoring submissions link to their
// registration through ParentID and share its UUID.
type Submission struct {
	ID               uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	FormID           uuid.UUID        `gorm:"type:uuid;not null;index" json:"form_id"`
	Form             *Form            `gorm:"foreignKey:FormID" json:"form,omitempty"`
	AdministrationID uuid.UUID        `gorm:"type:uuid;not null;index" json:"administration_id"`
	Administration   *Administration  `gorm:"foreignKey:AdministrationID" json:"administration,omitempty"`
	ParentID         *uuid.UUID       `gorm:"type:uuid;index" json:"parent_id"`
	UUID             uuid.UUID        `gorm:"column:uuid;type:uuid;not null;index" json:"uuid"`
	Name             string           `gorm:"type:varchar(255)" json:"name"`
	Status           SubmissionStatus `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	CreatedBy        uuid.UUID        `gorm:"type:uuid;not null;index" json:"created_by"`
	Creator          *User            `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	UpdatedBy        *uuid.UUID       `gorm:"type:uuid" json:"updated_by"`
	SeededAt         *time.Time       `json:"seeded_at"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
