package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Form is a questionnaire definition. Monitoring forms point to the
// registration form they follow up on through ParentID.
type Form struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name     string     `gorm:"type:varchar(255);not null" json:"name"`
	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_id"`
	// LockedQuestions lists question ids that can no longer be edited once a submission is final.
	LockedQuestions datatypes.JSON `gorm:"type:jsonb" json:"locked_questions"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// LineageID identifies the registration form a form belongs to.
func (f Form) LineageID() uuid.UUID {
	if f.ParentID != nil {
		return *f.ParentID
	}
	return f.ID
}

// LineageIDs returns the form itself plus its parent, if any.
func (f Form) LineageIDs() []uuid.UUID {
	if f.ParentID != nil {
		return []uuid.UUID{f.ID, *f.ParentID}
	}
	return []uuid.UUID{f.ID}
}

func (f Form) IsLocked(questionID uuid.UUID) bool {
	if len(f.LockedQuestions) == 0 {
		return false
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(f.LockedQuestions, &ids); err != nil {
		return false
	}
	for _, id := range ids {
		if id == questionID {
			return true
		}
	}
	return false
}
