package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Answer is the current value of one question on one submission. Repeatable
// question groups are told apart by Index.
type Answer struct {
	ID           uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SubmissionID uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_answer_slot" json:"submission_id"`
	QuestionID   uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_answer_slot" json:"question_id"`
	Index        int                 `gorm:"not null;default:0;uniqueIndex:idx_answer_slot" json:"index"`
	Text         *string             `gorm:"type:text" json:"text"`
	Number       decimal.NullDecimal `gorm:"type:numeric(20,6)" json:"number"`
	Options      datatypes.JSON      `gorm:"type:jsonb" json:"options"`
	CreatedBy    uuid.UUID           `gorm:"type:uuid;not null" json:"created_by"`
	UpdatedBy    *uuid.UUID          `gorm:"type:uuid" json:"updated_by"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// AnswerHistory is an append-only snapshot of a value that an edit replaced.
type AnswerHistory struct {
	ID           uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AnswerID     uuid.UUID           `gorm:"type:uuid;not null;index" json:"answer_id"`
	SubmissionID uuid.UUID           `gorm:"type:uuid;not null;index" json:"submission_id"`
	QuestionID   uuid.UUID           `gorm:"type:uuid;not null" json:"question_id"`
	Index        int                 `gorm:"not null;default:0" json:"index"`
	Text         *string             `gorm:"type:text" json:"text"`
	Number       decimal.NullDecimal `gorm:"type:numeric(20,6)" json:"number"`
	Options      datatypes.JSON      `gorm:"type:jsonb" json:"options"`
	EditedBy     uuid.UUID           `gorm:"type:uuid;not null" json:"edited_by"`
	Editor       *User               `gorm:"foreignKey:EditedBy" json:"editor,omitempty"`
	CreatedAt    time.Time           `gorm:"index" json:"created_at"`
}

// Snapshot copies the current value of a into a history row stamped with editor.
func (a Answer) Snapshot(editor uuid.UUID) AnswerHistory {
	return AnswerHistory{
		AnswerID:     a.ID,
		SubmissionID: a.SubmissionID,
		QuestionID:   a.QuestionID,
		Index:        a.Index,
		Text:         a.Text,
		Number:       a.Number,
		Options:      a.Options,
		EditedBy:     editor,
	}
}
