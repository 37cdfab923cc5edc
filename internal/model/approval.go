package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotPending  SlotStatus = "pending"
	SlotApproved SlotStatus = "approved"
	SlotRejected SlotStatus = "rejected"
)

// ApprovalSlot is one approver's decision at one ancestor level of a batch.
type ApprovalSlot struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BatchID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_slot_unique;index" json:"batch_id"`
	AdministrationID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_slot_unique" json:"administration_id"`
	Administration   *Administration `gorm:"foreignKey:AdministrationID" json:"administration,omitempty"`
	Level            Level           `gorm:"not null;index" json:"level"`
	ApproverID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_slot_unique;index" json:"approver_id"`
	Approver         *User           `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	Status           SlotStatus      `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Comment          string          `gorm:"type:text" json:"comment"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
