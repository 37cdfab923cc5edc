package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateSubmission  = "CREATE_SUBMISSION"
	ActionPublishSubmission = "PUBLISH_SUBMISSION"
	ActionReplaceAnswer     = "REPLACE_ANSWER"
	ActionSeedSubmission    = "SEED_SUBMISSION"

	// Approval workflow actions
	ActionCreateBatch     = "CREATE_BATCH"
	ActionApproveSlot     = "APPROVE_SLOT"
	ActionRejectSlot      = "REJECT_SLOT"
	ActionResetSlot       = "RESET_SLOT"
	ActionFinalizeBatch   = "FINALIZE_BATCH"
	ActionAutoApproveSlot = "AUTO_APPROVE_SLOT"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for worker-driven entries
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/name)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
