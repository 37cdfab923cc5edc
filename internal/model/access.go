package model

import (
	"time"

	"github.com/google/uuid"
)

type Capability string

const (
	CapabilitySubmit  Capability = "submit"
	CapabilityApprove Capability = "approve"
	CapabilityEdit    Capability = "edit"
	CapabilityRead    Capability = "read"
)

// FormAccess grants a user one capability on a form at one administration.
type FormAccess struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_form_access" json:"user_id"`
	User             *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	FormID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_form_access" json:"form_id"`
	AdministrationID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_form_access;index" json:"administration_id"`
	Administration   *Administration `gorm:"foreignKey:AdministrationID" json:"administration,omitempty"`
	Capability       Capability      `gorm:"type:varchar(20);not null;uniqueIndex:idx_form_access" json:"capability"`
	CreatedAt        time.Time       `json:"created_at"`
}
