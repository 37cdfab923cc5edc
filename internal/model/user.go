package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleApprover   = "approver"
	RoleSubmitter  = "submitter"
)

// User is the account that collects or approves data. Accounts are managed by
// the identity service; this table mirrors what the approval engine needs.
type User struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username         string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email            string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Role             string          `gorm:"type:varchar(50);not null" json:"role"`
	AdministrationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"administration_id"`
	Administration   *Administration `gorm:"foreignKey:AdministrationID" json:"administration,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"` // GORM soft delete
}

// IsPrivileged reports whether the user's submissions skip approval entirely.
func (u User) IsPrivileged() bool {
	return u.Role == RoleSuperAdmin || u.Role == RoleAdmin
}
