package database

import (
	"log"

	"collector/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.Administration{},
		&model.User{},
		&model.Form{},
		&model.FormAccess{},
		&model.Submission{},
		&model.Answer{},
		&model.AnswerHistory{},
		&model.Batch{},
		&model.BatchSubmission{},
		&model.ApprovalSlot{},
		&model.BatchComment{},
		&model.BatchAttachment{},
		&model.AuditLog{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}
