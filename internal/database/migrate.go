package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// Migrate creates or updates the quiz schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Course{},
		&models.Quiz{},
		&models.Question{},
		&models.QuizSubmission{},
		&models.GradeEntry{},
		&models.QuizAttempt{},
		&models.ActivityLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
