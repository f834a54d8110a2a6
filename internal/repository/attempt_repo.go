package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// AttemptRepository persists quiz delivery state.
type AttemptRepository interface {
	Start(ctx context.Context, attempt *models.QuizAttempt) (bool, error)
	Get(ctx context.Context, quizID, studentID uint) (models.QuizAttempt, error)
	SaveAnswers(ctx context.Context, id uint, answers models.AnswerSet, savedAt time.Time) (bool, error)
	MarkSubmitted(ctx context.Context, id, submissionID uint, trigger string, submittedAt time.Time) (bool, error)
	ListExpired(ctx context.Context, reference time.Time, limit int) ([]models.QuizAttempt, error)
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository creates an attempt repository backed by gorm.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

// Start inserts the attempt unless one already exists for the student, in which case the
// stored attempt is loaded into attempt and false is returned.
func (r *attemptRepository) Start(ctx context.Context, attempt *models.QuizAttempt) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "quiz_id"}, {Name: "student_id"}},
			DoNothing: true,
		}).
		Create(attempt)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	existing, err := r.Get(ctx, attempt.QuizID, attempt.StudentID)
	if err != nil {
		return false, err
	}
	*attempt = existing
	return false, nil
}

func (r *attemptRepository) Get(ctx context.Context, quizID, studentID uint) (models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	err := r.db.WithContext(ctx).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		First(&attempt).Error
	return attempt, err
}

// SaveAnswers overwrites the saved answers while the attempt is still in progress.
func (r *attemptRepository) SaveAnswers(ctx context.Context, id uint, answers models.AnswerSet, savedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("id = ? AND state = ?", id, models.AttemptStateInProgress).
		Updates(map[string]interface{}{
			"saved_answers": datatypes.NewJSONType(answers),
			"saved_at":      savedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkSubmitted moves an in-progress attempt to submitted. It reports false when another
// caller already did.
func (r *attemptRepository) MarkSubmitted(ctx context.Context, id, submissionID uint, trigger string, submittedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("id = ? AND state = ?", id, models.AttemptStateInProgress).
		Updates(map[string]interface{}{
			"state":         models.AttemptStateSubmitted,
			"submission_id": submissionID,
			"trigger":       trigger,
			"submitted_at":  submittedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListExpired returns in-progress attempts whose deadline is at or before reference.
// Attempts on inactive quizzes are left out; they cannot be recorded until the quiz is reactivated.
func (r *attemptRepository) ListExpired(ctx context.Context, reference time.Time, limit int) ([]models.QuizAttempt, error) {
	query := r.db.WithContext(ctx).
		Joins("JOIN quizzes ON quizzes.id = quiz_attempts.quiz_id AND quizzes.is_active = ?", true).
		Where("quiz_attempts.state = ?", models.AttemptStateInProgress).
		Where("quiz_attempts.deadline IS NOT NULL AND quiz_attempts.deadline <= ?", reference).
		Order("quiz_attempts.deadline ASC").
		Order("quiz_attempts.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var attempts []models.QuizAttempt
	if err := query.Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}
