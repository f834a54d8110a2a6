package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// SubmissionFilter allows narrowing quiz submission queries.
type SubmissionFilter struct {
	QuizID    *uint
	StudentID *uint
}

// GradeFunc mutates a locked submission. The entries' awarded points and the submission's
// score, grading and feedback fields are persisted after it returns.
type GradeFunc func(submission *models.QuizSubmission) error

// SubmissionRepository defines data operations for quiz submissions.
type SubmissionRepository interface {
	CreateOnce(ctx context.Context, submission *models.QuizSubmission) (bool, error)
	GetByID(ctx context.Context, id uint) (models.QuizSubmission, error)
	GetByQuizAndStudent(ctx context.Context, quizID, studentID uint) (models.QuizSubmission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]models.QuizSubmission, error)
	ApplyGrades(ctx context.Context, id uint, grade GradeFunc) (models.QuizSubmission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func orderedEntries(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC").Order("id ASC")
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.QuizSubmission{}).
		Preload("Quiz").
		Preload("Quiz.Course").
		Preload("Entries", orderedEntries)
}

// CreateOnce inserts the submission and its entries unless the student already submitted.
// The unique (quiz_id, student_id) index is the only serialization point: when the insert
// conflicts, the committed row is loaded into submission and false is returned.
func (r *submissionRepository) CreateOnce(ctx context.Context, submission *models.QuizSubmission) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries := submission.Entries
		result := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "quiz_id"}, {Name: "student_id"}},
				DoNothing: true,
			}).
			Create(submission)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		created = true
		for i := range entries {
			entries[i].SubmissionID = submission.ID
		}
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}
		submission.Entries = entries
		return nil
	})
	if err != nil {
		return false, err
	}

	if !created {
		existing, err := r.GetByQuizAndStudent(ctx, submission.QuizID, submission.StudentID)
		if err != nil {
			return false, err
		}
		*submission = existing
	}

	return created, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.QuizSubmission, error) {
	var submission models.QuizSubmission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.QuizSubmission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByQuizAndStudent(ctx context.Context, quizID, studentID uint) (models.QuizSubmission, error) {
	var submission models.QuizSubmission
	if err := r.baseQuery(ctx).
		Where("quiz_id = ?", quizID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.QuizSubmission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.QuizSubmission, error) {
	query := r.db.WithContext(ctx).Model(&models.QuizSubmission{}).
		Preload("Quiz").
		Preload("Quiz.Course")

	if filter.QuizID != nil {
		query = query.Where("quiz_id = ?", *filter.QuizID)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	var submissions []models.QuizSubmission
	if err := query.Order("submitted_at DESC").Order("id DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

// ApplyGrades runs grade against the submission inside one transaction. On postgres the row is
// locked so concurrent graders of the same submission are serialized.
func (r *submissionRepository) ApplyGrades(ctx context.Context, id uint, grade GradeFunc) (models.QuizSubmission, error) {
	if grade == nil {
		return models.QuizSubmission{}, errors.New("grade function is required")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.QuizSubmission{})
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var submission models.QuizSubmission
		if err := query.First(&submission, id).Error; err != nil {
			return err
		}
		if err := orderedEntries(tx).Where("submission_id = ?", id).Find(&submission.Entries).Error; err != nil {
			return err
		}

		if err := grade(&submission); err != nil {
			return err
		}

		for _, entry := range submission.Entries {
			if err := tx.Model(&models.GradeEntry{}).
				Where("id = ?", entry.ID).
				Updates(map[string]interface{}{
					"points_awarded": entry.PointsAwarded,
					"is_correct":     entry.IsCorrect,
				}).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.QuizSubmission{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"score":     submission.Score,
				"graded_at": submission.GradedAt,
				"graded_by": submission.GradedBy,
				"feedback":  submission.Feedback,
			}).Error
	})
	if err != nil {
		return models.QuizSubmission{}, err
	}

	return r.GetByID(ctx, id)
}
