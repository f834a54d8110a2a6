package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// QuizRepository persists quizzes and their question bank.
type QuizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	GetByID(ctx context.Context, id uint) (models.Quiz, error)
	ListByCourse(ctx context.Context, courseID uint, activeOnly bool) ([]models.Quiz, error)
	Update(ctx context.Context, quiz *models.Quiz) error
	ReplaceQuestions(ctx context.Context, quizID uint, questions []models.Question) ([]models.Question, error)
	Delete(ctx context.Context, id uint) ([]string, error)
}

type quizRepository struct {
	db *gorm.DB
}

// NewQuizRepository creates a quiz repository backed by gorm.
func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC").Order("id ASC")
}

func (r *quizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		questions := quiz.Questions
		if err := tx.Omit(clause.Associations).Create(quiz).Error; err != nil {
			return err
		}
		for i := range questions {
			questions[i].QuizID = quiz.ID
		}
		if len(questions) > 0 {
			if err := tx.Create(&questions).Error; err != nil {
				return err
			}
		}
		quiz.Questions = questions
		return nil
	})
}

func (r *quizRepository) GetByID(ctx context.Context, id uint) (models.Quiz, error) {
	var quiz models.Quiz
	err := r.db.WithContext(ctx).
		Preload("Questions", orderedQuestions).
		First(&quiz, id).Error
	return quiz, err
}

func (r *quizRepository) ListByCourse(ctx context.Context, courseID uint, activeOnly bool) ([]models.Quiz, error) {
	query := r.db.WithContext(ctx).
		Preload("Questions", orderedQuestions).
		Where("course_id = ?", courseID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var quizzes []models.Quiz
	if err := query.Order("created_at DESC").Order("id DESC").Find(&quizzes).Error; err != nil {
		return nil, err
	}
	return quizzes, nil
}

func (r *quizRepository) Update(ctx context.Context, quiz *models.Quiz) error {
	return r.db.WithContext(ctx).
		Model(quiz).
		Select("title", "description", "total_points", "time_limit_minutes", "due_at", "is_active", "document_path").
		Updates(quiz).Error
}

// ReplaceQuestions upserts the given questions and removes every other question of the quiz.
// Grade entries keep their own snapshot so nothing else is touched.
func (r *quizRepository) ReplaceQuestions(ctx context.Context, quizID uint, questions []models.Question) ([]models.Question, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keep := make([]uint, 0, len(questions))
		for i := range questions {
			questions[i].QuizID = quizID
			if questions[i].ID == 0 {
				if err := tx.Create(&questions[i]).Error; err != nil {
					return err
				}
			} else {
				result := tx.Model(&models.Question{}).
					Where("id = ? AND quiz_id = ?", questions[i].ID, quizID).
					Select("position", "type", "points", "text", "option_a", "option_b", "option_c", "option_d", "correct_option", "answer_key").
					Updates(&questions[i])
				if result.Error != nil {
					return result.Error
				}
				if result.RowsAffected == 0 {
					return gorm.ErrRecordNotFound
				}
			}
			keep = append(keep, questions[i].ID)
		}

		stale := tx.Where("quiz_id = ?", quizID)
		if len(keep) > 0 {
			stale = stale.Where("id NOT IN ?", keep)
		}
		return stale.Delete(&models.Question{}).Error
	})
	if err != nil {
		return nil, err
	}

	var stored []models.Question
	if err := orderedQuestions(r.db.WithContext(ctx)).Where("quiz_id = ?", quizID).Find(&stored).Error; err != nil {
		return nil, err
	}
	return stored, nil
}

// Delete removes the quiz with its questions, attempts, submissions and grade entries.
// It returns the stored file paths that belonged to the quiz so callers can clean the file store.
func (r *quizRepository) Delete(ctx context.Context, id uint) ([]string, error) {
	var files []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quiz models.Quiz
		if err := tx.First(&quiz, id).Error; err != nil {
			return err
		}
		if quiz.DocumentPath != "" {
			files = append(files, quiz.DocumentPath)
		}

		var answerFiles []string
		if err := tx.Model(&models.QuizSubmission{}).
			Where("quiz_id = ? AND file_path <> ''", id).
			Pluck("file_path", &answerFiles).Error; err != nil {
			return err
		}
		files = append(files, answerFiles...)

		submissionIDs := tx.Model(&models.QuizSubmission{}).Select("id").Where("quiz_id = ?", id)
		if err := tx.Where("submission_id IN (?)", submissionIDs).Delete(&models.GradeEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quiz_id = ?", id).Delete(&models.QuizSubmission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quiz_id = ?", id).Delete(&models.QuizAttempt{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quiz_id = ?", id).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Quiz{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
