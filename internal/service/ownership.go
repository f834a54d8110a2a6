package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

// courseGuard checks that a teacher owns the course a quiz belongs to.
type courseGuard struct {
	courses repository.CourseRepository
}

func (g courseGuard) authorize(ctx context.Context, courseID uint, actor Principal) error {
	if !actor.IsTeacher() {
		return ErrForbidden
	}

	course, err := g.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}

	if actor.IsAdmin() || course.TeacherID == actor.ID {
		return nil
	}
	return ErrForbidden
}

func loadQuiz(ctx context.Context, quizzes repository.QuizRepository, quizID uint) (models.Quiz, error) {
	quiz, err := quizzes.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Quiz{}, ErrQuizNotFound
		}
		return models.Quiz{}, err
	}
	return quiz, nil
}

func (g courseGuard) ownedQuiz(ctx context.Context, quizzes repository.QuizRepository, quizID uint, actor Principal) (models.Quiz, error) {
	if !actor.IsTeacher() {
		return models.Quiz{}, ErrForbidden
	}

	quiz, err := loadQuiz(ctx, quizzes, quizID)
	if err != nil {
		return models.Quiz{}, err
	}

	if err := g.authorize(ctx, quiz.CourseID, actor); err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			return models.Quiz{}, ErrForbidden
		}
		return models.Quiz{}, err
	}
	return quiz, nil
}
