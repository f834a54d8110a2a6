package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

func newSubmission(quiz models.Quiz, studentID uint, answer string) models.QuizSubmission {
	question := quiz.Questions[0]
	return models.QuizSubmission{
		QuizID:      quiz.ID,
		StudentID:   studentID,
		Kind:        quiz.Kind,
		Trigger:     models.SubmissionTriggerExplicit,
		SubmittedAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		Entries: []models.GradeEntry{{
			QuestionID:    question.ID,
			Position:      question.Position,
			QuestionText:  question.Text,
			QuestionType:  models.QuestionTypeEssay,
			Points:        question.Points,
			StudentAnswer: answer,
		}},
	}
}

func TestSubmissionRepositoryCreateOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	quiz := seedQuiz(t, db, choice("q", 1))

	first := newSubmission(quiz, 21, "pertama")
	created, err := repo.CreateOnce(context.Background(), &first)
	require.NoError(t, err)
	require.True(t, created)
	require.NotZero(t, first.ID)
	require.Equal(t, first.ID, first.Entries[0].SubmissionID)

	second := newSubmission(quiz, 21, "kedua")
	created, err = repo.CreateOnce(context.Background(), &second)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "pertama", second.Entries[0].StudentAnswer)

	other := newSubmission(quiz, 22, "lain")
	created, err = repo.CreateOnce(context.Background(), &other)
	require.NoError(t, err)
	require.True(t, created)

	var entries int64
	require.NoError(t, db.Model(&models.GradeEntry{}).Count(&entries).Error)
	require.Equal(t, int64(2), entries)

	studentID := uint(21)
	mine, err := repo.List(context.Background(), SubmissionFilter{StudentID: &studentID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Quiz)
	require.NotNil(t, mine[0].Quiz.Course)
}

func TestSubmissionRepositoryApplyGrades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	quiz := seedQuiz(t, db, choice("q", 1))

	submission := newSubmission(quiz, 21, "jawaban")
	_, err := repo.CreateOnce(context.Background(), &submission)
	require.NoError(t, err)

	gradedAt := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	grader := uint(7)
	updated, err := repo.ApplyGrades(context.Background(), submission.ID, func(locked *models.QuizSubmission) error {
		award := 4.0
		locked.Entries[0].PointsAwarded = &award
		locked.Score = &award
		locked.GradedAt = &gradedAt
		locked.GradedBy = &grader
		locked.Feedback = "Cukup"
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 4.0, *updated.Score)
	require.Equal(t, 4.0, *updated.Entries[0].PointsAwarded)
	require.Equal(t, "Cukup", updated.Feedback)
	require.True(t, updated.GradedAt.Equal(gradedAt))

	_, err = repo.ApplyGrades(context.Background(), submission.ID, nil)
	require.Error(t, err)
}
