package repository

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/database"
	"github.com/noah-isme/gema-quiz-api/internal/models"
)

var testDBSequence atomic.Int64

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:quiz_repo_%d_%d?mode=memory&cache=shared", testDBSequence.Add(1), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func seedQuiz(t *testing.T, db *gorm.DB, questions ...models.Question) models.Quiz {
	t.Helper()

	course := models.Course{TeacherID: 7, Title: "Pemrograman Web"}
	require.NoError(t, db.Create(&course).Error)

	quiz := models.Quiz{
		CourseID:    course.ID,
		CreatedBy:   7,
		Kind:        models.QuizKindInteractive,
		Title:       "Kuis HTML",
		TotalPoints: 10,
		IsActive:    true,
		Questions:   questions,
	}
	require.NoError(t, db.Create(&quiz).Error)
	return quiz
}

func choice(text string, position int) models.Question {
	return models.Question{
		Position:      position,
		Type:          models.QuestionTypeMultipleChoice,
		Points:        5,
		Text:          text,
		OptionA:       "ya",
		OptionB:       "tidak",
		CorrectOption: "A",
	}
}
