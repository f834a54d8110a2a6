package service

import (
	"math"
	"sort"
	"strconv"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// BuildGradeEntries snapshots the questions as they exist now and pairs them with the answers.
// Answers for question ids that are not part of questions are ignored.
func BuildGradeEntries(questions []models.Question, answers models.AnswerSet) []models.GradeEntry {
	ordered := make([]models.Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Position != ordered[j].Position {
			return ordered[i].Position < ordered[j].Position
		}
		return ordered[i].ID < ordered[j].ID
	})

	entries := make([]models.GradeEntry, 0, len(ordered))
	for i, question := range ordered {
		entry := models.GradeEntry{
			QuestionID:    question.ID,
			Position:      i + 1,
			QuestionText:  question.Text,
			QuestionType:  question.Type,
			Points:        question.Points,
			StudentAnswer: answers[strconv.FormatUint(uint64(question.ID), 10)],
		}
		if question.IsMultipleChoice() {
			entry.CorrectOption = question.CorrectOption
		}
		AutoGrade(&entry)
		entries = append(entries, entry)
	}
	return entries
}

// AutoGrade scores a multiple choice entry from its own snapshot. Essay entries are untouched.
// The comparison is exact, so an unanswered question is incorrect.
func AutoGrade(entry *models.GradeEntry) {
	if entry == nil || !entry.IsMultipleChoice() {
		return
	}

	correct := entry.CorrectOption != "" && entry.StudentAnswer == entry.CorrectOption
	awarded := 0.0
	if correct {
		awarded = float64(entry.Points)
	}
	entry.IsCorrect = &correct
	entry.PointsAwarded = &awarded
}

// ClampAward bounds a manual award to [0, points].
func ClampAward(value float64, points int) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > float64(points) {
		return float64(points)
	}
	return value
}

// ScoreFromEntries sums the awarded points. It reports false while any entry is ungraded.
func ScoreFromEntries(entries []models.GradeEntry) (float64, bool) {
	total := 0.0
	for _, entry := range entries {
		if entry.PointsAwarded == nil {
			return 0, false
		}
		total += *entry.PointsAwarded
	}
	return total, true
}

// Percentage returns round(score / totalPoints * 100).
func Percentage(score float64, totalPoints int) int {
	if totalPoints <= 0 {
		return 0
	}
	return int(math.Round(score / float64(totalPoints) * 100))
}

// PercentagePtr is Percentage for an optional score.
func PercentagePtr(score *float64, totalPoints int) *int {
	if score == nil {
		return nil
	}
	value := Percentage(*score, totalPoints)
	return &value
}

// AverageScore averages the scores of fully graded submissions. Ungraded submissions are left
// out of both the sum and the count, and nil is returned when nothing is graded.
func AverageScore(submissions []models.QuizSubmission) *float64 {
	total := 0.0
	graded := 0
	for _, submission := range submissions {
		if submission.Score == nil {
			continue
		}
		total += *submission.Score
		graded++
	}
	if graded == 0 {
		return nil
	}
	average := roundTo(total/float64(graded), 2)
	return &average
}

func roundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}
