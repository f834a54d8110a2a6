package dto

import (
	"time"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// Submission statuses reported to clients.
const (
	SubmissionStatusPending = "pending"
	SubmissionStatusGraded  = "graded"
)

// SubmitQuizRequest is the JSON body of an interactive submission.
type SubmitQuizRequest struct {
	Answers map[string]string `json:"answers"`
	Forced  bool              `json:"forced"`
}

// EntryGradeRequest awards points to one essay question.
type EntryGradeRequest struct {
	QuestionID    uint    `json:"question_id" validate:"required"`
	PointsAwarded float64 `json:"points_awarded"`
}

// GradeSubmissionRequest is the manual grading payload.
// Score applies to document submissions only.
type GradeSubmissionRequest struct {
	Grades   []EntryGradeRequest `json:"grades" validate:"dive"`
	Score    *float64            `json:"score"`
	Feedback *string             `json:"feedback" validate:"omitempty,max=5000"`
}

// SubmissionReceipt is returned to the student after submitting.
type SubmissionReceipt struct {
	SubmissionID uint      `json:"submission_id"`
	QuizID       uint      `json:"quiz_id"`
	Trigger      string    `json:"trigger"`
	Status       string    `json:"status"`
	Score        *float64  `json:"score"`
	Percentage   *int      `json:"percentage"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Duplicate    bool      `json:"duplicate"`
}

// GradeEntryResponse serializes a per-question snapshot.
type GradeEntryResponse struct {
	QuestionID    uint     `json:"question_id"`
	Position      int      `json:"position"`
	QuestionText  string   `json:"question_text"`
	QuestionType  string   `json:"question_type"`
	Points        int      `json:"points"`
	StudentAnswer string   `json:"student_answer"`
	CorrectOption string   `json:"correct_option,omitempty"`
	IsCorrect     *bool    `json:"is_correct"`
	PointsAwarded *float64 `json:"points_awarded"`
}

// SubmissionResponse is the teacher view of a submission.
type SubmissionResponse struct {
	ID          uint                 `json:"id"`
	QuizID      uint                 `json:"quiz_id"`
	StudentID   uint                 `json:"student_id"`
	Kind        string               `json:"kind"`
	Trigger     string               `json:"trigger"`
	FilePath    string               `json:"file_path,omitempty"`
	Status      string               `json:"status"`
	Score       *float64             `json:"score"`
	Percentage  *int                 `json:"percentage"`
	SubmittedAt time.Time            `json:"submitted_at"`
	GradedAt    *time.Time           `json:"graded_at"`
	GradedBy    *uint                `json:"graded_by"`
	Feedback    string               `json:"feedback"`
	Entries     []GradeEntryResponse `json:"entries,omitempty"`
}

// SubmissionStats summarizes the submissions of a quiz.
type SubmissionStats struct {
	Total        int      `json:"total"`
	Graded       int      `json:"graded"`
	Pending      int      `json:"pending"`
	AverageScore *float64 `json:"average_score"`
}

// QuizSubmissionListResponse lists submissions of one quiz for its teacher.
type QuizSubmissionListResponse struct {
	QuizID      uint                 `json:"quiz_id"`
	QuizTitle   string               `json:"quiz_title"`
	TotalPoints int                  `json:"total_points"`
	Items       []SubmissionResponse `json:"items"`
	Stats       SubmissionStats      `json:"stats"`
}

// StudentQuizResult is one row of a student's own result list.
type StudentQuizResult struct {
	SubmissionID uint                 `json:"submission_id"`
	QuizID       uint                 `json:"quiz_id"`
	QuizTitle    string               `json:"quiz_title"`
	CourseID     uint                 `json:"course_id"`
	CourseTitle  string               `json:"course_title"`
	Kind         string               `json:"kind"`
	SubmittedAt  time.Time            `json:"submitted_at"`
	IsGraded     bool                 `json:"is_graded"`
	Score        *float64             `json:"score"`
	TotalPoints  int                  `json:"total_points"`
	Percentage   *int                 `json:"percentage"`
	Feedback     string               `json:"feedback,omitempty"`
	Entries      []GradeEntryResponse `json:"entries,omitempty"`
}

// StudentQuizResultList wraps a student's results.
type StudentQuizResultList struct {
	Items             []StudentQuizResult `json:"items"`
	AveragePercentage *float64            `json:"average_percentage"`
}

// NewGradeEntryResponse converts a grade entry. The correct option is included only when
// withAnswers is set.
func NewGradeEntryResponse(entry models.GradeEntry, withAnswers bool) GradeEntryResponse {
	response := GradeEntryResponse{
		QuestionID:    entry.QuestionID,
		Position:      entry.Position,
		QuestionText:  entry.QuestionText,
		QuestionType:  entry.QuestionType,
		Points:        entry.Points,
		StudentAnswer: entry.StudentAnswer,
		IsCorrect:     entry.IsCorrect,
		PointsAwarded: entry.PointsAwarded,
	}
	if withAnswers {
		response.CorrectOption = entry.CorrectOption
	}
	return response
}

// NewGradeEntryResponseSlice converts entries.
func NewGradeEntryResponseSlice(entries []models.GradeEntry, withAnswers bool) []GradeEntryResponse {
	responses := make([]GradeEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, NewGradeEntryResponse(entry, withAnswers))
	}
	return responses
}

// NewSubmissionResponse converts a submission model into the teacher view.
func NewSubmissionResponse(model models.QuizSubmission, withEntries bool) SubmissionResponse {
	response := SubmissionResponse{
		ID:          model.ID,
		QuizID:      model.QuizID,
		StudentID:   model.StudentID,
		Kind:        model.Kind,
		Trigger:     model.Trigger,
		FilePath:    model.FilePath,
		Status:      SubmissionStatus(model),
		Score:       model.Score,
		SubmittedAt: model.SubmittedAt,
		GradedAt:    model.GradedAt,
		GradedBy:    model.GradedBy,
		Feedback:    model.Feedback,
	}
	if withEntries {
		response.Entries = NewGradeEntryResponseSlice(model.Entries, true)
	}
	return response
}

// NewSubmissionReceipt builds the student-facing acknowledgement of a submission.
func NewSubmissionReceipt(model models.QuizSubmission, duplicate bool) SubmissionReceipt {
	return SubmissionReceipt{
		SubmissionID: model.ID,
		QuizID:       model.QuizID,
		Trigger:      model.Trigger,
		Status:       SubmissionStatus(model),
		SubmittedAt:  model.SubmittedAt,
		Duplicate:    duplicate,
	}
}

// SubmissionStatus reports graded once a score exists.
func SubmissionStatus(model models.QuizSubmission) string {
	if model.IsGraded() {
		return SubmissionStatusGraded
	}
	return SubmissionStatusPending
}
