package dto

import (
	"time"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// QuestionRequest describes one question in a create or define payload.
// Items carrying an id update that question; items without one create a new question.
type QuestionRequest struct {
	ID            *uint  `json:"id"`
	Type          string `json:"type" validate:"required,oneof=multiple_choice essay"`
	Points        int    `json:"points" validate:"gt=0"`
	Text          string `json:"text" validate:"required"`
	OptionA       string `json:"option_a" validate:"max=255"`
	OptionB       string `json:"option_b" validate:"max=255"`
	OptionC       string `json:"option_c" validate:"max=255"`
	OptionD       string `json:"option_d" validate:"max=255"`
	CorrectOption string `json:"correct_option" validate:"omitempty,oneof=A B C D"`
	AnswerKey     string `json:"answer_key"`
}

// QuizCreateRequest creates a quiz inside a course.
type QuizCreateRequest struct {
	Kind             string            `json:"kind" validate:"required,oneof=interactive document"`
	Title            string            `json:"title" validate:"required,max=255"`
	Description      string            `json:"description"`
	TotalPoints      int               `json:"total_points" validate:"gt=0"`
	TimeLimitMinutes *int              `json:"time_limit_minutes" validate:"omitempty,gt=0"`
	DueAt            *time.Time        `json:"due_at"`
	IsActive         *bool             `json:"is_active"`
	DocumentPath     string            `json:"document_path" validate:"max=512"`
	Questions        []QuestionRequest `json:"questions" validate:"dive"`
}

// QuizUpdateRequest partially updates quiz metadata. The kind cannot change.
type QuizUpdateRequest struct {
	Title            *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description      *string    `json:"description"`
	TotalPoints      *int       `json:"total_points" validate:"omitempty,gt=0"`
	TimeLimitMinutes *int       `json:"time_limit_minutes" validate:"omitempty,gte=0"`
	DueAt            *time.Time `json:"due_at"`
	ClearDueAt       bool       `json:"clear_due_at"`
	IsActive         *bool      `json:"is_active"`
	DocumentPath     *string    `json:"document_path" validate:"omitempty,max=512"`
}

// DefineQuestionsRequest replaces the full question list of an interactive quiz.
type DefineQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" validate:"dive"`
}

// QuestionResponse serializes a question. Answer fields are omitted in student views.
type QuestionResponse struct {
	ID            uint              `json:"id"`
	Position      int               `json:"position"`
	Type          string            `json:"type"`
	Points        int               `json:"points"`
	Text          string            `json:"text"`
	Options       map[string]string `json:"options,omitempty"`
	CorrectOption string            `json:"correct_option,omitempty"`
	AnswerKey     string            `json:"answer_key,omitempty"`
}

// QuizResponse is the teacher view of a quiz.
type QuizResponse struct {
	ID               uint               `json:"id"`
	CourseID         uint               `json:"course_id"`
	CreatedBy        uint               `json:"created_by"`
	Kind             string             `json:"kind"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	TotalPoints      int                `json:"total_points"`
	TimeLimitMinutes *int               `json:"time_limit_minutes"`
	DueAt            *time.Time         `json:"due_at"`
	IsActive         bool               `json:"is_active"`
	DocumentPath     string             `json:"document_path,omitempty"`
	QuestionCount    int                `json:"question_count"`
	Questions        []QuestionResponse `json:"questions"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// StudentQuizResponse is the student view: no answer keys, plus the student's own status.
type StudentQuizResponse struct {
	QuizResponse
	Overdue      bool  `json:"overdue"`
	HasSubmitted bool  `json:"has_submitted"`
	SubmissionID *uint `json:"submission_id"`
}

// NewQuestionResponse converts a question model, including answers when withAnswers is set.
func NewQuestionResponse(model models.Question, withAnswers bool) QuestionResponse {
	response := QuestionResponse{
		ID:       model.ID,
		Position: model.Position,
		Type:     model.Type,
		Points:   model.Points,
		Text:     model.Text,
	}
	if model.IsMultipleChoice() {
		response.Options = model.Options()
	}
	if withAnswers {
		response.CorrectOption = model.CorrectOption
		response.AnswerKey = model.AnswerKey
	}
	return response
}

// NewQuizResponse converts a quiz model into the teacher view.
func NewQuizResponse(model models.Quiz) QuizResponse {
	return newQuizResponse(model, true)
}

// NewStudentQuizResponse converts a quiz model into the student view with answers stripped.
func NewStudentQuizResponse(model models.Quiz) StudentQuizResponse {
	return StudentQuizResponse{QuizResponse: newQuizResponse(model, false)}
}

func newQuizResponse(model models.Quiz, withAnswers bool) QuizResponse {
	questions := make([]QuestionResponse, 0, len(model.Questions))
	for _, question := range model.Questions {
		questions = append(questions, NewQuestionResponse(question, withAnswers))
	}

	return QuizResponse{
		ID:               model.ID,
		CourseID:         model.CourseID,
		CreatedBy:        model.CreatedBy,
		Kind:             model.Kind,
		Title:            model.Title,
		Description:      model.Description,
		TotalPoints:      model.TotalPoints,
		TimeLimitMinutes: model.TimeLimitMinutes,
		DueAt:            model.DueAt,
		IsActive:         model.IsActive,
		DocumentPath:     model.DocumentPath,
		QuestionCount:    len(model.Questions),
		Questions:        questions,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

// NewQuizResponseSlice converts quiz models into teacher views.
func NewQuizResponseSlice(items []models.Quiz) []QuizResponse {
	responses := make([]QuizResponse, 0, len(items))
	for _, quiz := range items {
		responses = append(responses, NewQuizResponse(quiz))
	}
	return responses
}

// DocumentUploadResponse describes a stored quiz document or answer file.
type DocumentUploadResponse struct {
	Path      string `json:"path"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}
