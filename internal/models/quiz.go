package models

import (
	"strings"
	"time"
)

const (
	// QuizKindInteractive is answered question by question inside the platform.
	QuizKindInteractive = "interactive"
	// QuizKindDocument is a static document answered by uploading a file.
	QuizKindDocument = "document"
)

const (
	// QuestionTypeMultipleChoice has a single correct option among A-D.
	QuestionTypeMultipleChoice = "multiple_choice"
	// QuestionTypeEssay is graded manually by a teacher.
	QuestionTypeEssay = "essay"
)

// OptionKeys lists the option keys a multiple choice question may use, in display order.
var OptionKeys = []string{"A", "B", "C", "D"}

// Quiz groups questions or a document under timing, points and visibility rules.
type Quiz struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	CourseID         uint       `gorm:"not null;index" json:"course_id"`
	CreatedBy        uint       `gorm:"not null" json:"created_by"`
	Kind             string     `gorm:"size:16;not null" json:"kind"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Description      string     `gorm:"type:text" json:"description"`
	TotalPoints      int        `gorm:"not null" json:"total_points"`
	TimeLimitMinutes *int       `json:"time_limit_minutes"`
	DueAt            *time.Time `json:"due_at"`
	IsActive         bool       `gorm:"not null;default:false" json:"is_active"`
	DocumentPath     string     `gorm:"size:512" json:"document_path"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Course           *Course    `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Questions        []Question `gorm:"foreignKey:QuizID" json:"questions"`
}

// IsOverdue reports whether the due date has passed at the reference time.
func (q Quiz) IsOverdue(reference time.Time) bool {
	return q.DueAt != nil && reference.After(*q.DueAt)
}

// TimeLimit returns the configured time limit, or zero when the quiz is untimed.
func (q Quiz) TimeLimit() time.Duration {
	if q.TimeLimitMinutes == nil || *q.TimeLimitMinutes <= 0 {
		return 0
	}
	return time.Duration(*q.TimeLimitMinutes) * time.Minute
}

// IsInteractive reports whether students answer questions inline.
func (q Quiz) IsInteractive() bool {
	return q.Kind == QuizKindInteractive
}

// Question is a single item of an interactive quiz.
type Question struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	QuizID        uint      `gorm:"not null;index" json:"quiz_id"`
	Position      int       `gorm:"not null;default:0" json:"position"`
	Type          string    `gorm:"size:32;not null" json:"type"`
	Points        int       `gorm:"not null" json:"points"`
	Text          string    `gorm:"type:text;not null" json:"text"`
	OptionA       string    `gorm:"size:255" json:"option_a"`
	OptionB       string    `gorm:"size:255" json:"option_b"`
	OptionC       string    `gorm:"size:255" json:"option_c"`
	OptionD       string    `gorm:"size:255" json:"option_d"`
	CorrectOption string    `gorm:"size:1" json:"correct_option"`
	AnswerKey     string    `gorm:"type:text" json:"answer_key"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName keeps questions scoped to the quiz subsystem.
func (Question) TableName() string {
	return "quiz_questions"
}

// Options returns the non-empty options keyed by A-D.
func (q Question) Options() map[string]string {
	options := make(map[string]string, len(OptionKeys))
	for _, key := range OptionKeys {
		if value := q.Option(key); strings.TrimSpace(value) != "" {
			options[key] = value
		}
	}
	return options
}

// Option returns the text stored under key, or "" for keys outside OptionKeys.
func (q Question) Option(key string) string {
	switch key {
	case "A":
		return q.OptionA
	case "B":
		return q.OptionB
	case "C":
		return q.OptionC
	case "D":
		return q.OptionD
	}
	return ""
}

// IsMultipleChoice reports whether the question is auto-graded.
func (q Question) IsMultipleChoice() bool {
	return q.Type == QuestionTypeMultipleChoice
}
