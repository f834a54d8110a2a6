package models

import "time"

const (
	// SubmissionTriggerExplicit marks a submission sent by the student.
	SubmissionTriggerExplicit = "explicit"
	// SubmissionTriggerForced marks a submission created because the time limit ran out.
	SubmissionTriggerForced = "forced"
)

// QuizSubmission is the single answer set a student hands in for a quiz.
type QuizSubmission struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	QuizID      uint         `gorm:"not null;uniqueIndex:idx_quiz_submission_student" json:"quiz_id"`
	StudentID   uint         `gorm:"not null;uniqueIndex:idx_quiz_submission_student;index" json:"student_id"`
	Kind        string       `gorm:"size:16;not null" json:"kind"`
	Trigger     string       `gorm:"size:16;not null" json:"trigger"`
	FilePath    string       `gorm:"size:512" json:"file_path"`
	Score       *float64     `json:"score"`
	SubmittedAt time.Time    `gorm:"not null" json:"submitted_at"`
	GradedAt    *time.Time   `json:"graded_at"`
	GradedBy    *uint        `json:"graded_by"`
	Feedback    string       `gorm:"type:text" json:"feedback"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Quiz        *Quiz        `gorm:"foreignKey:QuizID" json:"quiz,omitempty"`
	Entries     []GradeEntry `gorm:"foreignKey:SubmissionID" json:"entries"`
}

// IsGraded reports whether the submission carries a final score.
func (s QuizSubmission) IsGraded() bool {
	return s.Score != nil
}

// GradeEntry is the per-question snapshot stored with a submission.
// Points, type and correct option are copied at submission time and never follow later edits.
type GradeEntry struct {
	ID            uint     `gorm:"primaryKey" json:"id"`
	SubmissionID  uint     `gorm:"not null;uniqueIndex:idx_grade_entry_question" json:"submission_id"`
	QuestionID    uint     `gorm:"not null;uniqueIndex:idx_grade_entry_question" json:"question_id"`
	Position      int      `gorm:"not null;default:0" json:"position"`
	QuestionText  string   `gorm:"type:text" json:"question_text"`
	QuestionType  string   `gorm:"size:32;not null" json:"question_type"`
	Points        int      `gorm:"not null" json:"points"`
	StudentAnswer string   `gorm:"type:text" json:"student_answer"`
	CorrectOption string   `gorm:"size:1" json:"correct_option"`
	IsCorrect     *bool    `json:"is_correct"`
	PointsAwarded *float64 `json:"points_awarded"`
}

// TableName keeps grade entries scoped to the quiz subsystem.
func (GradeEntry) TableName() string {
	return "quiz_grade_entries"
}

// IsMultipleChoice reports whether the entry is auto-graded.
func (e GradeEntry) IsMultipleChoice() bool {
	return e.QuestionType == QuestionTypeMultipleChoice
}
