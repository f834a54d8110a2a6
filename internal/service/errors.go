package service

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz does not exist or is hidden from the caller.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrCourseNotFound indicates the course does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrQuestionNotFound indicates a question id does not belong to the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSubmissionNotFound indicates the submission does not exist or is not visible to the caller.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrAttemptNotFound indicates the student never started the quiz.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrForbidden indicates the caller lacks the role or ownership for the operation.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrQuizInactive indicates the quiz is not open to students.
	ErrQuizInactive = errors.New("quiz is not active")
	// ErrDeadlineExceeded indicates the due date or the attempt deadline has passed.
	ErrDeadlineExceeded = errors.New("quiz deadline has passed")
	// ErrAlreadySubmitted indicates the student already handed in this quiz.
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	// ErrDuplicateSubmission accompanies the existing submission when a submit loses the race.
	ErrDuplicateSubmission = errors.New("submission already recorded")
	// ErrNotGraded indicates the submission has no final score yet.
	ErrNotGraded = errors.New("submission has not been graded yet")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrFileStoreUnavailable indicates no file store is configured.
	ErrFileStoreUnavailable = errors.New("file store unavailable")
)

// ValidationError reports a malformed quiz, question or grading payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var errFileOnInteractive = validationError("file", "interactive quizzes are answered inline, not with a file")
