package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/models"
)

func interactiveQuizPayload() map[string]interface{} {
	return map[string]interface{}{
		"kind":         "interactive",
		"title":        "Kuis HTML Dasar",
		"total_points": 100,
		"questions": []map[string]interface{}{
			{"type": "multiple_choice", "points": 50, "text": "Tag paragraf?", "option_a": "<p>", "option_b": "<div>", "correct_option": "A"},
			{"type": "multiple_choice", "points": 50, "text": "Tag tautan?", "option_a": "<link>", "option_b": "<a>", "correct_option": "B"},
		},
	}
}

func createQuiz(t *testing.T, qa *quizApp, payload map[string]interface{}) dto.QuizResponse {
	t.Helper()

	resp := qa.json(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/quizzes", qa.course.ID), payload, teacherID, "teacher")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var quiz dto.QuizResponse
	decodeData(t, resp, &quiz)
	return quiz
}

func TestInteractiveQuizFlow(t *testing.T) {
	qa := setupQuizApp(t)
	quiz := createQuiz(t, qa, interactiveQuizPayload())
	require.True(t, quiz.IsActive)
	require.Len(t, quiz.Questions, 2)
	require.Equal(t, "A", quiz.Questions[0].CorrectOption)
	quizPath := fmt.Sprintf("/api/v1/quizzes/%d", quiz.ID)

	resp := qa.json(t, http.MethodGet, quizPath, nil, studentID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	envelope := decodeData(t, resp, nil)
	require.NotContains(t, string(envelope.Data), "correct_option")

	resp = qa.json(t, http.MethodPost, quizPath+"/attempts", nil, studentID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var attempt dto.AttemptResponse
	decodeData(t, resp, &attempt)
	require.Equal(t, models.AttemptStateInProgress, attempt.State)
	require.Nil(t, attempt.Deadline)

	first := fmt.Sprintf("%d", quiz.Questions[0].ID)
	second := fmt.Sprintf("%d", quiz.Questions[1].ID)
	resp = qa.json(t, http.MethodPut, quizPath+"/attempts/answers", map[string]interface{}{
		"answers": map[string]string{first: "A"},
	}, studentID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = qa.json(t, http.MethodPost, quizPath+"/submissions", map[string]interface{}{
		"answers": map[string]string{first: "A", second: "A"},
	}, studentID, "student")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var receipt dto.SubmissionReceipt
	decodeData(t, resp, &receipt)
	require.Equal(t, dto.SubmissionStatusGraded, receipt.Status)
	require.Equal(t, 50.0, *receipt.Score)
	require.Equal(t, 50, *receipt.Percentage)
	require.False(t, receipt.Duplicate)

	resp = qa.json(t, http.MethodPost, quizPath+"/submit", map[string]interface{}{
		"answers": map[string]string{first: "A", second: "B"},
	}, studentID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var duplicate dto.SubmissionReceipt
	decodeData(t, resp, &duplicate)
	require.True(t, duplicate.Duplicate)
	require.Equal(t, receipt.SubmissionID, duplicate.SubmissionID)
	require.Equal(t, 50.0, *duplicate.Score)

	resp = qa.json(t, http.MethodPost, quizPath+"/attempts", nil, studentID, "student")
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = qa.json(t, http.MethodGet, "/api/v1/student/quiz-results", nil, studentID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var results []dto.StudentQuizResult
	envelope = decodeData(t, resp, &results)
	require.Len(t, results, 1)
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(envelope.Meta, &meta))
	require.Equal(t, float64(1), meta["count"])
	require.Equal(t, float64(50), meta["average_percentage"])

	resp = qa.json(t, http.MethodGet, fmt.Sprintf("/api/v1/student/quiz-results/%d", receipt.SubmissionID), nil, studentID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var detail dto.StudentQuizResult
	decodeData(t, resp, &detail)
	require.Len(t, detail.Entries, 2)
	require.Equal(t, "B", detail.Entries[1].CorrectOption)

	resp = qa.json(t, http.MethodGet, quizPath+"/submissions", nil, teacherID, "teacher")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list dto.QuizSubmissionListResponse
	decodeData(t, resp, &list)
	require.Equal(t, 1, list.Stats.Total)
	require.Equal(t, 1, list.Stats.Graded)
	require.Equal(t, 50.0, *list.Stats.AverageScore)

	resp = qa.json(t, http.MethodGet, quizPath+"/activity?page=1&page_size=5", nil, teacherID, "teacher")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestEssayGradingFlow(t *testing.T) {
	qa := setupQuizApp(t)
	quiz := createQuiz(t, qa, map[string]interface{}{
		"kind":         "interactive",
		"title":        "Esai CSS",
		"total_points": 20,
		"questions": []map[string]interface{}{
			{"type": "essay", "points": 20, "text": "Jelaskan box model", "answer_key": "content padding border margin"},
		},
	})
	quizPath := fmt.Sprintf("/api/v1/quizzes/%d", quiz.ID)

	resp := qa.json(t, http.MethodPost, quizPath+"/submissions", map[string]interface{}{
		"answers": map[string]string{fmt.Sprintf("%d", quiz.Questions[0].ID): "Isi, padding, border, margin"},
	}, studentID, "student")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var receipt dto.SubmissionReceipt
	decodeData(t, resp, &receipt)
	require.Equal(t, dto.SubmissionStatusPending, receipt.Status)
	require.Nil(t, receipt.Score)

	resultPath := fmt.Sprintf("/api/v1/student/quiz-results/%d", receipt.SubmissionID)
	resp = qa.json(t, http.MethodGet, resultPath, nil, studentID, "student")
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	gradePath := fmt.Sprintf("/api/v1/submissions/%d/grade", receipt.SubmissionID)
	gradePayload := map[string]interface{}{
		"grades":   []map[string]interface{}{{"question_id": quiz.Questions[0].ID, "points_awarded": 25}},
		"feedback": "Lengkap",
	}
	resp = qa.json(t, http.MethodPost, gradePath, gradePayload, studentID, "student")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp = qa.json(t, http.MethodPost, gradePath, gradePayload, 8, "teacher")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = qa.json(t, http.MethodPost, gradePath, gradePayload, teacherID, "teacher")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var graded dto.SubmissionResponse
	decodeData(t, resp, &graded)
	require.Equal(t, 20.0, *graded.Score)
	require.Equal(t, 100, *graded.Percentage)
	require.Equal(t, "Lengkap", graded.Feedback)

	resp = qa.json(t, http.MethodGet, resultPath, nil, studentID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = qa.json(t, http.MethodGet, resultPath, nil, 22, "student")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDocumentQuizFlow(t *testing.T) {
	qa := setupQuizApp(t)
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

	resp := qa.upload(t, "/api/v1/quizzes/documents", "soal.pdf", pdf, nil, studentID, "student")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = qa.upload(t, "/api/v1/quizzes/documents", "soal.pdf", pdf, nil, teacherID, "teacher")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var uploaded dto.DocumentUploadResponse
	decodeData(t, resp, &uploaded)
	require.Equal(t, "application/pdf", uploaded.MimeType)

	resp = qa.upload(t, "/api/v1/quizzes/documents", "virus.exe", append([]byte("MZ\x90\x00"), make([]byte, 64)...), nil, teacherID, "teacher")
	require.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)

	quiz := createQuiz(t, qa, map[string]interface{}{
		"kind":          "document",
		"title":         "Tugas Dokumen",
		"total_points":  100,
		"document_path": uploaded.Path,
	})
	require.True(t, quiz.IsActive)
	quizPath := fmt.Sprintf("/api/v1/quizzes/%d", quiz.ID)

	resp = qa.json(t, http.MethodGet, quizPath+"/document", nil, studentID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentDisposition), "attachment"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, pdf, body)

	answer := []byte("jawaban saya")
	resp = qa.upload(t, quizPath+"/submissions", "jawaban.txt", answer, nil, studentID, "student")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var receipt dto.SubmissionReceipt
	decodeData(t, resp, &receipt)
	require.Equal(t, dto.SubmissionStatusPending, receipt.Status)

	resp = qa.json(t, http.MethodGet, fmt.Sprintf("/api/v1/submissions/%d/file", receipt.SubmissionID), nil, teacherID, "teacher")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, answer, body)

	resp = qa.json(t, http.MethodPost, fmt.Sprintf("/api/v1/submissions/%d/grade", receipt.SubmissionID), map[string]interface{}{"score": 120}, teacherID, "teacher")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var graded dto.SubmissionResponse
	decodeData(t, resp, &graded)
	require.Equal(t, 100.0, *graded.Score)

	resp = qa.json(t, http.MethodDelete, quizPath, nil, teacherID, "teacher")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = qa.json(t, http.MethodGet, quizPath, nil, teacherID, "teacher")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestQuizErrorMapping(t *testing.T) {
	qa := setupQuizApp(t)
	coursePath := fmt.Sprintf("/api/v1/courses/%d/quizzes", qa.course.ID)

	resp := qa.json(t, http.MethodGet, coursePath, nil, 0, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = qa.json(t, http.MethodPost, coursePath, interactiveQuizPayload(), studentID, "student")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = qa.json(t, http.MethodPost, coursePath, map[string]interface{}{"kind": "poster", "title": "", "total_points": 0}, teacherID, "teacher")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	envelope := decodeData(t, resp, nil)
	require.Equal(t, "validation failed", envelope.Message)
	require.NotEmpty(t, envelope.Details)

	resp = qa.json(t, http.MethodGet, "/api/v1/quizzes/abc", nil, teacherID, "teacher")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = qa.json(t, http.MethodGet, "/api/v1/quizzes/999", nil, teacherID, "teacher")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	overdue := interactiveQuizPayload()
	overdue["due_at"] = time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	quiz := createQuiz(t, qa, overdue)
	quizPath := fmt.Sprintf("/api/v1/quizzes/%d", quiz.ID)

	resp = qa.json(t, http.MethodPut, quizPath, map[string]interface{}{"title": "Dibajak"}, 8, "teacher")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = qa.json(t, http.MethodPost, quizPath+"/attempts", nil, studentID, "student")
	require.Equal(t, fiber.StatusGone, resp.StatusCode)

	resp = qa.json(t, http.MethodPut, quizPath+"/attempts/answers", map[string]interface{}{"answers": map[string]string{}}, studentID, "student")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = qa.json(t, http.MethodPatch, quizPath, map[string]interface{}{"is_active": false}, teacherID, "teacher")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = qa.json(t, http.MethodGet, quizPath, nil, studentID, "student")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestTutorAndHealthEndpoints(t *testing.T) {
	qa := setupQuizApp(t)

	resp := qa.json(t, http.MethodPost, "/api/v1/tutor/ask", map[string]string{"question": "Apa itu semantic HTML?"}, studentID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var answer dto.TutorAskResponse
	decodeData(t, resp, &answer)
	require.Equal(t, "AI answer for: Apa itu semantic HTML?", answer.Answer)

	resp = qa.json(t, http.MethodPost, "/api/v1/tutor/ask", map[string]string{"question": ""}, studentID, "student")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = qa.json(t, http.MethodGet, "/health", nil, 0, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestFileSubmitToInteractiveQuizIsRejectedAndCleanedUp(t *testing.T) {
	qa := setupQuizApp(t)
	quiz := createQuiz(t, qa, interactiveQuizPayload())
	quizPath := fmt.Sprintf("/api/v1/quizzes/%d", quiz.ID)

	resp := qa.upload(t, quizPath+"/submissions", "jawaban.txt", []byte("jawaban saya"), nil, studentID, "student")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	envelope := decodeData(t, resp, nil)
	require.Contains(t, string(envelope.Details), `"file"`)

	stored, err := os.ReadDir(qa.storeRoot)
	require.NoError(t, err)
	require.Empty(t, stored)

	var submissions int64
	require.NoError(t, qa.db.Model(&models.QuizSubmission{}).Count(&submissions).Error)
	require.Zero(t, submissions)

	resp = qa.json(t, http.MethodPost, quizPath+"/submissions", map[string]interface{}{
		"answers": map[string]string{},
	}, studentID, "student")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
}
