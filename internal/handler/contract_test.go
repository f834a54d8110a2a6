package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()

	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)
	return schema
}

func validateBody(t *testing.T, schema *jsonschema.Schema, resp *http.Response) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload), string(body))
}

func TestStudentQuizContract(t *testing.T) {
	qa := setupQuizApp(t)
	quiz := createQuiz(t, qa, interactiveQuizPayload())

	resp := qa.json(t, http.MethodGet, fmt.Sprintf("/api/v1/quizzes/%d", quiz.ID), nil, studentID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	validateBody(t, compileSchema(t, "student_quiz.schema.json"), resp)
}

func TestSubmissionReceiptContract(t *testing.T) {
	qa := setupQuizApp(t)
	quiz := createQuiz(t, qa, interactiveQuizPayload())
	schema := compileSchema(t, "submission_receipt.schema.json")
	path := fmt.Sprintf("/api/v1/quizzes/%d/submit", quiz.ID)
	answers := map[string]interface{}{"answers": map[string]string{fmt.Sprintf("%d", quiz.Questions[0].ID): "A"}}

	resp := qa.json(t, http.MethodPost, path, answers, studentID, "student")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	validateBody(t, schema, resp)

	resp = qa.json(t, http.MethodPost, path, answers, studentID, "student")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	validateBody(t, schema, resp)
}
