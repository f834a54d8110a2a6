package service

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/models"
)

type fakeDocuments struct {
	mu      sync.Mutex
	removed []string
	files   map[string]string
}

func (f *fakeDocuments) Store(ctx context.Context, purpose string, file *multipart.FileHeader) (dto.DocumentUploadResponse, error) {
	return dto.DocumentUploadResponse{Path: purpose + "/" + file.Filename, FileName: file.Filename}, nil
}

func (f *fakeDocuments) Open(ctx context.Context, storedPath string) (io.ReadCloser, error) {
	content, ok := f.files[storedPath]
	if !ok {
		return nil, errors.New("missing file")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (f *fakeDocuments) Remove(ctx context.Context, storedPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, storedPath)
}

func TestRecorderScoresTheFiftyPointExample(t *testing.T) {
	env := newQuizEnv(t)
	first := mcQuestion("Tag untuk paragraf?", 50, "A")
	first.Position = 1
	second := mcQuestion("Properti warna teks?", 50, "B")
	second.Position = 2
	quiz := env.createQuiz(t, models.Quiz{TotalPoints: 100, IsActive: true, Questions: []models.Question{first, second}})

	submission, err := env.recorder().Record(context.Background(), RecordInput{
		QuizID:    quiz.ID,
		StudentID: env.student.ID,
		Answers: models.AnswerSet{
			answerKey(quiz.Questions[0].ID): "A",
			answerKey(quiz.Questions[1].ID): "C",
		},
	})
	require.NoError(t, err)
	require.NotZero(t, submission.ID)
	require.Equal(t, models.SubmissionTriggerExplicit, submission.Trigger)
	require.NotNil(t, submission.Score)
	require.Equal(t, 50.0, *submission.Score)
	require.Equal(t, 50, Percentage(*submission.Score, quiz.TotalPoints))
	require.NotNil(t, submission.GradedAt)
	require.True(t, submission.GradedAt.Equal(env.clock.Now()))
	require.Nil(t, submission.GradedBy)

	require.Len(t, submission.Entries, 2)
	require.True(t, *submission.Entries[0].IsCorrect)
	require.False(t, *submission.Entries[1].IsCorrect)
	require.Equal(t, 0.0, *submission.Entries[1].PointsAwarded)
}

func TestRecorderLeavesEssaySubmissionsUngraded(t *testing.T) {
	env := newQuizEnv(t)
	quiz := env.createQuiz(t, models.Quiz{TotalPoints: 30, IsActive: true, Questions: []models.Question{
		mcQuestion("Tag judul?", 10, "A"),
		essayQuestion("Jelaskan box model", 20),
	}})

	submission, err := env.recorder().Record(context.Background(), RecordInput{
		QuizID:    quiz.ID,
		StudentID: env.student.ID,
		Answers:   models.AnswerSet{answerKey(quiz.Questions[0].ID): "A"},
	})
	require.NoError(t, err)
	require.Nil(t, submission.Score)
	require.Nil(t, submission.GradedAt)
	require.False(t, submission.IsGraded())
}

func TestRecorderSnapshotsSurviveQuestionEdits(t *testing.T) {
	env := newQuizEnv(t)
	quiz := env.createQuiz(t, models.Quiz{TotalPoints: 100, IsActive: true, Questions: []models.Question{
		mcQuestion("Q1", 50, "A"),
		mcQuestion("Q2", 50, "B"),
	}})
	q1, q2 := quiz.Questions[0], quiz.Questions[1]

	recorded, err := env.recorder().Record(context.Background(), RecordInput{
		QuizID:    quiz.ID,
		StudentID: env.student.ID,
		Answers:   models.AnswerSet{answerKey(q1.ID): "A", answerKey(q2.ID): "B"},
	})
	require.NoError(t, err)
	require.Equal(t, 100.0, *recorded.Score)

	edited := q1
	edited.CorrectOption = "D"
	edited.Points = 5
	_, err = env.quizzes.ReplaceQuestions(context.Background(), quiz.ID, []models.Question{edited})
	require.NoError(t, err)

	reloaded, err := env.submissions.GetByID(context.Background(), recorded.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, *reloaded.Score)
	require.Len(t, reloaded.Entries, 2)
	require.Equal(t, "A", reloaded.Entries[0].CorrectOption)
	require.Equal(t, 50, reloaded.Entries[0].Points)
	require.True(t, *reloaded.Entries[0].IsCorrect)
	require.Equal(t, q2.ID, reloaded.Entries[1].QuestionID)
	require.Equal(t, 50.0, *reloaded.Entries[1].PointsAwarded)
}

func TestRecorderConcurrentSubmitsKeepOneSubmission(t *testing.T) {
	env := newQuizEnv(t)
	quiz := env.createQuiz(t, models.Quiz{TotalPoints: 10, IsActive: true, Questions: []models.Question{mcQuestion("Q", 10, "C")}})
	recorder := env.recorder()

	const callers = 8
	ids := make([]uint, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			submission, err := recorder.Record(context.Background(), RecordInput{
				QuizID:    quiz.ID,
				StudentID: env.student.ID,
				Answers:   models.AnswerSet{answerKey(quiz.Questions[0].ID): "C"},
			})
			ids[i] = submission.ID
			errs[i] = err
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < callers; i++ {
		if errs[i] == nil {
			created++
			continue
		}
		require.ErrorIs(t, errs[i], ErrDuplicateSubmission)
		require.True(t, IsDuplicate(errs[i]))
	}
	require.Equal(t, 1, created)
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}

	var count int64
	require.NoError(t, env.db.Model(&models.QuizSubmission{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	var entries int64
	require.NoError(t, env.db.Model(&models.GradeEntry{}).Count(&entries).Error)
	require.Equal(t, int64(1), entries)
}

func TestRecorderRejectsMissingAndInactiveQuizzes(t *testing.T) {
	env := newQuizEnv(t)
	inactive := env.createQuiz(t, models.Quiz{TotalPoints: 10, IsActive: false})

	_, err := env.recorder().Record(context.Background(), RecordInput{QuizID: 999, StudentID: env.student.ID})
	require.ErrorIs(t, err, ErrQuizNotFound)

	_, err = env.recorder().Record(context.Background(), RecordInput{QuizID: inactive.ID, StudentID: env.student.ID})
	require.ErrorIs(t, err, ErrQuizInactive)
}

func TestRecorderDocumentSubmissions(t *testing.T) {
	env := newQuizEnv(t)
	quiz := env.createQuiz(t, models.Quiz{Kind: models.QuizKindDocument, TotalPoints: 100, IsActive: true, DocumentPath: "quiz_document/soal.pdf"})
	docs := &fakeDocuments{}
	recorder := env.recorder()
	recorder.documents = docs

	_, err := recorder.Record(context.Background(), RecordInput{QuizID: quiz.ID, StudentID: env.student.ID})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "file", validation.Field)

	submission, err := recorder.Record(context.Background(), RecordInput{QuizID: quiz.ID, StudentID: env.student.ID, FilePath: "answer_file/jawaban.pdf"})
	require.NoError(t, err)
	require.Equal(t, "answer_file/jawaban.pdf", submission.FilePath)
	require.Empty(t, submission.Entries)
	require.Nil(t, submission.Score)

	duplicate, err := recorder.Record(context.Background(), RecordInput{QuizID: quiz.ID, StudentID: env.student.ID, FilePath: "answer_file/kedua.pdf"})
	require.ErrorIs(t, err, ErrDuplicateSubmission)
	require.Equal(t, submission.ID, duplicate.ID)
	require.Equal(t, "answer_file/jawaban.pdf", duplicate.FilePath)
	require.Equal(t, []string{"answer_file/kedua.pdf"}, docs.removed)
}

func TestRecorderRejectsFileForInteractiveQuiz(t *testing.T) {
	env := newQuizEnv(t)
	quiz := env.createQuiz(t, models.Quiz{TotalPoints: 10, IsActive: true, Questions: []models.Question{mcQuestion("Q", 10, "A")}})
	docs := &fakeDocuments{}
	recorder := env.recorder()
	recorder.documents = docs

	_, err := recorder.Record(context.Background(), RecordInput{QuizID: quiz.ID, StudentID: env.student.ID, FilePath: "answer_file/nyasar.pdf"})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "file", validation.Field)
	require.Equal(t, []string{"answer_file/nyasar.pdf"}, docs.removed)

	_, err = env.submissions.GetByQuizAndStudent(context.Background(), quiz.ID, env.student.ID)
	require.Error(t, err)
}
