package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"entrytest/internal/exam"
	"entrytest/internal/question"
	"entrytest/internal/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubSessions map[int64]*exam.Session

func (s stubSessions) FindByStudentID(ctx context.Context, studentID int64) (*exam.Session, error) {
	sess, ok := s[studentID]
	if !ok {
		return nil, exam.ErrSessionNotFound
	}
	return sess, nil
}

type stubStudents map[int64]*student.Student

func (s stubStudents) Get(ctx context.Context, id int64) (*student.Student, error) {
	st, ok := s[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	return st, nil
}

type stubQuestions []question.Question

func (s stubQuestions) FindByIDs(ctx context.Context, ids []int64) ([]question.Question, error) {
	return s, nil
}

func TestWriteResultsWorkbook(t *testing.T) {
	end := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	data, err := writeResultsWorkbook([]ResultRow{
		{AccessCode: "123456", Name: "Ali", FatherName: "Khan", ClassLevel: "Grade 3", Score: 24, Total: 30, Percentage: 80, Grade: "A", EndTime: &end},
		{AccessCode: "654321", Name: "Sara", ClassLevel: "Grade 4", Score: 3, Total: 10, Percentage: 30, Grade: "F"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "access_code", rows[0][0])
	assert.Equal(t, []string{"123456", "Ali", "Khan", "Grade 3", "24", "30", "80", "A", "2024-03-01 10:30:00"}, rows[1])
	assert.Equal(t, "F", rows[2][7])
}

func TestStudentResult(t *testing.T) {
	end := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	score := 1
	svc := NewService(nil,
		stubSessions{
			1: {ID: 10, StudentID: 1, QuestionIDs: []int64{1, 2}, Answers: exam.Answers{1: 3}, EndTime: &end},
			2: {ID: 11, StudentID: 2, QuestionIDs: []int64{1, 2}, Answers: exam.Answers{}},
		},
		stubStudents{
			1: {ID: 1, Name: "Ali", Status: student.StatusCompleted, Score: &score},
			2: {ID: 2, Name: "Sara", Status: student.StatusStarted},
			3: {ID: 3, Name: "Omar", Status: student.StatusPending},
		},
		stubQuestions{
			{ID: 1, Subject: question.English, CorrectOption: 3},
			{ID: 2, Subject: question.Urdu, CorrectOption: 0},
		},
	)
	ctx := context.Background()

	res, err := svc.StudentResult(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 50, res.Percentage)
	assert.Equal(t, "D", res.Grade)
	require.Len(t, res.Items, 2)
	assert.True(t, res.Items[0].IsCorrect)

	_, err = svc.StudentResult(ctx, 2)
	assert.ErrorIs(t, err, ErrResultNotFound)
	_, err = svc.StudentResult(ctx, 3)
	assert.ErrorIs(t, err, ErrResultNotFound)
	_, err = svc.StudentResult(ctx, 4)
	assert.ErrorIs(t, err, ErrResultNotFound)
}
