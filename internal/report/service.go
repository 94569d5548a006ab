package report

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"entrytest/internal/exam"
	"entrytest/internal/question"
	"entrytest/internal/student"

	"github.com/xuri/excelize/v2"
)

var ErrResultNotFound = errors.New("result not found")

const recentResultsLimit = 5

type sessionFinder interface {
	FindByStudentID(ctx context.Context, studentID int64) (*exam.Session, error)
}

type studentGetter interface {
	Get(ctx context.Context, id int64) (*student.Student, error)
}

type questionReader interface {
	FindByIDs(ctx context.Context, ids []int64) ([]question.Question, error)
}

type Service struct {
	db        *sql.DB
	sessions  sessionFinder
	students  studentGetter
	questions questionReader
}

type Dashboard struct {
	TotalStudents   int64       `json:"total_students"`
	PendingStudents int64       `json:"pending_students"`
	ActiveTests     int64       `json:"active_tests"`
	CompletedTests  int64       `json:"completed_tests"`
	TotalQuestions  int64       `json:"total_questions"`
	RecentResults   []ResultRow `json:"recent_results"`
}

// ResultRow is one completed test. Total is the frozen question count of the
// student's session.
type ResultRow struct {
	StudentID  int64      `json:"student_id"`
	SessionID  int64      `json:"session_id"`
	AccessCode string     `json:"access_code"`
	Name       string     `json:"name"`
	FatherName string     `json:"father_name"`
	ClassLevel string     `json:"class_level"`
	Score      int        `json:"score"`
	Total      int        `json:"total"`
	Percentage int        `json:"percentage"`
	Grade      string     `json:"grade"`
	EndTime    *time.Time `json:"end_time,omitempty"`
}

type ResultFilter struct {
	ClassLevel string
	Query      string
	Limit      int
	Offset     int
}

func NewService(db *sql.DB, sessions sessionFinder, students studentGetter, questions questionReader) *Service {
	return &Service{db: db, sessions: sessions, students: students, questions: questions}
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	out := &Dashboard{}
	if err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'started'),
			COUNT(*) FILTER (WHERE status = 'completed')
		FROM students
	`).Scan(&out.TotalStudents, &out.PendingStudents, &out.ActiveTests, &out.CompletedTests); err != nil {
		return nil, fmt.Errorf("query student counts: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&out.TotalQuestions); err != nil {
		return nil, fmt.Errorf("query question count: %w", err)
	}
	recent, err := s.ListResults(ctx, ResultFilter{Limit: recentResultsLimit})
	if err != nil {
		return nil, err
	}
	out.RecentResults = recent
	return out, nil
}

// ListResults returns completed tests, most recently finished first.
func (s *Service) ListResults(ctx context.Context, f ResultFilter) ([]ResultRow, error) {
	query := `
		SELECT s.id, ts.id, s.access_code, s.name, s.father_name, s.class_level,
			COALESCE(s.score, 0), jsonb_array_length(ts.question_ids), ts.end_time
		FROM students s
		JOIN test_sessions ts ON ts.student_id = s.id
		WHERE s.status = 'completed' AND ts.end_time IS NOT NULL
	`
	args := make([]any, 0, 4)
	if v := strings.TrimSpace(f.ClassLevel); v != "" {
		args = append(args, v)
		query += fmt.Sprintf(` AND s.class_level = $%d`, len(args))
	}
	if v := strings.TrimSpace(f.Query); v != "" {
		args = append(args, "%"+v+"%")
		query += fmt.Sprintf(` AND (s.name ILIKE $%d OR s.access_code LIKE $%d)`, len(args), len(args))
	}
	limit := f.Limit
	if limit <= 0 || limit > 10000 {
		limit = 200
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY ts.end_time DESC, s.id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	items := make([]ResultRow, 0)
	for rows.Next() {
		var (
			r   ResultRow
			end sql.NullTime
		)
		if err := rows.Scan(&r.StudentID, &r.SessionID, &r.AccessCode, &r.Name, &r.FatherName, &r.ClassLevel, &r.Score, &r.Total, &end); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.AccessCode = strings.TrimSpace(r.AccessCode)
		if end.Valid {
			t := exam.AsUTC(end.Time)
			r.EndTime = &t
		}
		r.Percentage = exam.Percentage(r.Score, r.Total)
		r.Grade = exam.Grade(r.Percentage)
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return items, nil
}

// StudentResult is the admin review of one student's final session.
func (s *Service) StudentResult(ctx context.Context, studentID int64) (*exam.Result, error) {
	st, err := s.students.Get(ctx, studentID)
	if err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}
	sess, err := s.sessions.FindByStudentID(ctx, studentID)
	if err != nil {
		if errors.Is(err, exam.ErrSessionNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}
	if !sess.Completed() {
		return nil, ErrResultNotFound
	}
	items, err := s.questions.FindByIDs(ctx, sess.QuestionIDs)
	if err != nil {
		return nil, err
	}
	return exam.BuildResult(sess, st, items), nil
}

func (s *Service) ExportResultsExcel(ctx context.Context, f ResultFilter) ([]byte, error) {
	f.Limit = 10000
	f.Offset = 0
	items, err := s.ListResults(ctx, f)
	if err != nil {
		return nil, err
	}
	return writeResultsWorkbook(items)
}

func writeResultsWorkbook(items []ResultRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Results"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	headers := []string{"access_code", "name", "father_name", "class_level", "score", "total", "percentage", "grade", "finished_at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, it := range items {
		finished := ""
		if it.EndTime != nil {
			finished = it.EndTime.Format("2006-01-02 15:04:05")
		}
		values := []any{
			it.AccessCode,
			it.Name,
			it.FatherName,
			it.ClassLevel,
			it.Score,
			it.Total,
			it.Percentage,
			it.Grade,
			finished,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "I", 18)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
