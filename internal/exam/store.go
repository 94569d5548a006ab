package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	internaldb "entrytest/internal/db"
	"entrytest/internal/question"
	"entrytest/internal/student"
)

// Session is one student's test. QuestionIDs is frozen at creation; a
// session with EndTime set is final.
type Session struct {
	ID          int64      `json:"id"`
	StudentID   int64      `json:"student_id"`
	QuestionIDs []int64    `json:"question_ids"`
	Answers     Answers    `json:"answers"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

func (s Session) Completed() bool {
	return s.EndTime != nil
}

type queryable interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store persists sessions in Postgres. Each write is one transaction retried
// on contention.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a session for studentID unless one already exists, then
// moves the student to started. created is false when another request won
// the insert; the returned session is then the existing one.
func (s *Store) Create(ctx context.Context, studentID int64, questionIDs []int64, start time.Time) (*Session, bool, error) {
	idsRaw, err := encodeQuestionIDs(questionIDs)
	if err != nil {
		return nil, false, err
	}

	var (
		out     *Session
		created bool
	)
	err = internaldb.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin create session tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx, `
			INSERT INTO test_sessions (student_id, question_ids, answers, start_time)
			VALUES ($1, $2::jsonb, '{}'::jsonb, $3)
			ON CONFLICT (student_id) DO NOTHING
			RETURNING id, student_id, question_ids, answers, start_time, end_time
		`, studentID, idsRaw, naiveUTC(start))
		sess, err := scanSession(row)
		switch {
		case err == nil:
			created = true
		case errors.Is(err, sql.ErrNoRows):
			created = false
			sess, err = loadSession(ctx, tx, `WHERE student_id = $1`, studentID)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("insert session: %w", err)
		}

		if created {
			if _, err := student.AdvanceStatusTx(ctx, tx, studentID, student.StatusStarted); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit create session: %w", err)
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*Session, error) {
	return loadSession(ctx, s.db, `WHERE id = $1`, id)
}

func (s *Store) FindByStudentID(ctx context.Context, studentID int64) (*Session, error) {
	return loadSession(ctx, s.db, `WHERE student_id = $1`, studentID)
}

// SaveAnswers replaces the in-progress answer map. A final session is left
// untouched and ErrSessionCompleted is returned.
func (s *Store) SaveAnswers(ctx context.Context, id int64, answers Answers) error {
	raw, err := encodeAnswers(answers)
	if err != nil {
		return err
	}
	return internaldb.WithRetry(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE test_sessions
			SET answers = $2::jsonb
			WHERE id = $1 AND end_time IS NULL
		`, id, raw)
		if err != nil {
			return fmt.Errorf("update session answers: %w", err)
		}
		affected, _ := res.RowsAffected()
		if affected > 0 {
			return nil
		}
		sess, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if sess.Completed() {
			return ErrSessionCompleted
		}
		return nil
	})
}

// Finalize stores the submitted answers and score and marks the student
// completed. Finalizing twice overwrites the first result.
func (s *Store) Finalize(ctx context.Context, id int64, answers Answers, score int, end time.Time) (*Session, error) {
	raw, err := encodeAnswers(answers)
	if err != nil {
		return nil, err
	}

	var out *Session
	err = internaldb.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin finalize tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx, `
			UPDATE test_sessions
			SET answers = $2::jsonb,
				end_time = $3
			WHERE id = $1
			RETURNING id, student_id, question_ids, answers, start_time, end_time
		`, id, raw, naiveUTC(end))
		sess, err := scanSession(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("finalize session: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE students
			SET score = $2
			WHERE id = $1
		`, sess.StudentID, score); err != nil {
			return fmt.Errorf("update student score: %w", err)
		}
		if _, err := student.AdvanceStatusTx(ctx, tx, sess.StudentID, student.StatusCompleted); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit finalize: %w", err)
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadSession(ctx context.Context, q queryable, where string, arg any) (*Session, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, student_id, question_ids, answers, start_time, end_time
		FROM test_sessions
		`+where, arg)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func scanSession(row *sql.Row) (*Session, error) {
	var (
		out        Session
		idsRaw     []byte
		answersRaw []byte
		end        sql.NullTime
	)
	if err := row.Scan(&out.ID, &out.StudentID, &idsRaw, &answersRaw, &out.StartTime, &end); err != nil {
		return nil, err
	}
	ids, err := decodeQuestionIDs(idsRaw)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", out.ID, err)
	}
	answers, err := decodeAnswers(answersRaw)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", out.ID, err)
	}
	out.QuestionIDs = ids
	out.Answers = answers
	out.StartTime = AsUTC(out.StartTime)
	if end.Valid {
		t := AsUTC(end.Time)
		out.EndTime = &t
	}
	return &out, nil
}

// naiveUTC is the value written to the zone-less start_time and end_time
// columns: the UTC wall clock at microsecond precision.
func naiveUTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func encodeQuestionIDs(ids []int64) ([]byte, error) {
	if ids == nil {
		ids = []int64{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode question ids: %w", err)
	}
	return raw, nil
}

// decodeQuestionIDs rejects lists with repeated ids.
func decodeQuestionIDs(raw []byte) ([]int64, error) {
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode question ids: %w", err)
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("decode question ids: duplicate id %d", id)
		}
		seen[id] = struct{}{}
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

func encodeAnswers(a Answers) ([]byte, error) {
	if a == nil {
		a = Answers{}
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	return raw, nil
}

// decodeAnswers accepts only option indexes 0..3.
func decodeAnswers(raw []byte) (Answers, error) {
	out := Answers{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if out == nil {
		out = Answers{}
	}
	for id, opt := range out {
		if opt < 0 || opt >= len(question.Options{}) {
			return nil, fmt.Errorf("decode answers: option %d out of range for question %d", opt, id)
		}
	}
	return out, nil
}
