package student

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	internaldb "entrytest/internal/db"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrStudentNotFound = errors.New("student not found")
	ErrCodeExhausted   = errors.New("could not allocate a unique access code")
)

const (
	accessCodeMin        = 100000
	accessCodeSpan       = 900000
	accessCodeAttempts   = 8
	accessCodeConstraint = "students_access_code_key"
)

type Service struct {
	db       *sql.DB
	validate *validator.Validate
	newCode  func() (string, error)
}

type CreateInput struct {
	Name       string `validate:"required,max=200"`
	FatherName string `validate:"max=200"`
	ClassLevel string `validate:"required,max=64"`
}

type ListFilter struct {
	Status     string
	ClassLevel string
	Query      string
	Limit      int
	Offset     int
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, validate: validator.New(), newCode: GenerateAccessCode}
}

// GenerateAccessCode returns a random six-digit code in [100000, 999999].
func GenerateAccessCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(accessCodeSpan))
	if err != nil {
		return "", fmt.Errorf("generate access code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+accessCodeMin), nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Student, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.FatherName = strings.TrimSpace(in.FatherName)
	in.ClassLevel = strings.TrimSpace(in.ClassLevel)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	for attempt := 1; attempt <= accessCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		out, err := s.insert(ctx, code, in)
		if err == nil {
			return out, nil
		}
		if !internaldb.IsUniqueViolation(err, accessCodeConstraint) {
			return nil, err
		}
		log.Printf("access code collision attempt=%d", attempt)
	}
	return nil, ErrCodeExhausted
}

func (s *Service) insert(ctx context.Context, code string, in CreateInput) (*Student, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO students (access_code, name, father_name, class_level, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', now())
		RETURNING id, access_code, name, father_name, class_level, status, score, created_at
	`, code, in.Name, in.FatherName, in.ClassLevel)
	out, err := scanStudent(row)
	if err != nil {
		return nil, fmt.Errorf("insert student: %w", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Student, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, access_code, name, father_name, class_level, status, score, created_at
		FROM students
		WHERE id = $1
	`, id)
	out, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("query student: %w", err)
	}
	return out, nil
}

// FindByAccessCode resolves the test-taking credential. Surrounding
// whitespace is ignored.
func (s *Service) FindByAccessCode(ctx context.Context, code string) (*Student, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrStudentNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, access_code, name, father_name, class_level, status, score, created_at
		FROM students
		WHERE access_code = $1
	`, code)
	out, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("query student by access code: %w", err)
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Student, error) {
	query := `
		SELECT id, access_code, name, father_name, class_level, status, score, created_at
		FROM students
		WHERE 1=1
	`
	args := make([]any, 0, 5)
	if st := Status(strings.ToLower(strings.TrimSpace(f.Status))); st.Valid() {
		args = append(args, string(st))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if v := strings.TrimSpace(f.ClassLevel); v != "" {
		args = append(args, v)
		query += fmt.Sprintf(` AND class_level = $%d`, len(args))
	}
	if v := strings.TrimSpace(f.Query); v != "" {
		args = append(args, "%"+v+"%")
		query += fmt.Sprintf(` AND (name ILIKE $%d OR father_name ILIKE $%d OR access_code LIKE $%d)`, len(args), len(args), len(args))
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	items := make([]Student, 0)
	for rows.Next() {
		item, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return items, nil
}

// Delete removes a student; the test session goes with it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// AdvanceStatus is the standalone form of AdvanceStatusTx.
func (s *Service) AdvanceStatus(ctx context.Context, id int64, next Status) (bool, error) {
	if !next.Valid() {
		return false, ErrInvalidInput
	}
	return AdvanceStatusTx(ctx, s.db, id, next)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (*Student, error) {
	var (
		out    Student
		status string
		score  sql.NullInt64
	)
	if err := row.Scan(
		&out.ID,
		&out.AccessCode,
		&out.Name,
		&out.FatherName,
		&out.ClassLevel,
		&status,
		&score,
		&out.CreatedAt,
	); err != nil {
		return nil, err
	}
	out.AccessCode = strings.TrimSpace(out.AccessCode)
	out.Status = Status(status)
	if score.Valid {
		v := int(score.Int64)
		out.Score = &v
	}
	return &out, nil
}
