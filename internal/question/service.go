package question

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrQuestionNotFound = errors.New("question not found")
)

type Service struct {
	db       *sql.DB
	validate *validator.Validate
}

type QuestionInput struct {
	Subject       string  `validate:"required,oneof=English Urdu Math"`
	Difficulty    string  `validate:"required,oneof=Easy Medium Hard"`
	ClassLevel    string  `validate:"max=64"`
	Text          string  `validate:"required"`
	Options       Options `validate:"dive,required"`
	CorrectOption int     `validate:"min=0,max=3"`
	ImageRef      *string `validate:"omitempty,max=512"`
}

type ListFilter struct {
	Subject    string
	Difficulty string
	ClassLevel string
	Query      string
	Limit      int
	Offset     int
}

type Stats struct {
	Total     int64                           `json:"total"`
	BySubject map[Subject]map[Difficulty]int64 `json:"by_subject"`
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, validate: validator.New()}
}

// FindIDs returns the ids matching f in storage order. Callers that need a
// random sample shuffle the result themselves.
func (s *Service) FindIDs(ctx context.Context, f Filter) ([]int64, error) {
	query := `SELECT id FROM questions WHERE subject = $1`
	args := []any{string(f.Subject)}
	if f.ClassLevel != nil {
		args = append(args, *f.ClassLevel)
		query += fmt.Sprintf(` AND class_level = $%d`, len(args))
	}
	if f.Difficulty != nil {
		args = append(args, string(*f.Difficulty))
		query += fmt.Sprintf(` AND difficulty = $%d`, len(args))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query question ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question ids: %w", err)
	}
	return ids, nil
}

// FindByIDs loads the current content of the given questions. Ids that no
// longer exist are silently absent from the result; order is not preserved.
func (s *Service) FindByIDs(ctx context.Context, ids []int64) ([]Question, error) {
	if len(ids) == 0 {
		return []Question{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject, difficulty, class_level, question_text, options,
			correct_option, image_ref, created_at, updated_at
		FROM questions
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query questions by ids: %w", err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (s *Service) Get(ctx context.Context, id int64) (*Question, error) {
	items, err := s.FindByIDs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrQuestionNotFound
	}
	return &items[0], nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Question, error) {
	query := `
		SELECT id, subject, difficulty, class_level, question_text, options,
			correct_option, image_ref, created_at, updated_at
		FROM questions
		WHERE 1=1
	`
	args := make([]any, 0, 6)
	if v, ok := ParseSubject(f.Subject); ok {
		args = append(args, string(v))
		query += fmt.Sprintf(` AND subject = $%d`, len(args))
	}
	if v, ok := ParseDifficulty(f.Difficulty); ok {
		args = append(args, string(v))
		query += fmt.Sprintf(` AND difficulty = $%d`, len(args))
	}
	if v := strings.TrimSpace(f.ClassLevel); v != "" {
		args = append(args, v)
		query += fmt.Sprintf(` AND class_level = $%d`, len(args))
	}
	if v := strings.TrimSpace(f.Query); v != "" {
		args = append(args, "%"+v+"%")
		query += fmt.Sprintf(` AND question_text ILIKE $%d`, len(args))
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
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (s *Service) Create(ctx context.Context, in QuestionInput) (*Question, error) {
	in, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	optionsRaw, err := encodeOptions(in.Options)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		INSERT INTO questions (
			subject, difficulty, class_level, question_text, options,
			correct_option, image_ref, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, now(), now())
		RETURNING id, subject, difficulty, class_level, question_text, options,
			correct_option, image_ref, created_at, updated_at
	`, in.Subject, in.Difficulty, in.ClassLevel, in.Text, optionsRaw, in.CorrectOption, in.ImageRef)
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}
	defer rows.Close()
	items, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("insert question: no row returned")
	}
	return &items[0], nil
}

// Update rewrites a question in place. Sessions that already hold its id
// see the new text and options on their next read.
func (s *Service) Update(ctx context.Context, id int64, in QuestionInput) (*Question, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	in, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	optionsRaw, err := encodeOptions(in.Options)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		UPDATE questions
		SET subject = $2,
			difficulty = $3,
			class_level = $4,
			question_text = $5,
			options = $6::jsonb,
			correct_option = $7,
			image_ref = $8,
			updated_at = now()
		WHERE id = $1
		RETURNING id, subject, difficulty, class_level, question_text, options,
			correct_option, image_ref, created_at, updated_at
	`, id, in.Subject, in.Difficulty, in.ClassLevel, in.Text, optionsRaw, in.CorrectOption, in.ImageRef)
	if err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	defer rows.Close()
	items, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrQuestionNotFound
	}
	return &items[0], nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject, difficulty, COUNT(*)
		FROM questions
		GROUP BY subject, difficulty
	`)
	if err != nil {
		return nil, fmt.Errorf("query question stats: %w", err)
	}
	defer rows.Close()

	out := &Stats{BySubject: make(map[Subject]map[Difficulty]int64)}
	for rows.Next() {
		var subject, difficulty string
		var n int64
		if err := rows.Scan(&subject, &difficulty, &n); err != nil {
			return nil, fmt.Errorf("scan question stats: %w", err)
		}
		sub := Subject(subject)
		if out.BySubject[sub] == nil {
			out.BySubject[sub] = make(map[Difficulty]int64)
		}
		out.BySubject[sub][Difficulty(difficulty)] = n
		out.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question stats: %w", err)
	}
	return out, nil
}

func (s *Service) normalize(in QuestionInput) (QuestionInput, error) {
	if v, ok := ParseSubject(in.Subject); ok {
		in.Subject = string(v)
	}
	if v, ok := ParseDifficulty(in.Difficulty); ok {
		in.Difficulty = string(v)
	}
	in.ClassLevel = strings.TrimSpace(in.ClassLevel)
	in.Text = strings.TrimSpace(in.Text)
	for i := range in.Options {
		in.Options[i] = strings.TrimSpace(in.Options[i])
	}
	if in.ImageRef != nil {
		ref := strings.TrimSpace(*in.ImageRef)
		if ref == "" {
			in.ImageRef = nil
		} else {
			in.ImageRef = &ref
		}
	}
	if err := s.validate.Struct(in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return in, nil
}

func scanQuestions(rows *sql.Rows) ([]Question, error) {
	items := make([]Question, 0)
	for rows.Next() {
		var (
			q          Question
			subject    string
			difficulty string
			optionsRaw []byte
			imageRef   sql.NullString
		)
		if err := rows.Scan(
			&q.ID,
			&subject,
			&difficulty,
			&q.ClassLevel,
			&q.Text,
			&optionsRaw,
			&q.CorrectOption,
			&imageRef,
			&q.CreatedAt,
			&q.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		opts, err := decodeOptions(optionsRaw)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", q.ID, err)
		}
		q.Subject = Subject(subject)
		q.Difficulty = Difficulty(difficulty)
		q.Options = opts
		if imageRef.Valid {
			q.ImageRef = &imageRef.String
		}
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return items, nil
}
