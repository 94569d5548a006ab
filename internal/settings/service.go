package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"entrytest/internal/question"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrPercentSum       = errors.New("difficulty percentages must sum to 100")
	ErrSettingsNotFound = errors.New("settings not found")
)

const defaultSubjectQuestions = 10

// Settings is the singleton test composition configuration.
type Settings struct {
	SchoolName       string `json:"school_name"`
	EasyPercent      int    `json:"easy_percent"`
	MediumPercent    int    `json:"medium_percent"`
	HardPercent      int    `json:"hard_percent"`
	EnglishQuestions int    `json:"english_questions"`
	UrduQuestions    int    `json:"urdu_questions"`
	MathQuestions    int    `json:"math_questions"`
}

// QuestionsFor returns the configured question count for a subject.
func (s Settings) QuestionsFor(subject question.Subject) int {
	switch subject {
	case question.English:
		return s.EnglishQuestions
	case question.Urdu:
		return s.UrduQuestions
	case question.Math:
		return s.MathQuestions
	default:
		return 0
	}
}

// Total is the configured test length. A composed session may hold fewer
// questions when the bank runs short.
func (s Settings) Total() int {
	return s.EnglishQuestions + s.UrduQuestions + s.MathQuestions
}

type UpdateInput struct {
	SchoolName       string `validate:"required,max=200"`
	EasyPercent      int    `validate:"min=0,max=100"`
	MediumPercent    int    `validate:"min=0,max=100"`
	HardPercent      int    `validate:"min=0,max=100"`
	EnglishQuestions int    `validate:"max=500"`
	UrduQuestions    int    `validate:"max=500"`
	MathQuestions    int    `validate:"max=500"`
}

type Service struct {
	db       *sql.DB
	validate *validator.Validate
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, validate: validator.New()}
}

func (s *Service) Get(ctx context.Context) (Settings, error) {
	var out Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT school_name, easy_percent, medium_percent, hard_percent,
			english_questions, urdu_questions, math_questions
		FROM settings
		WHERE id = 1
	`).Scan(
		&out.SchoolName,
		&out.EasyPercent,
		&out.MediumPercent,
		&out.HardPercent,
		&out.EnglishQuestions,
		&out.UrduQuestions,
		&out.MathQuestions,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Settings{}, ErrSettingsNotFound
		}
		return Settings{}, fmt.Errorf("query settings: %w", err)
	}
	return out, nil
}

// Update replaces the singleton row. Sessions composed earlier keep the
// question set they were given.
func (s *Service) Update(ctx context.Context, in UpdateInput) (Settings, error) {
	out, err := s.normalize(in)
	if err != nil {
		return Settings{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (
			id, school_name, easy_percent, medium_percent, hard_percent,
			english_questions, urdu_questions, math_questions
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			school_name = EXCLUDED.school_name,
			easy_percent = EXCLUDED.easy_percent,
			medium_percent = EXCLUDED.medium_percent,
			hard_percent = EXCLUDED.hard_percent,
			english_questions = EXCLUDED.english_questions,
			urdu_questions = EXCLUDED.urdu_questions,
			math_questions = EXCLUDED.math_questions
	`, out.SchoolName, out.EasyPercent, out.MediumPercent, out.HardPercent,
		out.EnglishQuestions, out.UrduQuestions, out.MathQuestions)
	if err != nil {
		return Settings{}, fmt.Errorf("update settings: %w", err)
	}
	return out, nil
}

func (s *Service) normalize(in UpdateInput) (Settings, error) {
	in.SchoolName = strings.TrimSpace(in.SchoolName)
	if in.EnglishQuestions <= 0 {
		in.EnglishQuestions = defaultSubjectQuestions
	}
	if in.UrduQuestions <= 0 {
		in.UrduQuestions = defaultSubjectQuestions
	}
	if in.MathQuestions <= 0 {
		in.MathQuestions = defaultSubjectQuestions
	}
	if err := s.validate.Struct(in); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.EasyPercent+in.MediumPercent+in.HardPercent != 100 {
		return Settings{}, ErrPercentSum
	}
	return Settings{
		SchoolName:       in.SchoolName,
		EasyPercent:      in.EasyPercent,
		MediumPercent:    in.MediumPercent,
		HardPercent:      in.HardPercent,
		EnglishQuestions: in.EnglishQuestions,
		UrduQuestions:    in.UrduQuestions,
		MathQuestions:    in.MathQuestions,
	}, nil
}
