package exam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"entrytest/internal/question"
	"entrytest/internal/settings"
	"entrytest/internal/student"
)

var (
	ErrInvalidAccessCode = errors.New("invalid access code")
	ErrAlreadyCompleted  = errors.New("test already completed")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionCompleted  = errors.New("session already completed")
	ErrSessionNotFinal   = errors.New("session not final")
	ErrSessionExpired    = errors.New("session time limit exceeded")
	ErrInvalidAnswer     = errors.New("invalid answer")
)

type sessionStore interface {
	Create(ctx context.Context, studentID int64, questionIDs []int64, start time.Time) (*Session, bool, error)
	Get(ctx context.Context, id int64) (*Session, error)
	FindByStudentID(ctx context.Context, studentID int64) (*Session, error)
	SaveAnswers(ctx context.Context, id int64, answers Answers) error
	Finalize(ctx context.Context, id int64, answers Answers, score int, end time.Time) (*Session, error)
}

type studentDirectory interface {
	FindByAccessCode(ctx context.Context, code string) (*student.Student, error)
	Get(ctx context.Context, id int64) (*student.Student, error)
}

type settingsReader interface {
	Get(ctx context.Context) (settings.Settings, error)
}

type questionReader interface {
	FindByIDs(ctx context.Context, ids []int64) ([]question.Question, error)
}

type sessionComposer interface {
	Compose(ctx context.Context, classLevel string, st settings.Settings) ([]int64, error)
}

// Policy controls server-side enforcement of the time limit. The zero value
// accepts late submissions.
type Policy struct {
	EnforceDuration bool
	LateGrace       time.Duration
}

type Deps struct {
	Sessions  sessionStore
	Students  studentDirectory
	Settings  settingsReader
	Questions questionReader
	Composer  sessionComposer
	Clock     Clock
	Policy    Policy
}

type Service struct {
	sessions  sessionStore
	students  studentDirectory
	settings  settingsReader
	questions questionReader
	composer  sessionComposer
	clock     Clock
	policy    Policy
}

func NewService(d Deps) *Service {
	return &Service{
		sessions:  d.Sessions,
		students:  d.Students,
		settings:  d.Settings,
		questions: d.Questions,
		composer:  d.Composer,
		clock:     d.Clock,
		policy:    d.Policy,
	}
}

type StartResult struct {
	SessionID int64 `json:"session_id"`
	Resumed   bool  `json:"resumed"`
}

type ExamQuestion struct {
	ID       int64            `json:"id"`
	Subject  question.Subject `json:"subject"`
	Text     string           `json:"question_text"`
	Options  question.Options `json:"options"`
	ImageRef *string          `json:"image_ref,omitempty"`
}

type SessionView struct {
	SessionID     int64          `json:"session_id"`
	StudentName   string         `json:"student_name"`
	ClassLevel    string         `json:"class_level"`
	StartTime     time.Time      `json:"start_time"`
	StartTimeMs   int64          `json:"start_time_ms"`
	DurationSecs  int64          `json:"duration_secs"`
	RemainingSecs int64          `json:"remaining_secs"`
	Questions     []ExamQuestion `json:"questions"`
	Answers       Answers        `json:"answers"`
}

type SubmitResult struct {
	SessionID int64 `json:"session_id"`
	Score     int   `json:"score"`
	Total     int   `json:"total"`
}

type Result struct {
	SessionID   int64          `json:"session_id"`
	StudentID   int64          `json:"student_id"`
	StudentName string         `json:"student_name"`
	FatherName  string         `json:"father_name"`
	ClassLevel  string         `json:"class_level"`
	Score       int            `json:"score"`
	Total       int            `json:"total"`
	Percentage  int            `json:"percentage"`
	Grade       string         `json:"grade"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     *time.Time     `json:"end_time,omitempty"`
	Subjects    []SubjectScore `json:"subjects"`
	Items       []ReviewItem   `json:"items"`
}

// Start resolves an access code to a session, composing a new one on first
// use. An in-progress session is returned unchanged.
func (s *Service) Start(ctx context.Context, accessCode string) (*StartResult, error) {
	st, err := s.students.FindByAccessCode(ctx, accessCode)
	if err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			return nil, ErrInvalidAccessCode
		}
		return nil, fmt.Errorf("lookup access code: %w", err)
	}
	if st.Status == student.StatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	existing, err := s.sessions.FindByStudentID(ctx, st.ID)
	switch {
	case err == nil:
		if existing.Completed() {
			return nil, ErrAlreadyCompleted
		}
		log.Printf("session resumed session_id=%d student_id=%d", existing.ID, st.ID)
		return &StartResult{SessionID: existing.ID, Resumed: true}, nil
	case !errors.Is(err, ErrSessionNotFound):
		return nil, err
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	ids, err := s.composer.Compose(ctx, st.ClassLevel, cfg)
	if err != nil {
		return nil, err
	}

	sess, created, err := s.sessions.Create(ctx, st.ID, ids, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !created {
		if sess.Completed() {
			return nil, ErrAlreadyCompleted
		}
		log.Printf("session create lost race session_id=%d student_id=%d", sess.ID, st.ID)
		return &StartResult{SessionID: sess.ID, Resumed: true}, nil
	}
	if len(ids) < cfg.Total() {
		log.Printf("session composed short session_id=%d questions=%d configured=%d class_level=%q", sess.ID, len(ids), cfg.Total(), st.ClassLevel)
	}
	log.Printf("session created session_id=%d student_id=%d questions=%d", sess.ID, st.ID, len(ids))
	return &StartResult{SessionID: sess.ID}, nil
}

// GetSession is the exam view. Questions come back in frozen order with
// their current content and without correct options.
func (s *Service) GetSession(ctx context.Context, id int64) (*SessionView, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Completed() {
		return nil, ErrSessionCompleted
	}
	st, err := s.students.Get(ctx, sess.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load session student: %w", err)
	}
	items, err := s.questions.FindByIDs(ctx, sess.QuestionIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]question.Question, len(items))
	for _, q := range items {
		byID[q.ID] = q
	}
	questions := make([]ExamQuestion, 0, len(sess.QuestionIDs))
	for _, qid := range sess.QuestionIDs {
		q, ok := byID[qid]
		if !ok {
			continue
		}
		questions = append(questions, ExamQuestion{
			ID:       q.ID,
			Subject:  q.Subject,
			Text:     q.Text,
			Options:  q.Options,
			ImageRef: q.ImageRef,
		})
	}

	return &SessionView{
		SessionID:     sess.ID,
		StudentName:   st.Name,
		ClassLevel:    st.ClassLevel,
		StartTime:     sess.StartTime,
		StartTimeMs:   sess.StartTime.UnixMilli(),
		DurationSecs:  int64(SessionDuration / time.Second),
		RemainingSecs: s.clock.Remaining(sess.StartTime),
		Questions:     questions,
		Answers:       sess.Answers,
	}, nil
}

// SaveAnswers stores progress on an open session.
func (s *Service) SaveAnswers(ctx context.Context, id int64, answers Answers) error {
	if err := validateAnswers(answers); err != nil {
		return err
	}
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Completed() {
		return ErrSessionCompleted
	}
	if s.overdue(sess) {
		return ErrSessionExpired
	}
	return s.sessions.SaveAnswers(ctx, id, answers)
}

// Submit scores answers against the frozen question list and finalizes the
// session. Submitting a final session again overwrites its result. With
// duration enforcement on, an overdue submission is refused and the session
// is finalized with the answers saved so far.
func (s *Service) Submit(ctx context.Context, id int64, answers Answers) (*SubmitResult, error) {
	if err := validateAnswers(answers); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	expired := !sess.Completed() && s.overdue(sess)
	if expired {
		answers = sess.Answers
	}
	if answers == nil {
		answers = Answers{}
	}

	items, err := s.questions.FindByIDs(ctx, sess.QuestionIDs)
	if err != nil {
		return nil, err
	}
	score := Score(sess.QuestionIDs, answers, correctOptions(items))

	if _, err := s.sessions.Finalize(ctx, id, answers, score, s.clock.Now()); err != nil {
		return nil, err
	}
	log.Printf("session finalized session_id=%d student_id=%d score=%d total=%d expired=%t", sess.ID, sess.StudentID, score, len(sess.QuestionIDs), expired)

	if expired {
		return nil, ErrSessionExpired
	}
	return &SubmitResult{SessionID: sess.ID, Score: score, Total: len(sess.QuestionIDs)}, nil
}

// GetResult is the result view of a final session.
func (s *Service) GetResult(ctx context.Context, id int64) (*Result, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.Completed() {
		return nil, ErrSessionNotFinal
	}
	st, err := s.students.Get(ctx, sess.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load session student: %w", err)
	}
	items, err := s.questions.FindByIDs(ctx, sess.QuestionIDs)
	if err != nil {
		return nil, err
	}
	return BuildResult(sess, st, items), nil
}

// BuildResult assembles the result of a final session. The denominator is
// the frozen question count, not the configured total.
func BuildResult(sess *Session, st *student.Student, items []question.Question) *Result {
	score := Score(sess.QuestionIDs, sess.Answers, correctOptions(items))
	if st.Score != nil {
		score = *st.Score
	}
	total := len(sess.QuestionIDs)
	pct := Percentage(score, total)
	review := BuildReview(sess.QuestionIDs, sess.Answers, items)
	return &Result{
		SessionID:   sess.ID,
		StudentID:   st.ID,
		StudentName: st.Name,
		FatherName:  st.FatherName,
		ClassLevel:  st.ClassLevel,
		Score:       score,
		Total:       total,
		Percentage:  pct,
		Grade:       Grade(pct),
		StartTime:   sess.StartTime,
		EndTime:     sess.EndTime,
		Subjects:    review.Subjects,
		Items:       review.Items,
	}
}

func (s *Service) overdue(sess *Session) bool {
	return s.policy.EnforceDuration && s.clock.Overdue(sess.StartTime, s.policy.LateGrace)
}

func validateAnswers(answers Answers) error {
	for qid, opt := range answers {
		if qid <= 0 || opt < 0 || opt >= len(question.Options{}) {
			return fmt.Errorf("%w: question %d option %d", ErrInvalidAnswer, qid, opt)
		}
	}
	return nil
}
