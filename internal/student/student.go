package student

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
)

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusStarted:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	return s.rank() >= 0
}

// CanTransitionTo reports whether moving from s to next goes strictly
// forward along pending, started, completed.
func (s Status) CanTransitionTo(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.rank() > s.rank()
}

// predecessors lists the statuses that may move to s.
func (s Status) predecessors() []string {
	out := make([]string, 0, 2)
	for _, from := range []Status{StatusPending, StatusStarted, StatusCompleted} {
		if from.CanTransitionTo(s) {
			out = append(out, string(from))
		}
	}
	return out
}

type Student struct {
	ID         int64     `json:"id"`
	AccessCode string    `json:"access_code"`
	Name       string    `json:"name"`
	FatherName string    `json:"father_name"`
	ClassLevel string    `json:"class_level"`
	Status     Status    `json:"status"`
	Score      *int      `json:"score,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AdvanceStatusTx moves a student forward to next inside the caller's
// transaction. It reports false when the student is missing or already at
// or beyond next; the row is never moved backwards.
func AdvanceStatusTx(ctx context.Context, q execer, studentID int64, next Status) (bool, error) {
	from := next.predecessors()
	if len(from) == 0 {
		return false, nil
	}
	res, err := q.ExecContext(ctx, `
		UPDATE students
		SET status = $2
		WHERE id = $1 AND status = ANY($3)
	`, studentID, string(next), from)
	if err != nil {
		return false, fmt.Errorf("advance student status: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}
