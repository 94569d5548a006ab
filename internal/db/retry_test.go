package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestWithRetryRetriesContention(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("update: %w", &pgconn.PgError{Code: "40001"})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryStopsOnPlainError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	if !IsRetryable(err) {
		t.Fatalf("expected last contention error, got %v", err)
	}
	if calls != defaultRetryAttempts {
		t.Fatalf("expected %d calls, got %d", defaultRetryAttempts, calls)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "students_access_code_key"})
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation")
	}
	if !IsUniqueViolation(err, "students_access_code_key") {
		t.Fatalf("expected match on constraint name")
	}
	if IsUniqueViolation(err, "other") {
		t.Fatalf("unexpected match on other constraint")
	}
	if IsUniqueViolation(errors.New("x"), "") {
		t.Fatalf("plain error is not a unique violation")
	}
}
