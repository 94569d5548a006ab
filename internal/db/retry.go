package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 50 * time.Millisecond
)

// Postgres error codes that indicate write contention rather than a bad
// statement: serialization_failure, deadlock_detected, lock_not_available.
var retryableCodes = map[string]struct{}{
	"40001": {},
	"40P01": {},
	"55P03": {},
}

// WithRetry runs fn until it succeeds, fails with a non-contention error, or
// the attempt budget is spent. fn must be safe to run more than once; in
// practice it wraps a whole transaction.
func WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= defaultRetryAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == defaultRetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * defaultRetryBackoff):
		}
	}
	return err
}

func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	_, ok := retryableCodes[pgErr.Code]
	return ok
}

// IsUniqueViolation reports whether err is a unique_violation, optionally
// restricted to a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
