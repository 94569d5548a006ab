package db

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		id BIGSERIAL PRIMARY KEY,
		subject TEXT NOT NULL CHECK (subject IN ('English', 'Urdu', 'Math')),
		difficulty TEXT NOT NULL CHECK (difficulty IN ('Easy', 'Medium', 'Hard')),
		class_level TEXT NOT NULL DEFAULT '',
		question_text TEXT NOT NULL,
		options JSONB NOT NULL,
		correct_option SMALLINT NOT NULL CHECK (correct_option BETWEEN 0 AND 3),
		image_ref TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_pool ON questions (subject, class_level, difficulty)`,
	`CREATE TABLE IF NOT EXISTS students (
		id BIGSERIAL PRIMARY KEY,
		access_code CHAR(6) NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		father_name TEXT NOT NULL DEFAULT '',
		class_level TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'started', 'completed')),
		score INTEGER,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_students_status ON students (status, created_at DESC)`,
	// start_time and end_time are naive timestamps holding UTC wall-clock values.
	`CREATE TABLE IF NOT EXISTS test_sessions (
		id BIGSERIAL PRIMARY KEY,
		student_id BIGINT NOT NULL UNIQUE REFERENCES students (id) ON DELETE CASCADE,
		question_ids JSONB NOT NULL,
		answers JSONB NOT NULL DEFAULT '{}'::jsonb,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		school_name TEXT NOT NULL DEFAULT 'Mardan Youth''s Academy',
		easy_percent INTEGER NOT NULL DEFAULT 40,
		medium_percent INTEGER NOT NULL DEFAULT 40,
		hard_percent INTEGER NOT NULL DEFAULT 20,
		english_questions INTEGER NOT NULL DEFAULT 10,
		urdu_questions INTEGER NOT NULL DEFAULT 10,
		math_questions INTEGER NOT NULL DEFAULT 10
	)`,
	`INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS admin_users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS admin_sessions (
		id BIGSERIAL PRIMARY KEY,
		admin_id BIGINT NOT NULL REFERENCES admin_users (id) ON DELETE CASCADE,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ,
		ip_address TEXT,
		user_agent TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the tables if they do not exist and seeds the
// settings singleton. It is safe to run on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
