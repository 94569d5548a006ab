package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"entrytest/internal/db"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidInput       = errors.New("invalid input")
	ErrBootstrapDenied    = errors.New("bootstrap denied")
	ErrAlreadyBootstrap   = errors.New("admin already exists")
)

type Service struct {
	db             *sql.DB
	validate       *validator.Validate
	sessionTTL     time.Duration
	bcryptCost     int
	bootstrapToken string
}

type ServiceConfig struct {
	SessionTTL     time.Duration
	BcryptCost     int
	BootstrapToken string
}

type Admin struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type BootstrapInput struct {
	Token    string `json:"token"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

func NewService(conn *sql.DB, cfg ServiceConfig) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		db:             conn,
		validate:       validator.New(),
		sessionTTL:     cfg.SessionTTL,
		bcryptCost:     cfg.BcryptCost,
		bootstrapToken: strings.TrimSpace(cfg.BootstrapToken),
	}
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (*Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var (
		a            Admin
		passwordHash string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, created_at, password_hash
		FROM admin_users
		WHERE username = $1
	`, username).Scan(&a.ID, &a.Username, &a.CreatedAt, &passwordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("query admin: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &a, nil
}

// Bootstrap creates the first admin. It is refused once any admin exists,
// and always when no bootstrap token is configured.
func (s *Service) Bootstrap(ctx context.Context, in BootstrapInput) (*Admin, error) {
	if s.bootstrapToken == "" || !secureEqual(in.Token, s.bootstrapToken) {
		return nil, ErrBootstrapDenied
	}
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var out *Admin
	err = db.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return fmt.Errorf("begin bootstrap tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM admin_users)`).Scan(&exists); err != nil {
			return fmt.Errorf("check admins: %w", err)
		}
		if exists {
			return ErrAlreadyBootstrap
		}
		a := Admin{Username: in.Username}
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO admin_users (username, password_hash)
			VALUES ($1, $2)
			RETURNING id, created_at
		`, a.Username, string(hash)).Scan(&a.ID, &a.CreatedAt); err != nil {
			return fmt.Errorf("insert admin: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit bootstrap: %w", err)
		}
		out = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("auth: bootstrap created admin id=%d username=%s", out.ID, out.Username)
	return out, nil
}

func (s *Service) ChangePassword(ctx context.Context, adminID int64, in ChangePasswordInput) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var current string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM admin_users WHERE id = $1`, adminID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUnauthorized
		}
		return fmt.Errorf("query admin: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(current), []byte(in.CurrentPassword)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin password tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE admin_users SET password_hash = $1 WHERE id = $2`, string(hash), adminID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	// Other sessions of this admin stop working once the password changes.
	if _, err := tx.ExecContext(ctx, `
		UPDATE admin_sessions SET revoked_at = now()
		WHERE admin_id = $1 AND revoked_at IS NULL
	`, adminID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit password: %w", err)
	}
	log.Printf("auth: admin id=%d changed password", adminID)
	return nil
}

func (s *Service) CreateSession(ctx context.Context, adminID int64, ipAddress, userAgent string) (string, time.Time, error) {
	token, err := generateToken(32)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate session token: %w", err)
	}
	expiresAt := time.Now().Add(s.sessionTTL)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO admin_sessions (admin_id, token_hash, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)
	`, adminID, hashToken(token), expiresAt, nullableString(ipAddress), nullableString(userAgent))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("insert session: %w", err)
	}
	return token, expiresAt, nil
}

func (s *Service) SessionAdmin(ctx context.Context, token string) (*Admin, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthorized
	}
	var a Admin
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.created_at
		FROM admin_sessions s
		JOIN admin_users u ON u.id = s.admin_id
		WHERE s.token_hash = $1
		  AND s.revoked_at IS NULL
		  AND s.expires_at > now()
	`, hashToken(token)).Scan(&a.ID, &a.Username, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("query session admin: %w", err)
	}
	return &a, nil
}

func (s *Service) RevokeSession(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE admin_sessions
		SET revoked_at = now()
		WHERE token_hash = $1
		  AND revoked_at IS NULL
	`, hashToken(token))
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func generateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func secureEqual(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return ha == hb
}
