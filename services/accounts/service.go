// Package accounts manages users and login sessions. Passwords are hashed
// with bcrypt and sessions use opaque random tokens; identity beyond that is
// out of scope for the tracker.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-password/password"
	"golang.org/x/crypto/bcrypt"

	"medialog/internal/database"
	"medialog/models"
)

var (
	ErrNameRequired     = errors.New("name is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidLogin     = errors.New("invalid name or password")
	ErrSessionNotFound  = errors.New("session not found or expired")
	ErrNameTaken        = errors.New("name is already taken")
)

const sessionTTL = 30 * 24 * time.Hour

// Service manages users and sessions.
type Service struct {
	db *database.DB
}

// NewService creates the accounts service and bootstraps an admin user with a
// generated password on first run.
func NewService(db *database.DB) (*Service, error) {
	s := &Service{db: db}
	if err := s.ensureAdmin(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureAdmin creates the initial admin account when no users exist. The
// generated password is printed once so the operator can log in.
func (s *Service) ensureAdmin(ctx context.Context) error {
	var count int
	if err := s.db.SQL().QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	generated, err := password.Generate(16, 4, 0, false, false)
	if err != nil {
		return fmt.Errorf("generate admin password: %w", err)
	}
	user, err := s.Create(ctx, "admin", generated, true)
	if err != nil {
		return err
	}
	fmt.Printf("Created admin user %q with password: %s\n", user.Name, generated)
	return nil
}

// Create adds a user with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, name, plainPassword string, isAdmin bool) (models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.User{}, ErrNameRequired
	}
	if plainPassword == "" {
		return models.User{}, ErrPasswordRequired
	}
	if len(plainPassword) < 6 {
		return models.User{}, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.NewString(),
		Name:         name,
		PasswordHash: string(hash),
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = s.db.SQL().ExecContext(ctx,
		`INSERT INTO users (id, name, password_hash, is_admin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.PasswordHash, user.IsAdmin, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return models.User{}, ErrNameTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// Get returns one user by id.
func (s *Service) Get(ctx context.Context, userID string) (models.User, error) {
	row := s.db.SQL().QueryRowContext(ctx,
		`SELECT id, name, password_hash, is_admin, created_at, updated_at FROM users WHERE id = ?`,
		userID)
	return scanUser(row)
}

// Login verifies credentials and opens a session. The same error is returned
// for unknown names and wrong passwords.
func (s *Service) Login(ctx context.Context, name, plainPassword string) (models.Session, models.User, error) {
	row := s.db.SQL().QueryRowContext(ctx,
		`SELECT id, name, password_hash, is_admin, created_at, updated_at FROM users WHERE name = ?`,
		strings.TrimSpace(name))
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.Session{}, models.User{}, ErrInvalidLogin
		}
		return models.Session{}, models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plainPassword)) != nil {
		return models.Session{}, models.User{}, ErrInvalidLogin
	}

	token, err := password.Generate(48, 12, 0, false, true)
	if err != nil {
		return models.Session{}, models.User{}, fmt.Errorf("generate session token: %w", err)
	}

	now := time.Now().UTC()
	session := models.Session{
		Token:     token,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	_, err = s.db.SQL().ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		session.Token, session.UserID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return models.Session{}, models.User{}, fmt.Errorf("insert session: %w", err)
	}
	return session, user, nil
}

// Logout removes a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	_, err := s.db.SQL().ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Resolve maps a session token to its user, rejecting expired sessions.
func (s *Service) Resolve(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, ErrSessionNotFound
	}
	var session models.Session
	err := s.db.SQL().QueryRowContext(ctx,
		`SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&session.Token, &session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrSessionNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load session: %w", err)
	}
	if session.Expired() {
		_, _ = s.db.SQL().ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
		return models.User{}, ErrSessionNotFound
	}
	return s.Get(ctx, session.UserID)
}

func scanUser(row *sql.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Name, &user.PasswordHash, &user.IsAdmin,
		&user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}
