package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fluxorio/todoapi/models"
	"github.com/fluxorio/todoapi/pkg/db"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MaxUsernameLength is the longest accepted username
const MaxUsernameLength = 150

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

// UserService handles user persistence and credentials
type UserService struct {
	db   *sql.DB
	now  func() time.Time
	cost int
}

// NewUserService creates a new user service
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db, now: time.Now, cost: bcrypt.DefaultCost}
}

// WithBcryptCost overrides the hashing cost and returns s
func (s *UserService) WithBcryptCost(cost int) *UserService {
	s.cost = cost
	return s
}

const userColumns = `id, username, email, password_hash, is_active, is_staff, date_joined, last_login`

// CreateUser hashes password and inserts the user. Inputs must already be validated.
func (s *UserService) CreateUser(ctx context.Context, username, email, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
		DateJoined:   NormalizeTime(s.now()),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, is_active, is_staff, date_joined) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.IsActive, user.IsStaff, user.DateJoined)
	if db.IsUniqueViolation(err) {
		return nil, s.uniquenessError(ctx, username, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// uniquenessError works out which unique field lost a concurrent insert
func (s *UserService) uniquenessError(ctx context.Context, username, email string) error {
	verr := &ValidationError{}
	if taken, err := s.UsernameExists(ctx, username); err == nil && taken {
		verr.Add("username", MsgUsernameTaken)
	}
	if taken, err := s.EmailExists(ctx, email); err == nil && taken {
		verr.Add("email", MsgEmailTaken)
	}
	if len(verr.Fields) == 0 {
		verr.Add("username", MsgUsernameTaken)
	}
	return verr
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByUsername retrieves a user by exact username
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *UserService) getUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var (
		u         models.User
		lastLogin sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsStaff, &u.DateJoined, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.DateJoined = u.DateJoined.UTC()
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		u.LastLogin = &t
	}
	return &u, nil
}

// UsernameExists reports whether username is taken
func (s *UserService) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT COUNT(*) FROM users WHERE username = $1`, username)
}

// EmailExists reports whether email is taken, ignoring case
func (s *UserService) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT COUNT(*) FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (s *UserService) exists(ctx context.Context, query string, arg interface{}) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return n > 0, nil
}

// VerifyPassword verifies a password against the user's hash
func (s *UserService) VerifyPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// RecordLogin stamps last_login
func (s *UserService) RecordLogin(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, NormalizeTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// DeleteUser removes the user and every todo they own in one transaction
func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM todos WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete todos: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return expectOneRow(res)
	})
}

// NormalizeEmail trims the address and lower-cases its domain
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// validateUsername returns a message for an unusable username, or ""
func validateUsername(username string) string {
	switch {
	case username == "":
		return MsgBlank
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		return MsgMaxLength(MaxUsernameLength)
	case !usernamePattern.MatchString(username):
		return MsgUsernameChars
	}
	return ""
}

// validateEmail returns a message for an unusable email, or ""
func validateEmail(email string) string {
	if email == "" {
		return MsgBlank
	}
	if len(email) > 254 {
		return MsgMaxLength(254)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return MsgInvalidEmail
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return MsgInvalidEmail
	}
	return ""
}
