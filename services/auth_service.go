package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fluxorio/todoapi/models"
	"github.com/fluxorio/todoapi/pkg/core"
	"github.com/fluxorio/todoapi/pkg/tokens"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrRefreshRequired is returned by Logout when no token was supplied
var ErrRefreshRequired = errors.New("Refresh token is required.")

// AuthServiceInterface defines registration, token and profile operations
type AuthServiceInterface interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (models.TokenPair, error)
	Refresh(ctx context.Context, refresh string) (models.AccessToken, error)
	Logout(ctx context.Context, refresh string) error
	Profile(ctx context.Context, id models.Identity) (models.UserProfile, error)
	DeleteAccount(ctx context.Context, id models.Identity) error
	ResolveIdentity(ctx context.Context, userID uuid.UUID) (models.Identity, error)
}

// AuthService ties users, token issuance and the blacklist together
type AuthService struct {
	users     *UserService
	tokens    *tokens.Manager
	blacklist tokens.Blacklist
	logger    core.Logger

	// dummyHash keeps unknown-user logins as slow as wrong-password logins
	dummyHash []byte
}

// NewAuthService creates an AuthService
func NewAuthService(users *UserService, manager *tokens.Manager, blacklist tokens.Blacklist, logger core.Logger) *AuthService {
	if logger == nil {
		logger = core.NewNopLogger()
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("todoapi-timing"), users.cost)
	return &AuthService{
		users:     users,
		tokens:    manager,
		blacklist: blacklist,
		logger:    logger,
		dummyHash: dummy,
	}
}

// Register validates the request, creates the user and issues a token pair
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	verr := &ValidationError{}

	username := requiredString(verr, "username", req.Username, true)
	email := NormalizeEmail(requiredString(verr, "email", req.Email, true))
	password := requiredString(verr, "password", req.Password, false)
	confirm := requiredString(verr, "password_confirm", req.PasswordConfirm, false)

	if !verr.Has("username") {
		if msg := validateUsername(username); msg != "" {
			verr.Add("username", msg)
		} else if taken, err := s.users.UsernameExists(ctx, username); err != nil {
			return nil, err
		} else if taken {
			verr.Add("username", MsgUsernameTaken)
		}
	}
	if !verr.Has("email") {
		if msg := validateEmail(email); msg != "" {
			verr.Add("email", msg)
		} else if taken, err := s.users.EmailExists(ctx, email); err != nil {
			return nil, err
		} else if taken {
			verr.Add("email", MsgEmailTaken)
		}
	}
	if !verr.Has("password") {
		for _, msg := range ValidatePassword(password, username, email) {
			verr.Add("password", msg)
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if password != confirm {
		return nil, NewValidationError("password_confirm", MsgPasswordMatch)
	}

	user, err := s.users.CreateUser(ctx, username, email, password)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user.Identity())
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{"user_id": user.ID.String()}).Info("user registered")
	return &models.RegisterResponse{User: user.Profile(), Tokens: pair}, nil
}

// Login verifies credentials and issues a token pair
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (models.TokenPair, error) {
	verr := &ValidationError{}
	username := requiredString(verr, "username", req.Username, false)
	password := requiredString(verr, "password", req.Password, false)
	if err := verr.Err(); err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return models.TokenPair{}, ErrAuthenticationFailed
	}
	if err != nil {
		return models.TokenPair{}, err
	}
	if !s.users.VerifyPassword(user, password) || !user.IsActive {
		return models.TokenPair{}, ErrAuthenticationFailed
	}

	pair, err := s.tokens.IssuePair(user.Identity())
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to issue tokens: %w", err)
	}
	if err := s.users.RecordLogin(ctx, user.ID); err != nil {
		s.logger.WithContext(ctx).Warnf("login succeeded but last_login was not saved: %v", err)
	}
	return pair, nil
}

// Refresh exchanges a valid, unrevoked refresh token for a new access token
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.AccessToken, error) {
	claims, err := s.tokens.Parse(refresh, tokens.Refresh)
	if err != nil {
		return models.AccessToken{}, ErrInvalidToken
	}

	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return models.AccessToken{}, err
	}
	if revoked {
		return models.AccessToken{}, ErrInvalidToken
	}

	claimed, err := claims.Identity()
	if err != nil {
		return models.AccessToken{}, ErrInvalidToken
	}
	id, err := s.ResolveIdentity(ctx, claimed.UserID)
	if err != nil {
		return models.AccessToken{}, err
	}

	access, err := s.tokens.IssueAccess(id)
	if err != nil {
		return models.AccessToken{}, fmt.Errorf("failed to issue token: %w", err)
	}
	return models.AccessToken{Access: access}, nil
}

// Logout blacklists a refresh token. Storage failures are returned as-is so
// they surface as server errors rather than as an invalid token.
func (s *AuthService) Logout(ctx context.Context, refresh string) error {
	if strings.TrimSpace(refresh) == "" {
		return ErrRefreshRequired
	}
	claims, err := s.tokens.Parse(refresh, tokens.Refresh)
	if err != nil {
		return ErrInvalidToken
	}
	id, err := claims.Identity()
	if err != nil {
		return ErrInvalidToken
	}

	err = s.blacklist.Revoke(ctx, claims.ID, id.UserID, claims.ExpiresAt.Time)
	if errors.Is(err, tokens.ErrAlreadyRevoked) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Profile returns the caller's own profile
func (s *AuthService) Profile(ctx context.Context, id models.Identity) (models.UserProfile, error) {
	user, err := s.users.GetUserByID(ctx, id.UserID)
	if err != nil {
		return models.UserProfile{}, err
	}
	return user.Profile(), nil
}

// DeleteAccount deletes the caller and cascades to their todos
func (s *AuthService) DeleteAccount(ctx context.Context, id models.Identity) error {
	if err := s.users.DeleteUser(ctx, id.UserID); err != nil {
		return err
	}
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{"user_id": id.UserID.String()}).Info("user deleted")
	return nil
}

// ResolveIdentity loads the current identity for a token subject.
// Missing and inactive users yield ErrInvalidToken.
func (s *AuthService) ResolveIdentity(ctx context.Context, userID uuid.UUID) (models.Identity, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return models.Identity{}, ErrInvalidToken
	}
	if err != nil {
		return models.Identity{}, err
	}
	if !user.IsActive {
		return models.Identity{}, ErrInvalidToken
	}
	return user.Identity(), nil
}

// requiredString records required/blank errors and returns the (optionally trimmed) value
func requiredString(verr *ValidationError, field string, v *string, trim bool) string {
	if v == nil {
		verr.Add(field, MsgRequired)
		return ""
	}
	s := *v
	if trim {
		s = strings.TrimSpace(s)
	}
	if strings.TrimSpace(s) == "" {
		verr.Add(field, MsgBlank)
		return ""
	}
	return s
}
