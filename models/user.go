package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	IsStaff      bool       `json:"is_staff"`
	DateJoined   time.Time  `json:"date_joined"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Identity returns the request identity for u
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Username: u.Username}
}

// Profile returns the public projection of u
func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		DateJoined: u.DateJoined,
	}
}

// UserProfile is what a caller may see about their own account
type UserProfile struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	DateJoined time.Time `json:"date_joined"`
}

// RegisterRequest represents a registration request.
// Pointer fields distinguish a missing field from a blank one.
type RegisterRequest struct {
	Username        *string `json:"username"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"password_confirm"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// RefreshRequest carries a refresh token for refresh and logout
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// TokenPair is an access and refresh token issued together
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// AccessToken is the refresh endpoint response
type AccessToken struct {
	Access string `json:"access"`
}

// RegisterResponse is returned by a successful registration
type RegisterResponse struct {
	User   UserProfile `json:"user"`
	Tokens TokenPair   `json:"tokens"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}
