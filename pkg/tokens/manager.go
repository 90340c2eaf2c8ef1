// Package tokens issues and verifies the JWT access/refresh pair and keeps the
// durable refresh token blacklist.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/fluxorio/todoapi/models"
	"github.com/fluxorio/todoapi/pkg/core"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type distinguishes access from refresh tokens via the token_type claim
type Type string

const (
	Access  Type = "access"
	Refresh Type = "refresh"
)

// Claim names shared with the JWT middleware
const (
	ClaimTokenType = "token_type"
	ClaimUserID    = "user_id"
	ClaimUsername  = "username"
)

var (
	// ErrInvalidToken covers malformed, expired, badly signed and wrong-type tokens
	ErrInvalidToken = errors.New("token is invalid or expired")
	// ErrRevoked is returned for blacklisted refresh tokens
	ErrRevoked = errors.New("token is blacklisted")
)

// Claims is the payload of both token types
type Claims struct {
	TokenType Type   `json:"token_type"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

// Identity returns the identity carried by c
func (c *Claims) Identity() (models.Identity, error) {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: bad user_id claim", ErrInvalidToken)
	}
	return models.Identity{UserID: id, Username: c.Username}, nil
}

// Config configures a Manager
type Config struct {
	SecretKey  string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

// DefaultConfig returns 30 minute access and 7 day refresh lifetimes
func DefaultConfig(secret string) Config {
	return Config{
		SecretKey:  secret,
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

// Manager signs and verifies HS256 tokens
type Manager struct {
	cfg Config
	key []byte
	now func() time.Time
}

// NewManager validates cfg and creates a Manager
func NewManager(cfg Config) (*Manager, error) {
	if cfg.SecretKey == "" {
		return nil, core.NewError(core.CodeInvalidConfig, "token secret key cannot be empty")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, core.NewError(core.CodeInvalidConfig, "token lifetimes must be positive")
	}
	return &Manager{cfg: cfg, key: []byte(cfg.SecretKey), now: time.Now}, nil
}

// SetClock replaces the time source. Tests only.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Config returns the manager configuration
func (m *Manager) Config() Config {
	return m.cfg
}

// IssuePair mints a fresh access and refresh token for id
func (m *Manager) IssuePair(id models.Identity) (models.TokenPair, error) {
	access, _, err := m.issue(id, Access)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, _, err := m.issue(id, Refresh)
	if err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// IssueAccess mints an access token for id
func (m *Manager) IssueAccess(id models.Identity) (string, error) {
	token, _, err := m.issue(id, Access)
	return token, err
}

func (m *Manager) issue(id models.Identity, typ Type) (string, *Claims, error) {
	ttl := m.cfg.AccessTTL
	if typ == Refresh {
		ttl = m.cfg.RefreshTTL
	}

	now := m.now()
	claims := &Claims{
		TokenType: typ,
		UserID:    id.UserID.String(),
		Username:  id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID.String(),
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, expiry, issuer and token type
func (m *Manager) Parse(token string, want Type) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, m.KeyFunc, m.ParserOptions()...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TokenType != want {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, want)
	}
	if claims.ID == "" || claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing jti or user_id", ErrInvalidToken)
	}
	return claims, nil
}

// KeyFunc returns the HMAC secret after checking the signing method family
func (m *Manager) KeyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return m.key, nil
}

// ParserOptions are the verification rules shared with the JWT middleware
func (m *Manager) ParserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	}
	if m.cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(m.cfg.Leeway))
	}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.cfg.Issuer))
	}
	return opts
}
