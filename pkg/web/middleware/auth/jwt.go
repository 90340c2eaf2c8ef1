// Package auth verifies bearer tokens and resolves the calling user.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fluxorio/todoapi/models"
	"github.com/fluxorio/todoapi/pkg/tokens"
	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Context keys
const (
	DefaultClaimsKey   = "user"
	DefaultIdentityKey = "identity"
)

// Error messages returned to clients
const (
	MsgCredentialsMissing = "Authentication credentials were not provided."
	MsgTokenInvalid       = "Given token not valid for any token type"
)

// JWTConfig configures JWT authentication
type JWTConfig struct {
	// Tokens verifies signature, expiry, issuer and token type
	Tokens *tokens.Manager

	// TokenType is the required token_type claim (default: access)
	TokenType tokens.Type

	// ClaimsKey is the key to store claims in request context
	ClaimsKey string

	// TokenLookup is the token lookup pattern (default: "header:Authorization")
	// Format: "header:<name>", "query:<name>", "cookie:<name>"
	TokenLookup string

	// AuthScheme is the authorization scheme (default: "Bearer")
	AuthScheme string

	// SkipPaths is a list of paths to skip authentication
	SkipPaths []string

	// OnError is called when authentication fails
	OnError func(ctx *web.FastRequestContext, err error) error
}

// DefaultJWTConfig returns a default JWT configuration
func DefaultJWTConfig(manager *tokens.Manager) JWTConfig {
	return JWTConfig{
		Tokens:      manager,
		TokenType:   tokens.Access,
		ClaimsKey:   DefaultClaimsKey,
		TokenLookup: "header:Authorization",
		AuthScheme:  "Bearer",
	}
}

var errMissingCredentials = errors.New("credentials missing")

// JWT middleware validates the bearer token and stores its *tokens.Claims
func JWT(config JWTConfig) web.FastMiddleware {
	if config.Tokens == nil {
		panic("JWT: token manager must be provided")
	}

	tokenType := config.TokenType
	if tokenType == "" {
		tokenType = tokens.Access
	}
	claimsKey := config.ClaimsKey
	if claimsKey == "" {
		claimsKey = DefaultClaimsKey
	}

	tokenLookup := config.TokenLookup
	if tokenLookup == "" {
		tokenLookup = "header:Authorization"
	}
	lookupParts := strings.Split(tokenLookup, ":")
	if len(lookupParts) != 2 {
		panic("JWT: invalid TokenLookup format, expected 'source:name'")
	}
	lookupSource := lookupParts[0]
	lookupName := lookupParts[1]

	authScheme := config.AuthScheme
	if authScheme == "" {
		authScheme = "Bearer"
	}

	onError := config.OnError
	if onError == nil {
		onError = func(ctx *web.FastRequestContext, err error) error {
			code, msg := web.CodeInvalidToken, MsgTokenInvalid
			if errors.Is(err, errMissingCredentials) {
				code, msg = web.CodeUnauthorized, MsgCredentialsMissing
			}
			ctx.RequestCtx.Response.Header.Set("WWW-Authenticate", fmt.Sprintf(`%s realm="api"`, authScheme))
			return web.NewHTTPError(fasthttp.StatusUnauthorized, code, msg)
		}
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			path := string(ctx.Path())
			for _, skipPath := range config.SkipPaths {
				if path == skipPath || strings.HasPrefix(path, skipPath) {
					return next(ctx)
				}
			}

			var tokenString string
			switch lookupSource {
			case "header":
				authHeader := string(ctx.RequestCtx.Request.Header.Peek(lookupName))
				if authHeader == "" {
					return onError(ctx, errMissingCredentials)
				}
				parts := strings.Fields(authHeader)
				if len(parts) != 2 || !strings.EqualFold(parts[0], authScheme) {
					return onError(ctx, fmt.Errorf("invalid authorization header format"))
				}
				tokenString = parts[1]
			case "query":
				tokenString = ctx.Query(lookupName)
				if tokenString == "" {
					return onError(ctx, errMissingCredentials)
				}
			case "cookie":
				cookieValue := ctx.RequestCtx.Request.Header.Cookie(lookupName)
				if len(cookieValue) == 0 {
					return onError(ctx, errMissingCredentials)
				}
				tokenString = string(cookieValue)
			default:
				return onError(ctx, fmt.Errorf("unsupported token lookup source: %s", lookupSource))
			}

			claims, err := config.Tokens.Parse(tokenString, tokenType)
			if err != nil {
				return onError(ctx, err)
			}

			ctx.Set(claimsKey, claims)
			return next(ctx)
		}
	}
}

// GetClaims extracts JWT claims from request context
func GetClaims(ctx *web.FastRequestContext, key string) (*tokens.Claims, error) {
	claims, ok := ctx.Get(key).(*tokens.Claims)
	if !ok {
		return nil, fmt.Errorf("claims not found in context")
	}
	return claims, nil
}

// GetUserID extracts the user id claim
func GetUserID(ctx *web.FastRequestContext, key string) (uuid.UUID, error) {
	claims, err := GetClaims(ctx, key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := claims.Identity()
	if err != nil {
		return uuid.Nil, err
	}
	return id.UserID, nil
}

// GetIdentity returns the identity stored by RequireUser
func GetIdentity(ctx *web.FastRequestContext) (models.Identity, bool) {
	id, ok := ctx.Get(DefaultIdentityKey).(models.Identity)
	return id, ok
}
