package auth

import (
	"context"

	"github.com/fluxorio/todoapi/models"
	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// IdentityResolver loads the current identity of a token subject
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID uuid.UUID) (models.Identity, error)
}

// RequireUser runs after JWT. It loads the token's user, so deleted or
// deactivated accounts are rejected even while their tokens are unexpired,
// and stores the models.Identity for handlers. Resolver errors are returned
// unchanged for the router's error handler to map.
func RequireUser(resolver IdentityResolver, claimsKey string) web.FastMiddleware {
	if claimsKey == "" {
		claimsKey = DefaultClaimsKey
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			userID, err := GetUserID(ctx, claimsKey)
			if err != nil {
				return web.NewHTTPError(fasthttp.StatusUnauthorized, web.CodeInvalidToken, MsgTokenInvalid)
			}

			id, err := resolver.ResolveIdentity(ctx.Context(), userID)
			if err != nil {
				return err
			}

			ctx.Set(DefaultIdentityKey, id)
			return next(ctx)
		}
	}
}

// Protected returns JWT followed by RequireUser, for use as route middleware
func Protected(config JWTConfig, resolver IdentityResolver) []web.FastMiddleware {
	return []web.FastMiddleware{JWT(config), RequireUser(resolver, config.ClaimsKey)}
}
