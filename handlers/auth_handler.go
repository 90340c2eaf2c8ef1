package handlers

import (
	"errors"

	"github.com/fluxorio/todoapi/models"
	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/fluxorio/todoapi/pkg/web/middleware/auth"
	"github.com/fluxorio/todoapi/services"
	"github.com/valyala/fasthttp"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	auth     services.AuthServiceInterface
	recorder Recorder
}

// NewAuthHandler creates a new auth handler. recorder may be nil.
func NewAuthHandler(authService services.AuthServiceInterface, recorder Recorder) *AuthHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &AuthHandler{auth: authService, recorder: recorder}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(ctx *web.FastRequestContext) error {
	var req models.RegisterRequest
	if err := bindBody(ctx, &req); err != nil {
		return err
	}

	resp, err := h.auth.Register(ctx.Context(), req)
	h.recorder.RecordAuthEvent("register", err)
	if err != nil {
		return err
	}
	return ctx.JSON(fasthttp.StatusCreated, resp)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(ctx *web.FastRequestContext) error {
	var req models.LoginRequest
	if err := bindBody(ctx, &req); err != nil {
		return err
	}

	pair, err := h.auth.Login(ctx.Context(), req)
	h.recorder.RecordAuthEvent("login", err)
	if err != nil {
		return err
	}
	return ctx.JSON(fasthttp.StatusOK, pair)
}

// Refresh handles POST /api/auth/token/refresh
func (h *AuthHandler) Refresh(ctx *web.FastRequestContext) error {
	var req models.RefreshRequest
	if err := bindBody(ctx, &req); err != nil {
		return err
	}
	if req.Refresh == "" {
		return services.NewValidationError("refresh", services.MsgRequired)
	}

	access, err := h.auth.Refresh(ctx.Context(), req.Refresh)
	h.recorder.RecordAuthEvent("refresh", err)
	if err != nil {
		return err
	}
	return ctx.JSON(fasthttp.StatusOK, access)
}

// Logout handles POST /api/auth/logout. Bad tokens are a client error here,
// not an authentication failure.
func (h *AuthHandler) Logout(ctx *web.FastRequestContext) error {
	var req models.RefreshRequest
	if err := bindBody(ctx, &req); err != nil {
		return err
	}

	err := h.auth.Logout(ctx.Context(), req.Refresh)
	h.recorder.RecordAuthEvent("logout", err)
	if errors.Is(err, services.ErrInvalidToken) {
		return web.NewHTTPError(fasthttp.StatusBadRequest, web.CodeInvalidToken, msgInvalidToken)
	}
	if err != nil {
		return err
	}
	return ctx.JSON(fasthttp.StatusOK, models.MessageResponse{Message: "Successfully logged out."})
}

// GetProfile handles GET /api/auth/profile
func (h *AuthHandler) GetProfile(ctx *web.FastRequestContext) error {
	id, err := identity(ctx)
	if err != nil {
		return err
	}

	profile, err := h.auth.Profile(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(fasthttp.StatusOK, profile)
}

// DeleteProfile handles DELETE /api/auth/profile
func (h *AuthHandler) DeleteProfile(ctx *web.FastRequestContext) error {
	id, err := identity(ctx)
	if err != nil {
		return err
	}

	err = h.auth.DeleteAccount(ctx.Context(), id)
	h.recorder.RecordAuthEvent("delete_account", err)
	if err != nil {
		return err
	}
	return ctx.NoContent(fasthttp.StatusNoContent)
}

// identity returns the caller resolved by the auth middleware
func identity(ctx *web.FastRequestContext) (models.Identity, error) {
	id, ok := auth.GetIdentity(ctx)
	if !ok {
		return models.Identity{}, web.NewHTTPError(fasthttp.StatusUnauthorized, web.CodeUnauthorized, auth.MsgCredentialsMissing)
	}
	return id, nil
}
