package handlers

import (
	"context"
	"errors"

	"github.com/fluxorio/todoapi/pkg/core"
	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/fluxorio/todoapi/services"
	"github.com/valyala/fasthttp"
)

// Client-facing messages for mapped service errors
const (
	msgInvalidInput = "Invalid input."
	msgMalformed    = "Malformed JSON request body."
	msgNotFound     = "Not found."
	msgInvalidToken = "Invalid token."
)

// ErrorHandler maps service errors to HTTP responses. Unmapped errors are
// logged with the request id and rendered as a bare 500.
func ErrorHandler(logger core.Logger) web.ErrorHandler {
	if logger == nil {
		logger = core.NewNopLogger()
	}

	return func(ctx *web.FastRequestContext, err error) {
		if he := mapError(err); he != nil {
			_ = ctx.WriteError(he)
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			web.DefaultErrorHandler(ctx, err)
			return
		}

		logger.WithContext(ctx.Context()).WithFields(map[string]interface{}{
			"method": string(ctx.Method()),
			"path":   string(ctx.Path()),
		}).Errorf("unhandled error: %v", err)
		web.DefaultErrorHandler(ctx, err)
	}
}

// mapError returns the HTTP form of a known error, or nil
func mapError(err error) *web.HTTPError {
	var he *web.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return &web.HTTPError{
			Status:  fasthttp.StatusBadRequest,
			Code:    web.CodeValidation,
			Message: msgInvalidInput,
			Fields:  verr.Fields,
		}
	case errors.Is(err, services.ErrAuthenticationFailed):
		return web.NewHTTPError(fasthttp.StatusUnauthorized, web.CodeAuthentication, services.ErrAuthenticationFailed.Error())
	case errors.Is(err, services.ErrInvalidToken):
		return web.NewHTTPError(fasthttp.StatusUnauthorized, web.CodeInvalidToken, services.ErrInvalidToken.Error())
	case errors.Is(err, services.ErrRefreshRequired):
		return web.NewHTTPError(fasthttp.StatusBadRequest, web.CodeValidation, services.ErrRefreshRequired.Error())
	case errors.Is(err, services.ErrInvalidPage):
		return web.NewHTTPError(fasthttp.StatusNotFound, web.CodeNotFound, services.ErrInvalidPage.Error())
	case errors.Is(err, services.ErrNotFound):
		return web.NewHTTPError(fasthttp.StatusNotFound, web.CodeNotFound, msgNotFound)
	}
	return nil
}

// bindBody decodes the JSON body into v. An empty body leaves v untouched,
// so missing fields are reported by validation rather than as a parse error.
func bindBody(ctx *web.FastRequestContext, v interface{}) error {
	err := ctx.BindJSON(v)
	if err == nil || errors.Is(err, web.ErrEmptyBody) {
		return nil
	}
	return web.NewHTTPError(fasthttp.StatusBadRequest, web.CodeValidation, msgMalformed)
}
