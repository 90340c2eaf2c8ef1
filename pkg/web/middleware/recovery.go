package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/fluxorio/todoapi/pkg/core"
	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/valyala/fasthttp"
)

// RecoveryConfig configures panic recovery middleware
type RecoveryConfig struct {
	// Logger is the logger to use for panic logging (default: core.NewDefaultLogger())
	Logger core.Logger

	// StackTrace logs the goroutine stack with the panic
	StackTrace bool
}

// DefaultRecoveryConfig returns a default recovery configuration
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Logger:     core.NewDefaultLogger(),
		StackTrace: true,
	}
}

// Recovery turns a handler panic into a 500 internal_error response.
// The panic value is logged, never returned to the client.
func Recovery(config RecoveryConfig) web.FastMiddleware {
	logger := config.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				fields := map[string]interface{}{
					"request_id": ctx.RequestID(),
					"method":     string(ctx.Method()),
					"path":       string(ctx.Path()),
				}
				if config.StackTrace {
					fields["stack"] = string(debug.Stack())
				}
				logger.WithFields(fields).Errorf("panic recovered: %v", r)

				ctx.RequestCtx.Response.Reset()
				ctx.RequestCtx.Response.Header.Set(core.RequestIDHeader, ctx.RequestID())
				err = ctx.JSON(fasthttp.StatusInternalServerError, web.ErrorResponse{
					Error:     web.CodeInternal,
					Message:   fmt.Sprintf("Internal server error (request %s)", ctx.RequestID()),
					RequestID: ctx.RequestID(),
				})
			}()

			return next(ctx)
		}
	}
}
