package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fluxorio/todoapi/pkg/core"
	"github.com/fluxorio/todoapi/pkg/web"
)

// TimeoutConfig configures request timeout middleware
type TimeoutConfig struct {
	// Timeout bounds the request's context.Context
	Timeout time.Duration

	// Logger is the logger to use for timeout logging (default: core.NewDefaultLogger())
	Logger core.Logger

	// SkipPaths is a list of path prefixes to skip
	SkipPaths []string
}

// DefaultTimeoutConfig returns a default timeout configuration
func DefaultTimeoutConfig(timeout time.Duration) TimeoutConfig {
	return TimeoutConfig{
		Timeout: timeout,
		Logger:  core.NewDefaultLogger(),
	}
}

// Timeout attaches a deadline to the request context. Database calls made
// with ctx.Context() are cancelled when it passes; the handler's resulting
// context.DeadlineExceeded error is rendered as 504 by the router.
func Timeout(config TimeoutConfig) web.FastMiddleware {
	if config.Timeout <= 0 {
		panic("Timeout: timeout duration must be positive")
	}

	logger := config.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			path := string(ctx.Path())
			for _, skipPath := range config.SkipPaths {
				if strings.HasPrefix(path, skipPath) {
					return next(ctx)
				}
			}

			parent := ctx.Context()
			timeoutCtx, cancel := context.WithTimeout(parent, config.Timeout)
			defer cancel()
			ctx.SetContext(timeoutCtx)
			defer ctx.SetContext(parent)

			err := next(ctx)
			if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
				logger.WithContext(timeoutCtx).WithFields(map[string]interface{}{
					"method":  string(ctx.Method()),
					"path":    path,
					"timeout": config.Timeout.String(),
				}).Warnf("request exceeded its deadline: %s %s", string(ctx.Method()), path)
			}
			return err
		}
	}
}
