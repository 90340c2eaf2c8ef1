package middleware

import (
	"errors"
	"time"

	"github.com/fluxorio/todoapi/pkg/core"
	"github.com/fluxorio/todoapi/pkg/web"
)

// LoggingConfig configures the access log
type LoggingConfig struct {
	Logger    core.Logger
	SkipPaths []string // exact paths not logged, such as probes
}

// DefaultLoggingConfig skips the probe and metrics endpoints
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Logger:    core.NewDefaultLogger(),
		SkipPaths: []string{"/health", "/live", "/ready", "/metrics"},
	}
}

// Logging writes one line per request after it completes
func Logging(config LoggingConfig) web.FastMiddleware {
	logger := config.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			path := string(ctx.Path())
			if skip[path] {
				return next(ctx)
			}

			start := time.Now()
			err := next(ctx)

			status := ctx.RequestCtx.Response.StatusCode()
			if err != nil {
				status = statusOf(err)
			}

			entry := logger.WithContext(ctx.Context()).WithFields(map[string]interface{}{
				"method":      string(ctx.Method()),
				"path":        path,
				"status":      status,
				"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
				"remote_ip":   ctx.RequestCtx.RemoteIP().String(),
			})
			switch {
			case status >= 500:
				entry.Errorf("request failed: %v", err)
			case status >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request completed")
			}
			return err
		}
	}
}

// statusOf is the status the router will write for an error returned by
// middleware further down the global chain
func statusOf(err error) int {
	var he *web.HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 500
}
