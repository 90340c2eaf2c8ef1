package prometheus

import (
	"errors"
	"strings"
	"time"

	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// FastHTTPMetricsMiddleware creates middleware that records HTTP metrics on m,
// or on the process-wide metrics when m is nil
func FastHTTPMetricsMiddleware(m *Metrics) web.FastMiddleware {
	if m == nil {
		m = GetMetrics()
	}
	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			start := time.Now()
			method := string(ctx.Method())
			path := NormalizePath(string(ctx.Path()))
			requestSize := int64(len(ctx.RequestCtx.PostBody()))

			err := next(ctx)

			status := ctx.RequestCtx.Response.StatusCode()
			if err != nil {
				status = errorStatus(err)
			}
			responseSize := int64(len(ctx.RequestCtx.Response.Body()))

			m.RecordHTTPRequest(method, path, statusCodeString(status), time.Since(start), requestSize, responseSize)
			return err
		}
	}
}

// NormalizePath replaces UUID segments with :id so per-todo routes share one series
func NormalizePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if _, err := uuid.Parse(seg); err == nil {
			segments[i] = ":id"
		}
	}
	return "/" + strings.Join(segments, "/")
}

// MetricsHandler serves the exposition format for gatherer
func MetricsHandler(gatherer prometheus.Gatherer) fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// RegisterMetricsEndpoint mounts the exposition of gatherer at path
func RegisterMetricsEndpoint(router *web.FastRouter, path string, gatherer prometheus.Gatherer) {
	handler := MetricsHandler(gatherer)
	router.GETFast(path, func(ctx *web.FastRequestContext) error {
		handler(ctx.RequestCtx)
		return nil
	})
}

func errorStatus(err error) int {
	var he *web.HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return fasthttp.StatusInternalServerError
}

// statusCodeString converts status code to string
func statusCodeString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
