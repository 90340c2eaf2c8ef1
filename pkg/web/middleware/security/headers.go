package security

import (
	"strconv"

	"github.com/fluxorio/todoapi/pkg/web"
)

// HeadersConfig configures security headers. Empty strings disable a header.
type HeadersConfig struct {
	// HSTS (HTTP Strict Transport Security), only sent over TLS
	HSTS           bool
	HSTSMaxAge     int // in seconds, default 31536000 (1 year)
	HSTSIncludeSub bool

	CSP                           string
	XFrameOptions                 string
	XContentTypeOptions           bool // nosniff
	ReferrerPolicy                string
	PermissionsPolicy             string
	XPermittedCrossDomainPolicies string
	CrossOriginOpenerPolicy       string
	CrossOriginResourcePolicy     string

	CustomHeaders map[string]string
}

// DefaultHeadersConfig returns headers suited to a JSON API
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		HSTS:                          true,
		HSTSMaxAge:                    31536000,
		HSTSIncludeSub:                true,
		CSP:                           "default-src 'none'; frame-ancestors 'none'; base-uri 'none'",
		XFrameOptions:                 "DENY",
		XContentTypeOptions:           true,
		ReferrerPolicy:                "no-referrer",
		XPermittedCrossDomainPolicies: "none",
		CrossOriginOpenerPolicy:       "same-origin",
		CrossOriginResourcePolicy:     "same-origin",
	}
}

// Headers middleware adds security headers to responses
func Headers(config HeadersConfig) web.FastMiddleware {
	static := make([][2]string, 0, 8)
	add := func(name, value string) {
		if value != "" {
			static = append(static, [2]string{name, value})
		}
	}
	add("Content-Security-Policy", config.CSP)
	add("X-Frame-Options", config.XFrameOptions)
	if config.XContentTypeOptions {
		add("X-Content-Type-Options", "nosniff")
	}
	add("Referrer-Policy", config.ReferrerPolicy)
	add("Permissions-Policy", config.PermissionsPolicy)
	add("X-Permitted-Cross-Domain-Policies", config.XPermittedCrossDomainPolicies)
	add("Cross-Origin-Opener-Policy", config.CrossOriginOpenerPolicy)
	add("Cross-Origin-Resource-Policy", config.CrossOriginResourcePolicy)
	for k, v := range config.CustomHeaders {
		add(k, v)
	}

	hsts := ""
	if config.HSTS {
		maxAge := config.HSTSMaxAge
		if maxAge <= 0 {
			maxAge = 31536000
		}
		hsts = "max-age=" + strconv.Itoa(maxAge)
		if config.HSTSIncludeSub {
			hsts += "; includeSubDomains"
		}
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			h := &ctx.RequestCtx.Response.Header
			for _, kv := range static {
				h.Set(kv[0], kv[1])
			}
			if hsts != "" && ctx.RequestCtx.IsTLS() {
				h.Set("Strict-Transport-Security", hsts)
			}
			return next(ctx)
		}
	}
}
