package web

import (
	"sort"
	"strings"
	"sync"

	"github.com/valyala/fasthttp"
)

// FastRequestHandler handles fasthttp requests
type FastRequestHandler func(ctx *FastRequestContext) error

// FastMiddleware is middleware for fasthttp
type FastMiddleware func(handler FastRequestHandler) FastRequestHandler

// FastRouter matches method and path, with ":name" segments as parameters.
// A trailing slash is ignored. Routes match in registration order.
type FastRouter struct {
	mu           sync.RWMutex
	routes       []*fastRoute
	middleware   []FastMiddleware
	errorHandler ErrorHandler
}

type fastRoute struct {
	method   string
	segments []string
	handler  FastRequestHandler
}

// NewFastRouter creates an empty router
func NewFastRouter() *FastRouter {
	return &FastRouter{errorHandler: DefaultErrorHandler}
}

// UseFast appends global middleware. It wraps every request, including 404 and 405 responses.
func (r *FastRouter) UseFast(mw ...FastMiddleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)
}

// SetErrorHandler replaces the renderer for errors returned by handlers
func (r *FastRouter) SetErrorHandler(h ErrorHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		h = DefaultErrorHandler
	}
	r.errorHandler = h
}

// RouteFast registers handler for method and path, wrapped in the given route middleware
func (r *FastRouter) RouteFast(method, path string, handler FastRequestHandler, mw ...FastMiddleware) {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, &fastRoute{
		method:   method,
		segments: splitPath(path),
		handler:  handler,
	})
}

func (r *FastRouter) GETFast(path string, handler FastRequestHandler) {
	r.RouteFast(fasthttp.MethodGet, path, handler)
}

func (r *FastRouter) POSTFast(path string, handler FastRequestHandler) {
	r.RouteFast(fasthttp.MethodPost, path, handler)
}

func (r *FastRouter) PUTFast(path string, handler FastRequestHandler) {
	r.RouteFast(fasthttp.MethodPut, path, handler)
}

func (r *FastRouter) PATCHFast(path string, handler FastRequestHandler) {
	r.RouteFast(fasthttp.MethodPatch, path, handler)
}

func (r *FastRouter) DELETEFast(path string, handler FastRequestHandler) {
	r.RouteFast(fasthttp.MethodDelete, path, handler)
}

func (r *FastRouter) GETFastWith(path string, handler FastRequestHandler, mw ...FastMiddleware) {
	r.RouteFast(fasthttp.MethodGet, path, handler, mw...)
}

func (r *FastRouter) POSTFastWith(path string, handler FastRequestHandler, mw ...FastMiddleware) {
	r.RouteFast(fasthttp.MethodPost, path, handler, mw...)
}

func (r *FastRouter) PUTFastWith(path string, handler FastRequestHandler, mw ...FastMiddleware) {
	r.RouteFast(fasthttp.MethodPut, path, handler, mw...)
}

func (r *FastRouter) PATCHFastWith(path string, handler FastRequestHandler, mw ...FastMiddleware) {
	r.RouteFast(fasthttp.MethodPatch, path, handler, mw...)
}

func (r *FastRouter) DELETEFastWith(path string, handler FastRequestHandler, mw ...FastMiddleware) {
	r.RouteFast(fasthttp.MethodDelete, path, handler, mw...)
}

// ServeFastHTTP dispatches ctx through the global middleware to the matching
// route. Route errors are rendered before the global middleware sees the
// response; errors returned by global middleware are rendered last.
func (r *FastRouter) ServeFastHTTP(ctx *FastRequestContext) {
	r.mu.RLock()
	middleware := r.middleware
	errorHandler := r.errorHandler
	handler := render(r.match(ctx), errorHandler)
	r.mu.RUnlock()

	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}

	if err := handler(ctx); err != nil {
		errorHandler(ctx, err)
	}
}

func render(next FastRequestHandler, errorHandler ErrorHandler) FastRequestHandler {
	return func(ctx *FastRequestContext) error {
		if err := next(ctx); err != nil {
			errorHandler(ctx, err)
		}
		return nil
	}
}

// match returns the route handler, or a 404/405 responder. Caller holds r.mu.
func (r *FastRouter) match(ctx *FastRequestContext) FastRequestHandler {
	method := string(ctx.Method())
	path := splitPath(string(ctx.Path()))

	var allowed []string
	for _, route := range r.routes {
		if !matchSegments(route.segments, path) {
			continue
		}
		if route.method == method || (method == fasthttp.MethodHead && route.method == fasthttp.MethodGet) {
			extractParams(route.segments, path, ctx.Params)
			return route.handler
		}
		allowed = append(allowed, route.method)
	}

	if len(allowed) > 0 {
		allow := strings.Join(dedupe(allowed), ", ")
		return func(ctx *FastRequestContext) error {
			ctx.RequestCtx.Response.Header.Set("Allow", allow)
			return NewHTTPError(fasthttp.StatusMethodNotAllowed, CodeMethodNotAllowed,
				`Method "`+string(ctx.Method())+`" not allowed.`)
		}
	}
	return func(ctx *FastRequestContext) error {
		return NewHTTPError(fasthttp.StatusNotFound, CodeNotFound, "Not found.")
	}
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, part := range pattern {
		if strings.HasPrefix(part, ":") {
			if path[i] == "" {
				return false
			}
			continue
		}
		if part != path[i] {
			return false
		}
	}
	return true
}

func extractParams(pattern, path []string, params map[string]string) {
	for i, part := range pattern {
		if strings.HasPrefix(part, ":") {
			params[part[1:]] = path[i]
		}
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
