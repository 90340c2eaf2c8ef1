package web

import (
	"context"
	"errors"
	"fmt"

	"github.com/fluxorio/todoapi/pkg/core"
	"github.com/valyala/fasthttp"
)

// ErrEmptyBody is returned by BindJSON for a request without a body
var ErrEmptyBody = errors.New("empty request body")

// FastRequestContext wraps fasthttp RequestCtx with the request id, route
// params and values set by middleware
type FastRequestContext struct {
	*core.BaseRequestContext
	RequestCtx *fasthttp.RequestCtx
	Params     map[string]string
	requestID  string
	ctx        context.Context
}

// NewFastRequestContext creates a request context for rc
func NewFastRequestContext(rc *fasthttp.RequestCtx, requestID string) *FastRequestContext {
	return &FastRequestContext{
		BaseRequestContext: core.NewBaseRequestContext(),
		RequestCtx:         rc,
		Params:             make(map[string]string),
		requestID:          requestID,
	}
}

// JSON writes a JSON response
func (c *FastRequestContext) JSON(statusCode int, data interface{}) error {
	if statusCode < 100 || statusCode > 599 {
		return fmt.Errorf("invalid status code: %d", statusCode)
	}

	jsonData, err := core.JSONEncode(data)
	if err != nil {
		return fmt.Errorf("json encode error: %w", err)
	}

	c.RequestCtx.SetStatusCode(statusCode)
	c.RequestCtx.SetContentType("application/json")
	c.RequestCtx.SetBody(jsonData)
	return nil
}

// NoContent writes a status without a body
func (c *FastRequestContext) NoContent(statusCode int) error {
	c.RequestCtx.SetStatusCode(statusCode)
	c.RequestCtx.ResetBody()
	return nil
}

// BindJSON decodes the request body into v
func (c *FastRequestContext) BindJSON(v interface{}) error {
	if v == nil {
		return fmt.Errorf("cannot bind to nil value")
	}

	body := c.RequestCtx.PostBody()
	if len(body) == 0 {
		return ErrEmptyBody
	}
	return core.JSONDecode(body, v)
}

// Text writes text response
func (c *FastRequestContext) Text(statusCode int, text string) error {
	c.RequestCtx.SetStatusCode(statusCode)
	c.RequestCtx.SetContentType("text/plain; charset=utf-8")
	c.RequestCtx.SetBodyString(text)
	return nil
}

// Query returns query parameter value
func (c *FastRequestContext) Query(key string) string {
	return string(c.RequestCtx.QueryArgs().Peek(key))
}

// Param returns path parameter value
func (c *FastRequestContext) Param(key string) string {
	return c.Params[key]
}

// Method returns HTTP method
func (c *FastRequestContext) Method() []byte {
	return c.RequestCtx.Method()
}

// Path returns request path
func (c *FastRequestContext) Path() []byte {
	return c.RequestCtx.Path()
}

// Header returns a request header
func (c *FastRequestContext) Header(key string) string {
	return string(c.RequestCtx.Request.Header.Peek(key))
}

// RequestID returns the request ID for this request
func (c *FastRequestContext) RequestID() string {
	return c.requestID
}

// Context returns the request's context.Context. It carries the request id
// and, once the timeout middleware ran, the request deadline.
func (c *FastRequestContext) Context() context.Context {
	if c.ctx == nil {
		c.ctx = context.Background()
		if c.requestID != "" {
			c.ctx = core.WithRequestID(c.ctx, c.requestID)
		}
	}
	return c.ctx
}

// SetContext replaces the request's context.Context
func (c *FastRequestContext) SetContext(ctx context.Context) {
	c.ctx = ctx
}

// AbsoluteURL builds an absolute URL for this request's path with the given query
func (c *FastRequestContext) AbsoluteURL(args *fasthttp.Args) string {
	scheme := "http"
	if c.RequestCtx.IsTLS() || string(c.RequestCtx.Request.Header.Peek("X-Forwarded-Proto")) == "https" {
		scheme = "https"
	}
	u := scheme + "://" + string(c.RequestCtx.Host()) + string(c.Path())
	if args != nil && args.Len() > 0 {
		u += "?" + args.String()
	}
	return u
}
