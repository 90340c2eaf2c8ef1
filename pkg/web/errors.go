package web

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/valyala/fasthttp"
)

// Error codes written in the "error" field of every error body
const (
	CodeValidation         = "validation_error"
	CodeAuthentication     = "authentication_failed"
	CodeInvalidToken       = "invalid_token"
	CodeUnauthorized       = "unauthorized"
	CodeNotFound           = "not_found"
	CodeMethodNotAllowed   = "method_not_allowed"
	CodeRateLimitExceeded  = "rate_limit_exceeded"
	CodeServiceUnavailable = "service_unavailable"
	CodeTimeout            = "timeout"
	CodeInternal           = "internal_error"
)

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error     string              `json:"error"`
	Message   string              `json:"message"`
	Fields    map[string][]string `json:"fields,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

// HTTPError is an error that knows its status and body
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string][]string
}

// NewHTTPError creates an HTTPError
func NewHTTPError(status int, code, message string) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// WriteError renders e as the response
func (c *FastRequestContext) WriteError(e *HTTPError) error {
	return c.JSON(e.Status, ErrorResponse{Error: e.Code, Message: e.Message, Fields: e.Fields})
}

// ErrorHandler renders an error returned by a handler
type ErrorHandler func(ctx *FastRequestContext, err error)

// DefaultErrorHandler renders HTTPErrors as-is, an expired request deadline
// as 504 and everything else as a bare 500
func DefaultErrorHandler(ctx *FastRequestContext, err error) {
	var he *HTTPError
	if errors.As(err, &he) {
		_ = ctx.WriteError(he)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		_ = ctx.WriteError(NewHTTPError(fasthttp.StatusGatewayTimeout, CodeTimeout, "Request timeout"))
		return
	}
	_ = ctx.JSON(fasthttp.StatusInternalServerError, ErrorResponse{
		Error:     CodeInternal,
		Message:   "Internal server error",
		RequestID: ctx.RequestID(),
	})
}

// fastJSONError writes a fixed error body without going through the codec
func fastJSONError(rc *fasthttp.RequestCtx, status int, code, message string) {
	rc.SetStatusCode(status)
	rc.SetContentType("application/json")
	rc.SetBodyString(`{"error":` + strconv.Quote(code) + `,"message":` + strconv.Quote(message) + `}`)
}
