package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/fluxorio/todoapi/services"
	"github.com/valyala/fasthttp"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"validation", services.NewValidationError("title", services.MsgBlank), 400, web.CodeValidation, msgInvalidInput},
		{"wrapped not found", fmt.Errorf("get: %w", services.ErrNotFound), 404, web.CodeNotFound, msgNotFound},
		{"invalid page", services.ErrInvalidPage, 404, web.CodeNotFound, "Invalid page."},
		{"bad credentials", services.ErrAuthenticationFailed, 401, web.CodeAuthentication, services.ErrAuthenticationFailed.Error()},
		{"invalid token", services.ErrInvalidToken, 401, web.CodeInvalidToken, services.ErrInvalidToken.Error()},
		{"refresh required", services.ErrRefreshRequired, 400, web.CodeValidation, "Refresh token is required."},
		{"http error", web.NewHTTPError(429, web.CodeRateLimitExceeded, "slow down"), 429, web.CodeRateLimitExceeded, "slow down"},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), 504, web.CodeTimeout, "Request timeout"},
		{"unmapped", errors.New("disk on fire"), 500, web.CodeInternal, "Internal server error"},
	}

	handler := ErrorHandler(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := &fasthttp.RequestCtx{}
			ctx := web.NewFastRequestContext(rc, "req-42")
			handler(ctx, tt.err)

			if rc.Response.StatusCode() != tt.status {
				t.Errorf("status = %d, want %d", rc.Response.StatusCode(), tt.status)
			}
			var body web.ErrorResponse
			if err := json.Unmarshal(rc.Response.Body(), &body); err != nil {
				t.Fatalf("body %q: %v", rc.Response.Body(), err)
			}
			if body.Error != tt.code || body.Message != tt.message {
				t.Errorf("body = %+v, want %s/%q", body, tt.code, tt.message)
			}
			if tt.status == 500 && body.RequestID != "req-42" {
				t.Errorf("request_id = %q, want req-42", body.RequestID)
			}
			if tt.name == "validation" {
				if msgs := body.Fields["title"]; len(msgs) != 1 || msgs[0] != services.MsgBlank {
					t.Errorf("fields = %v", body.Fields)
				}
			}
		})
	}
}
