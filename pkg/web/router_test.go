package web

import (
	"errors"
	"strings"
	"testing"
)

func TestFastRouter_Matching(t *testing.T) {
	s, client := newTestServer(t, nil)
	r := s.Router()

	r.GETFast("/api/todos", func(ctx *FastRequestContext) error {
		return ctx.Text(200, "list")
	})
	r.GETFast("/api/todos/stats", func(ctx *FastRequestContext) error {
		return ctx.Text(200, "stats")
	})
	r.GETFast("/api/todos/:id", func(ctx *FastRequestContext) error {
		return ctx.Text(200, "get "+ctx.Param("id"))
	})
	r.DELETEFast("/api/todos/:id", func(ctx *FastRequestContext) error {
		return ctx.NoContent(204)
	})
	r.POSTFast("/api/todos/:id/toggle-complete", func(ctx *FastRequestContext) error {
		return ctx.Text(200, "toggle "+ctx.Param("id"))
	})

	tests := []struct {
		method string
		path   string
		status int
		body   string
	}{
		{"GET", "/api/todos", 200, "list"},
		{"GET", "/api/todos/", 200, "list"},
		{"GET", "/api/todos/stats", 200, "stats"},
		{"GET", "/api/todos/abc", 200, "get abc"},
		{"GET", "/api/todos/abc/", 200, "get abc"},
		{"POST", "/api/todos/abc/toggle-complete/", 200, "toggle abc"},
		{"DELETE", "/api/todos/abc", 204, ""},
		{"GET", "/api/nothing", 404, CodeNotFound},
		{"GET", "/api/todos/abc/extra", 404, CodeNotFound},
		{"PUT", "/api/todos/abc", 405, CodeMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := do(t, client, tt.method, "http://test"+tt.path, "")
			if resp.StatusCode() != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode(), tt.status)
			}
			if !strings.Contains(string(resp.Body()), tt.body) {
				t.Errorf("body = %q, want %q", resp.Body(), tt.body)
			}
		})
	}

	resp := do(t, client, "PUT", "http://test/api/todos/abc", "")
	if allow := string(resp.Header.Peek("Allow")); allow != "DELETE, GET" {
		t.Errorf("Allow = %q, want \"DELETE, GET\"", allow)
	}
}

func TestFastRouter_MiddlewareOrder(t *testing.T) {
	s, client := newTestServer(t, nil)
	r := s.Router()

	var order []string
	mark := func(name string) FastMiddleware {
		return func(next FastRequestHandler) FastRequestHandler {
			return func(ctx *FastRequestContext) error {
				order = append(order, name)
				return next(ctx)
			}
		}
	}
	r.UseFast(mark("global1"), mark("global2"))
	r.GETFastWith("/x", func(ctx *FastRequestContext) error {
		order = append(order, "handler")
		return ctx.Text(200, "ok")
	}, mark("route"))

	do(t, client, "GET", "http://test/x", "")
	if got := strings.Join(order, ","); got != "global1,global2,route,handler" {
		t.Errorf("order = %s", got)
	}

	order = nil
	do(t, client, "GET", "http://test/missing", "")
	if got := strings.Join(order, ","); got != "global1,global2" {
		t.Errorf("global middleware should wrap 404s, order = %s", got)
	}
}

func TestFastRouter_ErrorHandler(t *testing.T) {
	s, client := newTestServer(t, nil)
	r := s.Router()

	r.GETFast("/http-error", func(ctx *FastRequestContext) error {
		return NewHTTPError(418, "teapot", "short and stout")
	})
	r.GETFast("/plain-error", func(ctx *FastRequestContext) error {
		return errors.New("database exploded")
	})

	resp := do(t, client, "GET", "http://test/http-error", "")
	if resp.StatusCode() != 418 || string(resp.Body()) != `{"error":"teapot","message":"short and stout"}` {
		t.Errorf("http error = %d %s", resp.StatusCode(), resp.Body())
	}

	resp = do(t, client, "GET", "http://test/plain-error", "")
	if resp.StatusCode() != 500 || strings.Contains(string(resp.Body()), "exploded") {
		t.Errorf("internal errors must not leak: %d %s", resp.StatusCode(), resp.Body())
	}

	r.SetErrorHandler(func(ctx *FastRequestContext, err error) {
		_ = ctx.Text(502, "custom: "+err.Error())
	})
	resp = do(t, client, "GET", "http://test/plain-error", "")
	if resp.StatusCode() != 502 || string(resp.Body()) != "custom: database exploded" {
		t.Errorf("custom handler = %d %s", resp.StatusCode(), resp.Body())
	}
}

func TestSplitPath(t *testing.T) {
	tests := map[string]int{"/": 0, "": 0, "/a": 1, "/a/b/": 2, "a/b/c": 3}
	for in, want := range tests {
		if got := len(splitPath(in)); got != want {
			t.Errorf("splitPath(%q) has %d segments, want %d", in, got, want)
		}
	}
}
