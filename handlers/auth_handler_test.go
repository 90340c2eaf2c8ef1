package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fluxorio/todoapi/pkg/tokens"
	"github.com/fluxorio/todoapi/services"
	"github.com/google/uuid"
)

func TestAuthHandler_Flow(t *testing.T) {
	api := newTestAPI(t, services.DefaultPageSizes())

	access, refresh := api.register("alice")

	res := api.call("POST", "/api/auth/register", "",
		`{"username":"alice","email":"other@example.com","password":"Secret123!","password_confirm":"Secret123!"}`)
	api.expect(res, 400, "validation_error")
	if msgs := res.fields("username"); len(msgs) != 1 || msgs[0] != services.MsgUsernameTaken {
		t.Errorf("username errors = %v", msgs)
	}

	res = api.call("POST", "/api/auth/login", "", `{"username":"alice","password":"wrong-password"}`)
	api.expect(res, 401, "authentication_failed")

	res = api.call("POST", "/api/auth/login", "", `{"username":"alice","password":"Secret123!"}`)
	api.expect(res, 200, "")
	if res.str("access") == "" || res.str("refresh") == "" {
		t.Errorf("login body = %v", res.body)
	}

	res = api.call("GET", "/api/auth/profile", access, "")
	api.expect(res, 200, "")
	if res.str("username") != "alice" || res.str("email") != "alice@example.com" || res.str("id") == "" {
		t.Errorf("profile = %v", res.body)
	}
	if _, ok := res.body["password"]; ok {
		t.Error("profile leaks password")
	}

	api.expect(api.call("GET", "/api/auth/profile", "", ""), 401, "unauthorized")
	api.expect(api.call("GET", "/api/auth/profile", refresh, ""), 401, "invalid_token")

	res = api.call("POST", "/api/auth/token/refresh", "", `{"refresh":"`+refresh+`"}`)
	api.expect(res, 200, "")
	newAccess := res.str("access")
	if newAccess == "" {
		t.Fatalf("refresh body = %v", res.body)
	}
	api.expect(api.call("GET", "/api/auth/profile", newAccess, ""), 200, "")

	res = api.call("POST", "/api/auth/token/refresh", "", `{}`)
	api.expect(res, 400, "validation_error")
	if msgs := res.fields("refresh"); len(msgs) != 1 || msgs[0] != services.MsgRequired {
		t.Errorf("refresh errors = %v", msgs)
	}
	api.expect(api.call("POST", "/api/auth/token/refresh", "", `{"refresh":"`+access+`"}`), 401, "invalid_token")

	res = api.call("POST", "/api/auth/logout", "", `{"refresh":"`+refresh+`"}`)
	api.expect(res, 200, "")
	if res.str("message") != "Successfully logged out." {
		t.Errorf("logout message = %q", res.str("message"))
	}

	res = api.call("POST", "/api/auth/logout", "", `{"refresh":"`+refresh+`"}`)
	api.expect(res, 400, "invalid_token")
	if res.str("message") != "Invalid token." {
		t.Errorf("second logout message = %q", res.str("message"))
	}

	res = api.call("POST", "/api/auth/logout", "", `{}`)
	api.expect(res, 400, "validation_error")
	if res.str("message") != "Refresh token is required." {
		t.Errorf("empty logout message = %q", res.str("message"))
	}

	api.expect(api.call("POST", "/api/auth/token/refresh", "", `{"refresh":"`+refresh+`"}`), 401, "invalid_token")

	if got := api.recorder.count("login:ok"); got != 1 {
		t.Errorf("login:ok = %d, want 1", got)
	}
	if got := api.recorder.count("login:fail"); got != 1 {
		t.Errorf("login:fail = %d, want 1", got)
	}
	if got := api.recorder.count("logout:ok"); got != 1 {
		t.Errorf("logout:ok = %d, want 1", got)
	}
}

func TestAuthHandler_RegisterValidation(t *testing.T) {
	api := newTestAPI(t, services.DefaultPageSizes())

	tests := []struct {
		name  string
		body  string
		field string
		want  string
	}{
		{
			name:  "empty body",
			body:  "",
			field: "username",
			want:  services.MsgRequired,
		},
		{
			name:  "mismatch",
			body:  `{"username":"carol","email":"carol@example.com","password":"Secret123!","password_confirm":"Secret124!"}`,
			field: "password_confirm",
			want:  services.MsgPasswordMatch,
		},
		{
			name:  "invalid email",
			body:  `{"username":"carol","email":"not-an-email","password":"Secret123!","password_confirm":"Secret123!"}`,
			field: "email",
			want:  services.MsgInvalidEmail,
		},
		{
			name:  "password over bcrypt limit",
			body:  `{"username":"carol","email":"carol@example.com","password":"` + longPassword + `","password_confirm":"` + longPassword + `"}`,
			field: "password",
			want:  fmt.Sprintf("This password is too long. It must contain at most %d bytes.", services.MaxPasswordBytes),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := api.call("POST", "/api/auth/register", "", tt.body)
			api.expect(res, 400, "validation_error")
			msgs := res.fields(tt.field)
			if len(msgs) == 0 || msgs[0] != tt.want {
				t.Errorf("%s errors = %v, want %q", tt.field, msgs, tt.want)
			}
		})
	}
}

var longPassword = "Zx9!" + strings.Repeat("q", 80)

type unwritableBlacklist struct {
	tokens.Blacklist
}

func (unwritableBlacklist) Revoke(context.Context, string, uuid.UUID, time.Time) error {
	return errors.New("db down")
}

func TestAuthHandler_LogoutStorageFailure(t *testing.T) {
	api := newTestAPIWithBlacklist(t, services.DefaultPageSizes(), func(b tokens.Blacklist) tokens.Blacklist {
		return unwritableBlacklist{b}
	})
	_, refresh := api.register("alice")

	res := api.call("POST", "/api/auth/logout", "", `{"refresh":"`+refresh+`"}`)
	api.expect(res, 500, "internal_error")
	if strings.Contains(res.str("message"), "db down") {
		t.Errorf("storage details leaked: %q", res.str("message"))
	}
	if got := api.recorder.count("logout:fail"); got != 1 {
		t.Errorf("logout:fail = %d, want 1", got)
	}

	// the refresh token was not revoked
	res = api.call("POST", "/api/auth/token/refresh", "", `{"refresh":"`+refresh+`"}`)
	api.expect(res, 200, "")
}

func TestAuthHandler_MalformedJSON(t *testing.T) {
	api := newTestAPI(t, services.DefaultPageSizes())

	res := api.call("POST", "/api/auth/login", "", `{"username":`)
	api.expect(res, 400, "validation_error")
	if res.str("message") != msgMalformed {
		t.Errorf("message = %q", res.str("message"))
	}
}

func TestAuthHandler_DeleteProfile(t *testing.T) {
	api := newTestAPI(t, services.DefaultPageSizes())

	access, refresh := api.register("alice")
	api.createTodo(access, `{"title":"Buy milk"}`)

	res := api.call("DELETE", "/api/auth/profile", access, "")
	api.expect(res, 204, "")
	if res.body != nil {
		t.Errorf("204 body = %v", res.body)
	}

	api.expect(api.call("GET", "/api/todos", access, ""), 401, "invalid_token")
	api.expect(api.call("POST", "/api/auth/token/refresh", "", `{"refresh":"`+refresh+`"}`), 401, "invalid_token")
	api.expect(api.call("POST", "/api/auth/login", "", `{"username":"alice","password":"Secret123!"}`), 401, "authentication_failed")
}
