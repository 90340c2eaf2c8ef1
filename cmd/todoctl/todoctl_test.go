package main

import (
	"bytes"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fluxorio/todoapi/handlers"
	"github.com/fluxorio/todoapi/pkg/core"
	"github.com/fluxorio/todoapi/pkg/db/dbtest"
	"github.com/fluxorio/todoapi/pkg/tokens"
	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/fluxorio/todoapi/pkg/web/middleware/auth"
	"github.com/fluxorio/todoapi/services"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"golang.org/x/crypto/bcrypt"
)

// startServer serves the real API on an in-memory listener with a page size of two
func startServer(t *testing.T) *apiClient {
	t.Helper()

	sqlDB := dbtest.Open(t)
	manager, err := tokens.NewManager(tokens.DefaultConfig("todoctl-test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	users := services.NewUserService(sqlDB).WithBcryptCost(bcrypt.MinCost)
	authService := services.NewAuthService(users, manager, tokens.NewSQLBlacklist(sqlDB), nil)

	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	todoService := services.NewTodoService(sqlDB).WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	})

	server := web.NewFastHTTPServer(web.DefaultFastHTTPServerConfig(":0"), core.NewNopLogger())
	router := server.Router()
	router.SetErrorHandler(handlers.ErrorHandler(nil))
	handlers.RegisterRoutes(router,
		handlers.NewAuthHandler(authService, nil),
		handlers.NewTodoHandler(todoService, services.PageSizes{Default: 2, Max: 2}, nil),
		auth.Protected(auth.DefaultJWTConfig(manager), authService),
	)

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: server.Handler()}
	done := make(chan struct{})
	go func() {
		_ = srv.Serve(ln)
		close(done)
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})

	return newAPIClient("http://test/", &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	})
}

type session struct {
	t     *testing.T
	api   *apiClient
	store *credStore
}

type output struct {
	code     int
	out, err string
}

func newSession(t *testing.T) *session {
	return &session{t: t, api: startServer(t), store: &credStore{dir: t.TempDir()}}
}

func (s *session) run(stdin string, args ...string) output {
	s.t.Helper()
	var out, errOut bytes.Buffer
	c := &cli{api: s.api, store: s.store, in: strings.NewReader(stdin), out: &out, err: &errOut}
	code := c.run(args)
	return output{code: code, out: out.String(), err: errOut.String()}
}

func (s *session) mustRun(stdin string, args ...string) string {
	s.t.Helper()
	o := s.run(stdin, args...)
	if o.code != 0 {
		s.t.Fatalf("todoctl %v = %d\nstdout: %s\nstderr: %s", args, o.code, o.out, o.err)
	}
	return o.out
}

func TestTodoctl_Flow(t *testing.T) {
	s := newSession(t)

	out := s.mustRun("Secret123!\n", "register", "alice", "alice@example.com")
	if !strings.Contains(out, "registered and logged in as alice") {
		t.Errorf("register output = %q", out)
	}

	info, err := os.Stat(s.store.path())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("credentials mode = %o, want 600", perm)
	}

	s.mustRun("", "add", "Buy milk")
	s.mustRun("", "add", "-p", "high", "-due", "2024-05-01", "File", "taxes")
	s.mustRun("", "add", "Walk dog")

	// three todos span two pages of two
	out = s.mustRun("", "ls")
	for _, want := range []string{"Buy milk", "File taxes", "[high]", "due 2024-05-01", "Walk dog", "Total 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("ls output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Buy milk") > strings.Index(out, "Walk dog") {
		t.Errorf("ls is not oldest first:\n%s", out)
	}

	out = s.mustRun("", "done", "2")
	if !strings.Contains(out, "File taxes: To-do marked as completed.") {
		t.Errorf("done output = %q", out)
	}
	out = s.mustRun("", "ls", "-done")
	if !strings.Contains(out, "File taxes") || strings.Contains(out, "Buy milk") {
		t.Errorf("ls -done output:\n%s", out)
	}

	out = s.mustRun("", "rm", "1")
	if !strings.Contains(out, "removed Buy milk") {
		t.Errorf("rm output = %q", out)
	}

	out = s.mustRun("", "stats")
	for _, want := range []string{"total 2", "completed 1", "pending 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}

	out = s.mustRun("", "whoami")
	if !strings.Contains(out, "alice@example.com") {
		t.Errorf("whoami output = %q", out)
	}

	s.mustRun("", "logout")
	if _, err := os.Stat(s.store.path()); !os.IsNotExist(err) {
		t.Errorf("credentials still present after logout: %v", err)
	}
	if o := s.run("", "ls"); o.code != 1 || !strings.Contains(o.err, "not logged in") {
		t.Errorf("ls after logout = %d %q", o.code, o.err)
	}
}

func TestTodoctl_RefreshesExpiredAccess(t *testing.T) {
	s := newSession(t)
	s.mustRun("Secret123!\n", "register", "bob", "bob@example.com")

	creds, err := s.store.load()
	if err != nil || creds == nil {
		t.Fatalf("load credentials: %v", err)
	}
	creds.Access = "not-a-token"
	if err := s.store.save(creds); err != nil {
		t.Fatal(err)
	}

	s.mustRun("", "add", "after refresh")

	updated, _ := s.store.load()
	if updated.Access == "not-a-token" || updated.Refresh != creds.Refresh {
		t.Errorf("access token not replaced by refresh: %+v", updated)
	}
}

func TestTodoctl_Login(t *testing.T) {
	s := newSession(t)
	s.mustRun("Secret123!\n", "register", "carol", "carol@example.com")
	s.mustRun("", "logout")

	if o := s.run("wrong-password\n", "login", "carol"); o.code != 1 || !strings.Contains(o.err, "invalid username or password") {
		t.Errorf("bad login = %d %q", o.code, o.err)
	}
	out := s.mustRun("Secret123!\n", "login", "carol")
	if !strings.Contains(out, "logged in as carol") {
		t.Errorf("login output = %q", out)
	}
	s.mustRun("", "ls")
}

func TestTodoctl_Usage(t *testing.T) {
	s := newSession(t)

	tests := []struct {
		name string
		args []string
		code int
		err  string
	}{
		{"no args", nil, 2, ""},
		{"unknown", []string{"frobnicate"}, 2, "unknown subcommand: frobnicate"},
		{"add without title", []string{"add"}, 2, "usage: todoctl add"},
		{"done without index", []string{"done"}, 2, "usage: todoctl done <index>"},
		{"rm not a number", []string{"rm", "x"}, 2, "rm: not a number: x"},
		{"bad due date", []string{"add", "-due", "tomorrow", "x"}, 2, "due date must look like"},
		{"exclusive flags", []string{"ls", "-done", "-pending"}, 2, "exclusive"},
		{"logged out", []string{"stats"}, 1, "not logged in"},
		{"register missing email", []string{"register", "dave"}, 2, "usage: todoctl register"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := s.run("", tt.args...)
			if o.code != tt.code {
				t.Errorf("code = %d, want %d (stderr %q)", o.code, tt.code, o.err)
			}
			if !strings.Contains(o.err, tt.err) {
				t.Errorf("stderr = %q, want it to contain %q", o.err, tt.err)
			}
		})
	}
}

func TestTodoctl_ServerValidation(t *testing.T) {
	s := newSession(t)
	s.mustRun("Secret123!\n", "register", "erin", "erin@example.com")

	o := s.run("", "add", "-p", "urgent", "x")
	if o.code != 1 || !strings.Contains(o.err, "priority:") {
		t.Errorf("add with bad priority = %d %q", o.code, o.err)
	}
	o = s.run("", "done", "5")
	if o.code != 1 || !strings.Contains(o.err, "out of range (1..0)") {
		t.Errorf("done out of range = %d %q", o.code, o.err)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	e := &apiError{Status: 400, Body: web.ErrorResponse{
		Message: "Invalid input.",
		Fields:  map[string][]string{"title": {"This field is required."}, "priority": {"bad."}},
	}}
	want := "Invalid input. (priority: bad.; title: This field is required.)"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
	if got := (&apiError{Status: 404}).Error(); got != "Not Found" {
		t.Errorf("bare 404 = %q", got)
	}
}
