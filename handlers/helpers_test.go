package handlers

import (
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

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

type fakeRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func (r *fakeRecorder) RecordAuthEvent(event string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	r.inc(event + ":" + outcome)
}

func (r *fakeRecorder) RecordTodoOperation(op string) { r.inc("todo:" + op) }

func (r *fakeRecorder) inc(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = map[string]int{}
	}
	r.events[key]++
}

func (r *fakeRecorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[key]
}

type testAPI struct {
	t        *testing.T
	client   *fasthttp.Client
	recorder *fakeRecorder
}

// newTestAPI wires the real services on an in-memory SQLite database behind
// an in-memory listener. Todo timestamps advance one second per write.
func newTestAPI(t *testing.T, sizes services.PageSizes) *testAPI {
	t.Helper()
	return newTestAPIWithBlacklist(t, sizes, nil)
}

// newTestAPIWithBlacklist is newTestAPI with the SQL blacklist passed through wrap
func newTestAPIWithBlacklist(t *testing.T, sizes services.PageSizes, wrap func(tokens.Blacklist) tokens.Blacklist) *testAPI {
	t.Helper()

	sqlDB := dbtest.Open(t)
	manager, err := tokens.NewManager(tokens.DefaultConfig("handler-test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	var blacklist tokens.Blacklist = tokens.NewSQLBlacklist(sqlDB)
	if wrap != nil {
		blacklist = wrap(blacklist)
	}
	users := services.NewUserService(sqlDB).WithBcryptCost(bcrypt.MinCost)
	authService := services.NewAuthService(users, manager, blacklist, nil)

	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	todoService := services.NewTodoService(sqlDB).WithClock(func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	})

	recorder := &fakeRecorder{}
	server := web.NewFastHTTPServer(web.DefaultFastHTTPServerConfig(":0"), core.NewNopLogger())
	router := server.Router()
	router.SetErrorHandler(ErrorHandler(nil))
	RegisterRoutes(router,
		NewAuthHandler(authService, recorder),
		NewTodoHandler(todoService, sizes, recorder),
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

	return &testAPI{
		t:        t,
		client:   &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }},
		recorder: recorder,
	}
}

type result struct {
	status int
	header *fasthttp.ResponseHeader
	body   map[string]interface{}
}

func (r result) str(key string) string {
	s, _ := r.body[key].(string)
	return s
}

func (r result) fields(key string) []interface{} {
	f, _ := r.body["fields"].(map[string]interface{})
	msgs, _ := f[key].([]interface{})
	return msgs
}

func (a *testAPI) call(method, path, token, body string) result {
	a.t.Helper()
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.Header.SetMethod(method)
	req.SetRequestURI("http://test" + path)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)
	if err := a.client.Do(req, resp); err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}

	res := result{status: resp.StatusCode(), header: &fasthttp.ResponseHeader{}}
	resp.Header.CopyTo(res.header)
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &res.body); err != nil {
			a.t.Fatalf("%s %s: bad body %q: %v", method, path, resp.Body(), err)
		}
	}
	return res
}

func (a *testAPI) expect(res result, status int, code string) {
	a.t.Helper()
	if res.status != status {
		a.t.Fatalf("status = %d, want %d (body %v)", res.status, status, res.body)
	}
	if code != "" && res.str("error") != code {
		a.t.Fatalf("error = %q, want %q (body %v)", res.str("error"), code, res.body)
	}
}

// register creates username and returns its access and refresh tokens
func (a *testAPI) register(username string) (string, string) {
	a.t.Helper()
	res := a.call("POST", "/api/auth/register", "",
		`{"username":"`+username+`","email":"`+username+`@example.com","password":"Secret123!","password_confirm":"Secret123!"}`)
	a.expect(res, 201, "")
	pair, _ := res.body["tokens"].(map[string]interface{})
	access, _ := pair["access"].(string)
	refresh, _ := pair["refresh"].(string)
	if access == "" || refresh == "" {
		a.t.Fatalf("register %s: tokens missing in %v", username, res.body)
	}
	return access, refresh
}

func (a *testAPI) createTodo(token, body string) map[string]interface{} {
	a.t.Helper()
	res := a.call("POST", "/api/todos", token, body)
	a.expect(res, 201, "")
	return res.body
}
