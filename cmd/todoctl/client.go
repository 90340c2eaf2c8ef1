package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fluxorio/todoapi/models"
	"github.com/fluxorio/todoapi/pkg/core"
	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/valyala/fasthttp"
)

// errUnauthorized is returned for any 401 so callers can try a refresh
var errUnauthorized = errors.New("not authenticated")

// apiError is a non-2xx answer from the server
type apiError struct {
	Status int
	Body   web.ErrorResponse
}

func (e *apiError) Error() string {
	msg := e.Body.Message
	if msg == "" {
		msg = fasthttp.StatusMessage(e.Status)
	}
	if len(e.Body.Fields) == 0 {
		return msg
	}
	keys := make([]string, 0, len(e.Body.Fields))
	for k := range e.Body.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Body.Fields[k], " "))
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}

// apiClient talks JSON to a todoapi server
type apiClient struct {
	baseURL string
	client  *fasthttp.Client
	timeout time.Duration
}

func newAPIClient(baseURL string, client *fasthttp.Client) *apiClient {
	if client == nil {
		client = &fasthttp.Client{Name: "todoctl"}
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		timeout: 10 * time.Second,
	}
}

// do sends in as the JSON body (when non-nil) and decodes the answer into out
func (c *apiClient) do(method, path, token string, in, out interface{}) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if in != nil {
		body, err := core.JSONEncode(in)
		if err != nil {
			return err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	status := resp.StatusCode()
	if status == fasthttp.StatusUnauthorized {
		return errUnauthorized
	}
	if status >= 300 {
		e := &apiError{Status: status}
		_ = core.JSONDecode(resp.Body(), &e.Body)
		return e
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	return core.JSONDecode(resp.Body(), out)
}

func (c *apiClient) register(username, email, password string) (*models.RegisterResponse, error) {
	var out models.RegisterResponse
	err := c.do(fasthttp.MethodPost, "/api/auth/register", "", map[string]string{
		"username":         username,
		"email":            email,
		"password":         password,
		"password_confirm": password,
	}, &out)
	return &out, err
}

func (c *apiClient) login(username, password string) (*models.TokenPair, error) {
	var out models.TokenPair
	err := c.do(fasthttp.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	return &out, err
}

func (c *apiClient) refresh(refresh string) (string, error) {
	var out models.AccessToken
	err := c.do(fasthttp.MethodPost, "/api/auth/token/refresh", "", models.RefreshRequest{Refresh: refresh}, &out)
	return out.Access, err
}

func (c *apiClient) logout(refresh string) error {
	return c.do(fasthttp.MethodPost, "/api/auth/logout", "", models.RefreshRequest{Refresh: refresh}, nil)
}
