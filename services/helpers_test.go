package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/fluxorio/todoapi/models"
	"github.com/fluxorio/todoapi/pkg/db/dbtest"
	"golang.org/x/crypto/bcrypt"
)

// fakeClock returns a time source that advances one second per call
func fakeClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newUserService(sqlDB *sql.DB) *UserService {
	return NewUserService(sqlDB).WithBcryptCost(bcrypt.MinCost)
}

func createUser(t *testing.T, sqlDB *sql.DB, username string) models.Identity {
	t.Helper()
	u, err := newUserService(sqlDB).CreateUser(context.Background(), username, username+"@example.com", "Secret123!")
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", username, err)
	}
	return u.Identity()
}

func setupTodoService(t *testing.T) (*TodoService, *sql.DB) {
	t.Helper()
	sqlDB := dbtest.Open(t)
	svc := NewTodoService(sqlDB).WithClock(fakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	return svc, sqlDB
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }

func rawJSON(t *testing.T, body string) map[string]json.RawMessage {
	t.Helper()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("bad test body %s: %v", body, err)
	}
	return raw
}
