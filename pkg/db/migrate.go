package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Migration is one schema step. Statements run in order inside one transaction.
type Migration struct {
	Version    int
	Name       string
	Statements func(d Dialect) []string
}

// Migrations is the ordered schema history of the service
var Migrations = []Migration{
	{Version: 1, Name: "users", Statements: usersSchema},
	{Version: 2, Name: "todos", Statements: todosSchema},
	{Version: 3, Name: "token_blacklist", Statements: blacklistSchema},
	{Version: 4, Name: "users_email_ci", Statements: emailIndexSchema},
}

func usersSchema(d Dialect) []string {
	ts := d.TimestampType()
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			username VARCHAR(150) NOT NULL UNIQUE,
			email VARCHAR(254) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_staff BOOLEAN NOT NULL DEFAULT FALSE,
			date_joined ` + ts + ` NOT NULL,
			last_login ` + ts + ` NULL
		)`,
	}
}

func todosSchema(d Dialect) []string {
	ts := d.TimestampType()
	return []string{
		`CREATE TABLE IF NOT EXISTS todos (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title VARCHAR(200) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			priority VARCHAR(10) NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
			due_date ` + ts + ` NULL,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_user_completed ON todos(user_id, completed)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_user_priority ON todos(user_id, priority)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_user_due_date ON todos(user_id, due_date)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_user_created_at ON todos(user_id, created_at)`,
	}
}

// emailIndexSchema makes email uniqueness case-insensitive
func emailIndexSchema(Dialect) []string {
	return []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))`,
	}
}

func blacklistSchema(d Dialect) []string {
	ts := d.TimestampType()
	return []string{
		`CREATE TABLE IF NOT EXISTS token_blacklist (
			jti VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			expires_at ` + ts + ` NOT NULL,
			revoked_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_token_blacklist_expires_at ON token_blacklist(expires_at)`,
	}
}

// Migrate applies every migration newer than the recorded schema version.
// It returns the versions applied by this call.
func Migrate(ctx context.Context, sqlDB *sql.DB, d Dialect) ([]int, error) {
	ts := d.TimestampType()
	if _, err := sqlDB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		applied_at `+ts+` NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := currentVersion(ctx, sqlDB)
	if err != nil {
		return nil, err
	}

	var applied []int
	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		err := WithTx(ctx, sqlDB, func(tx *sql.Tx) error {
			for _, stmt := range m.Statements(d) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("%s: %w", firstLine(stmt), err)
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)`,
				m.Version, m.Name, time.Now().UTC())
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

func currentVersion(ctx context.Context, sqlDB *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := sqlDB.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
