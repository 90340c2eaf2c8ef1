// Package db owns the database/sql pool, the supported drivers and the schema.
//
// Queries in this module use $n placeholders for every dialect. SQLite treats
// "$1" as a named parameter and numbers parameters by first appearance, so a
// query must introduce $1, $2, ... in ascending order.
package db

import (
	"context"
	"database/sql"
	"time"
)

// PoolConfig configures the database connection pool
type PoolConfig struct {
	// DSN is handed to the driver verbatim
	DSN string

	// DriverName is one of postgres, pgx, sqlite3
	DriverName string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// PingTimeout bounds the connectivity check in NewPool (default 5s)
	PingTimeout time.Duration
}

// DefaultPoolConfig returns the default pool sizing for driverName
func DefaultPoolConfig(dsn string, driverName string) PoolConfig {
	return PoolConfig{
		DSN:             dsn,
		DriverName:      driverName,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// Error represents a pool configuration or state error
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Pool wraps *sql.DB with the dialect it was opened for
type Pool struct {
	db      *sql.DB
	config  PoolConfig
	dialect Dialect
}

// NewPool validates config, opens the pool and verifies connectivity
func NewPool(config PoolConfig) (*Pool, error) {
	if config.DSN == "" {
		return nil, &Error{Code: "INVALID_CONFIG", Message: "DSN cannot be empty"}
	}
	if config.DriverName == "" {
		return nil, &Error{Code: "INVALID_CONFIG", Message: "DriverName cannot be empty"}
	}
	dialect, err := DialectFor(config.DriverName)
	if err != nil {
		return nil, err
	}
	if config.MaxOpenConns <= 0 {
		return nil, &Error{Code: "INVALID_CONFIG", Message: "MaxOpenConns must be positive"}
	}
	if config.MaxIdleConns < 0 {
		return nil, &Error{Code: "INVALID_CONFIG", Message: "MaxIdleConns cannot be negative"}
	}
	if config.MaxIdleConns > config.MaxOpenConns {
		return nil, &Error{Code: "INVALID_CONFIG", Message: "MaxIdleConns cannot exceed MaxOpenConns"}
	}
	if config.ConnMaxLifetime < 0 || config.ConnMaxIdleTime < 0 {
		return nil, &Error{Code: "INVALID_CONFIG", Message: "connection lifetimes cannot be negative"}
	}

	dsn, driverName := config.DSN, config.DriverName
	if dialect == SQLite {
		dsn, driverName = sqliteDSN(dsn), sqliteDriverName
		if isSQLiteMemory(dsn) {
			// every connection to :memory: is a separate database
			config.MaxOpenConns = 1
			config.MaxIdleConns = 1
			config.ConnMaxLifetime = 0
			config.ConnMaxIdleTime = 0
		}
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	timeout := config.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Pool{db: sqlDB, config: config, dialect: dialect}, nil
}

// DB returns the underlying *sql.DB
func (p *Pool) DB() *sql.DB {
	if p == nil || p.db == nil {
		panic("pool not initialized")
	}
	return p.db
}

// Dialect returns the SQL dialect of the pool's driver
func (p *Pool) Dialect() Dialect {
	return p.dialect
}

// Close closes the connection pool
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return &Error{Code: "INVALID_STATE", Message: "pool not initialized"}
	}
	return p.db.Close()
}

// Ping tests the connection; used by the readiness probe
func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.db == nil {
		return &Error{Code: "INVALID_STATE", Message: "pool not initialized"}
	}
	return p.db.PingContext(ctx)
}

// Stats returns pool statistics
func (p *Pool) Stats() sql.DBStats {
	if p == nil || p.db == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}

// WithTx runs fn inside a transaction, committing on nil and rolling back otherwise
func WithTx(ctx context.Context, sqlDB *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
