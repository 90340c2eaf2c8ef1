package db

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/lib/pq"                // registers "postgres"
	"github.com/mattn/go-sqlite3"      // registers "sqlite3"
)

// Driver names accepted by NewPool
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite3"
)

// sqliteDriverName is the go-sqlite3 driver with lower() replaced by a Unicode
// aware fold, so SQL-side and Go-side lower-casing agree
const sqliteDriverName = "sqlite3_unicode"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", strings.ToLower, true)
		},
	})
}

// Dialect distinguishes the SQL flavours the schema is written for
type Dialect int

const (
	Postgres Dialect = iota + 1
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// TimestampType is the column type used for timestamps
func (d Dialect) TimestampType() string {
	if d == Postgres {
		return "TIMESTAMPTZ"
	}
	// go-sqlite3 parses TIMESTAMP columns back into time.Time
	return "TIMESTAMP"
}

// DialectFor maps a driver name to its dialect
func DialectFor(driverName string) (Dialect, error) {
	switch driverName {
	case DriverPostgres, DriverPgx:
		return Postgres, nil
	case DriverSQLite:
		return SQLite, nil
	default:
		return 0, &Error{Code: "INVALID_CONFIG", Message: "unsupported driver: " + driverName}
	}
}

// IsUniqueViolation reports whether err is a unique or primary key constraint failure
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// sqliteDSN turns on foreign key enforcement, which SQLite leaves off by default
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func isSQLiteMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
