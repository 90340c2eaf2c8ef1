package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fluxorio/todoapi/pkg/db"
	"github.com/google/uuid"
)

// ErrAlreadyRevoked is returned when revoking a jti that is already listed
var ErrAlreadyRevoked = errors.New("token already blacklisted")

// Blacklist is a durable set of revoked refresh token ids
type Blacklist interface {
	// Revoke records jti. It returns ErrAlreadyRevoked when jti is already listed.
	Revoke(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// PurgeExpired drops entries whose token expired before the given time
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// SQLBlacklist stores revocations in the token_blacklist table
type SQLBlacklist struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLBlacklist creates a SQLBlacklist
func NewSQLBlacklist(sqlDB *sql.DB) *SQLBlacklist {
	return &SQLBlacklist{db: sqlDB, now: time.Now}
}

func (b *SQLBlacklist) Revoke(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO token_blacklist (jti, user_id, expires_at, revoked_at) VALUES ($1, $2, $3, $4)`,
		jti, userID, expiresAt.UTC(), b.now().UTC().Truncate(time.Microsecond))
	if db.IsUniqueViolation(err) {
		return ErrAlreadyRevoked
	}
	if err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

func (b *SQLBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM token_blacklist WHERE jti = $1`, jti).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return n > 0, nil
}

func (b *SQLBlacklist) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM token_blacklist WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge blacklist: %w", err)
	}
	return res.RowsAffected()
}
