package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertSessionParams carries a new session record.
type InsertSessionParams struct {
	ID        uuid.UUID
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// InsertSession records an issued session token hash.
func (q *Queries) InsertSession(ctx context.Context, arg InsertSessionParams) error {
	const query = `
        INSERT INTO user_sessions (id, user_id, token_hash, expires_at, created_at, revoked)
        VALUES ($1, $2, $3, $4, $5, FALSE)
    `

	_, err := q.pool.Exec(ctx, query, arg.ID, arg.UserID, arg.TokenHash, arg.ExpiresAt, arg.CreatedAt)
	return err
}

// GetSessionByHash resolves a session by its token hash.
func (q *Queries) GetSessionByHash(ctx context.Context, tokenHash string) (Session, error) {
	const query = `
        SELECT id, user_id, token_hash, expires_at, created_at, revoked
        FROM user_sessions
        WHERE token_hash = $1
    `

	var s Session
	err := q.pool.QueryRow(ctx, query, tokenHash).Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt, &s.Revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// RevokeSession marks a session as revoked.
func (q *Queries) RevokeSession(ctx context.Context, tokenHash string) error {
	const query = `UPDATE user_sessions SET revoked = TRUE WHERE token_hash = $1`

	cmd, err := q.pool.Exec(ctx, query, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredSessions prunes rows past their expiry.
func (q *Queries) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM user_sessions WHERE expires_at < $1`

	cmd, err := q.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
