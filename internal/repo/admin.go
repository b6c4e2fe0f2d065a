package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// GetAdminPassword returns the current admin gate credential.
func (q *Queries) GetAdminPassword(ctx context.Context) (AdminPassword, error) {
	const query = `
        SELECT id, password_hash, created_at, updated_at
        FROM admin_auth
        ORDER BY id DESC
        LIMIT 1
    `

	var p AdminPassword
	err := q.pool.QueryRow(ctx, query).Scan(&p.ID, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AdminPassword{}, ErrNotFound
		}
		return AdminPassword{}, err
	}
	return p, nil
}

// HasAdminPassword reports whether the gate has been set up.
func (q *Queries) HasAdminPassword(ctx context.Context) (bool, error) {
	const query = `SELECT COUNT(*) FROM admin_auth`

	var count int
	if err := q.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// InsertAdminPassword stores the initial gate credential.
func (q *Queries) InsertAdminPassword(ctx context.Context, passwordHash string) error {
	const query = `INSERT INTO admin_auth (password_hash) VALUES ($1)`

	_, err := q.pool.Exec(ctx, query, passwordHash)
	return err
}

// UpdateAdminPassword replaces the gate credential.
func (q *Queries) UpdateAdminPassword(ctx context.Context, passwordHash string) error {
	const query = `UPDATE admin_auth SET password_hash = $1, updated_at = NOW()`

	cmd, err := q.pool.Exec(ctx, query, passwordHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
