package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mototumen/community-api/internal/db"
)

// Queries provides access to persistent storage.
type Queries struct {
	pool *pgxpool.Pool
}

// New creates the query layer over a pgx pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const userColumns = `id, telegram_id, name, first_name, last_name, username, email, role, gender, is_active, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Name, &u.FirstName, &u.LastName, &u.Username,
		&u.Email, &u.Role, &u.Gender, &u.IsActive, &u.CreatedAt)
	return u, err
}

// GetUserByTelegramID looks a user up by external Telegram id.
func (q *Queries) GetUserByTelegramID(ctx context.Context, telegramID int64) (User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users
        WHERE telegram_id = $1
    `

	user, err := scanUser(q.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// GetUserByID looks a user up by primary key.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users
        WHERE id = $1
    `

	user, err := scanUser(q.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// CreateTelegramUserParams carries the identity fields for first login.
type CreateTelegramUserParams struct {
	TelegramID int64
	Name       string
	FirstName  string
	LastName   *string
	Username   *string
	Email      string
	PhotoURL   *string
}

// CreateTelegramUser inserts the user and its profile row in one transaction.
// New users start with role "user" and gender "male".
func (q *Queries) CreateTelegramUser(ctx context.Context, arg CreateTelegramUserParams) (User, error) {
	const insertUser = `
        INSERT INTO users (telegram_id, name, first_name, last_name, username, email, role, gender, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, 'user', 'male', TRUE)
        RETURNING ` + userColumns + `
    `
	const insertProfile = `
        INSERT INTO user_profiles (user_id, avatar_url, telegram)
        VALUES ($1, $2, $3)
    `

	var user User
	err := db.WithTx(ctx, q.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRow(ctx, insertUser,
			arg.TelegramID, arg.Name, arg.FirstName, arg.LastName, arg.Username, arg.Email))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, insertProfile, user.ID, arg.PhotoURL, arg.Username)
		return err
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateTelegramProfile refreshes avatar and telegram handle on repeat logins.
// Empty values are left untouched.
func (q *Queries) UpdateTelegramProfile(ctx context.Context, userID int64, photoURL, username string) error {
	const query = `
        UPDATE user_profiles
        SET avatar_url = COALESCE(NULLIF($2, ''), avatar_url),
            telegram   = COALESCE(NULLIF($3, ''), telegram)
        WHERE user_id = $1
    `

	_, err := q.pool.Exec(ctx, query, userID, photoURL, username)
	return err
}

const userProfileColumns = `
        u.id, u.telegram_id, u.name, u.first_name, u.last_name, u.username,
        u.email, u.role, u.gender, u.is_active, u.created_at,
        p.phone, p.bio, p.location, p.avatar_url, p.telegram`

func scanUserWithProfile(row pgx.Row) (UserWithProfile, error) {
	var u UserWithProfile
	err := row.Scan(&u.ID, &u.TelegramID, &u.Name, &u.FirstName, &u.LastName, &u.Username,
		&u.Email, &u.Role, &u.Gender, &u.IsActive, &u.CreatedAt,
		&u.Phone, &u.Bio, &u.Location, &u.AvatarURL, &u.Telegram)
	if err != nil {
		return UserWithProfile{}, err
	}
	u.Profile.UserID = u.User.ID
	return u, nil
}

// GetUserWithProfile returns the user joined with its profile.
func (q *Queries) GetUserWithProfile(ctx context.Context, id int64) (UserWithProfile, error) {
	const query = `
        SELECT ` + userProfileColumns + `
        FROM users u
        LEFT JOIN user_profiles p ON u.id = p.user_id
        WHERE u.id = $1
    `

	user, err := scanUserWithProfile(q.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserWithProfile{}, ErrNotFound
		}
		return UserWithProfile{}, err
	}
	return user, nil
}

// ListUsers returns all users with profiles, newest first.
func (q *Queries) ListUsers(ctx context.Context) ([]UserWithProfile, error) {
	const query = `
        SELECT ` + userProfileColumns + `
        FROM users u
        LEFT JOIN user_profiles p ON u.id = p.user_id
        ORDER BY u.created_at DESC
    `

	rows, err := q.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []UserWithProfile
	for rows.Next() {
		user, err := scanUserWithProfile(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateProfileParams carries a partial profile update. Nil fields are kept.
type UpdateProfileParams struct {
	Name      *string
	Gender    *string
	Phone     *string
	Bio       *string
	Location  *string
	AvatarURL *string
}

// UpdateProfile applies the delta to users and user_profiles.
func (q *Queries) UpdateProfile(ctx context.Context, userID int64, arg UpdateProfileParams) error {
	const updateUser = `
        UPDATE users
        SET name   = COALESCE($2, name),
            gender = COALESCE($3, gender)
        WHERE id = $1
    `
	const updateProfile = `
        UPDATE user_profiles
        SET phone      = COALESCE($2, phone),
            bio        = COALESCE($3, bio),
            location   = COALESCE($4, location),
            avatar_url = COALESCE($5, avatar_url)
        WHERE user_id = $1
    `

	return db.WithTx(ctx, q.pool, func(ctx context.Context, tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, updateUser, userID, arg.Name, arg.Gender)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, updateProfile, userID, arg.Phone, arg.Bio, arg.Location, arg.AvatarURL)
		return err
	})
}

// UpdateUserRole writes a new role value.
func (q *Queries) UpdateUserRole(ctx context.Context, userID int64, role string) error {
	const query = `UPDATE users SET role = $2 WHERE id = $1`

	cmd, err := q.pool.Exec(ctx, query, userID, role)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserActive toggles the block status.
func (q *Queries) SetUserActive(ctx context.Context, userID int64, active bool) error {
	const query = `UPDATE users SET is_active = $2 WHERE id = $1`

	cmd, err := q.pool.Exec(ctx, query, userID, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
