package repo

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity row created on first Telegram authentication.
type User struct {
	ID         int64
	TelegramID int64
	Name       string
	FirstName  string
	LastName   *string
	Username   *string
	Email      string
	Role       string
	Gender     string
	IsActive   bool
	CreatedAt  time.Time
}

// Profile holds the mutable profile fields attached to a user.
type Profile struct {
	UserID    int64
	Phone     *string
	Bio       *string
	Location  *string
	AvatarURL *string
	Telegram  *string
}

// UserWithProfile aggregates a user and its profile for read paths.
type UserWithProfile struct {
	User
	Profile
}

// Session models the user_sessions table. Only token hashes are stored.
type Session struct {
	ID        uuid.UUID
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// AdminPassword models the single-row admin gate credential.
type AdminPassword struct {
	ID           int64
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}
