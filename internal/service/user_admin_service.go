package service

import (
	"context"
	"errors"

	"github.com/mototumen/community-api/internal/repo"
	"github.com/mototumen/community-api/internal/roles"
)

var (
	// ErrForbidden indicates a missing permission.
	ErrForbidden = errors.New("permission denied")
	// ErrUnknownRole indicates a role outside the static table.
	ErrUnknownRole = errors.New("unknown role")
)

type userAdminRepository interface {
	ListUsers(ctx context.Context) ([]repo.UserWithProfile, error)
	GetUserByID(ctx context.Context, id int64) (repo.User, error)
	UpdateUserRole(ctx context.Context, userID int64, role string) error
	SetUserActive(ctx context.Context, userID int64, active bool) error
}

// UserAdminService applies the role table to administrative user operations.
type UserAdminService struct {
	repo userAdminRepository
}

// NewUserAdminService creates the service.
func NewUserAdminService(r userAdminRepository) *UserAdminService {
	return &UserAdminService{repo: r}
}

// AdminUser is the management view of a user.
type AdminUser struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	IsActive  bool    `json:"is_active"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// List returns all users for callers holding users.view.
func (s *UserAdminService) List(ctx context.Context, actorRole string) ([]AdminUser, error) {
	if !roles.HasPermission(roles.Normalize(actorRole), roles.UsersView) {
		return nil, ErrForbidden
	}

	rows, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]AdminUser, 0, len(rows))
	for _, row := range rows {
		users = append(users, AdminUser{
			ID:        row.User.ID,
			Name:      row.Name,
			Email:     row.Email,
			Role:      row.Role,
			IsActive:  row.IsActive,
			AvatarURL: row.AvatarURL,
			Bio:       row.Bio,
			CreatedAt: row.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return users, nil
}

// SetActive toggles a user's block status, requiring users.ban.
func (s *UserAdminService) SetActive(ctx context.Context, actorRole string, userID int64, active bool) error {
	if !roles.HasPermission(roles.Normalize(actorRole), roles.UsersBan) {
		return ErrForbidden
	}
	return s.repo.SetUserActive(ctx, userID, active)
}

// AssignRole grants target to the user. The actor needs the users.roles
// permission and must appear in the target role's canBeAssignedBy list.
func (s *UserAdminService) AssignRole(ctx context.Context, actorRole string, userID int64, target roles.Role) error {
	actor := roles.Normalize(actorRole)
	if !roles.HasPermission(actor, roles.UsersRoles) {
		return ErrForbidden
	}
	if !roles.Known(target) {
		return ErrUnknownRole
	}
	if !roles.CanAssign(actor, target) {
		return ErrForbidden
	}

	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.repo.UpdateUserRole(ctx, userID, string(target))
}
