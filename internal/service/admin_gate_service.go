package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/mototumen/community-api/internal/auth"
	"github.com/mototumen/community-api/internal/ratelimit"
	"github.com/mototumen/community-api/internal/repo"
	"github.com/mototumen/community-api/internal/util"
)

var (
	// ErrPasswordAlreadySet indicates the gate was set up before.
	ErrPasswordAlreadySet = errors.New("admin password already set")
	// ErrPasswordNotSet indicates the gate has no credential yet.
	ErrPasswordNotSet = errors.New("admin password not set")
	// ErrPasswordMismatch indicates setup confirmation does not match.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrWrongPassword indicates a failed change attempt.
	ErrWrongPassword = errors.New("wrong password")
)

type adminRepository interface {
	GetAdminPassword(ctx context.Context) (repo.AdminPassword, error)
	HasAdminPassword(ctx context.Context) (bool, error)
	InsertAdminPassword(ctx context.Context, passwordHash string) error
	UpdateAdminPassword(ctx context.Context, passwordHash string) error
}

// AdminGateService guards the admin panel with a second password,
// independent of the user session.
type AdminGateService struct {
	repo    adminRepository
	limiter *ratelimit.Limiter
}

// NewAdminGateService creates the gate over the admin rate limiter. Verify
// attempts go through the same limiter that guards other admin actions.
func NewAdminGateService(r adminRepository, limiter *ratelimit.Limiter) *AdminGateService {
	return &AdminGateService{repo: r, limiter: limiter}
}

// Status reports whether a password has been set up.
func (s *AdminGateService) Status(ctx context.Context) (bool, error) {
	return s.repo.HasAdminPassword(ctx)
}

// Setup stores the gate credential once. Subsequent calls fail.
func (s *AdminGateService) Setup(ctx context.Context, password, confirm string) error {
	if err := util.ValidatePassword(password); err != nil {
		return err
	}
	if password != confirm {
		return ErrPasswordMismatch
	}

	exists, err := s.repo.HasAdminPassword(ctx)
	if err != nil {
		return err
	}
	if exists {
		return ErrPasswordAlreadySet
	}

	hash, err := auth.Hash(password)
	if err != nil {
		return err
	}
	return s.repo.InsertAdminPassword(ctx, hash)
}

// VerifyIdentifier is the rate-limit key for a user's verify attempts.
func VerifyIdentifier(userID int64) string {
	return "admin_verify_" + strconv.FormatInt(userID, 10)
}

// Verify checks the password for the authenticated user. Attempts are
// rate limited per user before the hash comparison runs.
func (s *AdminGateService) Verify(ctx context.Context, userID int64, password string) (bool, error) {
	if _, err := ratelimit.Enforce(VerifyIdentifier(userID), s.limiter); err != nil {
		return false, err
	}

	record, err := s.repo.GetAdminPassword(ctx)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, ErrPasswordNotSet
		}
		return false, err
	}

	return auth.Verify(password, record.PasswordHash)
}

// Change replaces the credential after checking the old one.
func (s *AdminGateService) Change(ctx context.Context, oldPassword, newPassword string) error {
	if err := util.ValidatePassword(newPassword); err != nil {
		return err
	}

	record, err := s.repo.GetAdminPassword(ctx)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPasswordNotSet
		}
		return err
	}

	ok, err := auth.Verify(oldPassword, record.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongPassword
	}

	hash, err := auth.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.repo.UpdateAdminPassword(ctx, hash)
}
