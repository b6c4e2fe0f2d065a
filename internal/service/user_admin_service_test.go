package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mototumen/community-api/internal/repo"
	"github.com/mototumen/community-api/internal/roles"
)

type stubUserAdminRepo struct {
	users map[int64]repo.User
}

func newStubUserAdminRepo(users ...repo.User) *stubUserAdminRepo {
	s := &stubUserAdminRepo{users: make(map[int64]repo.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *stubUserAdminRepo) ListUsers(ctx context.Context) ([]repo.UserWithProfile, error) {
	var rows []repo.UserWithProfile
	for _, u := range s.users {
		rows = append(rows, repo.UserWithProfile{User: u, Profile: repo.Profile{UserID: u.ID}})
	}
	return rows, nil
}

func (s *stubUserAdminRepo) GetUserByID(ctx context.Context, id int64) (repo.User, error) {
	u, ok := s.users[id]
	if !ok {
		return repo.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (s *stubUserAdminRepo) UpdateUserRole(ctx context.Context, userID int64, role string) error {
	u, ok := s.users[userID]
	if !ok {
		return repo.ErrNotFound
	}
	u.Role = role
	s.users[userID] = u
	return nil
}

func (s *stubUserAdminRepo) SetUserActive(ctx context.Context, userID int64, active bool) error {
	u, ok := s.users[userID]
	if !ok {
		return repo.ErrNotFound
	}
	u.IsActive = active
	s.users[userID] = u
	return nil
}

func testUser(id int64, role string) repo.User {
	return repo.User{
		ID:        id,
		Name:      "Пользователь",
		Email:     "user@example.com",
		Role:      role,
		Gender:    "male",
		IsActive:  true,
		CreatedAt: time.Now(),
	}
}

func TestListRequiresUsersView(t *testing.T) {
	ctx := context.Background()
	svc := NewUserAdminService(newStubUserAdminRepo(testUser(1, "user"), testUser(2, "moderator")))

	users, err := svc.List(ctx, "moderator")
	if err != nil {
		t.Fatalf("List as moderator: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("users = %d, want 2", len(users))
	}

	if _, err := svc.List(ctx, "editor"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("List as editor: err = %v, want ErrForbidden", err)
	}
	if _, err := svc.List(ctx, "user"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("List as plain user: err = %v, want ErrForbidden", err)
	}
}

func TestSetActiveRequiresUsersBan(t *testing.T) {
	ctx := context.Background()
	r := newStubUserAdminRepo(testUser(1, "user"))
	svc := NewUserAdminService(r)

	if err := svc.SetActive(ctx, "moderator", 1, false); err != nil {
		t.Fatalf("SetActive as moderator: %v", err)
	}
	if r.users[1].IsActive {
		t.Fatal("user was not blocked")
	}

	if err := svc.SetActive(ctx, "editor", 1, true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("SetActive as editor: err = %v, want ErrForbidden", err)
	}
	if err := svc.SetActive(ctx, "moderator", 99, false); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown user: err = %v, want ErrNotFound", err)
	}
}

func TestAssignRole(t *testing.T) {
	ctx := context.Background()
	r := newStubUserAdminRepo(testUser(1, "user"))
	svc := NewUserAdminService(r)

	cases := []struct {
		name   string
		actor  string
		target roles.Role
		want   error
	}{
		{"administrator grants moderator", "administrator", roles.Moderator, nil},
		{"legacy admin alias grants editor", "admin", roles.Editor, nil},
		{"ceo grants administrator", "ceo", roles.Administrator, nil},
		{"ceo grants ceo", "ceo", roles.CEO, nil},
		{"administrator cannot grant ceo", "administrator", roles.CEO, ErrForbidden},
		{"administrator cannot grant administrator", "administrator", roles.Administrator, ErrForbidden},
		{"moderator cannot grant anything", "moderator", roles.Editor, ErrForbidden},
		{"unknown target role", "ceo", roles.Role("ghost"), ErrUnknownRole},
	}
	for _, tc := range cases {
		err := svc.AssignRole(ctx, tc.actor, 1, tc.target)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}

	if r.users[1].Role != string(roles.CEO) {
		t.Fatalf("final role = %q", r.users[1].Role)
	}

	if err := svc.AssignRole(ctx, "ceo", 99, roles.Editor); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown user: err = %v, want ErrNotFound", err)
	}
}
