package service

import (
	"context"
	"testing"

	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/storage"
	"github.com/cryptotracker/internal/types"
)

type mockAdminUserRepo struct {
	users map[string]*models.User // keyed by id
}

func (m *mockAdminUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, storage.ErrNotFound
}

func (m *mockAdminUserRepo) List(ctx context.Context) ([]*models.User, error) {
	var result []*models.User
	for _, user := range m.users {
		result = append(result, user)
	}
	return result, nil
}

func (m *mockAdminUserRepo) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	user, ok := m.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	user.IsAdmin = isAdmin
	return nil
}

func TestToggleAdmin(t *testing.T) {
	ctx := context.Background()
	repo := &mockAdminUserRepo{users: map[string]*models.User{
		"admin-1": {ID: "admin-1", Username: "alice", IsAdmin: true},
		"user-2":  {ID: "user-2", Username: "bob"},
	}}
	svc := NewAdminService(repo, testLogger())

	promoted, err := svc.ToggleAdmin(ctx, "admin-1", "user-2")
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !promoted.IsAdmin {
		t.Error("expected user-2 to be promoted")
	}

	demoted, err := svc.ToggleAdmin(ctx, "admin-1", "user-2")
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if demoted.IsAdmin {
		t.Error("expected user-2 to be demoted")
	}
}

func TestToggleAdminSelfForbidden(t *testing.T) {
	ctx := context.Background()
	repo := &mockAdminUserRepo{users: map[string]*models.User{
		"admin-1": {ID: "admin-1", Username: "alice", IsAdmin: true},
	}}
	svc := NewAdminService(repo, testLogger())

	_, err := svc.ToggleAdmin(ctx, "admin-1", "admin-1")
	if code := serviceErrorCode(t, err); code != types.CodeForbidden {
		t.Errorf("expected %s, got %s", types.CodeForbidden, code)
	}
	if repo.users["admin-1"].IsAdmin != true {
		t.Error("self toggle must not change the flag")
	}
}

func TestToggleAdminUnknownTarget(t *testing.T) {
	ctx := context.Background()
	repo := &mockAdminUserRepo{users: map[string]*models.User{
		"admin-1": {ID: "admin-1", Username: "alice", IsAdmin: true},
	}}
	svc := NewAdminService(repo, testLogger())

	_, err := svc.ToggleAdmin(ctx, "admin-1", "no-such-user")
	if code := serviceErrorCode(t, err); code != types.CodeNotFound {
		t.Errorf("expected %s, got %s", types.CodeNotFound, code)
	}
}
