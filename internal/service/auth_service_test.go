package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/storage"
	"github.com/cryptotracker/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

func testLogger() *logging.Logger {
	return logging.New(logging.LevelFatal, logging.FormatText)
}

// fakeTx satisfies pgx.Tx for the calls the services make (Commit/Rollback).
// Anything else panics, which is what we want in a unit test.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	onCommit   func()
	onRollback func()
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	if t.onCommit != nil {
		t.onCommit()
	}
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
		if t.onRollback != nil {
			t.onRollback()
		}
	}
	return nil
}

// mockUserRepo mirrors the real repository's transaction semantics: inserts
// are serialized from CreateWithTx until the transaction ends, and a rolled
// back insert never becomes visible.
type mockUserRepo struct {
	mu       sync.Mutex              // guards users and lastTx
	insertMu sync.Mutex              // held from CreateWithTx to commit/rollback
	users    map[string]*models.User // keyed by username
	lastTx   *fakeTx
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{}}
}

func (m *mockUserRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx := &fakeTx{}
	m.mu.Lock()
	m.lastTx = tx
	m.mu.Unlock()
	return tx, nil
}

func (m *mockUserRepo) CreateWithTx(ctx context.Context, tx pgx.Tx, user *models.User) error {
	m.insertMu.Lock()

	m.mu.Lock()
	if _, ok := m.users[user.Username]; ok {
		m.mu.Unlock()
		m.insertMu.Unlock()
		return storage.ErrDuplicate
	}
	user.ID = uuid.New().String()
	user.IsAdmin = len(m.users) == 0
	m.users[user.Username] = user
	m.mu.Unlock()

	if ft, ok := tx.(*fakeTx); ok {
		username := user.Username
		ft.onCommit = m.insertMu.Unlock
		ft.onRollback = func() {
			m.mu.Lock()
			delete(m.users, username)
			m.mu.Unlock()
			m.insertMu.Unlock()
		}
	} else {
		m.insertMu.Unlock()
	}
	return nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[username]; ok {
		return user, nil
	}
	return nil, storage.ErrNotFound
}

func (m *mockUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[username]
	return ok, nil
}

type mockInviteRepo struct {
	codes map[string]*models.InviteCode // keyed by code
}

func newMockInviteRepo() *mockInviteRepo {
	return &mockInviteRepo{codes: map[string]*models.InviteCode{}}
}

func (m *mockInviteRepo) addCode(code string) {
	m.codes[code] = &models.InviteCode{ID: uuid.New().String(), Code: code, IsActive: true}
}

func (m *mockInviteRepo) ConsumeWithTx(ctx context.Context, tx pgx.Tx, code, userID string) error {
	invite, ok := m.codes[code]
	if !ok || !invite.IsActive || invite.UsedBy != nil {
		return storage.ErrNotFound
	}
	invite.UsedBy = &userID
	return nil
}

func (m *mockInviteRepo) Create(ctx context.Context, code *models.InviteCode) error {
	code.ID = uuid.New().String()
	m.codes[code.Code] = code
	return nil
}

func (m *mockInviteRepo) Revoke(ctx context.Context, id string) error {
	for _, invite := range m.codes {
		if invite.ID == id {
			invite.IsActive = false
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *mockInviteRepo) GetByID(ctx context.Context, id string) (*models.InviteCode, error) {
	for _, invite := range m.codes {
		if invite.ID == id {
			return invite, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *mockInviteRepo) List(ctx context.Context) ([]*models.InviteCode, error) {
	var result []*models.InviteCode
	for _, invite := range m.codes {
		result = append(result, invite)
	}
	return result, nil
}

func serviceErrorCode(t *testing.T, err error) string {
	t.Helper()
	var serviceErr *types.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	return serviceErr.Code
}

func TestRegisterFirstUserBecomesAdmin(t *testing.T) {
	ctx := context.Background()
	userRepo := newMockUserRepo()
	svc := NewAuthService(userRepo, newMockInviteRepo(), testLogger())

	user, err := svc.Register(ctx, &RegisterInput{
		Username:        "alice",
		Password:        "password123",
		ConfirmPassword: "password123",
	})
	if err != nil {
		t.Fatalf("first signup failed: %v", err)
	}
	if !user.IsAdmin {
		t.Error("first user should be admin")
	}
	if !userRepo.lastTx.committed {
		t.Error("signup transaction was not committed")
	}
	if user.PasswordHash == "password123" {
		t.Error("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestRegisterSecondUserRequiresInvite(t *testing.T) {
	ctx := context.Background()
	userRepo := newMockUserRepo()
	svc := NewAuthService(userRepo, newMockInviteRepo(), testLogger())

	if _, err := svc.Register(ctx, &RegisterInput{Username: "alice", Password: "password123", ConfirmPassword: "password123"}); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}

	_, err := svc.Register(ctx, &RegisterInput{Username: "bob", Password: "password123", ConfirmPassword: "password123"})
	if code := serviceErrorCode(t, err); code != types.CodeInviteRequired {
		t.Errorf("expected %s, got %s", types.CodeInviteRequired, code)
	}
	if userRepo.lastTx.committed {
		t.Error("failed signup must not commit")
	}
}

// Concurrent very-first signups must produce exactly one admin: the insert
// serialization makes every later signup see the bootstrap user and fail the
// invite gate.
func TestRegisterConcurrentBootstrapSingleAdmin(t *testing.T) {
	ctx := context.Background()
	userRepo := newMockUserRepo()
	svc := NewAuthService(userRepo, newMockInviteRepo(), testLogger())

	const signups = 8

	type outcome struct {
		user *models.User
		err  error
	}
	results := make(chan outcome, signups)

	for i := 0; i < signups; i++ {
		go func(i int) {
			user, err := svc.Register(ctx, &RegisterInput{
				Username:        fmt.Sprintf("user-%d", i),
				Password:        "password123",
				ConfirmPassword: "password123",
			})
			results <- outcome{user: user, err: err}
		}(i)
	}

	var admins, inviteRequired int
	for i := 0; i < signups; i++ {
		res := <-results
		if res.err == nil {
			if !res.user.IsAdmin {
				t.Errorf("non-admin signup %s succeeded without an invite", res.user.Username)
			} else {
				admins++
			}
			continue
		}
		if code := serviceErrorCode(t, res.err); code == types.CodeInviteRequired {
			inviteRequired++
		} else {
			t.Errorf("unexpected error code %s", code)
		}
	}

	if admins != 1 {
		t.Errorf("expected exactly 1 admin, got %d", admins)
	}
	if inviteRequired != signups-1 {
		t.Errorf("expected %d invite-gated failures, got %d", signups-1, inviteRequired)
	}
	if got := len(userRepo.users); got != 1 {
		t.Errorf("expected 1 persisted user, got %d", got)
	}
}

func TestRegisterWithValidInvite(t *testing.T) {
	ctx := context.Background()
	userRepo := newMockUserRepo()
	inviteRepo := newMockInviteRepo()
	inviteRepo.addCode("welcome-1")
	svc := NewAuthService(userRepo, inviteRepo, testLogger())

	if _, err := svc.Register(ctx, &RegisterInput{Username: "alice", Password: "password123", ConfirmPassword: "password123"}); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}

	user, err := svc.Register(ctx, &RegisterInput{
		Username:        "bob",
		Password:        "password123",
		ConfirmPassword: "password123",
		InviteCode:      "welcome-1",
	})
	if err != nil {
		t.Fatalf("invited signup failed: %v", err)
	}
	if user.IsAdmin {
		t.Error("second user must not be admin")
	}

	invite := inviteRepo.codes["welcome-1"]
	if invite.UsedBy == nil || *invite.UsedBy != user.ID {
		t.Error("invite code was not consumed by the new user")
	}
}

func TestRegisterInviteConsumedOnce(t *testing.T) {
	ctx := context.Background()
	userRepo := newMockUserRepo()
	inviteRepo := newMockInviteRepo()
	inviteRepo.addCode("welcome-1")
	svc := NewAuthService(userRepo, inviteRepo, testLogger())

	if _, err := svc.Register(ctx, &RegisterInput{Username: "alice", Password: "password123", ConfirmPassword: "password123"}); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}

	if _, err := svc.Register(ctx, &RegisterInput{Username: "bob", Password: "password123", ConfirmPassword: "password123", InviteCode: "welcome-1"}); err != nil {
		t.Fatalf("first invited signup failed: %v", err)
	}

	_, err := svc.Register(ctx, &RegisterInput{Username: "carol", Password: "password123", ConfirmPassword: "password123", InviteCode: "welcome-1"})
	if code := serviceErrorCode(t, err); code != types.CodeInviteInvalid {
		t.Errorf("expected %s for reused code, got %s", types.CodeInviteInvalid, code)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newMockUserRepo(), newMockInviteRepo(), testLogger())

	tests := []struct {
		name  string
		input RegisterInput
		code  string
	}{
		{"empty username", RegisterInput{Password: "password123", ConfirmPassword: "password123"}, types.CodeValidation},
		{"short password", RegisterInput{Username: "alice", Password: "short", ConfirmPassword: "short"}, types.CodeValidation},
		{"mismatched passwords", RegisterInput{Username: "alice", Password: "password123", ConfirmPassword: "password124"}, types.CodePasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, &tt.input)
			if code := serviceErrorCode(t, err); code != tt.code {
				t.Errorf("expected %s, got %s", tt.code, code)
			}
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newMockUserRepo(), newMockInviteRepo(), testLogger())

	if _, err := svc.Register(ctx, &RegisterInput{Username: "alice", Password: "password123", ConfirmPassword: "password123"}); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}

	_, err := svc.Register(ctx, &RegisterInput{Username: "alice", Password: "password123", ConfirmPassword: "password123"})
	if code := serviceErrorCode(t, err); code != types.CodeUsernameTaken {
		t.Errorf("expected %s, got %s", types.CodeUsernameTaken, code)
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newMockUserRepo(), newMockInviteRepo(), testLogger())

	if _, err := svc.Register(ctx, &RegisterInput{Username: "alice", Password: "password123", ConfirmPassword: "password123"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	user, err := svc.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("expected alice, got %s", user.Username)
	}

	if _, err := svc.Login(ctx, "alice", "wrong-password"); err == nil {
		t.Error("expected error for wrong password")
	} else if code := serviceErrorCode(t, err); code != types.CodeBadCredentials {
		t.Errorf("expected %s, got %s", types.CodeBadCredentials, code)
	}

	// Unknown user gets the same error as a wrong password
	if _, err := svc.Login(ctx, "mallory", "password123"); err == nil {
		t.Error("expected error for unknown user")
	} else if code := serviceErrorCode(t, err); code != types.CodeBadCredentials {
		t.Errorf("expected %s, got %s", types.CodeBadCredentials, code)
	}
}

func TestRevokeInviteCodeIdempotent(t *testing.T) {
	ctx := context.Background()
	inviteRepo := newMockInviteRepo()
	svc := NewAuthService(newMockUserRepo(), inviteRepo, testLogger())

	code, err := svc.GenerateInviteCode(ctx, "admin-1")
	if err != nil {
		t.Fatalf("failed to generate code: %v", err)
	}

	if err := svc.RevokeInviteCode(ctx, code.ID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if err := svc.RevokeInviteCode(ctx, code.ID); err != nil {
		t.Fatalf("second revoke should be a no-op, got: %v", err)
	}

	if err := svc.RevokeInviteCode(ctx, "no-such-id"); err == nil {
		t.Error("expected error for unknown code id")
	} else if c := serviceErrorCode(t, err); c != types.CodeNotFound {
		t.Errorf("expected %s, got %s", types.CodeNotFound, c)
	}
}
