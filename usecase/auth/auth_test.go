package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/internal/security"
	"github.com/fastygo/taskhub/internal/testutil"
	"github.com/fastygo/taskhub/repository"
	"github.com/fastygo/taskhub/usecase/auth"
)

type env struct {
	uc       *auth.UseCase
	store    repository.Store
	sessions *testutil.Sessions
	events   *testutil.Recorder
	tokens   *security.TokenManager
}

func newEnv(t *testing.T) env {
	t.Helper()
	store := testutil.NewStore(t)
	tokens, err := security.NewTokenManager("test-secret", "taskhub", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	sessions := testutil.NewSessions()
	events := &testutil.Recorder{}
	uc := auth.New(store.Users, sessions, store.Tx, tokens, security.NewHasher(bcrypt.MinCost), events, nil)
	return env{uc: uc, store: store, sessions: sessions, events: events, tokens: tokens}
}

func register(t *testing.T, e env, name, role string, caller *domain.Principal) *auth.RegisterResult {
	t.Helper()
	res, err := e.uc.Register(context.Background(), auth.RegisterInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: "password1",
		Role:     role,
	}, caller)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return res
}

func TestFirstUserBecomesAdmin(t *testing.T) {
	e := newEnv(t)
	res := register(t, e, "alice", "user", nil)
	if res.User.Role != domain.RoleAdmin {
		t.Fatalf("expected admin, got %s", res.User.Role)
	}
	if res.Token == "" {
		t.Fatalf("self-registration should return a token")
	}

	second := register(t, e, "bob", "", nil)
	if second.User.Role != domain.RoleUser {
		t.Fatalf("second user should be a plain user, got %s", second.User.Role)
	}
	if got := e.events.Names(); len(got) != 2 || got[0] != domain.EventUserRegistered {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestAdminRegistrationNeedsAdminCaller(t *testing.T) {
	e := newEnv(t)
	admin := register(t, e, "root", "", nil).User
	plain := register(t, e, "plain", "", nil).User

	ctx := context.Background()
	in := auth.RegisterInput{Name: "mallory", Email: "mallory@example.com", Password: "password1", Role: "admin"}

	_, err := e.uc.Register(ctx, in, nil)
	if !domain.IsDomainError(err, domain.ErrCodeForbidden) || domain.ReasonOf(err) != domain.ReasonNotAdmin {
		t.Fatalf("anonymous admin registration: expected Forbidden/NotAdmin, got %v", err)
	}

	caller := plain.Principal()
	if _, err := e.uc.Register(ctx, in, &caller); !domain.IsDomainError(err, domain.ErrCodeForbidden) {
		t.Fatalf("non-admin caller: expected Forbidden, got %v", err)
	}

	count, _ := e.store.Users.Count(ctx)
	if count != 2 {
		t.Fatalf("denied registrations must not create users, count=%d", count)
	}

	adminCaller := admin.Principal()
	res, err := e.uc.Register(ctx, in, &adminCaller)
	if err != nil {
		t.Fatalf("admin caller: %v", err)
	}
	if res.User.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", res.User.Role)
	}
	if res.Token != "" {
		t.Fatalf("admin-initiated registration must not return a token")
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)
	register(t, e, "alice", "", nil)
	ctx := context.Background()

	cases := []struct {
		name string
		in   auth.RegisterInput
		code domain.ErrorCode
	}{
		{"duplicate email", auth.RegisterInput{Name: "x", Email: "ALICE@example.com", Password: "password1"}, domain.ErrCodeConflict},
		{"bad email", auth.RegisterInput{Name: "x", Email: "not-an-email", Password: "password1"}, domain.ErrCodeInvalid},
		{"short password", auth.RegisterInput{Name: "x", Email: "x@example.com", Password: "123"}, domain.ErrCodeInvalid},
		{"missing name", auth.RegisterInput{Name: " ", Email: "y@example.com", Password: "password1"}, domain.ErrCodeInvalid},
		{"unknown role", auth.RegisterInput{Name: "z", Email: "z@example.com", Password: "password1", Role: "root"}, domain.ErrCodeInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.uc.Register(ctx, tc.in, nil)
			if !domain.IsDomainError(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestLoginAndResolve(t *testing.T) {
	e := newEnv(t)
	user := register(t, e, "alice", "", nil).User
	ctx := context.Background()

	if _, err := e.uc.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, domain.ErrBadCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := e.uc.Login(ctx, "nobody@example.com", "password1"); !errors.Is(err, domain.ErrBadCredentials) {
		t.Fatalf("unknown email: %v", err)
	}

	login, err := e.uc.Login(ctx, "Alice@Example.com", "password1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	principal, err := e.uc.Resolve(ctx, login.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal.UserID != user.ID || !principal.IsAdmin() {
		t.Fatalf("unexpected principal %+v", principal)
	}

	if _, err := e.uc.Resolve(ctx, "garbage"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("garbage token: %v", err)
	}
}

func TestResolveReadsCurrentRole(t *testing.T) {
	e := newEnv(t)
	res := register(t, e, "alice", "", nil)
	ctx := context.Background()

	res.User.Role = domain.RoleUser
	if err := e.store.Users.Update(ctx, res.User); err != nil {
		t.Fatal(err)
	}
	principal, err := e.uc.Resolve(ctx, res.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal.IsAdmin() {
		t.Fatalf("demoted user still resolves as admin")
	}

	if err := e.store.Users.Delete(ctx, res.User.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.uc.Resolve(ctx, res.Token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("deleted user resolved: %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newEnv(t)
	res := register(t, e, "alice", "", nil)
	ctx := context.Background()

	if err := e.uc.Logout(ctx, res.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if e.sessions.Len() != 0 {
		t.Fatalf("session not removed")
	}
	if _, err := e.uc.Resolve(ctx, res.Token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("revoked token resolved: %v", err)
	}
	if _, err := e.uc.Refresh(ctx, res.Token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("revoked token refreshed: %v", err)
	}
}

func TestRefreshIssuesWorkingToken(t *testing.T) {
	e := newEnv(t)
	res := register(t, e, "alice", "", nil)
	ctx := context.Background()

	refreshed, err := e.uc.Refresh(ctx, res.Token)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	principal, err := e.uc.Resolve(ctx, refreshed.Token)
	if err != nil || principal.UserID != res.User.ID {
		t.Fatalf("refreshed token: principal=%+v err=%v", principal, err)
	}
}

func TestRefreshOutlivesOriginalExpiry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now()

	// The first token expires five minutes from now.
	e.tokens.WithClock(func() time.Time { return now.Add(-55 * time.Minute) })
	res := register(t, e, "alice", "", nil)

	e.tokens.WithClock(func() time.Time { return now })
	refreshed, err := e.uc.Refresh(ctx, res.Token)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !refreshed.ExpiresAt.After(now.Add(50 * time.Minute)) {
		t.Fatalf("refreshed expiry %s not extended", refreshed.ExpiresAt)
	}

	e.uc.Now = func() time.Time { return now.Add(10 * time.Minute) }
	principal, err := e.uc.Resolve(ctx, refreshed.Token)
	if err != nil {
		t.Fatalf("refreshed token rejected after the first expiry: %v", err)
	}
	if principal.UserID != res.User.ID {
		t.Fatalf("principal = %+v", principal)
	}
}
