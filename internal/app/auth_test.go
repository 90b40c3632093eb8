package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"edurumble-service/internal/app"
	"edurumble-service/internal/domain"
	"edurumble-service/internal/infra/memory"
	"edurumble-service/internal/session"
)

func newAuth(t *testing.T) (*app.AuthService, *memory.UserStore, *session.Manager, *recordingPublisher) {
	t.Helper()
	users := memory.NewUserStore()
	sessions, err := session.NewManager("secret", time.Hour)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	events := &recordingPublisher{}
	return app.NewAuthService(users, memory.NewLedger(), sessions, events, 30), users, sessions, events
}

func signUp(t *testing.T, auth *app.AuthService) domain.User {
	t.Helper()
	user, err := auth.SignUp(context.Background(), app.SignUpRequest{
		Username: "ada",
		Email:    "Ada@Example.com",
		Fullname: "Ada Lovelace",
		Password: "engine",
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	return user
}

func TestSignUpVerifyLogin(t *testing.T) {
	ctx := context.Background()
	auth, users, sessions, events := newAuth(t)

	user := signUp(t, auth)
	if user.Credits != 30 || user.IsVerified || user.Email != "ada@example.com" {
		t.Fatalf("unexpected new user: %+v", user)
	}
	if user.PasswordHash == "engine" || user.PasswordHash == "" {
		t.Fatalf("password must be stored hashed")
	}
	if got := events.types(); len(got) != 1 || got[0] != domain.EventUserRegistered {
		t.Fatalf("expected user.registered, got %v", got)
	}

	if _, err := auth.Login(ctx, "ada@example.com", "engine"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected unverified login to be forbidden, got %v", err)
	}

	stored, _ := users.GetUserByUsername(ctx, "ada")
	if len(stored.VerifyCode) != 6 {
		t.Fatalf("expected 6 digit code, got %q", stored.VerifyCode)
	}
	if err := auth.Verify(ctx, "ada", "000000x"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected wrong code to fail, got %v", err)
	}
	if err := auth.Verify(ctx, "ada", stored.VerifyCode); err != nil {
		t.Fatalf("verify: %v", err)
	}

	res, err := auth.Login(ctx, "ADA@example.com", "engine")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	identity, err := sessions.Parse(res.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if identity.ID != user.ID || identity.Credits != 30 {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	me, err := auth.Me(ctx, identity)
	if err != nil || me.Username != "ada" {
		t.Fatalf("me: %+v %v", me, err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	auth, _, _, _ := newAuth(t)
	signUp(t, auth)

	if _, err := auth.Login(ctx, "nobody@example.com", "engine"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown email, got %v", err)
	}
	if _, err := auth.Login(ctx, "ada@example.com", "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong password, got %v", err)
	}
	if _, err := auth.Login(ctx, "", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSignUpValidationAndConflicts(t *testing.T) {
	ctx := context.Background()
	auth, _, _, _ := newAuth(t)

	_, err := auth.SignUp(ctx, app.SignUpRequest{Username: "", Email: "bad", Fullname: "", Password: "123"})
	var validation *domain.ValidationError
	if !errors.As(err, &validation) || len(validation.Problems) != 4 {
		t.Fatalf("expected four problems, got %v", err)
	}

	signUp(t, auth)
	if _, err := auth.SignUp(ctx, app.SignUpRequest{Username: "ada2", Email: "ada@example.com", Fullname: "A", Password: "engine"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestCreditHistoryRequiresSession(t *testing.T) {
	auth, _, _, _ := newAuth(t)
	if _, err := auth.CreditHistory(context.Background(), nil, 10); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	entries, err := auth.CreditHistory(context.Background(), &domain.Identity{ID: "u1"}, 0)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty history, got %v %v", entries, err)
	}
}

func TestVerifyLimitsAttempts(t *testing.T) {
	ctx := context.Background()
	auth, users, _, _ := newAuth(t)
	signUp(t, auth)
	stored, _ := users.GetUserByUsername(ctx, "ada")

	for i := 0; i < 5; i++ {
		if err := auth.Verify(ctx, "ada", "wrong!"); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("attempt %d: expected validation error, got %v", i+1, err)
		}
	}
	err := auth.Verify(ctx, "ada", stored.VerifyCode)
	var validation *domain.ValidationError
	if !errors.As(err, &validation) || validation.Problems[0] != "Too many incorrect attempts, please sign up again" {
		t.Fatalf("expected lockout after five failures, got %v", err)
	}
	if after, _ := users.GetUserByUsername(ctx, "ada"); after.IsVerified {
		t.Fatalf("locked account must stay unverified")
	}
}

func TestSignUpReissuesCodeForUnverifiedAccount(t *testing.T) {
	ctx := context.Background()
	auth, users, _, events := newAuth(t)
	first := signUp(t, auth)
	for i := 0; i < 5; i++ {
		_ = auth.Verify(ctx, "ada", "wrong!")
	}

	again := signUp(t, auth)
	if again.ID != first.ID {
		t.Fatalf("expected the same account, got %s and %s", first.ID, again.ID)
	}
	if got := events.types(); len(got) != 2 {
		t.Fatalf("expected a second user.registered event, got %v", got)
	}
	stored, _ := users.GetUserByUsername(ctx, "ada")
	if stored.VerifyAttempts != 0 {
		t.Fatalf("expected attempts reset, got %d", stored.VerifyAttempts)
	}
	if err := auth.Verify(ctx, "ada", stored.VerifyCode); err != nil {
		t.Fatalf("verify with reissued code: %v", err)
	}
	if _, err := auth.SignUp(ctx, app.SignUpRequest{Username: "ada", Email: "ada@example.com", Fullname: "Ada", Password: "engine"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("verified account must not be reissued, got %v", err)
	}
}
