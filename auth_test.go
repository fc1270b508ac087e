package gatekit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dealgrid/gatekit/identity"
	"github.com/dealgrid/gatekit/kv"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Cost = 12
	cfg.Audit.Enabled = false
	return cfg
}

func newTestAuth(t *testing.T) (*Auth, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	auth, err := New().WithConfig(testConfig()).WithRedis(client).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(auth.Close)
	return auth, mr
}

func signUpInput(email string) identity.CreateInput {
	return identity.CreateInput{
		Email:       email,
		FirstName:   "Dana",
		LastName:    "Reyes",
		PhoneNumber: "+15550100",
		Role:        identity.RoleCustomer,
	}
}

func TestSignUpAndSignIn(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	result, err := auth.SignUp(ctx, signUpInput("dana@example.com"), "hunter2hunter2")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if result.User == nil || result.Session == nil {
		t.Fatal("SignUp returned incomplete result")
	}
	if result.User.Email != "dana@example.com" {
		t.Fatalf("email = %q", result.User.Email)
	}
	if StateOf(result) != StateAuthenticated {
		t.Fatalf("state = %v, want authenticated", StateOf(result))
	}

	signedIn, err := auth.SignIn(ctx, "dana@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if signedIn.Session.ID == result.Session.ID {
		t.Fatal("SignIn reused the sign-up session")
	}
	if signedIn.User.ID != result.User.ID {
		t.Fatal("SignIn resolved a different user")
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := auth.SignUp(ctx, signUpInput("dup@example.com"), "first-password"); err != nil {
		t.Fatalf("first SignUp: %v", err)
	}
	_, err := auth.SignUp(ctx, signUpInput("dup@example.com"), "second-password")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
	if got := auth.Metrics().Value(MetricSignUpDuplicate); got != 1 {
		t.Fatalf("duplicate metric = %d", got)
	}
}

func TestSignInFailuresAreUniform(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := auth.SignUp(ctx, signUpInput("real@example.com"), "correct-password"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	_, wrongPw := auth.SignIn(ctx, "real@example.com", "wrong-password")
	_, noUser := auth.SignIn(ctx, "ghost@example.com", "wrong-password")

	if !errors.Is(wrongPw, ErrInvalidCredentials) || !errors.Is(noUser, ErrInvalidCredentials) {
		t.Fatalf("wrongPw = %v, noUser = %v, want ErrInvalidCredentials for both", wrongPw, noUser)
	}
	if wrongPw.Error() != noUser.Error() {
		t.Fatal("failure messages differ between unknown email and wrong password")
	}
}

func TestCurrentUserLifecycle(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	result, err := auth.SignUp(ctx, signUpInput("life@example.com"), "hunter2hunter2")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	sid := result.Session.ID

	resolved, err := auth.CurrentUser(ctx, sid)
	if err != nil || resolved == nil {
		t.Fatalf("CurrentUser = (%v, %v), want live result", resolved, err)
	}
	if resolved.User.ID != result.User.ID {
		t.Fatal("CurrentUser resolved a different user")
	}

	if err := auth.SignOut(ctx, sid); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	resolved, err = auth.CurrentUser(ctx, sid)
	if err != nil || resolved != nil {
		t.Fatalf("after SignOut CurrentUser = (%v, %v), want (nil, nil)", resolved, err)
	}

	// Signing out again is a no-op.
	if err := auth.SignOut(ctx, sid); err != nil {
		t.Fatalf("repeat SignOut: %v", err)
	}
}

func TestCurrentUserGarbageSessionID(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	for _, sid := range []string{"", "not-a-session", "AAAA", "ss:injected"} {
		result, err := auth.CurrentUser(ctx, sid)
		if err != nil || result != nil {
			t.Fatalf("CurrentUser(%q) = (%v, %v), want (nil, nil)", sid, result, err)
		}
	}
}

func TestCurrentUserReapsSessionOfDeletedUser(t *testing.T) {
	auth, mr := newTestAuth(t)
	ctx := context.Background()

	result, err := auth.SignUp(ctx, signUpInput("gone@example.com"), "hunter2hunter2")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	mr.Del("usr:" + result.User.ID)

	resolved, err := auth.CurrentUser(ctx, result.Session.ID)
	if err != nil || resolved != nil {
		t.Fatalf("CurrentUser = (%v, %v), want (nil, nil)", resolved, err)
	}
	// The orphaned session was reaped.
	if _, err := auth.sessions.Get(ctx, result.Session.ID); err == nil {
		t.Fatal("session of deleted user still resolvable")
	}
}

func TestRefreshSession(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	result, err := auth.SignUp(ctx, signUpInput("slide@example.com"), "hunter2hunter2")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	refreshed, err := auth.RefreshSession(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("RefreshSession: %v", err)
	}
	if refreshed.ExpiresAt < result.Session.ExpiresAt {
		t.Fatal("refresh moved expiry backwards")
	}

	if _, err := auth.RefreshSession(ctx, "missing-session"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestChangePassword(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	result, err := auth.SignUp(ctx, signUpInput("rotate@example.com"), "old-password-1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	userID := result.User.ID

	if err := auth.ChangePassword(ctx, userID, "wrong-old", "new-password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong old password err = %v, want ErrInvalidCredentials", err)
	}

	if err := auth.ChangePassword(ctx, userID, "old-password-1", "new-password-1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	// Every prior session is revoked.
	if resolved, err := auth.CurrentUser(ctx, result.Session.ID); err != nil || resolved != nil {
		t.Fatalf("old session still resolves: (%v, %v)", resolved, err)
	}

	if _, err := auth.SignIn(ctx, "rotate@example.com", "old-password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := auth.SignIn(ctx, "rotate@example.com", "new-password-1"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestSignOutAll(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	result, err := auth.SignUp(ctx, signUpInput("many@example.com"), "hunter2hunter2")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := auth.SignIn(ctx, "many@example.com", "hunter2hunter2"); err != nil {
			t.Fatalf("SignIn %d: %v", i, err)
		}
	}

	ids, err := auth.ActiveSessionIDs(ctx, result.User.ID)
	if err != nil || len(ids) != 4 {
		t.Fatalf("ActiveSessionIDs = (%d, %v), want 4", len(ids), err)
	}

	if err := auth.SignOutAll(ctx, result.User.ID); err != nil {
		t.Fatalf("SignOutAll: %v", err)
	}
	ids, err = auth.ActiveSessionIDs(ctx, result.User.ID)
	if err != nil || len(ids) != 0 {
		t.Fatalf("after SignOutAll ActiveSessionIDs = (%d, %v), want 0", len(ids), err)
	}
}

func TestUnconfiguredStoreFailsClosed(t *testing.T) {
	auth, err := New().WithConfig(testConfig()).WithKV(kv.New(nil)).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(auth.Close)
	ctx := context.Background()

	if _, err := auth.SignIn(ctx, "a@example.com", "pw"); !errors.Is(err, ErrUnconfigured) {
		t.Fatalf("SignIn err = %v, want ErrUnconfigured", err)
	}
	if _, err := auth.SignUp(ctx, signUpInput("a@example.com"), "pw"); !errors.Is(err, ErrUnconfigured) {
		t.Fatalf("SignUp err = %v, want ErrUnconfigured", err)
	}
	result, err := auth.CurrentUser(ctx, "whatever")
	if err != nil || result != nil {
		t.Fatalf("CurrentUser = (%v, %v), want (nil, nil)", result, err)
	}
	if got := auth.Metrics().Value(MetricUnconfigured); got == 0 {
		t.Fatal("unconfigured metric not incremented")
	}
}

func TestStoreUnavailableSurfaces(t *testing.T) {
	auth, mr := newTestAuth(t)
	ctx := context.Background()

	result, err := auth.SignUp(ctx, signUpInput("down@example.com"), "hunter2hunter2")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	mr.Close()

	_, err = auth.SignIn(ctx, "down@example.com", "hunter2hunter2")
	if !errors.Is(err, ErrInvalidCredentials) {
		// VerifyPassword swallows infra errors into a uniform failure.
		t.Fatalf("SignIn err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := auth.CurrentUser(ctx, result.Session.ID); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("CurrentUser err = %v, want ErrStoreUnavailable", err)
	}
}

func TestBuilderValidation(t *testing.T) {
	bad := testConfig()
	bad.Session.RefreshThreshold = bad.Session.TTL * 2
	if _, err := New().WithConfig(bad).WithKV(kv.New(nil)).Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}

	b := New().WithConfig(testConfig()).WithKV(kv.New(nil))
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("builder reuse did not error")
	}
}

func TestSweepOrphanedEmails(t *testing.T) {
	auth, mr := newTestAuth(t)
	ctx := context.Background()

	result, err := auth.SignUp(ctx, signUpInput("orphan@example.com"), "hunter2hunter2")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	mr.Del("usr:" + result.User.ID)

	n, err := auth.SweepOrphanedEmails(ctx)
	if err != nil || n != 1 {
		t.Fatalf("SweepOrphanedEmails = (%d, %v), want 1", n, err)
	}

	// The email is claimable again.
	if _, err := auth.SignUp(ctx, signUpInput("orphan@example.com"), "hunter2hunter2"); err != nil {
		t.Fatalf("re-SignUp after sweep: %v", err)
	}
}

func TestStateOf(t *testing.T) {
	if StateOf(nil) != StateAnonymous {
		t.Fatal("nil result should be anonymous")
	}
	auth, _ := newTestAuth(t)
	result, err := auth.SignUp(context.Background(), signUpInput("state@example.com"), "hunter2hunter2")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if StateOf(result) != StateAuthenticated {
		t.Fatal("live result should be authenticated")
	}
	result.Session.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if StateOf(result) != StateAnonymous {
		t.Fatal("expired result should be anonymous")
	}
}
