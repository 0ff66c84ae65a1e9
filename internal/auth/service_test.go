package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	dbutil "github.com/linkhubapp/linkhub/internal/db"
	"github.com/linkhubapp/linkhub/internal/models"
)

// captureMailer records the last raw tokens instead of sending mail.
type captureMailer struct {
	verifyToken string
	resetToken  string
}

func (m *captureMailer) SendVerification(_ context.Context, _, token string) error {
	m.verifyToken = token
	return nil
}

func (m *captureMailer) SendPasswordReset(_ context.Context, _, token string) error {
	m.resetToken = token
	return nil
}

func newTestService(t *testing.T) (*Service, *captureMailer) {
	t.Helper()
	conn, err := dbutil.Open(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	mailer := &captureMailer{}
	return NewService(conn, []byte("test-secret"), time.Hour, "client-id", mailer), mailer
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "A", "not-an-email", "Str0ng!pass"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("bad email error = %v, want ErrInvalidEmail", err)
	}
	if _, err := svc.Register(ctx, "A", "a@example.com", "weak"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password error = %v, want ErrWeakPassword", err)
	}

	result, err := svc.Register(ctx, "Alice", "Alice@Example.com", "Str0ng!pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.User.Email != "alice@example.com" {
		t.Fatalf("email stored as %q, want lowercase", result.User.Email)
	}
	if result.Token == "" || !result.IsNewUser {
		t.Fatal("missing token or IsNewUser flag")
	}

	// Case-insensitive duplicate.
	if _, errDup := svc.Register(ctx, "B", "ALICE@example.com", "Other1!pass"); !errors.Is(errDup, ErrEmailInUse) {
		t.Fatalf("duplicate email error = %v, want ErrEmailInUse", errDup)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Alice", "alice@example.com", "Str0ng!pass"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := svc.Authenticate(ctx, "ALICE@example.com", "Str0ng!pass", "")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.User.LastLoginAt == nil {
		t.Fatal("LastLoginAt not stamped")
	}

	if _, err = svc.Authenticate(ctx, "alice@example.com", "Wr0ng!pass", ""); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("wrong password error = %v, want ErrAuthFailed", err)
	}
	// Unknown email fails with the same error as a wrong password.
	if _, err = svc.Authenticate(ctx, "nobody@example.com", "Str0ng!pass", ""); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("unknown email error = %v, want ErrAuthFailed", err)
	}
}

func TestLockoutStateMachine(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	if _, err := svc.Register(ctx, "Alice", "alice@example.com", "Str0ng!pass"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := 1; i <= models.LoginAttemptThreshold; i++ {
		_, err := svc.Authenticate(ctx, "alice@example.com", "Wr0ng!pass", "")
		var locked *LockedError
		if i < models.LoginAttemptThreshold {
			if !errors.Is(err, ErrAuthFailed) {
				t.Fatalf("attempt %d error = %v, want ErrAuthFailed", i, err)
			}
		} else if !errors.As(err, &locked) {
			t.Fatalf("attempt %d error = %v, want LockedError", i, err)
		}
	}

	// The correct password is rejected while the lock holds.
	var locked *LockedError
	if _, err := svc.Authenticate(ctx, "alice@example.com", "Str0ng!pass", ""); !errors.As(err, &locked) {
		t.Fatalf("locked login error = %v, want LockedError", err)
	}
	if wait := locked.Until.Sub(clock); wait != models.LockoutWindow {
		t.Fatalf("lock expiry %v after now, want %v", wait, models.LockoutWindow)
	}

	// After the window elapses the correct password succeeds and the
	// counter resets.
	clock = clock.Add(models.LockoutWindow + time.Minute)
	result, err := svc.Authenticate(ctx, "alice@example.com", "Str0ng!pass", "")
	if err != nil {
		t.Fatalf("post-lock login: %v", err)
	}
	if result.User.LoginAttempts != 0 || result.User.LockUntil != nil {
		t.Fatalf("counters not reset: attempts=%d lock=%v", result.User.LoginAttempts, result.User.LockUntil)
	}
}

func TestFailedAttemptsCountRelatively(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, "Alice", "alice@example.com", "Str0ng!pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	now := svc.now().UTC()

	// Two racing logins both read the counter at zero. The relative
	// update means each failure still lands.
	stale1 := *result.User
	stale2 := *result.User
	if errFirst := svc.recordFailedAttempt(ctx, &stale1, now); !errors.Is(errFirst, ErrAuthFailed) {
		t.Fatalf("first failure error = %v, want ErrAuthFailed", errFirst)
	}
	if errSecond := svc.recordFailedAttempt(ctx, &stale2, now); !errors.Is(errSecond, ErrAuthFailed) {
		t.Fatalf("second failure error = %v, want ErrAuthFailed", errSecond)
	}

	fresh, errGet := svc.GetUser(ctx, result.User.ID)
	if errGet != nil {
		t.Fatalf("GetUser: %v", errGet)
	}
	if fresh.LoginAttempts != 2 {
		t.Fatalf("login_attempts = %d after two stale-reader failures, want 2", fresh.LoginAttempts)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Alice", "alice@example.com", "Str0ng!pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	userID := reg.User.ID

	if _, err = svc.ChangePassword(ctx, userID, "Str0ng!pass", "Str0ng!pass"); !errors.Is(err, ErrSamePassword) {
		t.Fatalf("same password error = %v, want ErrSamePassword", err)
	}
	if _, err = svc.ChangePassword(ctx, userID, "Wr0ng!pass", "N3w!passwd"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current error = %v, want ErrInvalidCredentials", err)
	}
	if _, err = svc.ChangePassword(ctx, userID, "Str0ng!pass", "weak"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak new error = %v, want ErrWeakPassword", err)
	}

	updated, err := svc.ChangePassword(ctx, userID, "Str0ng!pass", "N3w!passwd")
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if updated.TokenVersion != reg.User.TokenVersion+1 {
		t.Fatalf("token version = %d, want %d", updated.TokenVersion, reg.User.TokenVersion+1)
	}

	// The old password is now in history and cannot come back.
	if _, err = svc.ChangePassword(ctx, userID, "N3w!passwd", "Str0ng!pass"); !errors.Is(err, ErrPasswordReused) {
		t.Fatalf("reused password error = %v, want ErrPasswordReused", err)
	}

	// The old session token is dead, the fresh one still refreshes.
	if _, err = svc.Refresh(ctx, reg.Token); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("stale token refresh error = %v, want ErrAuthFailed", err)
	}
	freshToken, err := svc.TokenFor(updated)
	if err != nil {
		t.Fatalf("TokenFor: %v", err)
	}
	if _, err = svc.Refresh(ctx, freshToken); err != nil {
		t.Fatalf("fresh token refresh: %v", err)
	}
}

func TestVerifyEmail(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Alice", "alice@example.com", "Str0ng!pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if mailer.verifyToken == "" {
		t.Fatal("no verification token issued at registration")
	}

	if errVerify := svc.VerifyEmail(ctx, "bogus-token"); !errors.Is(errVerify, ErrInvalidToken) {
		t.Fatalf("bogus token error = %v, want ErrInvalidToken", errVerify)
	}
	if errVerify := svc.VerifyEmail(ctx, mailer.verifyToken); errVerify != nil {
		t.Fatalf("VerifyEmail: %v", errVerify)
	}

	user, err := svc.GetUser(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !user.Verified {
		t.Fatal("user not marked verified")
	}

	// The token is consumed.
	if errAgain := svc.VerifyEmail(ctx, mailer.verifyToken); !errors.Is(errAgain, ErrInvalidToken) {
		t.Fatalf("reused token error = %v, want ErrInvalidToken", errAgain)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Alice", "alice@example.com", "Str0ng!pass"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Unknown emails report success without issuing anything.
	if err := svc.ForgotPassword(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("forgot unknown: %v", err)
	}
	if mailer.resetToken != "" {
		t.Fatal("reset token issued for unknown email")
	}

	if err := svc.ForgotPassword(ctx, "alice@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if mailer.resetToken == "" {
		t.Fatal("no reset token issued")
	}

	// Resetting to the current password is a reuse violation.
	if err := svc.ResetPassword(ctx, mailer.resetToken, "Str0ng!pass"); !errors.Is(err, ErrPasswordReused) {
		t.Fatalf("reset to current error = %v, want ErrPasswordReused", err)
	}

	if err := svc.ResetPassword(ctx, mailer.resetToken, "N3w!passwd"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "alice@example.com", "Str0ng!pass", ""); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("old password error = %v, want ErrAuthFailed", err)
	}
	if _, err := svc.Authenticate(ctx, "alice@example.com", "N3w!passwd", ""); err != nil {
		t.Fatalf("new password login: %v", err)
	}

	// The token is single-use.
	if err := svc.ResetPassword(ctx, mailer.resetToken, "An0ther!pw"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("reused reset token error = %v, want ErrInvalidToken", err)
	}

	// An expired token is rejected.
	if err := svc.ForgotPassword(ctx, "alice@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	svc.now = func() time.Time { return time.Now().UTC().Add(ResetTokenLifetime + time.Minute) }
	if err := svc.ResetPassword(ctx, mailer.resetToken, "An0ther!pw"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired reset token error = %v, want ErrInvalidToken", err)
	}
}

func stubProfile(p GoogleProfile, errVerify error) IDTokenVerifier {
	return func(context.Context, string, string) (*GoogleProfile, error) {
		if errVerify != nil {
			return nil, errVerify
		}
		return &p, nil
	}
}

func TestAuthenticateGoogleProvision(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.verifyIDToken = stubProfile(GoogleProfile{
		Subject:    "sub-1",
		Email:      "carol@example.com",
		Verified:   true,
		Name:       "Carol",
		PictureURL: "https://img.example.com/carol.png",
	}, nil)

	result, err := svc.AuthenticateGoogle(ctx, "raw-token")
	if err != nil {
		t.Fatalf("AuthenticateGoogle: %v", err)
	}
	if !result.IsNewUser {
		t.Fatal("first federated login should provision")
	}
	if !result.User.Verified || result.User.GoogleID == nil || *result.User.GoogleID != "sub-1" {
		t.Fatalf("provisioned user = %+v", result.User)
	}
	if result.User.PasswordHash != "" {
		t.Fatal("federated account has a password hash")
	}

	// Second login with the same subject is a plain login.
	again, err := svc.AuthenticateGoogle(ctx, "raw-token")
	if err != nil {
		t.Fatalf("second AuthenticateGoogle: %v", err)
	}
	if again.IsNewUser {
		t.Fatal("second login reported as new")
	}
	if again.User.ID != result.User.ID {
		t.Fatal("second login hit a different account")
	}
}

func TestAuthenticateGoogleLinksExistingAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Alice", "alice@example.com", "Str0ng!pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	svc.verifyIDToken = stubProfile(GoogleProfile{
		Subject:  "sub-alice",
		Email:    "alice@example.com",
		Verified: true,
	}, nil)

	result, err := svc.AuthenticateGoogle(ctx, "raw-token")
	if err != nil {
		t.Fatalf("AuthenticateGoogle: %v", err)
	}
	if result.IsNewUser {
		t.Fatal("link reported as provision")
	}
	if result.User.ID != reg.User.ID {
		t.Fatal("linked to a different account")
	}
	if result.User.GoogleID == nil || *result.User.GoogleID != "sub-alice" {
		t.Fatal("google id not linked")
	}
	if !result.User.Verified {
		t.Fatal("linking should mark the email verified")
	}

	// The password still works after linking.
	if _, err = svc.Authenticate(ctx, "alice@example.com", "Str0ng!pass", ""); err != nil {
		t.Fatalf("password login after link: %v", err)
	}
}

func TestAuthenticateGoogleConflictsAndFailures(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Alice", "alice@example.com", "Str0ng!pass"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	svc.verifyIDToken = stubProfile(GoogleProfile{Subject: "sub-1", Email: "alice@example.com", Verified: true}, nil)
	if _, err := svc.AuthenticateGoogle(ctx, "raw"); err != nil {
		t.Fatalf("initial link: %v", err)
	}

	// A different subject claiming the same email is a conflict.
	svc.verifyIDToken = stubProfile(GoogleProfile{Subject: "sub-2", Email: "alice@example.com", Verified: true}, nil)
	if _, err := svc.AuthenticateGoogle(ctx, "raw"); !errors.Is(err, ErrGoogleIDConflict) {
		t.Fatalf("subject conflict error = %v, want ErrGoogleIDConflict", err)
	}

	// An unverified or incomplete profile is rejected.
	svc.verifyIDToken = stubProfile(GoogleProfile{Subject: "sub-3", Email: "bob@example.com", Verified: false}, nil)
	if _, err := svc.AuthenticateGoogle(ctx, "raw"); !errors.Is(err, ErrIncompleteProfile) {
		t.Fatalf("unverified profile error = %v, want ErrIncompleteProfile", err)
	}
	svc.verifyIDToken = stubProfile(GoogleProfile{Subject: "", Email: "bob@example.com", Verified: true}, nil)
	if _, err := svc.AuthenticateGoogle(ctx, "raw"); !errors.Is(err, ErrIncompleteProfile) {
		t.Fatalf("missing subject error = %v, want ErrIncompleteProfile", err)
	}

	// Verification failures surface as a generic auth failure.
	svc.verifyIDToken = stubProfile(GoogleProfile{}, errors.New("keys unavailable"))
	if _, err := svc.AuthenticateGoogle(ctx, "raw"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("verifier failure error = %v, want ErrAuthFailed", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Alice", "alice@example.com", "Str0ng!pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	name := "  Alice Liddell "
	picture := "https://img.example.com/alice.png"
	updated, err := svc.UpdateProfile(ctx, reg.User.ID, &name, &picture)
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.FullName != "Alice Liddell" {
		t.Fatalf("full name = %q", updated.FullName)
	}
	if updated.PictureURL != picture {
		t.Fatalf("picture url = %q", updated.PictureURL)
	}

	// Nil fields leave values untouched.
	unchanged, err := svc.UpdateProfile(ctx, reg.User.ID, nil, nil)
	if err != nil {
		t.Fatalf("UpdateProfile nil: %v", err)
	}
	if unchanged.FullName != "Alice Liddell" {
		t.Fatalf("full name reset to %q", unchanged.FullName)
	}

	if _, err = svc.UpdateProfile(ctx, 9999, &name, nil); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing user error = %v, want ErrUserNotFound", err)
	}
}
