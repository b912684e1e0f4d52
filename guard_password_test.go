package authcore

import (
	"context"
	"errors"
	"testing"

	"github.com/campuskit/authcore/password"
)

const testNewPassword = "Qw8#zRt5@mN1j"

func TestChangePasswordHappyPath(t *testing.T) {
	f := newGuardFixture(t, func(cfg *Config) {
		cfg.Throttle.Burst = 100
	})
	ctx := context.Background()

	res := login(t, f, "msmith", testUserPassword, "10.0.0.1")

	if err := f.guard.ChangePassword(ctx, "msmith", testUserPassword, testNewPassword); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	// Every credential from before the change is dead.
	if _, err := f.guard.AuthenticateWithToken(ctx, res.Access.Token, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatal("access token survived password change")
	}
	if _, err := f.guard.Refresh(ctx, res.Refresh.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatal("refresh token survived password change")
	}
	if got := len(f.guard.ActiveSessions("msmith")); got != 0 {
		t.Fatalf("%d sessions survived password change", got)
	}

	// Old password no longer works, new one does.
	_, err := f.guard.Authenticate(ctx, Credentials{Username: "msmith", Password: testUserPassword, IP: "10.0.0.1"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password error = %v", err)
	}
	login(t, f, "msmith", testNewPassword, "10.0.0.1")
}

func TestChangePasswordRejectsWrongCurrent(t *testing.T) {
	f := newGuardFixture(t, nil)

	err := f.guard.ChangePassword(context.Background(), "msmith", "not-the-password-1!X", testNewPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v, want ErrInvalidCredentials", err)
	}
}

func TestChangePasswordEnforcesStrength(t *testing.T) {
	f := newGuardFixture(t, nil)

	err := f.guard.ChangePassword(context.Background(), "msmith", testUserPassword, "weak")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("weak password error = %v, want ErrPasswordPolicy", err)
	}
}

func TestChangePasswordRejectsReuse(t *testing.T) {
	f := newGuardFixture(t, nil)
	ctx := context.Background()

	// Same password again.
	err := f.guard.ChangePassword(ctx, "msmith", testUserPassword, testUserPassword)
	if !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("same password error = %v, want ErrPasswordReuse", err)
	}

	// Cycling back to a remembered password.
	if err := f.guard.ChangePassword(ctx, "msmith", testUserPassword, testNewPassword); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	err = f.guard.ChangePassword(ctx, "msmith", testNewPassword, testUserPassword)
	if !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("historical password error = %v, want ErrPasswordReuse", err)
	}
}

func TestResetPasswordByAdmin(t *testing.T) {
	f := newGuardFixture(t, func(cfg *Config) {
		cfg.Throttle.Burst = 100
	})
	ctx := context.Background()

	admin := login(t, f, "root", testAdminPassword, "10.0.0.1")
	victim := login(t, f, "msmith", testUserPassword, "10.0.0.2")

	temp, err := f.guard.ResetPassword(ctx, admin.Access.Token, "msmith")
	if err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if got := password.ValidateStrength(temp); !got.IsStrong {
		t.Fatalf("temporary password %q is weak", temp)
	}

	// The target's sessions are gone.
	if _, err := f.guard.AuthenticateWithToken(ctx, victim.Access.Token, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatal("victim token survived reset")
	}

	// Logging in with the temporary password demands a change.
	_, err = f.guard.Authenticate(ctx, Credentials{Username: "msmith", Password: temp, IP: "10.0.0.2"})
	if !errors.Is(err, ErrPasswordExpired) {
		t.Fatalf("temp password login = %v, want ErrPasswordExpired", err)
	}

	// Changing the password clears the forced-change flag.
	if err := f.guard.ChangePassword(ctx, "msmith", temp, testNewPassword); err != nil {
		t.Fatalf("ChangePassword after reset: %v", err)
	}
	login(t, f, "msmith", testNewPassword, "10.0.0.2")
}

func TestResetPasswordRequiresPermission(t *testing.T) {
	f := newGuardFixture(t, func(cfg *Config) {
		cfg.Throttle.Burst = 100
	})
	ctx := context.Background()

	professor := login(t, f, "jdoe", testUserPassword, "10.0.0.1")

	_, err := f.guard.ResetPassword(ctx, professor.Access.Token, "msmith")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("professor reset error = %v, want ErrAccessDenied", err)
	}
}

func TestPasswordHistoryDepthBounded(t *testing.T) {
	h := newPasswordHistory(2)
	h.remember("u", "h1")
	h.remember("u", "h2")
	h.remember("u", "h3")

	got := h.recent("u")
	if len(got) != 2 || got[0] != "h2" || got[1] != "h3" {
		t.Fatalf("recent = %v, want [h2 h3]", got)
	}
}
