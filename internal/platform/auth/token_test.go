package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/medilink/telehealth/internal/platform/apperr"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	tok, expires, err := m.Issue("acct-9", RolePatient)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Errorf("expected expiry in the future, got %v", expires)
	}

	claims, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "acct-9" || claims.Role != RolePatient {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenManager_Expired(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, _, err := m.Issue("acct-9", RolePatient)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m.now = time.Now
	_, err = m.Verify(tok)
	if !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}
}

func TestTokenManager_IssueRequiresClaims(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	if _, _, err := m.Issue("", RolePatient); err == nil {
		t.Error("expected error for empty account id")
	}
	if _, _, err := m.Issue("acct", ""); err == nil {
		t.Error("expected error for empty role")
	}
}

func TestTokenManager_VerifyGarbage(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := m.Verify(tok); !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Errorf("Verify(%q) = %v, want unauthenticated", tok, err)
		}
	}
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)
	if _, err := TokenFromRequest(req); err == nil {
		t.Error("expected error when no token is present")
	}

	req = httptest.NewRequest("GET", "/ws?token=abc", nil)
	if tok, err := TokenFromRequest(req); err != nil || tok != "abc" {
		t.Errorf("expected query token abc, got %q (%v)", tok, err)
	}

	req = httptest.NewRequest("GET", "/ws?token=abc", nil)
	req.Header.Set("Authorization", "Bearer xyz")
	if tok, err := TokenFromRequest(req); err != nil || tok != "xyz" {
		t.Errorf("expected header token to win, got %q (%v)", tok, err)
	}
}
