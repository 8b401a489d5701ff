package httpapi

import (
	"strings"
	"testing"
	"time"

	"fioeflor/backend/internal/domain"
)

func TestAuthManagerStoresPasswordHashed(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "admin", "florada-123")

	if auth.adminPassHash == "florada-123" {
		t.Fatal("admin password stored in plaintext")
	}
	if !strings.HasPrefix(auth.adminPassHash, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", auth.adminPassHash)
	}
}

func TestAuthManagerLoginAndParseToken(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "Admin", "florada-123")

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "florada-123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("empty access token")
	}
	if resp.ExpiresAt == "" {
		t.Fatal("empty expiry")
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" {
		t.Fatalf("expected username admin, got %q", actor.Username)
	}
	if actor.Role != "admin" {
		t.Fatalf("expected role admin, got %q", actor.Role)
	}
}

func TestAuthManagerLoginWrongPassword(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "admin", "florada-123")

	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "outra-senha"}); err == nil {
		t.Fatal("expected login failure with wrong password")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "gerente", Password: "florada-123"}); err == nil {
		t.Fatal("expected login failure with unknown user")
	}
}

func TestAuthManagerLoginWithoutConfiguredPassword(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "admin", "")

	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: ""}); err == nil {
		t.Fatal("expected login failure when no password is configured")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "admin", "florada-123")

	if _, err := auth.ParseToken("not-a-token"); err == nil {
		t.Fatal("expected parse failure for garbage token")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "admin", "florada-123")

	tokenStr, err := auth.sign("admin", "admin", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(tokenStr); err == nil {
		t.Fatal("expected parse failure for expired token")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "admin", "florada-123")
	other := NewAuthManager("another-secret-key", time.Hour, "admin", "florada-123")

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "florada-123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatal("expected parse failure with a different signing secret")
	}
}

func TestCSRFTokenRoundTrip(t *testing.T) {
	api := newTestAPI(t)

	token := api.generateCSRFToken()
	if !api.validateCSRFToken(token) {
		t.Fatal("freshly generated csrf token rejected")
	}
	if api.validateCSRFToken("deadbeef") {
		t.Fatal("bogus csrf token accepted")
	}
	if api.validateCSRFToken("") {
		t.Fatal("empty csrf token accepted")
	}

	// Tokens from the previous hour bucket remain valid.
	previous := api.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Add(-time.Hour).Unix())
	if !api.validateCSRFToken(previous) {
		t.Fatal("previous-hour csrf token rejected")
	}
}
